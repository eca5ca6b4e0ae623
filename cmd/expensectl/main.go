package main

import (
	"fmt"
	"os"

	"expensetracker/internal/cli"
)

func main() {
	cli.LoadEnvFile()
	if err := newRootCmd(openBackend).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
