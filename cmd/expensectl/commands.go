package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"text/tabwriter"

	"expensetracker/internal/backend"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	"expensetracker/internal/core"
	"expensetracker/internal/export"
	applog "expensetracker/internal/log"
	"expensetracker/internal/receipts"
	"expensetracker/internal/services"

	"github.com/spf13/cobra"
)

// backendOpener wires the services for one command invocation.
type backendOpener func(ctx context.Context, overrides map[string]string) (*backend.BackendResult, error)

type globalFlags struct {
	dbPath      string
	dataBackend string
	secrets     string
	logLevel    string
}

func (g globalFlags) overrides() map[string]string {
	o := map[string]string{}
	set := func(k, v string) {
		if v != "" {
			o[k] = v
		}
	}
	set("SQLITE_DB_PATH", g.dbPath)
	set("DATA_BACKEND", g.dataBackend)
	set("SECRETS_FILE", g.secrets)
	set("LOG_LEVEL", g.logLevel)
	return o
}

// openBackend logs to stderr so command output stays clean.
func openBackend(ctx context.Context, overrides map[string]string) (*backend.BackendResult, error) {
	r := config.DefaultResolver(overrides)
	level := r.Get("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	cfg := applog.DefaultConfig()
	cfg.Level = applog.ParseLevel(level)
	cfg.Output = os.Stderr
	cfg.Component = applog.ComponentCLI
	logger := applog.New(cfg)
	applog.SetDefault(logger)

	appCfg, err := cli.LoadAndValidateConfig(logger.Logger, r)
	if err != nil {
		return nil, err
	}
	return cli.OpenBackend(ctx, logger.Logger, appCfg)
}

func newRootCmd(open backendOpener) *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "expensectl",
		Short:         "Manage categories and expenses from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "SQLite database path (overrides SQLITE_DB_PATH)")
	root.PersistentFlags().StringVar(&flags.dataBackend, "backend", "", "data backend: sqlite or postgres (overrides DATA_BACKEND)")
	root.PersistentFlags().StringVar(&flags.secrets, "secrets", "", "secrets file (overrides SECRETS_FILE)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	// withBackend opens the backend around fn and always releases it.
	withBackend := func(fn func(cmd *cobra.Command, args []string, be *backend.BackendResult) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			be, err := open(cmd.Context(), flags.overrides())
			if err != nil {
				return err
			}
			defer be.Close()
			return fn(cmd, args, be)
		}
	}

	root.AddCommand(
		newCategoriesCmd(withBackend),
		newExpensesCmd(withBackend),
		newMonthsCmd(withBackend),
		newMonthCmd(withBackend),
	)
	return root
}

type runWithBackend func(fn func(cmd *cobra.Command, args []string, be *backend.BackendResult) error) func(*cobra.Command, []string) error

func newCategoriesCmd(with runWithBackend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List or add expense categories",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories in ascending order",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, args []string, be *backend.BackendResult) error {
			names, err := be.Categories.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME",
		Short: "Add a category (stored upper-cased)",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, args []string, be *backend.BackendResult) error {
			res := be.Categories.AddCategory(cmd.Context(), args[0])
			switch res.Outcome {
			case services.CategoryAdded:
				fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", res.Name)
			case services.CategoryDuplicate:
				fmt.Fprintf(cmd.OutOrStdout(), "category %s already exists\n", res.Name)
			default:
				return fmt.Errorf("add category: %w", res.Err)
			}
			return nil
		}),
	})
	return cmd
}

func newExpensesCmd(with runWithBackend) *cobra.Command {
	var amount, category, date, receiptPath string

	add := &cobra.Command{
		Use:   "add",
		Short: "Record an expense",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, args []string, be *backend.BackendResult) error {
			req, err := buildExpenseRequest(amount, category, date, receiptPath)
			if err != nil {
				return err
			}
			res, err := be.Expenses.RecordExpense(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "recorded expense #%d (%s)\n", res.ID, core.MonthOf(req.Date).Label())
			if res.ReceiptRef != "" {
				fmt.Fprintf(out, "receipt: %s\n", res.ReceiptRef)
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			return nil
		}),
	}
	add.Flags().StringVar(&amount, "amount", "", "amount, e.g. 12.50 or 12,50")
	add.Flags().StringVar(&category, "category", "", "existing category name")
	add.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	add.Flags().StringVar(&receiptPath, "receipt", "", "receipt file to upload")
	_ = add.MarkFlagRequired("amount")
	_ = add.MarkFlagRequired("category")

	cmd := &cobra.Command{
		Use:   "expenses",
		Short: "Record expenses",
	}
	cmd.AddCommand(add)
	return cmd
}

func buildExpenseRequest(amount, category, date, receiptPath string) (services.RecordExpenseRequest, error) {
	var req services.RecordExpenseRequest

	a, err := core.ParseAmount(amount)
	if err != nil {
		return req, fmt.Errorf("%w: %q", err, amount)
	}
	req.Amount = a
	req.Category = category

	req.Date = core.Today()
	if date != "" {
		if req.Date, err = core.ParseDate(date); err != nil {
			return req, err
		}
	}

	if receiptPath != "" {
		data, err := os.ReadFile(receiptPath)
		if err != nil {
			return req, fmt.Errorf("read receipt: %w", err)
		}
		req.Receipt = &receipts.File{
			Name:        filepath.Base(receiptPath),
			ContentType: mime.TypeByExtension(filepath.Ext(receiptPath)),
			Data:        data,
		}
	}
	return req, nil
}

func newMonthsCmd(with runWithBackend) *cobra.Command {
	return &cobra.Command{
		Use:   "months",
		Short: "Show the total of every month with expenses",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, args []string, be *backend.BackendResult) error {
			aggs, err := be.Ledger.MonthlyTotals(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, a := range aggs {
				fmt.Fprintf(tw, "%s\t%s\n", a.Label(), core.FormatAmount(a.Total))
			}
			return tw.Flush()
		}),
	}
}

func newMonthCmd(with runWithBackend) *cobra.Command {
	var xlsxPath string

	cmd := &cobra.Command{
		Use:   "month LABEL",
		Short: "List the expenses of one month (label like Mar-24)",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, args []string, be *backend.BackendResult) error {
			k, err := core.ParseMonthLabel(args[0])
			if err != nil {
				return err
			}
			rows, err := be.Ledger.ExpensesForMonth(cmd.Context(), k)
			if err != nil {
				return err
			}

			if xlsxPath != "" {
				return writeWorkbook(xlsxPath, k.Label(), rows, cmd.OutOrStdout())
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Date.ISO(), r.Category, core.FormatAmount(r.Amount), r.ReceiptRef)
			}
			fmt.Fprintf(tw, "TOTAL\t\t%s\t\n", core.FormatAmount(core.SumAmounts(rows)))
			return tw.Flush()
		}),
	}
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "write the month to an xlsx file instead")
	return cmd
}

func writeWorkbook(path, label string, rows []core.ExpenseDetail, out io.Writer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	if err := export.WriteMonthWorkbook(f, label, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close workbook: %w", err)
	}
	fmt.Fprintf(out, "wrote %d expenses to %s\n", len(rows), path)
	return nil
}
