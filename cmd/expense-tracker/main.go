package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"expensetracker/internal/cli"
	apphttp "expensetracker/internal/http"

	"golang.org/x/sync/errgroup"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))

	cfg, err := cli.LoadAndValidateConfig(logger.Logger, nil)
	if err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger = cli.SetupLogger(cfg.LogLevel)

	ctx, cancel := cli.SignalContext(context.Background(), logger.Logger)
	defer cancel()

	be, err := cli.OpenBackend(ctx, logger.Logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := be.Close(); err != nil {
			logger.Warn("Backend cleanup failed", "error", err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Categories:      be.Categories,
		Ledger:          be.Ledger,
		Expenses:        be.Expenses,
		Health:          be.DB,
		Logger:          logger,
		MaxReceiptBytes: cfg.ReceiptMaxBytes,
	})
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting expense tracker server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"receipt_store", be.ReceiptStore,
			"events_enabled", be.EventsEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	slog.Info("Server stopped gracefully")
}
