// Package cli provides the initialization shared by cmd/expense-tracker,
// cmd/expensectl and cmd/ledger-events.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"expensetracker/internal/backend"
	"expensetracker/internal/config"
	applog "expensetracker/internal/log"

	"github.com/joho/godotenv"
)

// SetupLogger initializes structured logging at the given LOG_LEVEL and
// sets it as the default logger.
func SetupLogger(level string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = applog.ParseLevel(level)
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// A missing file is not an error.
func LoadEnvFile(paths ...string) {
	if err := godotenv.Load(paths...); err != nil && !os.IsNotExist(err) {
		slog.Warn("Cannot load .env file", "error", err)
	}
}

// LoadAndValidateConfig resolves configuration through r (nil means the
// default resolver), validates it and logs non-fatal warnings.
func LoadAndValidateConfig(logger *slog.Logger, r *config.Resolver) (*config.Config, error) {
	if r == nil {
		r = config.DefaultResolver(nil)
	}
	cfg := config.LoadWith(r)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings() {
		logger.Warn("Configuration warning", "warning", w)
	}
	return cfg, nil
}

// OpenBackend wires storage and services from cfg.
func OpenBackend(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}
	return result, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
