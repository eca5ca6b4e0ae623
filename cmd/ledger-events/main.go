// Command ledger-events consumes "expense recorded" events and logs them.
package main

import (
	"context"
	"errors"
	"os"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cli"
	applog "expensetracker/internal/log"

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
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for ledger-events")
		os.Exit(1)
	}
	logger = cli.SetupLogger(cfg.LogLevel).WithComponent(applog.ComponentAMQP)

	ctx, cancel := cli.SignalContext(context.Background(), logger.Logger)
	defer cancel()

	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Consuming expense events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		return client.ConsumeExpenseRecorded(gctx, func(ctx context.Context, m *amqp.ExpenseRecordedMessage) error {
			logger.InfoContext(ctx, "Expense recorded",
				applog.FieldExpenseID, m.ID,
				applog.FieldDate, m.Date,
				applog.FieldMonth, m.MonthLabel,
				applog.FieldCategory, m.Category,
				applog.FieldAmount, m.Amount,
				applog.FieldReceiptRef, m.ReceiptReference)
			return nil
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Consumer stopped")
}
