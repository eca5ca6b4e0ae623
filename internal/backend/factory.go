package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expensetracker/internal/amqp"
	"expensetracker/internal/config"
	"expensetracker/internal/receipts"
	"expensetracker/internal/receipts/dropbox"
	"expensetracker/internal/receipts/gdrive"
	"expensetracker/internal/services"
	"expensetracker/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	db, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	uploader, store := f.createUploader(ctx, cfg)

	var events services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
			amqpClient = nil
		} else {
			events = amqpClient
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	categories := services.NewCategoryRegistry(db)
	ledger := services.NewExpenseLedger(db, categories)
	expenses := services.NewExpenseService(categories, ledger, uploader, events)

	f.logger.InfoContext(ctx, "Initialized backend",
		"data_backend", db.Dialect(),
		"receipt_store", store,
		"events_enabled", events != nil)

	return &BackendResult{
		DB:            db,
		Categories:    categories,
		Ledger:        ledger,
		Expenses:      expenses,
		ReceiptStore:  store,
		EventsEnabled: events != nil,
		Cleanup: func() error {
			var errs []error
			if amqpClient != nil {
				errs = append(errs, amqpClient.Close())
			}
			errs = append(errs, db.Close())
			return errors.Join(errs...)
		},
	}, nil
}

// createUploader never fails: an adapter that cannot be built degrades to
// receipts.Disabled and expenses are stored without receipts.
func (f *DefaultFactory) createUploader(ctx context.Context, cfg Config) (receipts.Uploader, string) {
	switch cfg.SelectReceiptStore() {
	case config.ReceiptBackendGDrive:
		c, err := gdrive.New(ctx, cfg.Google.credentials(), cfg.Google.FolderID)
		if err != nil {
			f.logger.WarnContext(ctx, "Google Drive receipt store unavailable", "error", err)
			return receipts.Disabled{Reason: err.Error()}, config.ReceiptBackendNone
		}
		return c, config.ReceiptBackendGDrive
	case config.ReceiptBackendDropbox:
		c, err := dropbox.New(ctx, cfg.Dropbox.credentials(), cfg.Dropbox.FolderPath)
		if err != nil {
			f.logger.WarnContext(ctx, "Dropbox receipt store unavailable", "error", err)
			return receipts.Disabled{Reason: err.Error()}, config.ReceiptBackendNone
		}
		return c, config.ReceiptBackendDropbox
	default:
		return receipts.Disabled{}, config.ReceiptBackendNone
	}
}
