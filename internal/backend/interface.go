package backend

import (
	"context"

	"expensetracker/internal/services"
	"expensetracker/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the wired services and the function releasing them
type BackendResult struct {
	DB         *storage.DB
	Categories *services.CategoryRegistry
	Ledger     *services.ExpenseLedger
	Expenses   *services.ExpenseService

	// ReceiptStore names the selected receipt adapter ("gdrive", "dropbox"
	// or "none").
	ReceiptStore  string
	EventsEnabled bool

	Cleanup CleanupFunc
}

// Close runs Cleanup if set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens storage, ensures the schema and wires the services
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Storage storage.Config

	// Receipt store
	ReceiptBackend string
	Google         GoogleConfig
	Dropbox        DropboxConfig

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type GoogleConfig struct {
	ServiceAccountJSON string
	OAuthClientJSON    string
	OAuthTokenJSON     string
	FolderID           string
}

type DropboxConfig struct {
	AccessToken  string
	RefreshToken string
	AppKey       string
	AppSecret    string
	FolderPath   string
}
