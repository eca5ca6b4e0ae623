package config

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"expensetracker/internal/core"
)

const (
	ReceiptBackendAuto    = "auto"
	ReceiptBackendGDrive  = "gdrive"
	ReceiptBackendDropbox = "dropbox"
	ReceiptBackendNone    = "none"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Database
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string
	DatabaseKey  string

	// Receipts
	ReceiptBackend  string
	ReceiptMaxBytes int64

	// Google Drive
	GoogleServiceAccountJSON string
	GoogleOAuthClientJSON    string
	GoogleOAuthTokenJSON     string
	GoogleDriveFolderID      string

	// Dropbox
	DropboxAPIToken     string
	DropboxRefreshToken string
	DropboxAppKey       string
	DropboxAppSecret    string
	DropboxFolderPath   string

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// Load reads the configuration using the default resolution order.
func Load() *Config {
	return LoadWith(DefaultResolver(nil))
}

// LoadWith reads the configuration from r.
func LoadWith(r *Resolver) *Config {
	return &Config{
		Port:     get(r, "PORT", "8081"),
		LogLevel: get(r, "LOG_LEVEL", "info"),

		DataBackend:  get(r, "DATA_BACKEND", "sqlite"),
		SQLiteDBPath: get(r, "SQLITE_DB_PATH", "./data/expenses.db"),
		DatabaseURL:  get(r, "DATABASE_URL", ""),
		DatabaseKey:  get(r, "DATABASE_KEY", ""),

		ReceiptBackend:  get(r, "RECEIPT_BACKEND", ReceiptBackendAuto),
		ReceiptMaxBytes: int64(getInt(r, "RECEIPT_MAX_BYTES", 10<<20)),

		GoogleServiceAccountJSON: get(r, "GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleOAuthClientJSON:    get(r, "GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenJSON:     get(r, "GOOGLE_OAUTH_TOKEN_JSON", ""),
		GoogleDriveFolderID:      get(r, "GOOGLE_DRIVE_FOLDER_ID", ""),

		DropboxAPIToken:     get(r, "DROPBOX_API_TOKEN", ""),
		DropboxRefreshToken: get(r, "DROPBOX_REFRESH_TOKEN", ""),
		DropboxAppKey:       get(r, "DROPBOX_APP_KEY", ""),
		DropboxAppSecret:    get(r, "DROPBOX_APP_SECRET", ""),
		DropboxFolderPath:   get(r, "DROPBOX_FOLDER_PATH", ""),

		AMQPURL:      get(r, "AMQP_URL", ""),
		AMQPExchange: get(r, "AMQP_EXCHANGE", "expenses"),
		AMQPQueue:    get(r, "AMQP_QUEUE", "expense_recorded"),
	}
}

// HasGoogleCredentials reports whether a Drive credential set is present.
func (c *Config) HasGoogleCredentials() bool {
	return c.GoogleServiceAccountJSON != "" || (c.GoogleOAuthClientJSON != "" && c.GoogleOAuthTokenJSON != "")
}

// HasDropboxCredentials reports whether a Dropbox credential set is present.
func (c *Config) HasDropboxCredentials() bool {
	refresh := c.DropboxRefreshToken != "" && c.DropboxAppKey != "" && c.DropboxAppSecret != ""
	return refresh || c.DropboxAPIToken != ""
}

// Validate validates the configuration and returns an error wrapping
// core.ErrConfiguration listing every problem found.
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}

	// Validate data backend
	validBackends := []string{"sqlite", "postgres"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// or postgresql:// URL")
		}
		if c.DatabaseKey == "" {
			errors = append(errors, "DATABASE_KEY is required when using postgres backend")
		}
	}

	validReceipts := []string{ReceiptBackendAuto, ReceiptBackendGDrive, ReceiptBackendDropbox, ReceiptBackendNone}
	if !slices.Contains(validReceipts, c.ReceiptBackend) {
		errors = append(errors, fmt.Sprintf("invalid receipt backend '%s': must be one of %v", c.ReceiptBackend, validReceipts))
	}
	if c.ReceiptMaxBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid receipt size limit %d: must be positive", c.ReceiptMaxBytes))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%w: validation failed:\n- %s", core.ErrConfiguration, strings.Join(errors, "\n- "))
	}

	return nil
}

// Warnings lists non-fatal gaps, such as a receipt store selected without
// credentials. Expenses are still recorded, just without receipts.
func (c *Config) Warnings() []string {
	var warnings []string
	switch c.ReceiptBackend {
	case ReceiptBackendGDrive:
		if !c.HasGoogleCredentials() {
			warnings = append(warnings, "receipt backend gdrive selected but no Google credentials found; receipts are disabled")
		}
	case ReceiptBackendDropbox:
		if !c.HasDropboxCredentials() {
			warnings = append(warnings, "receipt backend dropbox selected but no Dropbox credentials found; receipts are disabled")
		}
	case ReceiptBackendAuto:
		if !c.HasGoogleCredentials() && !c.HasDropboxCredentials() {
			warnings = append(warnings, "no receipt store credentials found; receipts are disabled")
		}
	}
	if c.DropboxRefreshToken != "" && (c.DropboxAppKey == "" || c.DropboxAppSecret == "") {
		warnings = append(warnings, "DROPBOX_REFRESH_TOKEN is set without DROPBOX_APP_KEY and DROPBOX_APP_SECRET; it is ignored")
	}
	return warnings
}

func get(r *Resolver, key, defaultValue string) string {
	if value := r.Get(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(r *Resolver, key string, defaultValue int) int {
	if value := r.Get(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
