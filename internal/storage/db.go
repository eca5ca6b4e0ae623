// Package storage is the schema and connection provider. It opens the
// configured relational backend (local SQLite or a hosted PostgreSQL),
// makes sure the two tables exist and exposes typed queries.
//
// SQLite connections enable:
//   - foreign_keys: referential integrity for expenses.category_id
//   - busy_timeout=5000: wait for locks up to 5 seconds
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"expensetracker/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// IsValid checks if the dialect is supported
func (d Dialect) IsValid() bool {
	return d == DialectSQLite || d == DialectPostgres
}

// Config selects and locates the backend.
type Config struct {
	Dialect Dialect

	// SQLite
	SQLitePath string

	// PostgreSQL: DatabaseKey is the access key, used as connection password.
	DatabaseURL string
	DatabaseKey string
}

// DB is an open connection to the expense store.
type DB struct {
	db      *sql.DB
	dialect Dialect
	dsn     string
	queries *Queries
}

var managedTables = []string{"categories", "expenses"}

// Open connects to the backend described by cfg. Missing credentials for
// the selected dialect fail with core.ErrConfiguration.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	switch cfg.Dialect {
	case DialectSQLite, "":
		return openSQLite(ctx, cfg.SQLitePath)
	case DialectPostgres:
		return openPostgres(ctx, cfg.DatabaseURL, cfg.DatabaseKey)
	default:
		return nil, fmt.Errorf("%w: unsupported data backend %q", core.ErrConfiguration, cfg.Dialect)
	}
}

func openSQLite(ctx context.Context, path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: SQLite database path is empty", core.ErrConfiguration)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer; transactions hold the only connection.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.InfoContext(ctx, "Connected to SQLite", "path", path)

	db := Wrap(sqlDB, DialectSQLite)
	db.dsn = dsn
	return db, nil
}

func openPostgres(ctx context.Context, url, key string) (*DB, error) {
	var missing []string
	if strings.TrimSpace(url) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if strings.TrimSpace(key) == "" {
		missing = append(missing, "DATABASE_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", core.ErrConfiguration, strings.Join(missing, ", "))
	}

	pgCfg, err := pgx.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("%w: parse DATABASE_URL: %v", core.ErrConfiguration, err)
	}
	pgCfg.Password = key

	sqlDB := stdlib.OpenDB(*pgCfg)
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.InfoContext(ctx, "Connected to PostgreSQL", "host", pgCfg.Host, "database", pgCfg.Database)

	return Wrap(sqlDB, DialectPostgres), nil
}

// Wrap adopts an already open *sql.DB.
func Wrap(sqlDB *sql.DB, dialect Dialect) *DB {
	return &DB{
		db:      sqlDB,
		dialect: dialect,
		queries: New(sqlDB, dialect),
	}
}

// Dialect returns the backend kind.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// Queries returns queries bound to the connection pool.
func (d *DB) Queries() *Queries {
	return d.queries
}

// EnsureSchema makes sure the categories and expenses tables exist.
//
// SQLite applies the embedded migrations. The hosted backend's schema is
// managed outside this program, so each table is only probed; a failed
// probe is logged and left for the first real query to report.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if d.dialect == DialectSQLite {
		if d.dsn == "" {
			return fmt.Errorf("ensure schema: sqlite database opened without a path")
		}
		if err := RunMigrations(d.dsn); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		slog.InfoContext(ctx, "Schema migrations applied", "dialect", d.dialect)
		return nil
	}

	for _, table := range managedTables {
		if err := d.queries.ProbeTable(ctx, table); err != nil {
			slog.WarnContext(ctx, "Schema probe failed",
				"table", table,
				"dialect", d.dialect,
				"error", err)
			continue
		}
		slog.DebugContext(ctx, "Schema probe ok", "table", table)
	}
	return nil
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func (d *DB) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(d.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.WarnContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping verifies the connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
