package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"expensetracker/internal/core"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return Wrap(sqlDB, DialectPostgres), mock
}

func TestRebind(t *testing.T) {
	pg := New(nil, DialectPostgres)
	lite := New(nil, DialectSQLite)

	q := "SELECT 1 WHERE a = ? AND b < ?"
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b < $2", pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
}

func TestEnsureSchema_PostgresProbeSwallowsErrors(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery("SELECT id FROM categories LIMIT 1").
		WillReturnError(errors.New(`relation "categories" does not exist`))
	mock.ExpectQuery("SELECT id FROM expenses LIMIT 1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	require.NoError(t, db.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertCategory_Postgres(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectExec("INSERT INTO categories (name) VALUES ($1) ON CONFLICT (name) DO NOTHING").
		WithArgs("FOOD").
		WillReturnResult(sqlmock.NewResult(0, 0))

	added, err := db.Queries().InsertCategory(context.Background(), "FOOD")
	require.NoError(t, err)
	assert.False(t, added)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListExpensesBetween_PostgresNativeDates(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery(New(nil, DialectPostgres).rebind(listExpensesBetween)).
		WithArgs("2024-01-01", "2024-02-01").
		WillReturnRows(sqlmock.NewRows([]string{"id", "date", "name", "amount", "receipt_reference"}).
			AddRow(int64(7), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "FOOD", "10.50", nil).
			AddRow(int64(8), "2024-01-20", "TRAVEL", "5", "https://drive.example/abc"))

	rows, err := db.Queries().ListExpensesBetween(context.Background(), "2024-01-01", "2024-02-01")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(7), rows[0].ID)
	assert.Equal(t, "2024-01-15", rows[0].Date.ISO())
	assert.True(t, rows[0].Amount.Equal(decimal.RequireFromString("10.5")))
	assert.Empty(t, rows[0].ReceiptRef)
	assert.Equal(t, "https://drive.example/abc", rows[1].ReceiptRef)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCategoryIDByName_PostgresNotFound(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery("SELECT id FROM categories WHERE name = $1").
		WithArgs("GHOST").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := db.Queries().GetCategoryIDByName(context.Background(), "GHOST")
	assert.ErrorIs(t, err, core.ErrCategoryNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_Postgres(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM categories WHERE name = $1").
		WithArgs("FOOD").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery("INSERT INTO expenses (amount, category_id, date, receipt_reference)\nVALUES ($1, $2, $3, $4)\nRETURNING id").
		WithArgs("12.5", int64(3), "2024-03-02", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(41)))
	mock.ExpectCommit()

	var id int64
	err := db.WithTx(context.Background(), func(q *Queries) error {
		catID, err := q.GetCategoryIDByName(context.Background(), "FOOD")
		if err != nil {
			return err
		}
		id, err = q.InsertExpense(context.Background(), InsertExpenseParams{
			Amount:     decimal.RequireFromString("12.50"),
			CategoryID: catID,
			Date:       "2024-03-02",
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(41), id)
	require.NoError(t, mock.ExpectationsWereMet())
}
