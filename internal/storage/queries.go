package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"expensetracker/internal/core"

	"github.com/shopspring/decimal"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX, dialect Dialect) *Queries {
	return &Queries{db: db, dialect: dialect}
}

type Queries struct {
	db      DBTX
	dialect Dialect
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx, dialect: q.dialect}
}

// rebind rewrites ? placeholders as $1..$n for PostgreSQL.
func (q *Queries) rebind(query string) string {
	if q.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const insertCategory = `INSERT INTO categories (name) VALUES (?) ON CONFLICT (name) DO NOTHING`

// InsertCategory stores an already normalized name. It reports false when
// a category with the same name exists.
func (q *Queries) InsertCategory(ctx context.Context, name string) (bool, error) {
	res, err := q.db.ExecContext(ctx, q.rebind(insertCategory), name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

const listCategoryNames = `SELECT name FROM categories ORDER BY name ASC`

func (q *Queries) ListCategoryNames(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listCategoryNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Collations differ between backends; order byte-wise here.
	slices.Sort(names)
	return names, nil
}

const getCategoryIDByName = `SELECT id FROM categories WHERE name = ?`

// GetCategoryIDByName returns core.ErrCategoryNotFound when no row matches.
func (q *Queries) GetCategoryIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, q.rebind(getCategoryIDByName), name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", core.ErrCategoryNotFound, name)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

const insertExpense = `INSERT INTO expenses (amount, category_id, date, receipt_reference)
VALUES (?, ?, ?, ?)
RETURNING id`

type InsertExpenseParams struct {
	Amount           decimal.Decimal
	CategoryID       int64
	Date             string
	ReceiptReference sql.NullString
}

func (q *Queries) InsertExpense(ctx context.Context, arg InsertExpenseParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, q.rebind(insertExpense),
		arg.Amount.String(),
		arg.CategoryID,
		arg.Date,
		arg.ReceiptReference,
	).Scan(&id)
	return id, err
}

const listExpenseAmounts = `SELECT date, amount FROM expenses`

type DatedAmount struct {
	Date   core.Date
	Amount decimal.Decimal
}

// ListExpenseAmounts returns the date and amount of every expense.
func (q *Queries) ListExpenseAmounts(ctx context.Context) ([]DatedAmount, error) {
	rows, err := q.db.QueryContext(ctx, listExpenseAmounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []DatedAmount
	for rows.Next() {
		var (
			d dateValue
			i DatedAmount
		)
		if err := rows.Scan(&d, &i.Amount); err != nil {
			return nil, err
		}
		i.Date = d.Date
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listExpensesBetween = `SELECT e.id, e.date, c.name, e.amount, e.receipt_reference
FROM expenses e
JOIN categories c ON c.id = e.category_id
WHERE e.date >= ? AND e.date < ?
ORDER BY e.date ASC, e.id ASC`

// ListExpensesBetween returns expenses with lower <= date < upper, joined
// with their category name. Bounds are YYYY-MM-DD strings.
func (q *Queries) ListExpensesBetween(ctx context.Context, lower, upper string) ([]core.ExpenseDetail, error) {
	rows, err := q.db.QueryContext(ctx, q.rebind(listExpensesBetween), lower, upper)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []core.ExpenseDetail{}
	for rows.Next() {
		var (
			d       dateValue
			receipt sql.NullString
			i       core.ExpenseDetail
		)
		if err := rows.Scan(&i.ID, &d, &i.Category, &i.Amount, &receipt); err != nil {
			return nil, err
		}
		i.Date = d.Date
		i.ReceiptRef = receipt.String
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ProbeTable checks that a table answers a trivial select.
func (q *Queries) ProbeTable(ctx context.Context, table string) error {
	if !slices.Contains(managedTables, table) {
		return fmt.Errorf("unknown table %q", table)
	}
	rows, err := q.db.QueryContext(ctx, "SELECT id FROM "+table+" LIMIT 1")
	if err != nil {
		return err
	}
	return rows.Close()
}
