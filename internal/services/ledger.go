package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"

	"github.com/shopspring/decimal"
)

// ExpenseLedger records expenses and answers the monthly queries.
type ExpenseLedger struct {
	db         *storage.DB
	categories *CategoryRegistry
}

func NewExpenseLedger(db *storage.DB, categories *CategoryRegistry) *ExpenseLedger {
	return &ExpenseLedger{db: db, categories: categories}
}

// AddExpense resolves the category and inserts the expense in a single
// transaction. The amount is not re-validated here. An unknown category
// fails with core.ErrCategoryNotFound and nothing is written.
func (l *ExpenseLedger) AddExpense(ctx context.Context, e core.NewExpense) (int64, error) {
	var id int64
	err := l.db.WithTx(ctx, func(q *storage.Queries) error {
		categoryID, err := l.categories.resolveWith(ctx, q, e.Category)
		if err != nil {
			return err
		}

		id, err = q.InsertExpense(ctx, storage.InsertExpenseParams{
			Amount:     e.Amount,
			CategoryID: categoryID,
			Date:       e.Date.ISO(),
			ReceiptReference: sql.NullString{
				String: e.ReceiptRef,
				Valid:  e.ReceiptRef != "",
			},
		})
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"amount", e.Amount.String(),
		"category", core.NormalizeCategoryName(e.Category),
		"date", e.Date.ISO(),
		"has_receipt", e.ReceiptRef != "")

	return id, nil
}

// MonthlyTotals sums every expense by calendar month, ascending by month.
func (l *ExpenseLedger) MonthlyTotals(ctx context.Context) ([]core.MonthAggregate, error) {
	items, err := l.db.Queries().ListExpenseAmounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expense amounts: %w", err)
	}

	totals := make(map[core.MonthKey]decimal.Decimal)
	for _, it := range items {
		k := core.MonthOf(it.Date)
		totals[k] = totals[k].Add(it.Amount)
	}

	keys := make([]core.MonthKey, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, core.MonthKey.Compare)

	out := make([]core.MonthAggregate, 0, len(keys))
	for _, k := range keys {
		out = append(out, core.MonthAggregate{Key: k, Total: totals[k]})
	}
	return out, nil
}

// ExpensesInMonth returns the expenses of the month named by a Mon-YY label.
// An empty or unparsable label yields an empty result.
func (l *ExpenseLedger) ExpensesInMonth(ctx context.Context, label string) ([]core.ExpenseDetail, error) {
	if strings.TrimSpace(label) == "" {
		return []core.ExpenseDetail{}, nil
	}
	k, err := core.ParseMonthLabel(label)
	if err != nil {
		slog.DebugContext(ctx, "Ignoring unparsable month label", "month", label, "error", err)
		return []core.ExpenseDetail{}, nil
	}
	return l.ExpensesForMonth(ctx, k)
}

// ExpensesForMonth returns the expenses dated within k, ordered by date.
func (l *ExpenseLedger) ExpensesForMonth(ctx context.Context, k core.MonthKey) ([]core.ExpenseDetail, error) {
	lower, upper := k.Bounds()
	rows, err := l.db.Queries().ListExpensesBetween(ctx, lower.ISO(), upper.ISO())
	if err != nil {
		return nil, fmt.Errorf("list expenses for %s: %w", k, err)
	}
	return rows, nil
}
