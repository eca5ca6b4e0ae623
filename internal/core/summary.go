package core

import "github.com/shopspring/decimal"

// MonthAggregate is the total spent in one calendar month.
type MonthAggregate struct {
	Key   MonthKey
	Total decimal.Decimal
}

// Label returns the Mon-YY display label of the aggregate's month.
func (m MonthAggregate) Label() string {
	return m.Key.Label()
}

// ExpenseDetail is one expense row joined with its category name.
type ExpenseDetail struct {
	ID         int64
	Date       Date
	Category   string
	Amount     decimal.Decimal
	ReceiptRef string
}

// SumAmounts adds up the amounts of the given rows.
func SumAmounts(rows []ExpenseDetail) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Amount)
	}
	return total
}
