package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the persisted calendar date format.
const DateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	Category struct {
		ID   int64
		Name string // always normalized
	}

	// NewExpense is the input accepted by the ledger.
	NewExpense struct {
		Amount     decimal.Decimal
		Category   string
		Date       Date
		ReceiptRef string // empty means no receipt
	}

	Expense struct {
		ID         int64
		Amount     decimal.Decimal
		CategoryID int64
		Date       Date
		ReceiptRef string
	}
)

var (
	ErrConfiguration      = errors.New("configuration error")
	ErrCategoryNotFound   = errors.New("category does not exist")
	ErrInvalidMonthFormat = errors.New("invalid month label")
	ErrUploadFailure      = errors.New("receipt upload failed")

	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyCategory = errors.New("empty category name")
)

// IsValidation reports whether err is an input validation failure that
// should be shown to the user rather than logged as a fault.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrEmptyCategory)
}

// NormalizeCategoryName trims and upper-cases a category name.
func NormalizeCategoryName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in local time.
func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q must be YYYY-MM-DD", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// ISO returns the date as YYYY-MM-DD.
func (d Date) ISO() string {
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// ValidateAmount rejects zero and negative amounts.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (e NewExpense) Validate() error {
	if err := ValidateAmount(e.Amount); err != nil {
		return err
	}
	if NormalizeCategoryName(e.Category) == "" {
		return ErrEmptyCategory
	}
	return e.Date.Validate()
}
