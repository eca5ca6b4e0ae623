package core

import (
	"cmp"
	"fmt"
	"strings"
	"time"
)

const (
	monthKeyLayout   = "2006-01"
	monthLabelLayout = "Jan-06"
)

// MonthKey identifies a calendar month. Its canonical string form is the
// persisted YYYY-MM key; Label gives the Mon-YY display form.
type MonthKey struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month a date falls in.
func MonthOf(d Date) MonthKey {
	return MonthKey{Year: d.Year(), Month: d.Month()}
}

// CurrentMonth returns the month containing today.
func CurrentMonth() MonthKey {
	return MonthOf(Today())
}

// ParseMonthKey parses a YYYY-MM key.
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse(monthKeyLayout, strings.TrimSpace(s))
	if err != nil {
		return MonthKey{}, fmt.Errorf("%w: %q is not YYYY-MM", ErrInvalidMonthFormat, s)
	}
	return MonthKey{Year: t.Year(), Month: t.Month()}, nil
}

// ParseMonthLabel parses a Mon-YY display label such as "Jan-24".
// Month abbreviations are English and matched case-insensitively. Two
// digit years 69-99 map to 19xx, 00-68 to 20xx.
func ParseMonthLabel(s string) (MonthKey, error) {
	t, err := time.Parse(monthLabelLayout, strings.TrimSpace(s))
	if err != nil {
		return MonthKey{}, fmt.Errorf("%w: %q is not Mon-YY", ErrInvalidMonthFormat, s)
	}
	return MonthKey{Year: t.Year(), Month: t.Month()}, nil
}

func (k MonthKey) String() string {
	return k.FirstDay().Format(monthKeyLayout)
}

// Label returns the Mon-YY display label.
func (k MonthKey) Label() string {
	return k.FirstDay().Format(monthLabelLayout)
}

// FirstDay returns the first calendar day of the month.
func (k MonthKey) FirstDay() Date {
	return NewDate(k.Year, int(k.Month), 1)
}

// Next returns the following month.
func (k MonthKey) Next() MonthKey {
	next := k.FirstDay().AddDate(0, 1, 0)
	return MonthKey{Year: next.Year(), Month: next.Month()}
}

// Bounds returns the half-open date range [first day, first day of next month).
func (k MonthKey) Bounds() (lower, upper Date) {
	return k.FirstDay(), k.Next().FirstDay()
}

// Contains reports whether d falls within the month.
func (k MonthKey) Contains(d Date) bool {
	return MonthOf(d) == k
}

func (k MonthKey) Compare(o MonthKey) int {
	if c := cmp.Compare(k.Year, o.Year); c != 0 {
		return c
	}
	return cmp.Compare(k.Month, o.Month)
}

// ToDisplay converts a YYYY-MM key into its Mon-YY label.
func ToDisplay(monthKey string) (string, error) {
	k, err := ParseMonthKey(monthKey)
	if err != nil {
		return "", err
	}
	return k.Label(), nil
}

// ToMonthKey converts a Mon-YY label into its year and month number.
func ToMonthKey(label string) (year, month int, err error) {
	k, err := ParseMonthLabel(label)
	if err != nil {
		return 0, 0, err
	}
	return k.Year, int(k.Month), nil
}
