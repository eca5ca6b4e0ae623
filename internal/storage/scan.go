package storage

import (
	"fmt"
	"time"

	"expensetracker/internal/core"
)

// dateValue scans a calendar date stored either as YYYY-MM-DD text or as a
// native DATE/TIMESTAMP column.
type dateValue struct {
	core.Date
}

func (v *dateValue) Scan(src any) error {
	switch s := src.(type) {
	case time.Time:
		v.Date = core.NewDate(s.Year(), int(s.Month()), s.Day())
		return nil
	case string:
		return v.parse(s)
	case []byte:
		return v.parse(string(s))
	case nil:
		return fmt.Errorf("scan date: unexpected NULL")
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

func (v *dateValue) parse(s string) error {
	if len(s) > len(core.DateLayout) {
		s = s[:len(core.DateLayout)]
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return fmt.Errorf("scan date: %w", err)
	}
	v.Date = d
	return nil
}
