package core

import (
	"errors"
	"testing"
	"time"
)

func TestToDisplay(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-01", "Jan-24", true},
		{"2024-12", "Dec-24", true},
		{"1999-07", "Jul-99", true},
		{"2000-02", "Feb-00", true},
		{"2024-13", "", false},
		{"2024-1", "", false},
		{"Jan-24", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ToDisplay(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%q expected %q, got %q (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidMonthFormat) {
			t.Fatalf("%q expected ErrInvalidMonthFormat, got %v", tc.in, err)
		}
	}
}

func TestToMonthKey(t *testing.T) {
	cases := []struct {
		in    string
		year  int
		month int
		ok    bool
	}{
		{"Jan-24", 2024, 1, true},
		{"dec-23", 2023, 12, true},
		{"FEB-00", 2000, 2, true},
		{"Jul-69", 1969, 7, true},
		{"Jul-68", 2068, 7, true},
		{" Mar-25 ", 2025, 3, true},
		{"January-24", 0, 0, false},
		{"2024-01", 0, 0, false},
		{"Foo-24", 0, 0, false},
		{"Jan24", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		y, m, err := ToMonthKey(tc.in)
		if tc.ok {
			if err != nil || y != tc.year || m != tc.month {
				t.Fatalf("%q expected %d-%d, got %d-%d (err=%v)", tc.in, tc.year, tc.month, y, m, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidMonthFormat) {
			t.Fatalf("%q expected ErrInvalidMonthFormat, got %v", tc.in, err)
		}
	}
}

func TestMonthLabelRoundTrip(t *testing.T) {
	for year := 1969; year <= 2068; year++ {
		for month := time.January; month <= time.December; month++ {
			k := MonthKey{Year: year, Month: month}
			back, err := ParseMonthLabel(k.Label())
			if err != nil {
				t.Fatalf("%s: %v", k, err)
			}
			if back != k {
				t.Fatalf("round trip %s -> %s -> %s", k, k.Label(), back)
			}
			key, err := ParseMonthKey(k.String())
			if err != nil || key != k {
				t.Fatalf("key round trip %s -> %s (err=%v)", k, key, err)
			}
		}
	}
}

func TestMonthKeyBounds(t *testing.T) {
	cases := []struct {
		key   MonthKey
		lower string
		upper string
	}{
		{MonthKey{2024, time.January}, "2024-01-01", "2024-02-01"},
		{MonthKey{2024, time.February}, "2024-02-01", "2024-03-01"},
		{MonthKey{2023, time.December}, "2023-12-01", "2024-01-01"},
	}
	for _, tc := range cases {
		lower, upper := tc.key.Bounds()
		if lower.ISO() != tc.lower || upper.ISO() != tc.upper {
			t.Fatalf("%s bounds = [%s, %s), want [%s, %s)", tc.key, lower.ISO(), upper.ISO(), tc.lower, tc.upper)
		}
	}
}

func TestMonthKeyContains(t *testing.T) {
	k := MonthKey{2024, time.February}
	if !k.Contains(NewDate(2024, 2, 29)) {
		t.Fatalf("leap day should be in %s", k)
	}
	if k.Contains(NewDate(2024, 3, 1)) {
		t.Fatalf("first of next month must be excluded from %s", k)
	}
	if k.Contains(NewDate(2024, 1, 31)) {
		t.Fatalf("last of previous month must be excluded from %s", k)
	}
}

func TestMonthKeyCompare(t *testing.T) {
	a := MonthKey{2023, time.December}
	b := MonthKey{2024, time.January}
	if a.Compare(b) >= 0 || b.Compare(a) <= 0 || a.Compare(a) != 0 {
		t.Fatalf("unexpected ordering between %s and %s", a, b)
	}
}
