package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MonthFilter restricts a listing to one calendar month. The zero value
// selects everything. With Year unset the month matches in any year.
type MonthFilter struct {
	Month int // 1-12, 0 = no filter
	Year  int // 0 = any year
}

// ForMonth filters on month-of-year only.
func ForMonth(month int) MonthFilter {
	return MonthFilter{Month: month}
}

// ForYearMonth filters on an exact year and month.
func ForYearMonth(year, month int) MonthFilter {
	return MonthFilter{Year: year, Month: month}
}

// ParseMonthFilter accepts "", "all", "3", "03" or "2024-03".
func ParseMonthFilter(s string) (MonthFilter, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return MonthFilter{}, nil
	}

	if y, m, ok := strings.Cut(s, "-"); ok {
		year, err := strconv.Atoi(y)
		if err != nil || len(y) != 4 {
			return MonthFilter{}, fmt.Errorf("%w: %q", ErrInvalidMonthFilter, s)
		}
		month, err := strconv.Atoi(m)
		if err != nil {
			return MonthFilter{}, fmt.Errorf("%w: %q", ErrInvalidMonthFilter, s)
		}
		f := ForYearMonth(year, month)
		return f, f.Validate()
	}

	month, err := strconv.Atoi(s)
	if err != nil {
		return MonthFilter{}, fmt.Errorf("%w: %q", ErrInvalidMonthFilter, s)
	}
	if month < 1 || month > 12 {
		return MonthFilter{}, fmt.Errorf("%w: %w: %d", ErrInvalidMonthFilter, ErrInvalidMonth, month)
	}
	return ForMonth(month), nil
}

func (f MonthFilter) IsZero() bool {
	return f.Month == 0
}

// HasYear reports whether the filter pins the year as well.
func (f MonthFilter) HasYear() bool {
	return f.Month != 0 && f.Year != 0
}

func (f MonthFilter) Validate() error {
	if f.Month == 0 && f.Year == 0 {
		return nil
	}
	if f.Month < 1 || f.Month > 12 {
		return fmt.Errorf("%w: %w: %d", ErrInvalidMonthFilter, ErrInvalidMonth, f.Month)
	}
	if f.Year < 0 || f.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidMonthFilter, f.Year)
	}
	return nil
}

// MonthKey is the two-digit month as produced by strftime('%m').
func (f MonthFilter) MonthKey() string {
	return fmt.Sprintf("%02d", f.Month)
}

// YearMonthKey is the value produced by strftime('%Y-%m').
func (f MonthFilter) YearMonthKey() string {
	return fmt.Sprintf("%04d-%02d", f.Year, f.Month)
}

// Matches reports whether d falls inside the filter.
func (f MonthFilter) Matches(d Date) bool {
	if f.IsZero() {
		return true
	}
	if d.Month() != f.Month {
		return false
	}
	return f.Year == 0 || d.Year() == f.Year
}

// String returns a stable key, also used for caching.
func (f MonthFilter) String() string {
	switch {
	case f.IsZero():
		return "all"
	case f.HasYear():
		return f.YearMonthKey()
	default:
		return f.MonthKey()
	}
}

// Label is the human readable month name, e.g. "March" or "March 2024".
func (f MonthFilter) Label() string {
	if f.IsZero() {
		return "All"
	}
	name := time.Month(f.Month).String()
	if f.HasYear() {
		return fmt.Sprintf("%s %d", name, f.Year)
	}
	return name
}
