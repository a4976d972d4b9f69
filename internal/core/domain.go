package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the on-disk and wire format of every expense date.
const DateLayout = "2006-01-02"

// MaxDescriptionLength bounds descriptions accepted from callers, in characters.
const MaxDescriptionLength = 200

const (
	Grocery      Category = "Grocery"
	Travel       Category = "Travel"
	FixedExpense Category = "Fixed Expense"
	Savings      Category = "Savings"
	Fuel         Category = "Fuel"
	CreditsGiven Category = "Credits Given"
	Charity      Category = "Charity"
	Hotel        Category = "Hotel"
)

type (
	// Category labels an expense. Only the constants above are valid.
	Category string

	Date struct {
		time.Time
	}

	Expense struct {
		Date        Date
		Description string
		Category    Category
		Amount      float64
	}

	// Record is an expense as persisted by the ledger, with its assigned ID.
	Record struct {
		ID int64
		Expense
	}
)

var categories = []Category{
	Grocery,
	Travel,
	FixedExpense,
	Savings,
	Fuel,
	CreditsGiven,
	Charity,
	Hotel,
}

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidMonthFilter = errors.New("invalid month filter")
)

// Categories returns the fixed category set in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

func (c Category) String() string {
	return string(c)
}

// IsValid reports whether c belongs to the fixed category set.
func (c Category) IsValid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory resolves a user supplied label, ignoring case and
// surrounding whitespace.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, known := range categories {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current calendar date in local time.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// SameDay reports whether both dates denote the same calendar day.
func (d Date) SameDay(other Date) bool {
	return d.String() == other.String()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Validate applies the checks callers must run before handing an expense
// to the ledger. The ledger itself accepts anything.
func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(e.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if !e.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, e.Category)
	}
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
