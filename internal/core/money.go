// Package core provides amount parsing and formatting utilities.
//
// Amounts are stored as floats. Parsing goes through decimal arithmetic so
// typed values are rounded to two places before they become floats.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencySymbol is prefixed to every formatted amount.
const CurrencySymbol = "₹"

// ParseAmount converts a decimal string to a positive amount rounded
// half-up to two decimal places.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Returns ErrInvalidAmount for malformed, signed, or zero values.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	// decimal accepts exponents; amounts typed by a person never have them
	if strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}

	f, _ := d.Float64()
	return f, nil
}

// FormatAmount renders an amount with the currency symbol and two decimals.
func FormatAmount(v float64) string {
	d := decimal.NewFromFloat(v)
	if d.IsNegative() {
		return "-" + CurrencySymbol + d.Neg().StringFixed(2)
	}
	return CurrencySymbol + d.StringFixed(2)
}

// RoundAmount rounds v to two decimal places.
func RoundAmount(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
