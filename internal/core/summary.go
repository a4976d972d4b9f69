package core

import "sort"

// CategoryTotal represents an amount aggregated by category.
type CategoryTotal struct {
	Category Category
	Amount   float64
}

// SortTotals orders a totals map by the fixed category order. Labels
// outside the set (the ledger does not reject them) follow alphabetically.
func SortTotals(totals map[Category]float64) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(totals))
	for _, c := range categories {
		if amount, ok := totals[c]; ok {
			out = append(out, CategoryTotal{Category: c, Amount: amount})
		}
	}

	var unknown []CategoryTotal
	for c, amount := range totals {
		if !c.IsValid() {
			unknown = append(unknown, CategoryTotal{Category: c, Amount: amount})
		}
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i].Category < unknown[j].Category })

	return append(out, unknown...)
}

// GrandTotal sums every category.
func GrandTotal(totals map[Category]float64) float64 {
	var sum float64
	for _, v := range totals {
		sum += v
	}
	return sum
}
