// Package thresholds holds per-category spending limits and compares them
// with ledger totals. Limits live for a session only; nothing here is
// written back to the ledger.
package thresholds

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"ledger/internal/core"
)

// Slider bounds of the limit controls.
const (
	Min     = 0
	Max     = 50000
	Step    = 100
	Default = 10000
)

// Limits maps each category to its spending limit.
type Limits map[core.Category]float64

// Status is the comparison of one category total against its limit.
type Status struct {
	Category core.Category `json:"category"`
	Total    float64       `json:"total"`
	Limit    float64       `json:"limit"`
	Exceeded bool          `json:"exceeded"`
}

type fileFormat struct {
	Thresholds map[string]float64 `yaml:"thresholds"`
}

// Defaults returns the default limit for every category.
func Defaults() Limits {
	l := make(Limits, len(core.Categories()))
	for _, c := range core.Categories() {
		l[c] = Default
	}
	return l
}

// Load reads a YAML file of the form
//
//	thresholds:
//	  Grocery: 5000
//	  Fixed Expense: 25000
//
// on top of Defaults. An empty path yields the defaults.
func Load(path string) (Limits, error) {
	limits := Defaults()
	if path == "" {
		return limits, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thresholds file: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse thresholds file: %w", err)
	}

	var errs []error
	for name, value := range f.Thresholds {
		c, err := core.ParseCategory(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		limits[c] = Snap(value)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("thresholds file %s: %w", path, errors.Join(errs...))
	}

	return limits, nil
}

// Snap clamps v into [Min, Max] and rounds it to the nearest Step.
func Snap(v float64) float64 {
	if math.IsNaN(v) {
		return Default
	}
	v = math.Round(v/Step) * Step
	return math.Max(Min, math.Min(Max, v))
}

// With returns a copy of l with c set to the snapped value v.
func (l Limits) With(c core.Category, v float64) Limits {
	out := make(Limits, len(l)+1)
	for k, lv := range l {
		out[k] = lv
	}
	out[c] = Snap(v)
	return out
}

// Get returns the limit for c. Unknown categories have a zero limit.
func (l Limits) Get(c core.Category) float64 {
	return l[c]
}

// Evaluate compares totals with limits, one status per category in the
// fixed order. A category without expenses counts as zero spent.
func Evaluate(totals map[core.Category]float64, limits Limits) []Status {
	out := make([]Status, 0, len(core.Categories()))
	for _, c := range core.Categories() {
		total := totals[c]
		limit := limits.Get(c)
		out = append(out, Status{
			Category: c,
			Total:    total,
			Limit:    limit,
			Exceeded: total > limit,
		})
	}
	return out
}

// Summarize compares only the categories present in totals, in display
// order. Labels outside the fixed set are compared against a zero limit.
func Summarize(totals map[core.Category]float64, limits Limits) []Status {
	sorted := core.SortTotals(totals)
	out := make([]Status, 0, len(sorted))
	for _, t := range sorted {
		limit := limits.Get(t.Category)
		out = append(out, Status{
			Category: t.Category,
			Total:    t.Amount,
			Limit:    limit,
			Exceeded: t.Amount > limit,
		})
	}
	return out
}

// Exceeded filters statuses down to the breached ones.
func Exceeded(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if s.Exceeded {
			out = append(out, s)
		}
	}
	return out
}

// Summary renders "Grocery: ₹150.00 / ₹10000.00".
func (s Status) Summary() string {
	return fmt.Sprintf("%s: %s / %s", s.Category, core.FormatAmount(s.Total), core.FormatAmount(s.Limit))
}

// Warning renders the breach message, or "" when within the limit.
func (s Status) Warning() string {
	if !s.Exceeded {
		return ""
	}
	return fmt.Sprintf("You have exceeded the threshold for %s! You spent %s, which is over the set threshold of %s.",
		s.Category, core.FormatAmount(s.Total), core.FormatAmount(s.Limit))
}
