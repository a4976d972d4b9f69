package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"ledger/internal/core"
	"ledger/internal/thresholds"
)

// Form field names shared by the add and edit forms.
const (
	fieldDate        = "date"
	fieldDescription = "description"
	fieldCategory    = "category"
	fieldAmount      = "amount"
	fieldMonth       = "month"
	fieldYear        = "year"
	limitPrefix      = "limit."
)

var errInvalidID = errors.New("invalid expense id")

// parseExpenseForm builds an expense from form values. The result is not
// validated beyond parsing; the service does that.
func parseExpenseForm(form url.Values) (core.Expense, error) {
	date, err := core.ParseDate(strings.TrimSpace(form.Get(fieldDate)))
	if err != nil {
		return core.Expense{}, err
	}

	category, err := core.ParseCategory(form.Get(fieldCategory))
	if err != nil {
		return core.Expense{}, err
	}

	amount, err := core.ParseAmount(form.Get(fieldAmount))
	if err != nil {
		return core.Expense{}, err
	}

	return core.Expense{
		Date:        date,
		Description: sanitizeInput(form.Get(fieldDescription)),
		Category:    category,
		Amount:      amount,
	}, nil
}

// parseMonthFilter reads month and year from the query. An explicit year
// is always honoured; otherwise yearAware pins the filter to currentYear.
func parseMonthFilter(q url.Values, yearAware bool, currentYear int) (core.MonthFilter, error) {
	f, err := core.ParseMonthFilter(q.Get(fieldMonth))
	if err != nil || f.IsZero() || f.HasYear() {
		return f, err
	}

	if v := strings.TrimSpace(q.Get(fieldYear)); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return core.MonthFilter{}, fmt.Errorf("%w: year %q", core.ErrInvalidMonthFilter, v)
		}
		f = core.ForYearMonth(year, f.Month)
		return f, f.Validate()
	}

	if yearAware {
		return core.ForYearMonth(currentYear, f.Month), nil
	}
	return f, nil
}

// parseLimits applies "limit.<Category>" query overrides to base.
// Malformed values and unknown categories are ignored.
func parseLimits(q url.Values, base thresholds.Limits) thresholds.Limits {
	limits := base
	for key, values := range q {
		name, ok := strings.CutPrefix(key, limitPrefix)
		if !ok || len(values) == 0 {
			continue
		}
		c, err := core.ParseCategory(name)
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(values[0]), 64)
		if err != nil {
			continue
		}
		limits = limits.With(c, v)
	}
	return limits
}

// limitsQuery encodes limits that differ from base, so links keep the
// session's sliders.
func limitsQuery(limits, base thresholds.Limits) url.Values {
	q := url.Values{}
	for _, c := range core.Categories() {
		if limits.Get(c) != base.Get(c) {
			q.Set(limitPrefix+c.String(), strconv.FormatFloat(limits.Get(c), 'f', -1, 64))
		}
	}
	return q
}

func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidID, raw)
	}
	return id, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
