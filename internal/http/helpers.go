package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// invalidInputMessage is shown for any rejected expense form.
const invalidInputMessage = "Please fill all the fields correctly."

var notices = map[string]string{
	"added":   "Expense added successfully!",
	"updated": "Expense updated successfully!",
	"deleted": "Expense deleted successfully!",
}

var templateFuncs = template.FuncMap{
	"money": core.FormatAmount,
	// plain avoids exponent notation in form values
	"plain": func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	},
}

// isInputError reports whether err was caused by caller input.
func isInputError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidDate,
		core.ErrInvalidMonth,
		core.ErrInvalidAmount,
		core.ErrEmptyDescription,
		core.ErrDescriptionTooLong,
		core.ErrInvalidCategory,
		core.ErrInvalidMonthFilter,
		errInvalidID,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case isInputError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).Error("Failed to encode JSON response", "error", err)
	}
}

// writeAPIError hides internal failures behind their status text.
func writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.FromContext(r.Context()).Error("Request failed", "error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, r, status, apiError{Error: msg})
}

type monthOption struct {
	Value    string
	Label    string
	Selected bool
}

// monthOptions lists "All" followed by January..December.
func monthOptions(selected core.MonthFilter) []monthOption {
	opts := make([]monthOption, 0, 13)
	opts = append(opts, monthOption{Value: "", Label: "All", Selected: selected.IsZero()})
	for m := 1; m <= 12; m++ {
		f := core.ForMonth(m)
		opts = append(opts, monthOption{
			Value:    f.MonthKey(),
			Label:    time.Month(m).String(),
			Selected: selected.Month == m,
		})
	}
	return opts
}
