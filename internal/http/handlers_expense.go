package http

import (
	"net/http"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/thresholds"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		logger.Warn("Parse form error", "error", err)
		s.renderIndex(w, r, http.StatusBadRequest, pageState{Error: invalidInputMessage})
		return
	}

	e, err := parseExpenseForm(r.PostForm)
	if err == nil {
		var id int64
		id, err = s.ledger.AddExpense(r.Context(), e)
		if err == nil {
			logger.Info("Expense created", log.NewFields().
				WithOperation(log.OpCreate).
				WithExpense(id, e.Date.String(), e.Category.String(), e.Amount).
				ToSlice()...)
			s.redirectHome(w, r, "added")
			return
		}
	}

	s.renderFormError(w, r, err, pageState{Form: r.PostForm})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())

	id, err := parseID(r)
	if err != nil {
		s.renderFormError(w, r, err, pageState{})
		return
	}
	if err := r.ParseForm(); err != nil {
		logger.Warn("Parse form error", "error", err)
		s.renderIndex(w, r, http.StatusBadRequest, pageState{Error: invalidInputMessage, EditID: id})
		return
	}

	e, err := parseExpenseForm(r.PostForm)
	if err == nil {
		err = s.ledger.EditExpense(r.Context(), id, e)
	}
	if err != nil {
		s.renderFormError(w, r, err, pageState{EditID: id})
		return
	}

	logger.Info("Expense updated", log.NewFields().
		WithOperation(log.OpUpdate).
		WithExpense(id, e.Date.String(), e.Category.String(), e.Amount).
		ToSlice()...)
	s.redirectHome(w, r, "updated")
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err == nil {
		err = s.ledger.DeleteExpense(r.Context(), id)
	}

	if r.Method == http.MethodDelete {
		if err != nil {
			writeAPIError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err != nil {
		s.renderFormError(w, r, err, pageState{})
		return
	}

	log.FromContext(r.Context()).Info("Expense deleted", log.FieldExpenseID, id, log.FieldOperation, log.OpDelete)
	s.redirectHome(w, r, "deleted")
}

// renderFormError re-renders the page with a message matching err.
func (s *Server) renderFormError(w http.ResponseWriter, r *http.Request, err error, st pageState) {
	status := statusFor(err)
	switch status {
	case http.StatusUnprocessableEntity:
		st.Error = invalidInputMessage
	case http.StatusNotFound:
		st.Error = "Expense not found."
		st.EditID = 0
	default:
		log.FromContext(r.Context()).Error("Expense write failed", "error", err)
		st.Error = "The ledger is unavailable. Please try again."
	}
	s.renderIndex(w, r, status, st)
}

// redirectHome sends the browser back to the page with a notice, keeping
// the month filter and thresholds of the referring page.
func (s *Server) redirectHome(w http.ResponseWriter, r *http.Request, notice string) {
	q := r.URL.Query()
	q.Del("edit")
	q.Set("notice", notice)
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
}

func (s *Server) handleAPIListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := parseMonthFilter(r.URL.Query(), s.yearAware, s.now().Year())
	if err != nil {
		writeAPIError(w, r, err)
		return
	}

	records, err := s.ledger.ListExpenses(r.Context(), filter)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}

	out := make([]expenseJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, toExpenseJSON(rec))
	}
	writeJSON(w, r, http.StatusOK, listResponse{Filter: filter.String(), Expenses: out})
}

func (s *Server) handleAPIGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	rec, err := s.ledger.GetExpense(r.Context(), id)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toExpenseJSON(rec))
}

func (s *Server) handleAPITotals(w http.ResponseWriter, r *http.Request) {
	totals, err := s.ledger.TotalsByCategory(r.Context())
	if err != nil {
		writeAPIError(w, r, err)
		return
	}

	limits := parseLimits(r.URL.Query(), s.limits)
	resp := totalsResponse{
		Totals:     make([]categoryTotalJSON, 0, len(totals)),
		GrandTotal: core.RoundAmount(core.GrandTotal(totals)),
		Thresholds: thresholds.Evaluate(totals, limits),
	}
	for _, t := range core.SortTotals(totals) {
		resp.Totals = append(resp.Totals, categoryTotalJSON{Category: t.Category, Amount: t.Amount})
	}
	writeJSON(w, r, http.StatusOK, resp)
}
