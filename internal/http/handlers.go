package http

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
	"ledger/internal/thresholds"
)

// pageState carries what a handler wants shown on top of the listing.
type pageState struct {
	Error  string
	Notice string
	EditID int64
	// Form echoes the rejected add form
	Form url.Values
}

type expenseJSON struct {
	ID          int64         `json:"id"`
	Date        string        `json:"date"`
	Description string        `json:"description"`
	Category    core.Category `json:"category"`
	Amount      float64       `json:"amount"`
}

func toExpenseJSON(r core.Record) expenseJSON {
	return expenseJSON{
		ID:          r.ID,
		Date:        r.Date.String(),
		Description: r.Description,
		Category:    r.Category,
		Amount:      r.Amount,
	}
}

type listResponse struct {
	Filter   string        `json:"filter"`
	Expenses []expenseJSON `json:"expenses"`
}

type categoryTotalJSON struct {
	Category core.Category `json:"category"`
	Amount   float64       `json:"amount"`
}

type totalsResponse struct {
	Totals     []categoryTotalJSON `json:"totals"`
	GrandTotal float64             `json:"grand_total"`
	Thresholds []thresholds.Status `json:"thresholds"`
}

type sliderView struct {
	Category core.Category
	Name     string
	Value    float64
}

type indexView struct {
	Today      string
	Categories []core.Category
	Form       addFormView

	Months      []monthOption
	Filter      core.MonthFilter
	FilterYear  int
	YearAware   bool
	Hidden      []hiddenField
	AddAction   template.URL
	EditAction  template.URL
	DelAction   template.URL
	Expenses    []core.Record
	ListTotal   float64
	Sliders     []sliderView
	SliderMin   int
	SliderMax   int
	SliderStep  int
	Summary     []thresholds.Status
	Warnings    []string
	GrandTotal  float64
	Edit        *core.Record
	EditOptions []int64

	Notice string
	Error  string
}

type hiddenField struct {
	Name  string
	Value string
}

type addFormView struct {
	Date        string
	Description string
	Category    string
	Amount      string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	st := pageState{Notice: notices[r.URL.Query().Get("notice")]}
	if v := r.URL.Query().Get("edit"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			st.EditID = id
		}
	}
	s.renderIndex(w, r, http.StatusOK, st)
}

// renderIndex renders the full page with status. Read failures of the
// ledger turn the whole page into a 500.
func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, st pageState) {
	logger := log.FromContext(r.Context())

	if s.templates == nil {
		logger.Error("Templates not loaded")
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	now := s.now()

	filter, err := parseMonthFilter(q, s.yearAware, now.Year())
	if err != nil {
		logger.Warn("Invalid month filter, showing all", "error", err)
		filter = core.MonthFilter{}
	}

	records, err := s.ledger.ListExpenses(r.Context(), filter)
	if err != nil {
		s.renderUnavailable(w, r, err)
		return
	}
	totals, err := s.ledger.TotalsByCategory(r.Context())
	if err != nil {
		s.renderUnavailable(w, r, err)
		return
	}

	limits := parseLimits(q, s.limits)
	view := indexView{
		Today:      core.DateOf(now).String(),
		Categories: core.Categories(),
		Months:     monthOptions(filter),
		Filter:     filter,
		FilterYear: filter.Year,
		YearAware:  s.yearAware,
		Expenses:   records,
		SliderMin:  thresholds.Min,
		SliderMax:  thresholds.Max,
		SliderStep: thresholds.Step,
		Summary:    thresholds.Summarize(totals, limits),
		GrandTotal: core.GrandTotal(totals),
		Notice:     st.Notice,
		Error:      st.Error,
	}
	if view.FilterYear == 0 {
		view.FilterYear = now.Year()
	}

	for _, rec := range records {
		view.ListTotal += rec.Amount
		view.EditOptions = append(view.EditOptions, rec.ID)
	}
	for _, c := range core.Categories() {
		view.Sliders = append(view.Sliders, sliderView{Category: c, Name: limitPrefix + c.String(), Value: limits.Get(c)})
	}
	for _, status := range view.Summary {
		if status.Exceeded {
			view.Warnings = append(view.Warnings, status.Warning())
		}
	}

	pq := pageQuery(filter, limits, s.limits)
	view.AddAction = withQuery("/expenses", pq)
	for _, name := range sortedKeys(pq) {
		view.Hidden = append(view.Hidden, hiddenField{Name: name, Value: pq.Get(name)})
	}

	view.Form = addFormView{Date: view.Today, Category: core.Grocery.String()}
	if st.Form != nil {
		view.Form = addFormView{
			Date:        st.Form.Get(fieldDate),
			Description: st.Form.Get(fieldDescription),
			Category:    st.Form.Get(fieldCategory),
			Amount:      st.Form.Get(fieldAmount),
		}
	}

	if st.EditID > 0 {
		rec, err := s.ledger.GetExpense(r.Context(), st.EditID)
		switch {
		case err == nil:
			view.Edit = &rec
			view.EditAction = withQuery("/expenses/"+strconv.FormatInt(rec.ID, 10), pq)
			view.DelAction = withQuery("/expenses/"+strconv.FormatInt(rec.ID, 10)+"/delete", pq)
		case errors.Is(err, storage.ErrNotFound):
			if view.Error == "" {
				view.Error = "Expense not found."
			}
		default:
			s.renderUnavailable(w, r, err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, "index.html", view); err != nil {
		logger.Error("Index template execution failed", "error", err, log.FieldOperation, log.OpRender)
	}
}

func (s *Server) renderUnavailable(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).Error("Ledger read failed", "error", err)
	http.Error(w, "The ledger is unavailable. Please try again.", http.StatusInternalServerError)
}

// withQuery builds a same-origin URL; the template must not re-escape it.
func withQuery(path string, q url.Values) template.URL {
	if len(q) == 0 {
		return template.URL(path)
	}
	return template.URL(path + "?" + q.Encode())
}

func sortedKeys(q url.Values) []string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// pageQuery is the query string that reproduces the current view.
func pageQuery(filter core.MonthFilter, limits, base thresholds.Limits) url.Values {
	q := limitsQuery(limits, base)
	if !filter.IsZero() {
		q.Set(fieldMonth, filter.MonthKey())
		if filter.HasYear() {
			q.Set(fieldYear, strconv.Itoa(filter.Year))
		}
	}
	return q
}
