package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/thresholds"
	appweb "ledger/web"
)

// LedgerService is what the handlers need from the service layer.
type LedgerService interface {
	AddExpense(ctx context.Context, e core.Expense) (int64, error)
	ListExpenses(ctx context.Context, filter core.MonthFilter) ([]core.Record, error)
	GetExpense(ctx context.Context, id int64) (core.Record, error)
	EditExpense(ctx context.Context, id int64, e core.Expense) error
	DeleteExpense(ctx context.Context, id int64) error
	TotalsByCategory(ctx context.Context) (map[core.Category]float64, error)
	Ping(ctx context.Context) error
}

// Options tune a Server. Zero values are usable.
type Options struct {
	// Limits seed the threshold sliders; requests may override them.
	Limits thresholds.Limits
	// YearAware pins month filters to the current year unless one is given.
	YearAware bool
	// RateLimit bounds mutating requests per client.
	RateLimit ratelimit.Config
	Logger    *log.Logger
	// Now is overridden in tests.
	Now func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	ledger    LedgerService
	limits    thresholds.Limits
	yearAware bool
	limiter   *ratelimit.Limiter
	logger    *log.Logger
	now       func() time.Time
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, ledger LedgerService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentHTTP})
	}
	limits := opts.Limits
	if limits == nil {
		limits = thresholds.Defaults()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		ledger:    ledger,
		limits:    limits,
		yearAware: opts.YearAware,
		limiter:   ratelimit.NewLimiter(opts.RateLimit),
		logger:    logger,
		now:       now,
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates", "error", err)
	}
	s.templates = t

	s.Server = http.Server{
		Addr:           addr,
		Handler:        s.routes(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(log.RequestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssets(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware(security.ClientIP, nil))

		r.Get("/", s.handleIndex)
		r.Post("/expenses", s.handleCreateExpense)
		r.Post("/expenses/{id}", s.handleUpdateExpense)
		r.Post("/expenses/{id}/delete", s.handleDeleteExpense)
		r.Delete("/expenses/{id}", s.handleDeleteExpense)

		r.Route("/api", func(r chi.Router) {
			r.Get("/expenses", s.handleAPIListExpenses)
			r.Get("/expenses/{id}", s.handleAPIGetExpense)
			r.Get("/totals", s.handleAPITotals)
		})
	})

	return r
}

// Shutdown stops the listener and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.ledger.Ping(ctx); err != nil {
		log.FromContext(r.Context()).Error("Readiness check failed", "error", err)
		http.Error(w, "ledger unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
