package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
)

const totalsKey = "totals"

// Ledger is the persistence the service orchestrates.
type Ledger interface {
	AddExpense(ctx context.Context, e core.Expense) (int64, error)
	ListExpenses(ctx context.Context, filter core.MonthFilter) ([]core.Record, error)
	GetExpense(ctx context.Context, id int64) (core.Record, error)
	UpdateExpense(ctx context.Context, id int64, e core.Expense) (bool, error)
	RemoveExpense(ctx context.Context, id int64) (bool, error)
	TotalsByCategory(ctx context.Context) (map[core.Category]float64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Publisher receives a notification after every successful write.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, action amqp.Action, id int64) error
	Close() error
}

// Options configure a LedgerService. The zero value disables caching
// and publishing.
type Options struct {
	CacheTTL  time.Duration
	CacheSize int
	Publisher Publisher
	Logger    *log.Logger
}

// LedgerService validates input, caches reads and announces writes on
// top of a Ledger.
type LedgerService struct {
	ledger    Ledger
	publisher Publisher
	lists     *cache.LRUCache[[]core.Record]
	totals    *cache.LRUCache[map[core.Category]float64]
	logger    *log.Logger

	// mu guards generation, which every write bumps. A read only fills
	// the cache when no write finished while it queried the ledger.
	mu         sync.Mutex
	generation uint64
}

func NewLedgerService(ledger Ledger, opts Options) *LedgerService {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentLedger})
	}
	size := opts.CacheSize
	if size < 1 {
		size = 1
	}

	return &LedgerService{
		ledger:    ledger,
		publisher: opts.Publisher,
		lists:     cache.NewLRUCache[[]core.Record](size, opts.CacheTTL),
		totals:    cache.NewLRUCache[map[core.Category]float64](1, opts.CacheTTL),
		logger:    logger,
	}
}

// Caches returns the service caches so a cache.Manager can expire them.
func (s *LedgerService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.lists, s.totals}
}

// AddExpense validates e, stores it and returns its new ID.
func (s *LedgerService) AddExpense(ctx context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	id, err := s.ledger.AddExpense(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("add expense: %w", err)
	}

	s.afterWrite(ctx, amqp.ActionCreated, id)
	return id, nil
}

// ListExpenses returns records matching filter in ID order.
func (s *LedgerService) ListExpenses(ctx context.Context, filter core.MonthFilter) ([]core.Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	key := filter.String()
	if records, ok := s.lists.Get(key); ok {
		s.logger.DebugContext(ctx, "Expense list served from cache", log.FieldMonthFilter, key)
		return slices.Clone(records), nil
	}

	gen := s.currentGeneration()
	records, err := s.ledger.ListExpenses(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	s.fillIfCurrent(gen, func() { s.lists.Set(key, records) })
	return slices.Clone(records), nil
}

// GetExpense returns a single record; it is never cached.
func (s *LedgerService) GetExpense(ctx context.Context, id int64) (core.Record, error) {
	r, err := s.ledger.GetExpense(ctx, id)
	if err != nil {
		return core.Record{}, err
	}
	return r, nil
}

// EditExpense validates e and replaces every field of record id. A missing
// id changes nothing and publishes nothing.
func (s *LedgerService) EditExpense(ctx context.Context, id int64, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}

	matched, err := s.ledger.UpdateExpense(ctx, id, e)
	if err != nil {
		return fmt.Errorf("edit expense %d: %w", id, err)
	}

	if matched {
		s.afterWrite(ctx, amqp.ActionUpdated, id)
	}
	return nil
}

// DeleteExpense removes record id.
func (s *LedgerService) DeleteExpense(ctx context.Context, id int64) error {
	matched, err := s.ledger.RemoveExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}

	if matched {
		s.afterWrite(ctx, amqp.ActionDeleted, id)
	}
	return nil
}

// TotalsByCategory sums amounts per category. Categories with no expense
// are absent.
func (s *LedgerService) TotalsByCategory(ctx context.Context) (map[core.Category]float64, error) {
	if totals, ok := s.totals.Get(totalsKey); ok {
		return maps.Clone(totals), nil
	}

	gen := s.currentGeneration()
	totals, err := s.ledger.TotalsByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("totals by category: %w", err)
	}

	s.fillIfCurrent(gen, func() { s.totals.Set(totalsKey, totals) })
	return maps.Clone(totals), nil
}

// Ping reports whether the underlying ledger answers.
func (s *LedgerService) Ping(ctx context.Context) error {
	return s.ledger.Ping(ctx)
}

func (s *LedgerService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *LedgerService) fillIfCurrent(gen uint64, fill func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation {
		fill()
	}
}

func (s *LedgerService) afterWrite(ctx context.Context, action amqp.Action, id int64) {
	s.mu.Lock()
	s.generation++
	s.lists.Clear()
	s.totals.Clear()
	s.mu.Unlock()

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, action, id); err != nil {
		// the write already succeeded
		fields := log.NewFields().WithOperation(log.OpPublish).WithError(err)
		fields[log.FieldExpenseID] = id
		fields["action"] = string(action)
		s.logger.ErrorContext(ctx, "Failed to publish ledger event", fields.ToSlice()...)
	}
}

// Close closes both the ledger and the publisher
func (s *LedgerService) Close() error {
	var errs []error

	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("ledger: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}

	return nil
}
