package services

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// countingLedger records how often reads reach the database.
type countingLedger struct {
	*storage.SQLiteLedger
	mu     sync.Mutex
	lists  int
	totals int
}

func (c *countingLedger) ListExpenses(ctx context.Context, f core.MonthFilter) ([]core.Record, error) {
	c.mu.Lock()
	c.lists++
	c.mu.Unlock()
	return c.SQLiteLedger.ListExpenses(ctx, f)
}

func (c *countingLedger) TotalsByCategory(ctx context.Context) (map[core.Category]float64, error) {
	c.mu.Lock()
	c.totals++
	c.mu.Unlock()
	return c.SQLiteLedger.TotalsByCategory(ctx)
}

type publishedEvent struct {
	action amqp.Action
	id     int64
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
	closed bool
}

func (p *fakePublisher) PublishLedgerEvent(_ context.Context, action amqp.Action, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{action, id})
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func newTestService(t *testing.T, opts Options) (*LedgerService, *countingLedger) {
	t.Helper()
	sl, err := storage.NewSQLiteLedger(filepath.Join(t.TempDir(), "expenses.db"), storage.Options{})
	require.NoError(t, err)

	cl := &countingLedger{SQLiteLedger: sl}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Component: log.ComponentLedger, Output: &bytes.Buffer{}})
	}
	svc := NewLedgerService(cl, opts)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, cl
}

func validExpense(t *testing.T, date string, c core.Category, amount float64) core.Expense {
	t.Helper()
	d, err := core.ParseDate(date)
	require.NoError(t, err)
	return core.Expense{Date: d, Description: "test " + string(c), Category: c, Amount: amount}
}

func TestLedgerService_ValidatesInput(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()
	good := validExpense(t, "2024-03-05", core.Fuel, 40)

	tests := []struct {
		name   string
		mutate func(e *core.Expense)
		want   error
	}{
		{"zero date", func(e *core.Expense) { e.Date = core.Date{} }, core.ErrInvalidDate},
		{"blank description", func(e *core.Expense) { e.Description = "   " }, core.ErrEmptyDescription},
		{"long description", func(e *core.Expense) { e.Description = strings.Repeat("x", core.MaxDescriptionLength+1) }, core.ErrDescriptionTooLong},
		{"unknown category", func(e *core.Expense) { e.Category = "Snacks" }, core.ErrInvalidCategory},
		{"zero amount", func(e *core.Expense) { e.Amount = 0 }, core.ErrInvalidAmount},
		{"negative amount", func(e *core.Expense) { e.Amount = -5 }, core.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := good
			tt.mutate(&e)

			_, err := svc.AddExpense(ctx, e)
			assert.ErrorIs(t, err, tt.want)

			err = svc.EditExpense(ctx, 1, e)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	records, err := svc.ListExpenses(ctx, core.MonthFilter{})
	require.NoError(t, err)
	assert.Empty(t, records, "rejected input must not reach the ledger")
}

func TestLedgerService_CachesReadsUntilWrite(t *testing.T) {
	svc, cl := newTestService(t, Options{CacheTTL: time.Minute, CacheSize: 8})
	ctx := context.Background()

	id, err := svc.AddExpense(ctx, validExpense(t, "2024-03-05", core.Grocery, 100))
	require.NoError(t, err)

	march := core.ForMonth(3)
	for range 3 {
		records, err := svc.ListExpenses(ctx, march)
		require.NoError(t, err)
		require.Len(t, records, 1)

		totals, err := svc.TotalsByCategory(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 100, totals[core.Grocery], 1e-9)
	}
	assert.Equal(t, 1, cl.lists)
	assert.Equal(t, 1, cl.totals)

	// callers cannot corrupt the cached copy
	totals, _ := svc.TotalsByCategory(ctx)
	totals[core.Grocery] = 0
	totals, _ = svc.TotalsByCategory(ctx)
	assert.InDelta(t, 100, totals[core.Grocery], 1e-9)

	require.NoError(t, svc.EditExpense(ctx, id, validExpense(t, "2024-03-05", core.Grocery, 250)))

	records, err := svc.ListExpenses(ctx, march)
	require.NoError(t, err)
	assert.InDelta(t, 250, records[0].Amount, 1e-9)
	totals, err = svc.TotalsByCategory(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 250, totals[core.Grocery], 1e-9)
	assert.Equal(t, 2, cl.lists)
	assert.Equal(t, 2, cl.totals)

	require.NoError(t, svc.DeleteExpense(ctx, id))
	records, err = svc.ListExpenses(ctx, march)
	require.NoError(t, err)
	assert.Empty(t, records)
	totals, err = svc.TotalsByCategory(ctx)
	require.NoError(t, err)
	assert.NotContains(t, totals, core.Grocery)
}

func TestLedgerService_FiltersCachedSeparately(t *testing.T) {
	svc, cl := newTestService(t, Options{CacheTTL: time.Minute, CacheSize: 8})
	ctx := context.Background()

	for _, date := range []string{"2023-03-05", "2024-03-20", "2023-04-01"} {
		_, err := svc.AddExpense(ctx, validExpense(t, date, core.Travel, 10))
		require.NoError(t, err)
	}

	all, err := svc.ListExpenses(ctx, core.MonthFilter{})
	require.NoError(t, err)
	march, err := svc.ListExpenses(ctx, core.ForMonth(3))
	require.NoError(t, err)
	march2024, err := svc.ListExpenses(ctx, core.ForYearMonth(2024, 3))
	require.NoError(t, err)

	assert.Len(t, all, 3)
	assert.Len(t, march, 2)
	assert.Len(t, march2024, 1)
	assert.Equal(t, 3, cl.lists)

	_, err = svc.ListExpenses(ctx, core.MonthFilter{Month: 13})
	assert.ErrorIs(t, err, core.ErrInvalidMonthFilter)
}

func TestLedgerService_PublishesEvents(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newTestService(t, Options{Publisher: pub})
	ctx := context.Background()

	id, err := svc.AddExpense(ctx, validExpense(t, "2024-01-02", core.Charity, 5))
	require.NoError(t, err)
	require.NoError(t, svc.EditExpense(ctx, id, validExpense(t, "2024-01-02", core.Charity, 6)))
	require.NoError(t, svc.DeleteExpense(ctx, id))

	assert.Equal(t, []publishedEvent{
		{amqp.ActionCreated, id},
		{amqp.ActionUpdated, id},
		{amqp.ActionDeleted, id},
	}, pub.events)

	require.NoError(t, svc.Close())
	assert.True(t, pub.closed)
}

func TestLedgerService_PublishFailureDoesNotFailWrite(t *testing.T) {
	var buf bytes.Buffer
	pub := &fakePublisher{err: errors.New("broker down")}
	svc, _ := newTestService(t, Options{
		Publisher: pub,
		Logger:    log.New(log.Config{Component: log.ComponentLedger, Output: &buf}),
	})
	ctx := context.Background()

	id, err := svc.AddExpense(ctx, validExpense(t, "2024-01-02", core.Hotel, 900))
	require.NoError(t, err)

	r, err := svc.GetExpense(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.Hotel, r.Category)
	assert.Contains(t, buf.String(), "Failed to publish ledger event")
	assert.Contains(t, buf.String(), "broker down")
}

func TestLedgerService_WrapsStorageErrors(t *testing.T) {
	svc, cl := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.GetExpense(ctx, 99)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, cl.SQLiteLedger.Close())
	_, err = svc.AddExpense(ctx, validExpense(t, "2024-01-02", core.Savings, 1))
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	_, err = svc.TotalsByCategory(ctx)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	assert.Error(t, svc.Ping(ctx))
}

// gatedLedger parks ListExpenses and TotalsByCategory after the query ran.
type gatedLedger struct {
	*storage.SQLiteLedger
	queried chan struct{}
	release chan struct{}
}

func (g *gatedLedger) ListExpenses(ctx context.Context, f core.MonthFilter) ([]core.Record, error) {
	records, err := g.SQLiteLedger.ListExpenses(ctx, f)
	g.queried <- struct{}{}
	<-g.release
	return records, err
}

func (g *gatedLedger) TotalsByCategory(ctx context.Context) (map[core.Category]float64, error) {
	totals, err := g.SQLiteLedger.TotalsByCategory(ctx)
	g.queried <- struct{}{}
	<-g.release
	return totals, err
}

func TestLedgerService_ReadOverlappingWriteIsNotCached(t *testing.T) {
	sl, err := storage.NewSQLiteLedger(filepath.Join(t.TempDir(), "expenses.db"), storage.Options{})
	require.NoError(t, err)
	gl := &gatedLedger{SQLiteLedger: sl, queried: make(chan struct{}), release: make(chan struct{})}
	svc := NewLedgerService(gl, Options{
		CacheTTL:  time.Minute,
		CacheSize: 8,
		Logger:    log.New(log.Config{Output: &bytes.Buffer{}}),
	})
	t.Cleanup(func() { _ = svc.Close() })
	ctx := context.Background()

	type listResult struct {
		records []core.Record
		err     error
	}
	listDone := make(chan listResult, 1)
	go func() {
		records, err := svc.ListExpenses(ctx, core.MonthFilter{})
		listDone <- listResult{records, err}
	}()
	<-gl.queried

	totalsDone := make(chan error, 1)
	go func() {
		_, err := svc.TotalsByCategory(ctx)
		totalsDone <- err
	}()
	<-gl.queried

	_, err = svc.AddExpense(ctx, validExpense(t, "2024-03-05", core.Fuel, 30))
	require.NoError(t, err)

	gl.release <- struct{}{}
	gl.release <- struct{}{}
	stale := <-listDone
	require.NoError(t, stale.err)
	assert.Empty(t, stale.records, "the overlapping read saw the ledger before the write")
	require.NoError(t, <-totalsDone)

	// later reads must see the write instead of the overlapping result
	go func() {
		for range 2 {
			<-gl.queried
			gl.release <- struct{}{}
		}
	}()
	records, err := svc.ListExpenses(ctx, core.MonthFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	totals, err := svc.TotalsByCategory(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 30, totals[core.Fuel], 1e-9)
}

func TestLedgerService_MissingIDPublishesNothing(t *testing.T) {
	pub := &fakePublisher{}
	svc, cl := newTestService(t, Options{Publisher: pub, CacheTTL: time.Minute, CacheSize: 8})
	ctx := context.Background()

	id, err := svc.AddExpense(ctx, validExpense(t, "2024-01-02", core.Fuel, 5))
	require.NoError(t, err)
	_, err = svc.ListExpenses(ctx, core.MonthFilter{})
	require.NoError(t, err)

	require.NoError(t, svc.EditExpense(ctx, id+100, validExpense(t, "2024-01-02", core.Fuel, 6)))
	require.NoError(t, svc.DeleteExpense(ctx, id+100))

	assert.Equal(t, []publishedEvent{{amqp.ActionCreated, id}}, pub.events)

	// nothing changed, so the cached listing stays valid
	_, err = svc.ListExpenses(ctx, core.MonthFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, cl.lists)
}
