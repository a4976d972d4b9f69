package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ledger/internal/core"

	_ "modernc.org/sqlite"
)

// Options tighten the ledger beyond the permissive defaults.
type Options struct {
	// StrictCategories rejects categories outside the fixed set on write.
	StrictCategories bool
	// StrictIDs makes EditExpense and DeleteExpense return ErrNotFound
	// instead of silently affecting zero rows.
	StrictIDs bool
}

// SQLiteLedger owns the expenses table. It is opened once per process and
// closed on shutdown.
type SQLiteLedger struct {
	db   *sql.DB
	path string
	opts Options
}

func NewSQLiteLedger(dbPath string, opts Options) (*SQLiteLedger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, unavailable("create db directory", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, unavailable("open sqlite database", err)
	}
	// one writer; statements from concurrent HTTP requests queue here
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, unavailable("ping database", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, unavailable("run migrations", err)
	}

	slog.Debug("Ledger opened", "path", dbPath, "schema_version", version,
		"strict_categories", opts.StrictCategories, "strict_ids", opts.StrictIDs)

	return &SQLiteLedger{
		db:   db,
		path: dbPath,
		opts: opts,
	}, nil
}

func (l *SQLiteLedger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Path returns the database file location.
func (l *SQLiteLedger) Path() string {
	return l.path
}

// Ping checks that the database still answers.
func (l *SQLiteLedger) Ping(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return unavailable("ping database", err)
	}
	return nil
}

// AddExpense inserts e and returns the ID assigned by SQLite. Fields are
// stored as given; validating them is the caller's job.
func (l *SQLiteLedger) AddExpense(ctx context.Context, e core.Expense) (int64, error) {
	if err := l.checkCategory(e.Category); err != nil {
		return 0, err
	}

	res, err := l.db.ExecContext(ctx, insertExpense,
		e.Date.String(), e.Description, string(e.Category), e.Amount)
	if err != nil {
		return 0, unavailable("insert expense", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, unavailable("read inserted id", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"date", e.Date.String(),
		"category", e.Category,
		"amount", e.Amount)

	return id, nil
}

// ListExpenses returns records in ID order. A filter without a year
// matches its month in every year.
func (l *SQLiteLedger) ListExpenses(ctx context.Context, filter core.MonthFilter) ([]core.Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var (
		rows *sql.Rows
		err  error
	)
	switch {
	case filter.IsZero():
		rows, err = l.db.QueryContext(ctx, listExpenses)
	case filter.HasYear():
		rows, err = l.db.QueryContext(ctx, listExpensesByYearMonth, filter.YearMonthKey())
	default:
		rows, err = l.db.QueryContext(ctx, listExpensesByMonth, filter.MonthKey())
	}
	if err != nil {
		return nil, unavailable("list expenses", err)
	}
	defer rows.Close()

	records := []core.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate expenses", err)
	}

	return records, nil
}

// GetExpense retrieves a single expense by ID
func (l *SQLiteLedger) GetExpense(ctx context.Context, id int64) (core.Record, error) {
	r, err := scanRecord(l.db.QueryRowContext(ctx, getExpense, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, fmt.Errorf("get expense %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Record{}, err
	}
	return r, nil
}

// EditExpense replaces every field of expense id except the ID itself.
func (l *SQLiteLedger) EditExpense(ctx context.Context, id int64, e core.Expense) error {
	_, err := l.UpdateExpense(ctx, id, e)
	return err
}

// UpdateExpense is EditExpense that also reports whether a row matched.
// Outside strict-ids mode a missing id yields false and no error.
func (l *SQLiteLedger) UpdateExpense(ctx context.Context, id int64, e core.Expense) (bool, error) {
	if err := l.checkCategory(e.Category); err != nil {
		return false, err
	}

	res, err := l.db.ExecContext(ctx, updateExpense,
		e.Date.String(), e.Description, string(e.Category), e.Amount, id)
	if err != nil {
		return false, unavailable("update expense", err)
	}

	matched, err := l.checkAffected(ctx, res, "update", id)
	if err != nil || !matched {
		return false, err
	}

	slog.InfoContext(ctx, "Expense updated", "id", id, "category", e.Category, "amount", e.Amount)
	return true, nil
}

// DeleteExpense removes expense id permanently. IDs are never reused.
func (l *SQLiteLedger) DeleteExpense(ctx context.Context, id int64) error {
	_, err := l.RemoveExpense(ctx, id)
	return err
}

// RemoveExpense is DeleteExpense that also reports whether a row matched.
func (l *SQLiteLedger) RemoveExpense(ctx context.Context, id int64) (bool, error) {
	res, err := l.db.ExecContext(ctx, deleteExpense, id)
	if err != nil {
		return false, unavailable("delete expense", err)
	}

	matched, err := l.checkAffected(ctx, res, "delete", id)
	if err != nil || !matched {
		return false, err
	}

	slog.InfoContext(ctx, "Expense deleted", "id", id)
	return true, nil
}

// TotalsByCategory sums amounts per category. Categories without any
// expense are absent from the map.
func (l *SQLiteLedger) TotalsByCategory(ctx context.Context) (map[core.Category]float64, error) {
	rows, err := l.db.QueryContext(ctx, totalsByCategory)
	if err != nil {
		return nil, unavailable("sum expenses by category", err)
	}
	defer rows.Close()

	totals := make(map[core.Category]float64)
	for rows.Next() {
		var (
			category string
			total    float64
		)
		if err := rows.Scan(&category, &total); err != nil {
			return nil, unavailable("scan category total", err)
		}
		totals[core.Category(category)] = total
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate category totals", err)
	}

	return totals, nil
}

func (l *SQLiteLedger) checkCategory(c core.Category) error {
	if l.opts.StrictCategories && !c.IsValid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidCategory, c)
	}
	return nil
}

func (l *SQLiteLedger) checkAffected(ctx context.Context, res sql.Result, op string, id int64) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable(op+" expense", err)
	}
	if n > 0 {
		return true, nil
	}
	if l.opts.StrictIDs {
		return false, fmt.Errorf("%s expense %d: %w", op, id, ErrNotFound)
	}
	slog.DebugContext(ctx, "No expense matched", "operation", op, "id", id)
	return false, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (core.Record, error) {
	var (
		r        core.Record
		date     string
		category string
	)
	if err := s.Scan(&r.ID, &date, &r.Description, &category, &r.Amount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Record{}, err
		}
		return core.Record{}, unavailable("scan expense", err)
	}

	d, err := core.ParseDate(date)
	if err != nil {
		return core.Record{}, unavailable(fmt.Sprintf("decode date of expense %d", r.ID), err)
	}
	r.Date = d
	r.Category = core.Category(category)

	return r, nil
}
