package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable marks failures of the database itself: it could not be
	// opened, read or written. Callers treat it as fatal; nothing retries.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrNotFound is returned by GetExpense, and by EditExpense and
	// DeleteExpense when the ledger runs with StrictIDs.
	ErrNotFound = errors.New("expense not found")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
