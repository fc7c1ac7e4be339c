package checkout

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptySelection: checkout invoked with zero lines. No DB work happens.
	ErrEmptySelection = errors.New("no items selected for checkout")

	// ErrStockRaceLost: a guarded decrement matched zero rows even though the
	// row was validated under lock. The transaction is rolled back whole; the
	// checkout is safe to retry from scratch.
	ErrStockRaceLost = errors.New("stock changed during checkout, nothing committed")

	ErrNotAuthenticated = errors.New("checkout requires an authenticated user")
)

type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

type OutOfStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("out of stock: product %d requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// TimeoutError: the bounded row-lock wait expired. Retryable; nothing was
// committed.
type TimeoutError struct {
	Wait time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("checkout timed out waiting %s for stock locks", e.Wait)
}

// PersistenceError wraps transaction/transport-level failures.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("checkout %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
