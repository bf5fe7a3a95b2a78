package ordering

import (
	"errors"
	"fmt"

	"github.com/safar/go-bookshop/internal/database"
)

// ErrPersistence marks storage failures surfaced by PlaceOrder.
var ErrPersistence = errors.New("order persistence failure")

// InvalidInputError rejects a malformed cart before any storage access.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == database.ErrInvalidInput
}

// NotFoundError names a requested book that does not exist.
type NotFoundError struct {
	BookID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Book with ID %s not found", e.BookID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == database.ErrBookNotFound
}

// InsufficientStockError reports the book that cannot cover the requested
// quantity and how many copies were available to this order.
type InsufficientStockError struct {
	BookID    string
	Title     string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	msg := fmt.Sprintf("Not enough stock for book '%s'. Available: %d", e.Title, e.Available)
	if e.BookID == "" {
		return msg
	}
	return fmt.Sprintf("%s (book %s, requested %d)", msg, e.BookID, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == database.ErrInsufficientStock
}

// PersistenceError wraps a storage or transaction failure. The transaction
// has been rolled back by the time it is returned.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("place order: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// asPlacementError keeps caller-facing errors as they are and folds
// everything else into a PersistenceError.
func asPlacementError(err error) error {
	var (
		invalid  *InvalidInputError
		notFound *NotFoundError
		stock    *InsufficientStockError
		persist  *PersistenceError
	)
	switch {
	case errors.As(err, &invalid), errors.As(err, &notFound), errors.As(err, &stock), errors.As(err, &persist):
		return err
	default:
		return &PersistenceError{Err: err}
	}
}
