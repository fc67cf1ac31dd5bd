package inventory

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("inventory: book not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// InsufficientStockError reports which book lacked stock so a failed checkout
// can name the offending line.
type InsufficientStockError struct {
	BookID string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for book %s", e.BookID)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Ledger holds the authoritative stock counts.
//
// Reserve is check-and-decrement in one atomic step relative to concurrent
// reservations for the same book; two checkouts racing for the last unit must
// not both succeed. CurrentStock is advisory only and may be stale the moment
// it returns; it must never gate a mutating decision on its own.
type Ledger interface {
	Reserve(ctx context.Context, bookID string, quantity int) error
	Restock(ctx context.Context, bookID string, amount int) error
	CurrentStock(ctx context.Context, bookID string) (int, error)
}
