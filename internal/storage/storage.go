// Package storage defines the persistence surface shared by every backend.
package storage

import (
	"context"
	"errors"

	"github.com/shelfwise/bookshop/internal/domain/book"
	"github.com/shelfwise/bookshop/internal/domain/cart"
	"github.com/shelfwise/bookshop/internal/domain/inventory"
	"github.com/shelfwise/bookshop/internal/domain/order"
	"github.com/shelfwise/bookshop/internal/domain/payment"
	"github.com/shelfwise/bookshop/internal/domain/review"
)

// ErrConflict marks a transient transaction conflict. The caller may retry,
// but only after re-reading its snapshot.
var ErrConflict = errors.New("storage: transaction conflict")

// Store aggregates the repositories over one backing datastore.
type Store interface {
	Carts() cart.Repository
	Orders() order.Repository
	Payments() payment.Repository
	Reviews() review.Repository
	Catalog() book.Catalog
	Ledger() inventory.Ledger

	// WithinTx runs fn inside one transactional scope. All writes made
	// through tx become visible together when fn returns nil; any error
	// (or panic) rolls every one of them back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
