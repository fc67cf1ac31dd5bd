package checkout

import (
	"context"
	"fmt"

	"github.com/shelfwise/bookshop/internal/domain/book"
	"github.com/shelfwise/bookshop/internal/domain/cart"
)

// SnapshotLine joins one cart line with the book's sale state at read time.
type SnapshotLine struct {
	Book     book.StockView
	Quantity int
}

// Snapshot is the point-in-time input to order building. Prices come from the
// catalog at read time, never from when the line was added to the cart.
type Snapshot struct {
	UserID string
	Lines  []SnapshotLine
}

// SnapshotReader resolves a user's cart against current catalog state.
type SnapshotReader struct {
	carts   cart.Repository
	catalog book.Catalog
}

func NewSnapshotReader(carts cart.Repository, catalog book.Catalog) *SnapshotReader {
	return &SnapshotReader{carts: carts, catalog: catalog}
}

// Read returns the cart joined with live price and stock. Lines are ordered
// by ascending book ID so downstream reservations lock rows consistently.
func (r *SnapshotReader) Read(ctx context.Context, userID string) (*Snapshot, error) {
	lines, err := r.carts.Lines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("checkout: read cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, cart.ErrEmpty
	}

	snap := &Snapshot{UserID: userID, Lines: make([]SnapshotLine, 0, len(lines))}
	for _, line := range lines {
		view, err := r.catalog.Get(ctx, line.BookID)
		if err != nil {
			return nil, fmt.Errorf("checkout: resolve book %s: %w", line.BookID, err)
		}
		if !view.IsActive {
			return nil, fmt.Errorf("checkout: book %s: %w", line.BookID, book.ErrInactive)
		}
		snap.Lines = append(snap.Lines, SnapshotLine{Book: *view, Quantity: line.Quantity})
	}
	return snap, nil
}
