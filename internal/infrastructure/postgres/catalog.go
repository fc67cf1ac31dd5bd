package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shelfwise/bookshop/internal/domain/book"
	"github.com/shelfwise/bookshop/internal/domain/inventory"
)

type catalog struct{ s *Store }

func (c *catalog) Get(ctx context.Context, bookID string) (*book.StockView, error) {
	view := &book.StockView{ID: bookID}
	err := c.s.q.QueryRowContext(ctx,
		`SELECT title, price, available_stock, is_active
		   FROM books WHERE id = $1`, bookID).Scan(
		&view.Title, &view.UnitPrice, &view.AvailableStock, &view.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, book.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load book: %w", err)
	}
	return view, nil
}

func (c *catalog) UpdateRatingSummary(ctx context.Context, bookID string, summary book.RatingSummary) error {
	res, err := c.s.q.ExecContext(ctx,
		`UPDATE books SET average_rating = $2, total_reviews = $3 WHERE id = $1`,
		bookID, summary.AverageRating, summary.TotalReviews)
	if err != nil {
		return fmt.Errorf("postgres: update rating summary: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return book.ErrNotFound
	}
	return nil
}

type ledger struct{ s *Store }

// Reserve is the oversell guard: decrement-if-sufficient in one statement,
// judged by the affected-row count. Never a read followed by a write.
func (l *ledger) Reserve(ctx context.Context, bookID string, quantity int) error {
	if quantity <= 0 {
		return inventory.ErrInvalidQuantity
	}
	res, err := l.s.q.ExecContext(ctx,
		`UPDATE books SET available_stock = available_stock - $2
		  WHERE id = $1 AND is_active AND available_stock >= $2`,
		bookID, quantity)
	if err != nil {
		return fmt.Errorf("postgres: reserve stock: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: reserve stock: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := l.s.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, bookID).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: reserve stock: %w", err)
	}
	if !exists {
		return inventory.ErrNotFound
	}
	return &inventory.InsufficientStockError{BookID: bookID}
}

func (l *ledger) Restock(ctx context.Context, bookID string, amount int) error {
	if amount <= 0 {
		return inventory.ErrInvalidQuantity
	}
	res, err := l.s.q.ExecContext(ctx,
		`UPDATE books SET available_stock = available_stock + $2 WHERE id = $1`,
		bookID, amount)
	if err != nil {
		return fmt.Errorf("postgres: restock: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return inventory.ErrNotFound
	}
	return nil
}

func (l *ledger) CurrentStock(ctx context.Context, bookID string) (int, error) {
	var stock int
	err := l.s.q.QueryRowContext(ctx,
		`SELECT available_stock FROM books WHERE id = $1`, bookID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, inventory.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: current stock: %w", err)
	}
	return stock, nil
}
