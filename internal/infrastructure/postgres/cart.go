package postgres

import (
	"context"
	"fmt"

	"github.com/shelfwise/bookshop/internal/domain/cart"
)

type cartRepo struct{ s *Store }

func (r *cartRepo) Lines(ctx context.Context, userID string) ([]cart.Line, error) {
	rows, err := r.s.q.QueryContext(ctx,
		`SELECT book_id, quantity FROM cart_items WHERE user_id = $1 ORDER BY book_id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: cart lines: %w", err)
	}
	defer rows.Close()

	var lines []cart.Line
	for rows.Next() {
		line := cart.Line{UserID: userID}
		if err := rows.Scan(&line.BookID, &line.Quantity); err != nil {
			return nil, fmt.Errorf("postgres: scan cart line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *cartRepo) Upsert(ctx context.Context, line *cart.Line) error {
	if line == nil || line.Quantity <= 0 {
		return cart.ErrInvalidQuantity
	}
	_, err := r.s.q.ExecContext(ctx,
		`INSERT INTO cart_items (user_id, book_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, book_id)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		line.UserID, line.BookID, line.Quantity)
	if err != nil {
		return fmt.Errorf("postgres: upsert cart line: %w", mapError(err))
	}
	return nil
}

func (r *cartRepo) Remove(ctx context.Context, userID, bookID string) error {
	_, err := r.s.q.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND book_id = $2`,
		userID, bookID)
	if err != nil {
		return fmt.Errorf("postgres: remove cart line: %w", err)
	}
	return nil
}

func (r *cartRepo) Clear(ctx context.Context, userID string) error {
	_, err := r.s.q.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1`,
		userID)
	if err != nil {
		return fmt.Errorf("postgres: clear cart: %w", err)
	}
	return nil
}
