package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shelfwise/bookshop/internal/domain/review"
)

type reviewRepo struct{ s *Store }

func (r *reviewRepo) Insert(ctx context.Context, rv *review.Review) error {
	if rv == nil || rv.ID == "" {
		return fmt.Errorf("postgres: review id is required")
	}
	_, err := r.s.q.ExecContext(ctx,
		`INSERT INTO reviews
		   (id, book_id, user_id, rating, title, comment,
		    is_verified_purchase, is_approved, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rv.ID, rv.BookID, rv.UserID, rv.Rating, rv.Title, rv.Comment,
		rv.IsVerifiedPurchase, rv.IsApproved, rv.CreatedAt)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (r *reviewRepo) Get(ctx context.Context, id string) (*review.Review, error) {
	rv := &review.Review{}
	err := r.s.q.QueryRowContext(ctx,
		`SELECT id, book_id, user_id, rating, title, comment,
		        is_verified_purchase, is_approved, created_at
		   FROM reviews WHERE id = $1`, id).Scan(
		&rv.ID, &rv.BookID, &rv.UserID, &rv.Rating, &rv.Title, &rv.Comment,
		&rv.IsVerifiedPurchase, &rv.IsApproved, &rv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, review.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load review: %w", err)
	}
	return rv, nil
}

func (r *reviewRepo) Update(ctx context.Context, rv *review.Review) error {
	if rv == nil || rv.ID == "" {
		return fmt.Errorf("postgres: review id is required")
	}
	res, err := r.s.q.ExecContext(ctx,
		`UPDATE reviews SET rating = $2, title = $3, comment = $4,
		        is_verified_purchase = $5, is_approved = $6
		  WHERE id = $1`,
		rv.ID, rv.Rating, rv.Title, rv.Comment, rv.IsVerifiedPurchase, rv.IsApproved)
	if err != nil {
		return fmt.Errorf("postgres: update review: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return review.ErrNotFound
	}
	return nil
}

func (r *reviewRepo) ApprovedRatings(ctx context.Context, bookID string) ([]int, error) {
	rows, err := r.s.q.QueryContext(ctx,
		`SELECT rating FROM reviews WHERE book_id = $1 AND is_approved`, bookID)
	if err != nil {
		return nil, fmt.Errorf("postgres: approved ratings: %w", err)
	}
	defer rows.Close()

	var ratings []int
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, fmt.Errorf("postgres: scan rating: %w", err)
		}
		ratings = append(ratings, rating)
	}
	return ratings, rows.Err()
}
