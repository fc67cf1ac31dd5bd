package review

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("review: not found")
	ErrDuplicate     = errors.New("review: user already reviewed this book")
	ErrInvalidRating = errors.New("review: rating must be between 1 and 5")
)

// Review is one user's verdict on one book. At most one review exists per
// (user, book) pair; only approved reviews feed the rating summary.
type Review struct {
	ID                 string
	BookID             string
	UserID             string
	Rating             int
	Title              string
	Comment            string
	IsVerifiedPurchase bool
	IsApproved         bool
	CreatedAt          time.Time
}

func New(id, bookID, userID string, rating int, title, comment string, verified bool) (*Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	return &Review{
		ID:                 id,
		BookID:             bookID,
		UserID:             userID,
		Rating:             rating,
		Title:              title,
		Comment:            comment,
		IsVerifiedPurchase: verified,
		IsApproved:         false,
		CreatedAt:          time.Now().UTC(),
	}, nil
}

func (r *Review) Approve() { r.IsApproved = true }

type Repository interface {
	// Insert persists the review. Returns ErrDuplicate when the user already
	// has a review for the book.
	Insert(ctx context.Context, r *Review) error
	Get(ctx context.Context, id string) (*Review, error)
	Update(ctx context.Context, r *Review) error
	// ApprovedRatings returns the ratings of all approved reviews for the
	// book. The rating summary is recomputed from this and nothing else.
	ApprovedRatings(ctx context.Context, bookID string) ([]int, error)
}
