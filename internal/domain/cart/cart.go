package cart

import (
	"context"
	"errors"
)

var (
	ErrEmpty           = errors.New("cart: no lines to check out")
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
)

// Line is one (book, quantity) entry in a user's pending purchase set.
// Lines are ephemeral: removed explicitly or cleared by a successful checkout.
type Line struct {
	UserID   string
	BookID   string
	Quantity int
}

func NewLine(userID, bookID string, quantity int) (*Line, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return &Line{
		UserID:   userID,
		BookID:   bookID,
		Quantity: quantity,
	}, nil
}

type Repository interface {
	Lines(ctx context.Context, userID string) ([]Line, error)
	// Upsert adds the line's quantity to an existing line for the same book,
	// or creates the line.
	Upsert(ctx context.Context, line *Line) error
	Remove(ctx context.Context, userID, bookID string) error
	// Clear removes every line for the user. Called inside the checkout
	// transaction so the cart survives any aborted attempt.
	Clear(ctx context.Context, userID string) error
}
