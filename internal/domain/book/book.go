package book

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("book: not found")
	ErrInactive = errors.New("book: not available for sale")
)

// StockView is a point-in-time read of a book's sale state. It is taken at
// checkout time and never persisted; the live catalog row may change the
// moment it is returned.
type StockView struct {
	ID             string
	Title          string
	UnitPrice      decimal.Decimal
	AvailableStock int
	IsActive       bool
}

// RatingSummary is derived from approved reviews and only ever written by
// recomputation, never directly from user input.
type RatingSummary struct {
	AverageRating decimal.Decimal
	TotalReviews  int
}

// Catalog is the read side of the external book catalog plus the single
// derived field this core owns.
type Catalog interface {
	Get(ctx context.Context, bookID string) (*StockView, error)
	UpdateRatingSummary(ctx context.Context, bookID string, summary RatingSummary) error
}
