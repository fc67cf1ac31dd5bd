package order

import "context"

type Repository interface {
	// Insert persists the order and its items. Returns ErrConflict when the
	// order number or the customer's idempotency key is already taken.
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	FindByIdempotency(ctx context.Context, customerID, key string) (*Order, error)
	// HasDeliveredBook reports whether the customer has a delivered or
	// completed order containing the book. Used for verified-purchase flags.
	HasDeliveredBook(ctx context.Context, customerID, bookID string) (bool, error)
}
