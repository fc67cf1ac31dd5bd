package checkout

import (
	"errors"
	"fmt"

	"github.com/shelfwise/bookshop/internal/domain/book"
	"github.com/shelfwise/bookshop/internal/domain/cart"
	"github.com/shelfwise/bookshop/internal/domain/inventory"
	"github.com/shelfwise/bookshop/internal/domain/order"
	"github.com/shelfwise/bookshop/internal/storage"
)

var (
	// ErrValidation rejects malformed input before any I/O.
	ErrValidation = errors.New("checkout: validation")
	// ErrInternal hides storage internals from callers; details go to the log.
	ErrInternal = errors.New("checkout: storage failure")
)

func newValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// wrapStorageError lets business-rule rejections through untouched and folds
// everything else into the opaque internal error.
func wrapStorageError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, cart.ErrEmpty),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, book.ErrNotFound),
		errors.Is(err, book.ErrInactive),
		errors.Is(err, inventory.ErrNotFound),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrConflict),
		errors.Is(err, storage.ErrConflict):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
}
