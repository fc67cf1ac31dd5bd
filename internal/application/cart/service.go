package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shelfwise/bookshop/internal/domain/book"
	domcart "github.com/shelfwise/bookshop/internal/domain/cart"
	"github.com/shelfwise/bookshop/internal/domain/inventory"
	"github.com/shelfwise/bookshop/internal/observability"
	"github.com/shelfwise/bookshop/internal/observability/logctx"
)

const componentCartService = "cart_service"

var ErrInternal = errors.New("cart: storage failure")

// Service mutates the pending purchase set. It runs outside the checkout
// commit boundary; the stock cap here is a courtesy check against the
// advisory count, and checkout re-validates authoritatively.
type Service struct {
	carts   domcart.Repository
	catalog book.Catalog
	log     observability.Logger
}

func NewService(carts domcart.Repository, catalog book.Catalog, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		carts:   carts,
		catalog: catalog,
		log:     logger.With(observability.F("component", componentCartService)),
	}
}

func (s *Service) Add(ctx context.Context, userID, bookID string, quantity int) error {
	if userID == "" || bookID == "" {
		return fmt.Errorf("%w: user and book ids are required", domcart.ErrInvalidQuantity)
	}

	line, err := domcart.NewLine(userID, bookID, quantity)
	if err != nil {
		return err
	}

	view, err := s.catalog.Get(ctx, bookID)
	if err != nil {
		return wrapStorageError(err)
	}
	if !view.IsActive {
		return book.ErrInactive
	}

	existing := 0
	lines, err := s.carts.Lines(ctx, userID)
	if err != nil {
		return wrapStorageError(err)
	}
	for _, l := range lines {
		if l.BookID == bookID {
			existing = l.Quantity
		}
	}
	if existing+quantity > view.AvailableStock {
		return &inventory.InsufficientStockError{BookID: bookID}
	}

	if err := s.carts.Upsert(ctx, line); err != nil {
		return wrapStorageError(err)
	}

	logctx.FromOr(ctx, s.log).Info("cart_line_added",
		observability.F("book_id", bookID),
		observability.F("quantity", quantity),
	)
	return nil
}

func (s *Service) Remove(ctx context.Context, userID, bookID string) error {
	if userID == "" || bookID == "" {
		return fmt.Errorf("%w: user and book ids are required", domcart.ErrInvalidQuantity)
	}
	if err := s.carts.Remove(ctx, userID, bookID); err != nil {
		return wrapStorageError(err)
	}
	return nil
}

func (s *Service) Lines(ctx context.Context, userID string) ([]domcart.Line, error) {
	lines, err := s.carts.Lines(ctx, userID)
	if err != nil {
		return nil, wrapStorageError(err)
	}
	return lines, nil
}

func wrapStorageError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, book.ErrNotFound),
		errors.Is(err, book.ErrInactive),
		errors.Is(err, domcart.ErrInvalidQuantity):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
}
