package inventory

import (
	"context"
	"errors"
	"fmt"

	dominv "github.com/shelfwise/bookshop/internal/domain/inventory"
	"github.com/shelfwise/bookshop/internal/observability"
	"github.com/shelfwise/bookshop/internal/observability/logctx"
)

const componentInventoryService = "inventory_service"

var ErrInternal = errors.New("inventory: storage failure")

// Service exposes administrative stock operations on the ledger.
type Service struct {
	ledger dominv.Ledger
	log    observability.Logger
}

func NewService(ledger dominv.Ledger, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		ledger: ledger,
		log:    logger.With(observability.F("component", componentInventoryService)),
	}
}

// Restock atomically increases a book's available stock.
func (s *Service) Restock(ctx context.Context, bookID string, amount int) error {
	if bookID == "" {
		return fmt.Errorf("%w: book id is required", dominv.ErrInvalidQuantity)
	}
	if amount <= 0 {
		return dominv.ErrInvalidQuantity
	}

	if err := s.ledger.Restock(ctx, bookID, amount); err != nil {
		if errors.Is(err, dominv.ErrNotFound) || errors.Is(err, dominv.ErrInvalidQuantity) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	logctx.FromOr(ctx, s.log).Info("stock_restocked",
		observability.F("book_id", bookID),
		observability.F("amount", amount),
	)
	return nil
}

// CurrentStock is advisory only; the count may be stale as soon as it returns.
func (s *Service) CurrentStock(ctx context.Context, bookID string) (int, error) {
	stock, err := s.ledger.CurrentStock(ctx, bookID)
	if err != nil {
		if errors.Is(err, dominv.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return stock, nil
}
