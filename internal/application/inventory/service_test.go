package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dominv "github.com/shelfwise/bookshop/internal/domain/inventory"
	"github.com/shelfwise/bookshop/internal/infrastructure/memory"
)

func newFixture(t *testing.T) (*memory.Store, *Service) {
	t.Helper()
	st := memory.NewStore()
	st.SeedBook("book-1", "First", decimal.RequireFromString("20.00"), 2, true)
	return st, NewService(st.Ledger(), nil)
}

func TestRestock_IncreasesStock(t *testing.T) {
	ctx := context.Background()
	_, svc := newFixture(t)

	require.NoError(t, svc.Restock(ctx, "book-1", 5))

	stock, err := svc.CurrentStock(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, 7, stock)
}

func TestRestock_RejectsNonPositiveAmount(t *testing.T) {
	_, svc := newFixture(t)

	assert.ErrorIs(t, svc.Restock(context.Background(), "book-1", 0), dominv.ErrInvalidQuantity)
	assert.ErrorIs(t, svc.Restock(context.Background(), "book-1", -3), dominv.ErrInvalidQuantity)
}

func TestRestock_UnknownBook(t *testing.T) {
	_, svc := newFixture(t)
	assert.ErrorIs(t, svc.Restock(context.Background(), "missing", 1), dominv.ErrNotFound)
}

func TestCurrentStock_UnknownBook(t *testing.T) {
	_, svc := newFixture(t)
	_, err := svc.CurrentStock(context.Background(), "missing")
	assert.ErrorIs(t, err, dominv.ErrNotFound)
}
