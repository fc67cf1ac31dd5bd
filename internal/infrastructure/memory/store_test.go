package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/bookshop/internal/domain/cart"
	"github.com/shelfwise/bookshop/internal/domain/inventory"
	"github.com/shelfwise/bookshop/internal/domain/order"
	"github.com/shelfwise/bookshop/internal/storage"
)

func newSeeded(t *testing.T) *Store {
	t.Helper()
	st := NewStore()
	st.SeedBook("book-1", "First", decimal.RequireFromString("20.00"), 10, true)
	return st
}

func testOrder(t *testing.T, id, number, customerID string) *order.Order {
	t.Helper()
	price := decimal.RequireFromString("20.00")
	o, err := order.New(id, number, customerID,
		[]order.Item{{BookID: "book-1", Quantity: 1, UnitPrice: price, TotalPrice: price}},
		price, decimal.RequireFromString("1.60"), decimal.RequireFromString("9.99"), decimal.RequireFromString("31.59"))
	require.NoError(t, err)
	o.BillingAddressID = "b"
	o.ShippingAddressID = "s"
	return o
}

func TestWithinTx_RollsBackAllWrites(t *testing.T) {
	ctx := context.Background()
	st := newSeeded(t)
	require.NoError(t, st.Carts().Upsert(ctx, &cart.Line{UserID: "user-1", BookID: "book-1", Quantity: 2}))

	boom := errors.New("boom")
	err := st.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if err := tx.Orders().Insert(ctx, testOrder(t, "ord-1", "ORD-1-AAAAA", "user-1")); err != nil {
			return err
		}
		if err := tx.Ledger().Reserve(ctx, "book-1", 2); err != nil {
			return err
		}
		if err := tx.Carts().Clear(ctx, "user-1"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	stock, err := st.Ledger().CurrentStock(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, 10, stock)

	lines, err := st.Carts().Lines(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	_, err = st.Orders().Get(ctx, "ord-1")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	st := newSeeded(t)

	err := st.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if err := tx.Orders().Insert(ctx, testOrder(t, "ord-1", "ORD-1-AAAAA", "user-1")); err != nil {
			return err
		}
		return tx.Ledger().Reserve(ctx, "book-1", 3)
	})
	require.NoError(t, err)

	stock, err := st.Ledger().CurrentStock(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, 7, stock)

	o, err := st.Orders().Get(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-1-AAAAA", o.Number)
}

func TestWithinTx_RecoversPanic(t *testing.T) {
	ctx := context.Background()
	st := newSeeded(t)

	err := st.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if err := tx.Ledger().Reserve(ctx, "book-1", 5); err != nil {
			return err
		}
		panic("midway")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transaction panic")

	stock, err := st.Ledger().CurrentStock(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, 10, stock)
}

func TestWithinTx_NestedJoinsEnclosing(t *testing.T) {
	ctx := context.Background()
	st := newSeeded(t)

	err := st.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		return tx.WithinTx(ctx, func(ctx context.Context, inner storage.Store) error {
			return inner.Ledger().Reserve(ctx, "book-1", 1)
		})
	})
	require.NoError(t, err)

	stock, err := st.Ledger().CurrentStock(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, 9, stock)
}

func TestReserve_GuardsAgainstOversell(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	st.SeedBook("book-1", "First", decimal.RequireFromString("20.00"), 1, true)

	const workers = 16
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = st.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
				return tx.Ledger().Reserve(ctx, "book-1", 1)
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, wins)

	stock, err := st.Ledger().CurrentStock(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stock)
}

func TestOrderInsert_DuplicateNumberConflicts(t *testing.T) {
	ctx := context.Background()
	st := newSeeded(t)

	require.NoError(t, st.Orders().Insert(ctx, testOrder(t, "ord-1", "ORD-1-AAAAA", "user-1")))

	err := st.Orders().Insert(ctx, testOrder(t, "ord-2", "ORD-1-AAAAA", "user-2"))
	assert.ErrorIs(t, err, order.ErrConflict)
}

func TestOrderInsert_DuplicateIdempotencyKeyConflicts(t *testing.T) {
	ctx := context.Background()
	st := newSeeded(t)

	first := testOrder(t, "ord-1", "ORD-1-AAAAA", "user-1")
	first.IdempotencyKey = "key-1"
	require.NoError(t, st.Orders().Insert(ctx, first))

	second := testOrder(t, "ord-2", "ORD-2-BBBBB", "user-1")
	second.IdempotencyKey = "key-1"
	assert.ErrorIs(t, st.Orders().Insert(ctx, second), order.ErrConflict)

	// Same key under a different customer is a distinct scope.
	other := testOrder(t, "ord-3", "ORD-3-CCCCC", "user-2")
	other.IdempotencyKey = "key-1"
	assert.NoError(t, st.Orders().Insert(ctx, other))

	found, err := st.Orders().FindByIdempotency(ctx, "user-1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", found.ID)
}

func TestCartUpsert_AddsQuantities(t *testing.T) {
	ctx := context.Background()
	st := newSeeded(t)

	require.NoError(t, st.Carts().Upsert(ctx, &cart.Line{UserID: "user-1", BookID: "book-1", Quantity: 2}))
	require.NoError(t, st.Carts().Upsert(ctx, &cart.Line{UserID: "user-1", BookID: "book-1", Quantity: 3}))

	lines, err := st.Carts().Lines(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
}

func TestHasDeliveredBook(t *testing.T) {
	ctx := context.Background()
	st := newSeeded(t)

	pending := testOrder(t, "ord-1", "ORD-1-AAAAA", "user-1")
	require.NoError(t, st.Orders().Insert(ctx, pending))

	has, err := st.Orders().HasDeliveredBook(ctx, "user-1", "book-1")
	require.NoError(t, err)
	assert.False(t, has, "pending orders do not count")

	delivered := testOrder(t, "ord-2", "ORD-2-BBBBB", "user-1")
	delivered.Status = order.StatusDelivered
	require.NoError(t, st.Orders().Insert(ctx, delivered))

	has, err = st.Orders().HasDeliveredBook(ctx, "user-1", "book-1")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = st.Orders().HasDeliveredBook(ctx, "user-2", "book-1")
	require.NoError(t, err)
	assert.False(t, has)
}
