package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNew_StartsPending(t *testing.T) {
	items := []Item{
		{BookID: "book-1", Quantity: 2, UnitPrice: d("10.00"), TotalPrice: d("20.00")},
		{BookID: "book-2", Quantity: 1, UnitPrice: d("5.50"), TotalPrice: d("5.50")},
	}
	o, err := New("ord-1", "ORD-1-AAAAA", "user-1", items, d("25.50"), d("2.04"), d("9.99"), d("37.53"))

	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Len(t, o.Items, 2)
	assert.False(t, o.CreatedAt.IsZero())
}

func TestNew_RejectsEmptyItems(t *testing.T) {
	_, err := New("ord-1", "ORD-1-AAAAA", "user-1", nil, d("0"), d("0"), d("0"), d("0"))
	assert.ErrorIs(t, err, ErrNoItems)
}

func TestNew_RejectsNonPositiveQuantity(t *testing.T) {
	items := []Item{{BookID: "book-1", Quantity: 0, UnitPrice: d("10.00"), TotalPrice: d("0.00")}}
	_, err := New("ord-1", "ORD-1-AAAAA", "user-1", items, d("0.00"), d("0"), d("0"), d("0"))
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestNew_RejectsMismatchedSubtotal(t *testing.T) {
	items := []Item{{BookID: "book-1", Quantity: 1, UnitPrice: d("10.00"), TotalPrice: d("10.00")}}
	_, err := New("ord-1", "ORD-1-AAAAA", "user-1", items, d("12.00"), d("0.96"), d("9.99"), d("22.95"))
	assert.ErrorIs(t, err, ErrInconsistent)
}

func TestClone_IsDeepForItems(t *testing.T) {
	items := []Item{{BookID: "book-1", Quantity: 1, UnitPrice: d("10.00"), TotalPrice: d("10.00")}}
	o, err := New("ord-1", "ORD-1-AAAAA", "user-1", items, d("10.00"), d("0.80"), d("9.99"), d("20.79"))
	require.NoError(t, err)

	clone := o.Clone()
	clone.Items[0].Quantity = 99
	assert.Equal(t, 1, o.Items[0].Quantity)
}
