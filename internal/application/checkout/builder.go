package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/shelfwise/bookshop/internal/domain/cart"
	"github.com/shelfwise/bookshop/internal/domain/inventory"
	"github.com/shelfwise/bookshop/internal/domain/order"
)

var (
	taxRate               = decimal.RequireFromString("0.08")
	freeShippingThreshold = decimal.NewFromInt(50)
	flatShippingCost      = decimal.RequireFromString("9.99")
)

// Draft holds the computed money amounts and item snapshots for an order
// that has not been committed yet.
type Draft struct {
	Items        []order.Item
	Subtotal     decimal.Decimal
	Tax          decimal.Decimal
	ShippingCost decimal.Decimal
	TotalAmount  decimal.Decimal
}

// BuildOrder is pure: it validates every line's quantity against the
// snapshot stock and computes the totals in exact decimals, rounding each
// amount half-up to two places. A single oversold line fails the whole
// build; there is no partial order.
//
// The snapshot check is the cheap optimistic gate. Correctness under
// concurrency rests on the ledger's atomic reservation at commit time.
func BuildOrder(snap *Snapshot) (*Draft, error) {
	if snap == nil || len(snap.Lines) == 0 {
		return nil, cart.ErrEmpty
	}

	draft := &Draft{Items: make([]order.Item, 0, len(snap.Lines))}
	subtotal := decimal.Zero

	for _, line := range snap.Lines {
		if line.Quantity <= 0 {
			return nil, cart.ErrInvalidQuantity
		}
		if line.Quantity > line.Book.AvailableStock {
			return nil, &inventory.InsufficientStockError{BookID: line.Book.ID}
		}

		lineTotal := line.Book.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		draft.Items = append(draft.Items, order.Item{
			BookID:     line.Book.ID,
			Quantity:   line.Quantity,
			UnitPrice:  line.Book.UnitPrice,
			TotalPrice: lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	draft.Subtotal = subtotal.Round(2)
	draft.Tax = draft.Subtotal.Mul(taxRate).Round(2)
	if draft.Subtotal.GreaterThan(freeShippingThreshold) {
		draft.ShippingCost = decimal.Zero.Round(2)
	} else {
		draft.ShippingCost = flatShippingCost
	}
	draft.TotalAmount = draft.Subtotal.Add(draft.Tax).Add(draft.ShippingCost)
	return draft, nil
}
