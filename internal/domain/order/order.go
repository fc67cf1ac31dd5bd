package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrConflict        = errors.New("order: already exists")
	ErrNoItems         = errors.New("order: must contain at least one item")
	ErrInvalidQuantity = errors.New("order: item quantity must be greater than zero")
	ErrInconsistent    = errors.New("order: item totals do not sum to subtotal")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Item captures a price snapshot for one cart line at checkout time.
// Future catalog price changes never touch it.
type Item struct {
	BookID     string
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// Order is created once per successful checkout and is immutable apart from
// status transitions handled by downstream fulfilment.
type Order struct {
	ID                string
	Number            string
	CustomerID        string
	Status            Status
	Subtotal          decimal.Decimal
	Tax               decimal.Decimal
	ShippingCost      decimal.Decimal
	TotalAmount       decimal.Decimal
	BillingAddressID  string
	ShippingAddressID string
	Notes             string
	IdempotencyKey    string
	Items             []Item
	CreatedAt         time.Time
}

func New(id, number, customerID string, items []Item, subtotal, tax, shipping, total decimal.Decimal) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	sum := decimal.Zero
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		sum = sum.Add(it.TotalPrice)
	}
	if !sum.Equal(subtotal) {
		return nil, ErrInconsistent
	}

	return &Order{
		ID:           id,
		Number:       number,
		CustomerID:   customerID,
		Status:       StatusPending,
		Subtotal:     subtotal,
		Tax:          tax,
		ShippingCost: shipping,
		TotalAmount:  total,
		Items:        append([]Item(nil), items...),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]Item(nil), o.Items...)
	return &clone
}
