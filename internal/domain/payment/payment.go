package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("payment: amount must be greater than zero")
	ErrMethodMissing = errors.New("payment: method is required")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusAuthorized Status = "authorized"
	StatusCaptured   Status = "captured"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
)

// Payment records the amount owed for an order. Funds movement happens in a
// downstream processor; only the status field changes after creation.
type Payment struct {
	OrderID   string
	Method    string
	Status    Status
	Amount    decimal.Decimal
	CreatedAt time.Time
}

func New(orderID, method string, amount decimal.Decimal) (*Payment, error) {
	if method == "" {
		return nil, ErrMethodMissing
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return &Payment{
		OrderID:   orderID,
		Method:    method,
		Status:    StatusPending,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}, nil
}

type Repository interface {
	Insert(ctx context.Context, p *Payment) error
	GetByOrder(ctx context.Context, orderID string) (*Payment, error)
}
