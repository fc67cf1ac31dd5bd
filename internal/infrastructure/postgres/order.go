package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shelfwise/bookshop/internal/domain/order"
	"github.com/shelfwise/bookshop/internal/domain/payment"
)

type orderRepo struct{ s *Store }

func (r *orderRepo) Insert(ctx context.Context, o *order.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("postgres: order id is required")
	}

	var key sql.NullString
	if o.IdempotencyKey != "" {
		key = sql.NullString{String: o.IdempotencyKey, Valid: true}
	}
	_, err := r.s.q.ExecContext(ctx,
		`INSERT INTO orders
		   (id, order_number, customer_id, status, subtotal, tax, shipping_cost,
		    total_amount, billing_address_id, shipping_address_id, notes,
		    idempotency_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.Number, o.CustomerID, string(o.Status), o.Subtotal, o.Tax,
		o.ShippingCost, o.TotalAmount, o.BillingAddressID, o.ShippingAddressID,
		o.Notes, key, o.CreatedAt)
	if err != nil {
		return mapError(err)
	}

	for _, it := range o.Items {
		_, err := r.s.q.ExecContext(ctx,
			`INSERT INTO order_items (order_id, book_id, quantity, unit_price, total_price)
			 VALUES ($1, $2, $3, $4, $5)`,
			o.ID, it.BookID, it.Quantity, it.UnitPrice, it.TotalPrice)
		if err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (r *orderRepo) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.findOne(ctx,
		`SELECT id, order_number, customer_id, status, subtotal, tax,
		        shipping_cost, total_amount, billing_address_id,
		        shipping_address_id, notes, COALESCE(idempotency_key, ''), created_at
		   FROM orders WHERE id = $1`, id)
}

func (r *orderRepo) FindByIdempotency(ctx context.Context, customerID, key string) (*order.Order, error) {
	if key == "" {
		return nil, order.ErrNotFound
	}
	return r.findOne(ctx,
		`SELECT id, order_number, customer_id, status, subtotal, tax,
		        shipping_cost, total_amount, billing_address_id,
		        shipping_address_id, notes, COALESCE(idempotency_key, ''), created_at
		   FROM orders WHERE customer_id = $1 AND idempotency_key = $2`,
		customerID, key)
}

func (r *orderRepo) findOne(ctx context.Context, query string, args ...any) (*order.Order, error) {
	o := &order.Order{}
	var status string
	err := r.s.q.QueryRowContext(ctx, query, args...).Scan(
		&o.ID, &o.Number, &o.CustomerID, &status, &o.Subtotal, &o.Tax,
		&o.ShippingCost, &o.TotalAmount, &o.BillingAddressID,
		&o.ShippingAddressID, &o.Notes, &o.IdempotencyKey, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load order: %w", err)
	}
	o.Status = order.Status(status)

	rows, err := r.s.q.QueryContext(ctx,
		`SELECT book_id, quantity, unit_price, total_price
		   FROM order_items WHERE order_id = $1 ORDER BY book_id`, o.ID)
	if err != nil {
		return nil, fmt.Errorf("postgres: load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it order.Item
		if err := rows.Scan(&it.BookID, &it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, fmt.Errorf("postgres: scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (r *orderRepo) HasDeliveredBook(ctx context.Context, customerID, bookID string) (bool, error) {
	var has bool
	err := r.s.q.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM orders o
		   JOIN order_items oi ON oi.order_id = o.id
		   WHERE o.customer_id = $1 AND oi.book_id = $2
		     AND o.status IN ('delivered', 'completed'))`,
		customerID, bookID).Scan(&has)
	if err != nil {
		return false, fmt.Errorf("postgres: purchase lookup: %w", err)
	}
	return has, nil
}

type paymentRepo struct{ s *Store }

func (r *paymentRepo) Insert(ctx context.Context, p *payment.Payment) error {
	if p == nil || p.OrderID == "" {
		return fmt.Errorf("postgres: payment order id is required")
	}
	_, err := r.s.q.ExecContext(ctx,
		`INSERT INTO payments (order_id, payment_method, payment_status, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.OrderID, p.Method, string(p.Status), p.Amount, p.CreatedAt)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (r *paymentRepo) GetByOrder(ctx context.Context, orderID string) (*payment.Payment, error) {
	p := &payment.Payment{}
	var status string
	err := r.s.q.QueryRowContext(ctx,
		`SELECT order_id, payment_method, payment_status, amount, created_at
		   FROM payments WHERE order_id = $1`, orderID).Scan(
		&p.OrderID, &p.Method, &status, &p.Amount, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load payment: %w", err)
	}
	p.Status = payment.Status(status)
	return p, nil
}
