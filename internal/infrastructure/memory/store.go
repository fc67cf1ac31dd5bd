// Package memory implements storage.Store on process memory. It backs the
// unit tests and the default wiring; the transactional contract matches the
// postgres store (commit-or-nothing, conditional stock decrement).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/shelfwise/bookshop/internal/domain/book"
	"github.com/shelfwise/bookshop/internal/domain/cart"
	"github.com/shelfwise/bookshop/internal/domain/inventory"
	"github.com/shelfwise/bookshop/internal/domain/order"
	"github.com/shelfwise/bookshop/internal/domain/payment"
	"github.com/shelfwise/bookshop/internal/domain/review"
	"github.com/shelfwise/bookshop/internal/storage"
)

type bookRecord struct {
	title        string
	unitPrice    decimal.Decimal
	stock        int
	active       bool
	avgRating    decimal.Decimal
	totalReviews int
}

type state struct {
	books       map[string]*bookRecord
	carts       map[string]map[string]int // userID -> bookID -> quantity
	orders      map[string]*order.Order
	numbers     map[string]string // order number -> order ID
	idempotency map[string]string // customerID+key -> order ID
	payments    map[string]*payment.Payment
	reviews     map[string]*review.Review
	reviewIndex map[string]string // bookID+userID -> review ID
}

func newState() *state {
	return &state{
		books:       make(map[string]*bookRecord),
		carts:       make(map[string]map[string]int),
		orders:      make(map[string]*order.Order),
		numbers:     make(map[string]string),
		idempotency: make(map[string]string),
		payments:    make(map[string]*payment.Payment),
		reviews:     make(map[string]*review.Review),
		reviewIndex: make(map[string]string),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, b := range s.books {
		rec := *b
		c.books[id] = &rec
	}
	for user, lines := range s.carts {
		m := make(map[string]int, len(lines))
		for bookID, qty := range lines {
			m[bookID] = qty
		}
		c.carts[user] = m
	}
	for id, o := range s.orders {
		c.orders[id] = o.Clone()
	}
	for k, v := range s.numbers {
		c.numbers[k] = v
	}
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	for id, p := range s.payments {
		rec := *p
		c.payments[id] = &rec
	}
	for id, r := range s.reviews {
		rec := *r
		c.reviews[id] = &rec
	}
	for k, v := range s.reviewIndex {
		c.reviewIndex[k] = v
	}
	return c
}

// Store serializes transactions with one mutex; a transaction clones the
// state up front and rolls back by swapping the clone in on failure.
type Store struct {
	mu   sync.Mutex
	st   *state
	inTx bool
}

func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) Carts() cart.Repository       { return &cartRepo{s} }
func (s *Store) Orders() order.Repository     { return &orderRepo{s} }
func (s *Store) Payments() payment.Repository { return &paymentRepo{s} }
func (s *Store) Reviews() review.Repository   { return &reviewRepo{s} }
func (s *Store) Catalog() book.Catalog        { return &catalog{s} }
func (s *Store) Ledger() inventory.Ledger     { return &ledger{s} }

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Store) error) error {
	if s.inTx {
		// Nested scopes join the enclosing transaction.
		return fn(ctx, s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	tx := &Store{st: s.st, inTx: true}

	err := runTx(ctx, fn, tx)
	if err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func runTx(ctx context.Context, fn func(ctx context.Context, tx storage.Store) error, tx *Store) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("memory: transaction panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, tx)
}

func (s *Store) locked(fn func(st *state) error) error {
	if !s.inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.st)
}

// SeedBook installs or replaces a catalog row. Test and demo wiring only.
func (s *Store) SeedBook(id, title string, unitPrice decimal.Decimal, stock int, active bool) {
	_ = s.locked(func(st *state) error {
		st.books[id] = &bookRecord{
			title:     title,
			unitPrice: unitPrice,
			stock:     stock,
			active:    active,
			avgRating: decimal.Zero,
		}
		return nil
	})
}

// RatingSummary reads the derived rating fields for assertions.
func (s *Store) RatingSummary(bookID string) (book.RatingSummary, bool) {
	var summary book.RatingSummary
	var ok bool
	_ = s.locked(func(st *state) error {
		if rec, found := st.books[bookID]; found {
			summary = book.RatingSummary{AverageRating: rec.avgRating, TotalReviews: rec.totalReviews}
			ok = true
		}
		return nil
	})
	return summary, ok
}

type cartRepo struct{ s *Store }

func (r *cartRepo) Lines(ctx context.Context, userID string) ([]cart.Line, error) {
	_ = ctx
	var lines []cart.Line
	err := r.s.locked(func(st *state) error {
		for bookID, qty := range st.carts[userID] {
			lines = append(lines, cart.Line{UserID: userID, BookID: bookID, Quantity: qty})
		}
		return nil
	})
	sort.Slice(lines, func(i, j int) bool { return lines[i].BookID < lines[j].BookID })
	return lines, err
}

func (r *cartRepo) Upsert(ctx context.Context, line *cart.Line) error {
	_ = ctx
	if line == nil || line.Quantity <= 0 {
		return cart.ErrInvalidQuantity
	}
	return r.s.locked(func(st *state) error {
		if st.carts[line.UserID] == nil {
			st.carts[line.UserID] = make(map[string]int)
		}
		st.carts[line.UserID][line.BookID] += line.Quantity
		return nil
	})
}

func (r *cartRepo) Remove(ctx context.Context, userID, bookID string) error {
	_ = ctx
	return r.s.locked(func(st *state) error {
		delete(st.carts[userID], bookID)
		return nil
	})
}

func (r *cartRepo) Clear(ctx context.Context, userID string) error {
	_ = ctx
	return r.s.locked(func(st *state) error {
		delete(st.carts, userID)
		return nil
	})
}

type orderRepo struct{ s *Store }

func idempotencyKey(customerID, key string) string { return customerID + "\x00" + key }

func (r *orderRepo) Insert(ctx context.Context, o *order.Order) error {
	_ = ctx
	if o == nil || o.ID == "" {
		return fmt.Errorf("memory: order id is required")
	}
	return r.s.locked(func(st *state) error {
		if _, exists := st.orders[o.ID]; exists {
			return order.ErrConflict
		}
		if _, exists := st.numbers[o.Number]; exists {
			return order.ErrConflict
		}
		if o.IdempotencyKey != "" {
			if _, exists := st.idempotency[idempotencyKey(o.CustomerID, o.IdempotencyKey)]; exists {
				return order.ErrConflict
			}
		}

		st.orders[o.ID] = o.Clone()
		st.numbers[o.Number] = o.ID
		if o.IdempotencyKey != "" {
			st.idempotency[idempotencyKey(o.CustomerID, o.IdempotencyKey)] = o.ID
		}
		return nil
	})
}

func (r *orderRepo) Get(ctx context.Context, id string) (*order.Order, error) {
	_ = ctx
	var found *order.Order
	err := r.s.locked(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return order.ErrNotFound
		}
		found = o.Clone()
		return nil
	})
	return found, err
}

func (r *orderRepo) FindByIdempotency(ctx context.Context, customerID, key string) (*order.Order, error) {
	_ = ctx
	if key == "" {
		return nil, order.ErrNotFound
	}
	var found *order.Order
	err := r.s.locked(func(st *state) error {
		id, ok := st.idempotency[idempotencyKey(customerID, key)]
		if !ok {
			return order.ErrNotFound
		}
		o, ok := st.orders[id]
		if !ok {
			return order.ErrNotFound
		}
		found = o.Clone()
		return nil
	})
	return found, err
}

func (r *orderRepo) HasDeliveredBook(ctx context.Context, customerID, bookID string) (bool, error) {
	_ = ctx
	var has bool
	err := r.s.locked(func(st *state) error {
		for _, o := range st.orders {
			if o.CustomerID != customerID {
				continue
			}
			if o.Status != order.StatusDelivered && o.Status != order.StatusCompleted {
				continue
			}
			for _, it := range o.Items {
				if it.BookID == bookID {
					has = true
					return nil
				}
			}
		}
		return nil
	})
	return has, err
}

type paymentRepo struct{ s *Store }

func (r *paymentRepo) Insert(ctx context.Context, p *payment.Payment) error {
	_ = ctx
	if p == nil || p.OrderID == "" {
		return fmt.Errorf("memory: payment order id is required")
	}
	return r.s.locked(func(st *state) error {
		if _, exists := st.payments[p.OrderID]; exists {
			return order.ErrConflict
		}
		rec := *p
		st.payments[p.OrderID] = &rec
		return nil
	})
}

func (r *paymentRepo) GetByOrder(ctx context.Context, orderID string) (*payment.Payment, error) {
	_ = ctx
	var found *payment.Payment
	err := r.s.locked(func(st *state) error {
		p, ok := st.payments[orderID]
		if !ok {
			return order.ErrNotFound
		}
		rec := *p
		found = &rec
		return nil
	})
	return found, err
}

type reviewRepo struct{ s *Store }

func reviewKey(bookID, userID string) string { return bookID + "\x00" + userID }

func (r *reviewRepo) Insert(ctx context.Context, rv *review.Review) error {
	_ = ctx
	if rv == nil || rv.ID == "" {
		return fmt.Errorf("memory: review id is required")
	}
	return r.s.locked(func(st *state) error {
		if _, exists := st.reviewIndex[reviewKey(rv.BookID, rv.UserID)]; exists {
			return review.ErrDuplicate
		}
		rec := *rv
		st.reviews[rv.ID] = &rec
		st.reviewIndex[reviewKey(rv.BookID, rv.UserID)] = rv.ID
		return nil
	})
}

func (r *reviewRepo) Get(ctx context.Context, id string) (*review.Review, error) {
	_ = ctx
	var found *review.Review
	err := r.s.locked(func(st *state) error {
		rv, ok := st.reviews[id]
		if !ok {
			return review.ErrNotFound
		}
		rec := *rv
		found = &rec
		return nil
	})
	return found, err
}

func (r *reviewRepo) Update(ctx context.Context, rv *review.Review) error {
	_ = ctx
	if rv == nil || rv.ID == "" {
		return fmt.Errorf("memory: review id is required")
	}
	return r.s.locked(func(st *state) error {
		if _, ok := st.reviews[rv.ID]; !ok {
			return review.ErrNotFound
		}
		rec := *rv
		st.reviews[rv.ID] = &rec
		return nil
	})
}

func (r *reviewRepo) ApprovedRatings(ctx context.Context, bookID string) ([]int, error) {
	_ = ctx
	var ratings []int
	err := r.s.locked(func(st *state) error {
		for _, rv := range st.reviews {
			if rv.BookID == bookID && rv.IsApproved {
				ratings = append(ratings, rv.Rating)
			}
		}
		return nil
	})
	return ratings, err
}

type catalog struct{ s *Store }

func (c *catalog) Get(ctx context.Context, bookID string) (*book.StockView, error) {
	_ = ctx
	var view *book.StockView
	err := c.s.locked(func(st *state) error {
		rec, ok := st.books[bookID]
		if !ok {
			return book.ErrNotFound
		}
		view = &book.StockView{
			ID:             bookID,
			Title:          rec.title,
			UnitPrice:      rec.unitPrice,
			AvailableStock: rec.stock,
			IsActive:       rec.active,
		}
		return nil
	})
	return view, err
}

func (c *catalog) UpdateRatingSummary(ctx context.Context, bookID string, summary book.RatingSummary) error {
	_ = ctx
	return c.s.locked(func(st *state) error {
		rec, ok := st.books[bookID]
		if !ok {
			return book.ErrNotFound
		}
		rec.avgRating = summary.AverageRating
		rec.totalReviews = summary.TotalReviews
		return nil
	})
}

type ledger struct{ s *Store }

func (l *ledger) Reserve(ctx context.Context, bookID string, quantity int) error {
	_ = ctx
	if quantity <= 0 {
		return inventory.ErrInvalidQuantity
	}
	return l.s.locked(func(st *state) error {
		rec, ok := st.books[bookID]
		if !ok {
			return inventory.ErrNotFound
		}
		if rec.stock < quantity {
			return &inventory.InsufficientStockError{BookID: bookID}
		}
		rec.stock -= quantity
		return nil
	})
}

func (l *ledger) Restock(ctx context.Context, bookID string, amount int) error {
	_ = ctx
	if amount <= 0 {
		return inventory.ErrInvalidQuantity
	}
	return l.s.locked(func(st *state) error {
		rec, ok := st.books[bookID]
		if !ok {
			return inventory.ErrNotFound
		}
		rec.stock += amount
		return nil
	})
}

func (l *ledger) CurrentStock(ctx context.Context, bookID string) (int, error) {
	_ = ctx
	var stock int
	err := l.s.locked(func(st *state) error {
		rec, ok := st.books[bookID]
		if !ok {
			return inventory.ErrNotFound
		}
		stock = rec.stock
		return nil
	})
	return stock, err
}
