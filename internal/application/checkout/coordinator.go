package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shelfwise/bookshop/internal/application"
	"github.com/shelfwise/bookshop/internal/domain/inventory"
	"github.com/shelfwise/bookshop/internal/domain/order"
	"github.com/shelfwise/bookshop/internal/domain/payment"
	"github.com/shelfwise/bookshop/internal/observability"
	"github.com/shelfwise/bookshop/internal/observability/logctx"
	"github.com/shelfwise/bookshop/internal/storage"
)

const (
	checkoutService = "checkout-service"
	useCaseCheckout = "checkout.place_order"
	spanPrefix      = "UC."

	// Order numbers carry a random suffix; on the rare unique-index hit the
	// coordinator regenerates and retries the whole commit.
	maxNumberAttempts = 3
)

// Coordinator drives one checkout invocation through its states:
// read snapshot, build totals, commit everything in one transactional scope.
// Every failure path is equivalent to "nothing happened".
type Coordinator struct {
	store       storage.Store
	reader      *SnapshotReader
	idGenerator IDGenerator
	now         func() time.Time
	tel         observability.Telemetry

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	orderCounter observability.Counter   // checkout_orders_total{outcome}
	stockCounter observability.Counter   // stock_reservations_total{outcome}
}

func NewCoordinator(store storage.Store, idGen IDGenerator, tel observability.Telemetry) *Coordinator {
	baseLog := observability.NopLogger()
	if tel != nil {
		baseLog = tel.Logger()
	}
	baseLog = baseLog.With(observability.F("service", checkoutService))

	c := &Coordinator{
		store:       store,
		reader:      NewSnapshotReader(store.Carts(), store.Catalog()),
		idGenerator: idGen,
		now:         time.Now,
		tel:         tel,
		log:         baseLog,
	}
	if tel != nil {
		c.reqCounter = tel.Counter(observability.MUsecaseRequests)
		c.durHistogram = tel.Histogram(observability.MUsecaseDuration)
		c.orderCounter = tel.Counter(observability.MCheckoutOrders)
		c.stockCounter = tel.Counter(observability.MStockReservations)
	}
	return c
}

var _ application.UseCase[CheckoutInput, *CheckoutResult] = (*Coordinator)(nil)

type CheckoutInput struct {
	UserID            string
	BillingAddressID  string
	ShippingAddressID string
	PaymentMethod     string
	Notes             string
	IdempotencyKey    string
}

type CheckoutResult struct {
	OrderID     string
	OrderNumber string
	TotalAmount decimal.Decimal
}

// Execute performs the checkout flow.
func (c *Coordinator) Execute(ctx context.Context, cmd CheckoutInput) (_ *CheckoutResult, err error) {
	logger := logctx.FromOr(ctx, c.log).With(observability.F("use_case", useCaseCheckout))

	var span trace.Span
	if c.tel != nil {
		ctx, span = c.tel.Tracer().Start(ctx, spanPrefix+"Checkout",
			attribute.String("use_case", useCaseCheckout),
			attribute.String("checkout.user_id", cmd.UserID),
		)
	}
	start := c.now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		if c.reqCounter != nil {
			c.reqCounter.Add(1,
				observability.L("use_case", useCaseCheckout),
				observability.L("outcome", outcome),
			)
		}
		if c.durHistogram != nil {
			c.durHistogram.Observe(lat, observability.L("use_case", useCaseCheckout))
		}

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if cmd.UserID == "" {
		outcome, statusText = "error", "USER_ID_REQUIRED"
		return nil, newValidation("user id is required")
	}
	if cmd.PaymentMethod == "" {
		outcome, statusText = "error", "PAYMENT_METHOD_REQUIRED"
		return nil, newValidation("payment method is required")
	}
	if cmd.BillingAddressID == "" || cmd.ShippingAddressID == "" {
		outcome, statusText = "error", "ADDRESS_REQUIRED"
		return nil, newValidation("billing and shipping address ids are required")
	}
	if err := ctx.Err(); err != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, err
	}

	if cmd.IdempotencyKey != "" {
		existing, repoErr := c.store.Orders().FindByIdempotency(ctx, cmd.UserID, cmd.IdempotencyKey)
		switch {
		case repoErr == nil:
			statusText = "IDEMPOTENT_REPLAY"
			if span != nil {
				span.AddEvent("checkout.idempotent_replay",
					trace.WithAttributes(attribute.String("order.id", existing.ID)),
				)
			}
			return resultFrom(existing), nil
		case errors.Is(repoErr, order.ErrNotFound):
			// continue
		default:
			outcome, statusText = "error", "IDEMPOTENCY_LOOKUP_FAILED"
			return nil, wrapStorageError(repoErr)
		}
	}

	snap, err := c.reader.Read(ctx, cmd.UserID)
	if err != nil {
		outcome, statusText = "error", "SNAPSHOT_FAILED"
		return nil, wrapStorageError(err)
	}

	draft, err := BuildOrder(snap)
	if err != nil {
		outcome, statusText = "error", "BUILD_REJECTED"
		return nil, err
	}

	committed, err := c.commit(ctx, cmd, draft)
	if err != nil {
		outcome, statusText = "error", "COMMIT_FAILED"
		if c.orderCounter != nil {
			c.orderCounter.Add(1, observability.L("outcome", "aborted"))
		}
		if c.stockCounter != nil && errors.Is(err, inventory.ErrInsufficientStock) {
			c.stockCounter.Add(1, observability.L("outcome", "insufficient"))
		}
		return nil, err
	}

	if span != nil {
		span.SetAttributes(attribute.String("order.number", committed.Number))
		span.AddEvent("order.created", trace.WithAttributes(attribute.String("order.id", committed.ID)))
	}
	if c.orderCounter != nil {
		c.orderCounter.Add(1, observability.L("outcome", "committed"))
	}
	if c.stockCounter != nil {
		reserved := 0
		for _, it := range committed.Items {
			reserved += it.Quantity
		}
		c.stockCounter.Add(float64(reserved), observability.L("outcome", "reserved"))
	}
	logger.Info("checkout_committed",
		observability.F("order_id", committed.ID),
		observability.F("order_number", committed.Number),
		observability.F("total_amount", committed.TotalAmount.String()),
	)
	return resultFrom(committed), nil
}

// commit runs the all-or-nothing step: order, items, reservations, payment,
// cart clearing inside one transactional scope. A stock conflict surfacing
// only here (after the optimistic build check passed) still aborts cleanly.
func (c *Coordinator) commit(ctx context.Context, cmd CheckoutInput, draft *Draft) (*order.Order, error) {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		entity, err := order.New(
			c.idGenerator.NewID(),
			order.NewNumber(c.now()),
			cmd.UserID,
			draft.Items,
			draft.Subtotal, draft.Tax, draft.ShippingCost, draft.TotalAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("checkout: construct order: %w", err)
		}
		entity.BillingAddressID = cmd.BillingAddressID
		entity.ShippingAddressID = cmd.ShippingAddressID
		entity.Notes = cmd.Notes
		entity.IdempotencyKey = cmd.IdempotencyKey

		pay, err := payment.New(entity.ID, cmd.PaymentMethod, draft.TotalAmount)
		if err != nil {
			return nil, newValidation(err.Error())
		}

		txErr := c.store.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
			if err := tx.Orders().Insert(ctx, entity); err != nil {
				return err
			}
			// Snapshot lines are sorted by book ID, so concurrent multi-line
			// checkouts lock inventory rows in the same order.
			for _, it := range entity.Items {
				if err := tx.Ledger().Reserve(ctx, it.BookID, it.Quantity); err != nil {
					return err
				}
			}
			if err := tx.Payments().Insert(ctx, pay); err != nil {
				return err
			}
			return tx.Carts().Clear(ctx, cmd.UserID)
		})
		if txErr == nil {
			return entity, nil
		}

		if errors.Is(txErr, order.ErrConflict) {
			if cmd.IdempotencyKey != "" {
				if existing, lookupErr := c.store.Orders().FindByIdempotency(ctx, cmd.UserID, cmd.IdempotencyKey); lookupErr == nil {
					return existing, nil
				}
			}
			// Assume an order-number collision and try a fresh number.
			continue
		}
		return nil, wrapStorageError(txErr)
	}
	return nil, wrapStorageError(order.ErrConflict)
}

func resultFrom(o *order.Order) *CheckoutResult {
	return &CheckoutResult{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		TotalAmount: o.TotalAmount,
	}
}

// GetOrder returns an order for the read-only endpoint.
func (c *Coordinator) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	if id == "" {
		return nil, newValidation("order id is required")
	}
	o, err := c.store.Orders().Get(ctx, id)
	if err != nil {
		return nil, wrapStorageError(err)
	}
	return o, nil
}
