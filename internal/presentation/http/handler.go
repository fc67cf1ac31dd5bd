package httppresentation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	appcart "github.com/shelfwise/bookshop/internal/application/cart"
	appcheckout "github.com/shelfwise/bookshop/internal/application/checkout"
	appinventory "github.com/shelfwise/bookshop/internal/application/inventory"
	appreview "github.com/shelfwise/bookshop/internal/application/review"
	"github.com/shelfwise/bookshop/internal/domain/book"
	domcart "github.com/shelfwise/bookshop/internal/domain/cart"
	dominv "github.com/shelfwise/bookshop/internal/domain/inventory"
	domorder "github.com/shelfwise/bookshop/internal/domain/order"
	dompayment "github.com/shelfwise/bookshop/internal/domain/payment"
	domreview "github.com/shelfwise/bookshop/internal/domain/review"
	"github.com/shelfwise/bookshop/internal/observability"
	"github.com/shelfwise/bookshop/internal/observability/logctx"
	"github.com/shelfwise/bookshop/internal/storage"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerUserID         = "X-User-ID"
	headerUserRole       = "X-User-Role"
	headerIdempotency    = "Idempotency-Key"
	roleAdmin            = "admin"
)

// Handler exposes the core over HTTP. Authentication happens upstream; the
// verified identity arrives in headers.
type Handler struct {
	checkout  *appcheckout.Coordinator
	reviews   *appreview.Service
	inventory *appinventory.Service
	carts     *appcart.Service
	log       observability.Logger
	tel       observability.Telemetry
}

func NewHandler(
	checkout *appcheckout.Coordinator,
	reviews *appreview.Service,
	inventory *appinventory.Service,
	carts *appcart.Service,
	logger observability.Logger,
	tel observability.Telemetry,
) *Handler {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = observability.NopLogger()
	}
	return &Handler{
		checkout:  checkout,
		reviews:   reviews,
		inventory: inventory,
		carts:     carts,
		log:       baseLogger.With(observability.F("component", componentHTTPHandler)),
		tel:       tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Trace → request logger → HTTP metrics → access log → handler.
	r.Use(h.withTrace)
	r.Use(ObservabilityMiddleware(h.log, func(r *http.Request) string {
		return r.Header.Get(headerRequestID)
	}, h.tel))
	r.Use(h.withAccessLog)

	r.Get("/health", h.handleHealth)

	r.Get("/cart", h.handleCartLines)
	r.Post("/cart/items", h.handleCartAdd)
	r.Delete("/cart/items/{bookID}", h.handleCartRemove)

	r.Post("/checkout", h.handleCheckout)
	r.Get("/orders/{orderID}", h.handleGetOrder)

	r.Post("/reviews", h.handleSubmitReview)
	r.Post("/reviews/{reviewID}/approve", h.handleApproveReview)

	r.Get("/books/{bookID}/stock", h.handleCurrentStock)
	r.Post("/books/{bookID}/restock", h.handleRestock)

	return r
}

type checkoutRequest struct {
	BillingAddressID  string `json:"billing_address_id"`
	ShippingAddressID string `json:"shipping_address_id"`
	PaymentMethod     string `json:"payment_method"`
	Notes             string `json:"notes"`
}

type checkoutResponse struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	TotalAmount string `json:"total_amount"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.checkout.Execute(r.Context(), appcheckout.CheckoutInput{
		UserID:            userID,
		BillingAddressID:  req.BillingAddressID,
		ShippingAddressID: req.ShippingAddressID,
		PaymentMethod:     req.PaymentMethod,
		Notes:             req.Notes,
		IdempotencyKey:    r.Header.Get(headerIdempotency),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:     result.OrderID,
		OrderNumber: result.OrderNumber,
		TotalAmount: result.TotalAmount.StringFixed(2),
	})
}

type orderItemResponse struct {
	BookID     string `json:"book_id"`
	Quantity   int    `json:"quantity"`
	UnitPrice  string `json:"unit_price"`
	TotalPrice string `json:"total_price"`
}

type orderResponse struct {
	OrderID      string              `json:"order_id"`
	OrderNumber  string              `json:"order_number"`
	Status       string              `json:"status"`
	Subtotal     string              `json:"subtotal"`
	Tax          string              `json:"tax"`
	ShippingCost string              `json:"shipping_cost"`
	TotalAmount  string              `json:"total_amount"`
	Items        []orderItemResponse `json:"items"`
	CreatedAt    time.Time           `json:"created_at"`
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	o, err := h.checkout.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// Customers only see their own orders.
	if o.CustomerID != userID && r.Header.Get(headerUserRole) != roleAdmin {
		writeError(w, http.StatusNotFound, domorder.ErrNotFound)
		return
	}

	resp := orderResponse{
		OrderID:      o.ID,
		OrderNumber:  o.Number,
		Status:       string(o.Status),
		Subtotal:     o.Subtotal.StringFixed(2),
		Tax:          o.Tax.StringFixed(2),
		ShippingCost: o.ShippingCost.StringFixed(2),
		TotalAmount:  o.TotalAmount.StringFixed(2),
		CreatedAt:    o.CreatedAt,
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			BookID:     it.BookID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice.StringFixed(2),
			TotalPrice: it.TotalPrice.StringFixed(2),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type cartAddRequest struct {
	BookID   string `json:"book_id"`
	Quantity int    `json:"quantity"`
}

func (h *Handler) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req cartAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if err := h.carts.Add(r.Context(), userID, req.BookID, req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}
	if err := h.carts.Remove(r.Context(), userID, chi.URLParam(r, "bookID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cartLineResponse struct {
	BookID   string `json:"book_id"`
	Quantity int    `json:"quantity"`
}

func (h *Handler) handleCartLines(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}
	lines, err := h.carts.Lines(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := make([]cartLineResponse, 0, len(lines))
	for _, l := range lines {
		resp = append(resp, cartLineResponse{BookID: l.BookID, Quantity: l.Quantity})
	}
	writeJSON(w, http.StatusOK, resp)
}

type submitReviewRequest struct {
	BookID  string `json:"book_id"`
	Rating  int    `json:"rating"`
	Title   string `json:"title"`
	Comment string `json:"comment"`
}

type submitReviewResponse struct {
	ReviewID           string `json:"review_id"`
	IsVerifiedPurchase bool   `json:"is_verified_purchase"`
}

func (h *Handler) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req submitReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rv, err := h.reviews.Submit(r.Context(), appreview.SubmitInput{
		UserID:  userID,
		BookID:  req.BookID,
		Rating:  req.Rating,
		Title:   req.Title,
		Comment: req.Comment,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitReviewResponse{
		ReviewID:           rv.ID,
		IsVerifiedPurchase: rv.IsVerifiedPurchase,
	})
}

func (h *Handler) handleApproveReview(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	if err := h.reviews.Approve(r.Context(), chi.URLParam(r, "reviewID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type restockRequest struct {
	Amount int `json:"amount"`
}

func (h *Handler) handleRestock(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	var req restockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.inventory.Restock(r.Context(), chi.URLParam(r, "bookID"), req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCurrentStock(w http.ResponseWriter, r *http.Request) {
	stock, err := h.inventory.CurrentStock(r.Context(), chi.URLParam(r, "bookID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"available_stock": stock})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(headerUserID)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, errors.New("identity required"))
		return "", false
	}
	return userID, true
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if _, ok := h.identity(w, r); !ok {
		return false
	}
	if r.Header.Get(headerUserRole) != roleAdmin {
		writeError(w, http.StatusForbidden, errors.New("admin role required"))
		return false
	}
	return true
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routePattern(r)),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeDomainError maps the error taxonomy to status codes. Business-rule
// rejections carry their specific reason; anything unknown becomes a
// generic retry-safe response.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, book.ErrNotFound),
		errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domreview.ErrNotFound),
		errors.Is(err, dominv.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, dominv.ErrInsufficientStock),
		errors.Is(err, domreview.ErrDuplicate),
		errors.Is(err, domorder.ErrConflict),
		errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, appcheckout.ErrValidation),
		errors.Is(err, appreview.ErrValidation),
		errors.Is(err, domcart.ErrEmpty),
		errors.Is(err, domcart.ErrInvalidQuantity),
		errors.Is(err, dominv.ErrInvalidQuantity),
		errors.Is(err, domreview.ErrInvalidRating),
		errors.Is(err, dompayment.ErrInvalidAmount),
		errors.Is(err, dompayment.ErrMethodMissing),
		errors.Is(err, book.ErrInactive):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, errors.New("internal error, retry later"))
	}
}
