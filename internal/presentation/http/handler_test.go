package httppresentation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcart "github.com/shelfwise/bookshop/internal/application/cart"
	appcheckout "github.com/shelfwise/bookshop/internal/application/checkout"
	appinventory "github.com/shelfwise/bookshop/internal/application/inventory"
	appreview "github.com/shelfwise/bookshop/internal/application/review"
	"github.com/shelfwise/bookshop/internal/infrastructure/memory"
)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() string { return fmt.Sprintf("id-%d", s.n.Add(1)) }

func newTestRouter(t *testing.T) (*memory.Store, http.Handler) {
	t.Helper()
	st := memory.NewStore()
	st.SeedBook("book-1", "First", decimal.RequireFromString("20.00"), 10, true)

	ids := &seqIDs{}
	h := NewHandler(
		appcheckout.NewCoordinator(st, ids, nil),
		appreview.NewService(st, ids, nil),
		appinventory.NewService(st.Ledger(), nil),
		appcart.NewService(st.Carts(), st.Catalog(), nil),
		nil,
		nil,
	)
	return st, h.Router()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func asUser(userID string) map[string]string {
	return map[string]string{headerUserID: userID}
}

func asAdmin(userID string) map[string]string {
	return map[string]string{headerUserID: userID, headerUserRole: roleAdmin}
}

func TestHealth(t *testing.T) {
	_, router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckout_RequiresIdentity(t *testing.T) {
	_, router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/checkout", checkoutRequest{}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckout_EndToEnd(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/cart/items",
		cartAddRequest{BookID: "book-1", Quantity: 2}, asUser("user-1"))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/checkout", checkoutRequest{
		BillingAddressID:  "addr-b",
		ShippingAddressID: "addr-s",
		PaymentMethod:     "credit_card",
	}, asUser("user-1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var placed checkoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &placed))
	assert.Regexp(t, `^ORD-`, placed.OrderNumber)
	assert.Equal(t, "53.19", placed.TotalAmount)

	// Owner reads the order back.
	rec = doJSON(t, router, http.MethodGet, "/orders/"+placed.OrderID, nil, asUser("user-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, "pending", fetched.Status)
	assert.Equal(t, "40.00", fetched.Subtotal)
	require.Len(t, fetched.Items, 1)
	assert.Equal(t, "book-1", fetched.Items[0].BookID)

	// Another customer sees not-found, an admin sees the order.
	rec = doJSON(t, router, http.MethodGet, "/orders/"+placed.OrderID, nil, asUser("user-2"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/orders/"+placed.OrderID, nil, asAdmin("admin-1"))
	assert.Equal(t, http.StatusOK, rec.Code)

	// The cart is spent.
	rec = doJSON(t, router, http.MethodGet, "/cart", nil, asUser("user-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCheckout_EmptyCart(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/checkout", checkoutRequest{
		BillingAddressID:  "addr-b",
		ShippingAddressID: "addr-s",
		PaymentMethod:     "credit_card",
	}, asUser("user-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_IdempotencyKeyHeaderReplays(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/cart/items",
		cartAddRequest{BookID: "book-1", Quantity: 1}, asUser("user-1"))
	require.Equal(t, http.StatusNoContent, rec.Code)

	headers := asUser("user-1")
	headers[headerIdempotency] = "retry-abc"
	body := checkoutRequest{BillingAddressID: "b", ShippingAddressID: "s", PaymentMethod: "credit_card"}

	first := doJSON(t, router, http.MethodPost, "/checkout", body, headers)
	require.Equal(t, http.StatusCreated, first.Code)
	second := doJSON(t, router, http.MethodPost, "/checkout", body, headers)
	require.Equal(t, http.StatusCreated, second.Code)

	var a, b checkoutResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.Equal(t, a.OrderID, b.OrderID)
}

func TestCartAdd_InsufficientStock(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/cart/items",
		cartAddRequest{BookID: "book-1", Quantity: 11}, asUser("user-1"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCartAdd_UnknownBook(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/cart/items",
		cartAddRequest{BookID: "missing", Quantity: 1}, asUser("user-1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartAdd_RejectsUnknownJSONFields(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/cart/items",
		map[string]any{"book_id": "book-1", "qty": 1}, asUser("user-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviews_SubmitApproveFlow(t *testing.T) {
	st, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/reviews",
		submitReviewRequest{BookID: "book-1", Rating: 5, Title: "excellent"}, asUser("user-1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	var submitted submitReviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	assert.False(t, submitted.IsVerifiedPurchase)

	// Second review for the same book by the same user conflicts.
	rec = doJSON(t, router, http.MethodPost, "/reviews",
		submitReviewRequest{BookID: "book-1", Rating: 1}, asUser("user-1"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Approval is admin-only.
	rec = doJSON(t, router, http.MethodPost, "/reviews/"+submitted.ReviewID+"/approve", nil, asUser("user-1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/reviews/"+submitted.ReviewID+"/approve", nil, asAdmin("admin-1"))
	require.Equal(t, http.StatusNoContent, rec.Code)

	summary, ok := st.RatingSummary("book-1")
	require.True(t, ok)
	assert.Equal(t, 1, summary.TotalReviews)
	assert.Equal(t, "5.00", summary.AverageRating.StringFixed(2))
}

func TestReviews_OutOfRangeRating(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/reviews",
		submitReviewRequest{BookID: "book-1", Rating: 6}, asUser("user-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRestock_AdminOnly(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/books/book-1/restock",
		restockRequest{Amount: 5}, asUser("user-1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/books/book-1/restock",
		restockRequest{Amount: 5}, asAdmin("admin-1"))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/books/book-1/stock", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"available_stock":15}`, rec.Body.String())
}
