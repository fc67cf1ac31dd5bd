package review

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/bookshop/internal/domain/book"
	"github.com/shelfwise/bookshop/internal/domain/order"
	domrev "github.com/shelfwise/bookshop/internal/domain/review"
	"github.com/shelfwise/bookshop/internal/infrastructure/memory"
)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() string { return fmt.Sprintf("rev-%d", s.n.Add(1)) }

func newFixture(t *testing.T) (*memory.Store, *Service) {
	t.Helper()
	st := memory.NewStore()
	st.SeedBook("book-1", "First", decimal.RequireFromString("20.00"), 10, true)
	return st, NewService(st, &seqIDs{}, nil)
}

func submit(t *testing.T, svc *Service, userID string, rating int) *domrev.Review {
	t.Helper()
	rv, err := svc.Submit(context.Background(), SubmitInput{
		UserID: userID,
		BookID: "book-1",
		Rating: rating,
		Title:  "title",
	})
	require.NoError(t, err)
	return rv
}

func TestSubmit_StartsUnapproved(t *testing.T) {
	st, svc := newFixture(t)

	rv := submit(t, svc, "user-1", 5)
	assert.False(t, rv.IsApproved)
	assert.False(t, rv.IsVerifiedPurchase)

	// An unapproved review must not move the public summary.
	summary, ok := st.RatingSummary("book-1")
	require.True(t, ok)
	assert.Equal(t, 0, summary.TotalReviews)
	assert.True(t, summary.AverageRating.IsZero())
}

func TestSubmit_RejectsDuplicatePerUserAndBook(t *testing.T) {
	_, svc := newFixture(t)
	submit(t, svc, "user-1", 5)

	_, err := svc.Submit(context.Background(), SubmitInput{
		UserID: "user-1",
		BookID: "book-1",
		Rating: 3,
	})
	assert.ErrorIs(t, err, domrev.ErrDuplicate)
}

func TestSubmit_RejectsOutOfRangeRating(t *testing.T) {
	_, svc := newFixture(t)

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.Submit(context.Background(), SubmitInput{
			UserID: "user-1",
			BookID: "book-1",
			Rating: rating,
		})
		assert.ErrorIs(t, err, ErrValidation, "rating %d", rating)
	}
}

func TestSubmit_UnknownBook(t *testing.T) {
	_, svc := newFixture(t)

	_, err := svc.Submit(context.Background(), SubmitInput{
		UserID: "user-1",
		BookID: "missing",
		Rating: 4,
	})
	assert.ErrorIs(t, err, book.ErrNotFound)
}

func TestSubmit_MarksVerifiedPurchase(t *testing.T) {
	st, svc := newFixture(t)

	delivered, err := order.New("ord-1", "ORD-1-AAAAA", "user-1",
		[]order.Item{{BookID: "book-1", Quantity: 1, UnitPrice: decimal.RequireFromString("20.00"), TotalPrice: decimal.RequireFromString("20.00")}},
		decimal.RequireFromString("20.00"), decimal.RequireFromString("1.60"), decimal.RequireFromString("9.99"), decimal.RequireFromString("31.59"))
	require.NoError(t, err)
	delivered.Status = order.StatusDelivered
	delivered.BillingAddressID = "b"
	delivered.ShippingAddressID = "s"
	require.NoError(t, st.Orders().Insert(context.Background(), delivered))

	rv := submit(t, svc, "user-1", 5)
	assert.True(t, rv.IsVerifiedPurchase)

	other := submit(t, svc, "user-2", 4)
	assert.False(t, other.IsVerifiedPurchase)
}

func TestApprove_UpdatesSummary(t *testing.T) {
	st, svc := newFixture(t)
	ctx := context.Background()

	first := submit(t, svc, "user-1", 4)
	second := submit(t, svc, "user-2", 5)
	third := submit(t, svc, "user-3", 2)

	require.NoError(t, svc.Approve(ctx, first.ID))
	require.NoError(t, svc.Approve(ctx, second.ID))

	summary, ok := st.RatingSummary("book-1")
	require.True(t, ok)
	assert.Equal(t, 2, summary.TotalReviews)
	assert.Equal(t, "4.50", summary.AverageRating.StringFixed(2))

	// The pending third review stays out of the mean until approved.
	require.NoError(t, svc.Approve(ctx, third.ID))
	summary, _ = st.RatingSummary("book-1")
	assert.Equal(t, 3, summary.TotalReviews)
	assert.Equal(t, "3.67", summary.AverageRating.StringFixed(2))
}

func TestApprove_IsIdempotent(t *testing.T) {
	st, svc := newFixture(t)
	ctx := context.Background()

	rv := submit(t, svc, "user-1", 4)
	require.NoError(t, svc.Approve(ctx, rv.ID))
	require.NoError(t, svc.Approve(ctx, rv.ID))

	summary, ok := st.RatingSummary("book-1")
	require.True(t, ok)
	assert.Equal(t, 1, summary.TotalReviews)
	assert.Equal(t, "4.00", summary.AverageRating.StringFixed(2))
}

func TestApprove_UnknownReview(t *testing.T) {
	_, svc := newFixture(t)
	err := svc.Approve(context.Background(), "missing")
	assert.ErrorIs(t, err, domrev.ErrNotFound)
}

func TestRecompute_IsDeterministic(t *testing.T) {
	st, svc := newFixture(t)
	ctx := context.Background()

	for i, rating := range []int{5, 4, 4} {
		rv := submit(t, svc, fmt.Sprintf("user-%d", i), rating)
		require.NoError(t, svc.Approve(ctx, rv.ID))
	}

	before, _ := st.RatingSummary("book-1")
	require.NoError(t, svc.Recompute(ctx, "book-1"))
	after, _ := st.RatingSummary("book-1")

	assert.Equal(t, before.TotalReviews, after.TotalReviews)
	assert.True(t, before.AverageRating.Equal(after.AverageRating))
	assert.Equal(t, "4.33", after.AverageRating.StringFixed(2))
}
