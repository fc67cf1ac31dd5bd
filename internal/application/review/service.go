package review

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/shelfwise/bookshop/internal/domain/book"
	domrev "github.com/shelfwise/bookshop/internal/domain/review"
	"github.com/shelfwise/bookshop/internal/observability"
	"github.com/shelfwise/bookshop/internal/observability/logctx"
	"github.com/shelfwise/bookshop/internal/storage"
)

const componentReviewService = "review_service"

var (
	ErrValidation = errors.New("review: validation")
	ErrInternal   = errors.New("review: storage failure")
)

type IDGenerator interface {
	NewID() string
}

// Service handles review submission, approval, and the derived rating
// summary. The summary is never mutated incrementally; it is recomputed from
// the approved rows each time, so repeating a recompute is always safe.
type Service struct {
	store       storage.Store
	idGenerator IDGenerator
	log         observability.Logger

	mu        sync.Mutex
	bookLocks map[string]*sync.Mutex
}

func NewService(store storage.Store, idGen IDGenerator, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		store:       store,
		idGenerator: idGen,
		log:         logger.With(observability.F("component", componentReviewService)),
		bookLocks:   make(map[string]*sync.Mutex),
	}
}

type SubmitInput struct {
	UserID  string
	BookID  string
	Rating  int
	Title   string
	Comment string
}

// Submit validates and stores a review, then recomputes the book's rating
// summary. The duplicate guard is enforced by the repository insert, so two
// racing submissions for the same (user, book) cannot both land.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*domrev.Review, error) {
	logger := logctx.FromOr(ctx, s.log)

	if input.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if input.BookID == "" {
		return nil, fmt.Errorf("%w: book id is required", ErrValidation)
	}

	if _, err := s.store.Catalog().Get(ctx, input.BookID); err != nil {
		return nil, wrapStorageError(err)
	}

	verified, err := s.store.Orders().HasDeliveredBook(ctx, input.UserID, input.BookID)
	if err != nil {
		return nil, wrapStorageError(err)
	}

	entity, err := domrev.New(s.idGenerator.NewID(), input.BookID, input.UserID, input.Rating, input.Title, input.Comment, verified)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	if err := s.store.Reviews().Insert(ctx, entity); err != nil {
		return nil, wrapStorageError(err)
	}

	logger.Info("review_submitted",
		observability.F("book_id", input.BookID),
		observability.F("verified_purchase", verified),
	)

	// New reviews start unapproved, so this usually changes nothing, but it
	// keeps the derived field honest if approval policy ever changes.
	if err := s.Recompute(ctx, input.BookID); err != nil {
		return nil, err
	}
	return entity, nil
}

// Approve flips a review to approved and refreshes the book's summary.
func (s *Service) Approve(ctx context.Context, reviewID string) error {
	if reviewID == "" {
		return fmt.Errorf("%w: review id is required", ErrValidation)
	}

	entity, err := s.store.Reviews().Get(ctx, reviewID)
	if err != nil {
		return wrapStorageError(err)
	}
	if entity.IsApproved {
		return nil
	}
	entity.Approve()
	if err := s.store.Reviews().Update(ctx, entity); err != nil {
		return wrapStorageError(err)
	}

	logctx.FromOr(ctx, s.log).Info("review_approved",
		observability.F("review_id", reviewID),
		observability.F("book_id", entity.BookID),
	)
	return s.Recompute(ctx, entity.BookID)
}

// Recompute rebuilds the rating summary as a pure function of the approved
// reviews: arithmetic mean rounded to two decimals plus the count.
// Recomputations for the same book are serialized; last writer wins, which
// is safe because the function is deterministic given the rows it read.
func (s *Service) Recompute(ctx context.Context, bookID string) error {
	if bookID == "" {
		return fmt.Errorf("%w: book id is required", ErrValidation)
	}

	lock := s.lockFor(bookID)
	lock.Lock()
	defer lock.Unlock()

	ratings, err := s.store.Reviews().ApprovedRatings(ctx, bookID)
	if err != nil {
		return wrapStorageError(err)
	}

	summary := book.RatingSummary{AverageRating: decimal.Zero, TotalReviews: len(ratings)}
	if len(ratings) > 0 {
		sum := int64(0)
		for _, r := range ratings {
			sum += int64(r)
		}
		summary.AverageRating = decimal.NewFromInt(sum).
			Div(decimal.NewFromInt(int64(len(ratings)))).
			Round(2)
	}

	if err := s.store.Catalog().UpdateRatingSummary(ctx, bookID, summary); err != nil {
		return wrapStorageError(err)
	}
	return nil
}

func (s *Service) lockFor(bookID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lock, ok := s.bookLocks[bookID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.bookLocks[bookID] = lock
	return lock
}

func wrapStorageError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, book.ErrNotFound),
		errors.Is(err, domrev.ErrNotFound),
		errors.Is(err, domrev.ErrDuplicate):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
}
