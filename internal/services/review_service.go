package services

import (
	"context"
	"sort"
	"time"

	"github.com/vytor/recall/internal/errors"
	"github.com/vytor/recall/internal/logger"
	"github.com/vytor/recall/internal/models"
	"github.com/vytor/recall/internal/repository"
	"github.com/vytor/recall/internal/srs"
)

// Scheduler is the memory model the review engine drives. *srs.Scheduler implements it.
type Scheduler interface {
	Review(state models.ScheduleState, rating models.Rating, now time.Time) (models.ScheduleState, int)
	Retrievability(state models.ScheduleState, now time.Time) float64
	Preview(state models.ScheduleState, now time.Time) map[models.Rating]srs.Outcome
}

// ReviewService applies ratings, undoes them, ranks due cards and exposes the undo history
type ReviewService interface {
	SubmitReview(ctx context.Context, tenantID string, cardID int64, rating models.Rating, now time.Time) (*models.ReviewResult, error)
	SubmitReviews(ctx context.Context, tenantID string, items []models.ReviewItem, now time.Time) (models.BatchResult[models.ReviewItemResult], error)
	UndoReview(ctx context.Context, tenantID string, cardID int64) (bool, error)
	GetDueCards(ctx context.Context, tenantID string, limit int, tags []string, now time.Time) ([]models.DueCard, error)
	PreviewReview(ctx context.Context, tenantID string, cardID int64, now time.Time) (map[string]models.ReviewResult, error)
	GetHistory(ctx context.Context, tenantID string, cardID int64) ([]models.HistorySnapshot, error)
}

type reviewService struct {
	repo      repository.ReviewRepository
	scheduler Scheduler
	opts      options
}

// NewReviewService creates a new ReviewService
func NewReviewService(repo repository.ReviewRepository, scheduler Scheduler, opts ...Option) ReviewService {
	return &reviewService{repo: repo, scheduler: scheduler, opts: newOptions(opts)}
}

func (s *reviewService) SubmitReview(ctx context.Context, tenantID string, cardID int64, rating models.Rating, now time.Time) (*models.ReviewResult, error) {
	log := logger.FromContext(ctx).WithPrefix("review_service").WithTenant(tenantID)
	log.Debug("submitting review: card_id=%d, rating=%s", cardID, rating)

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	if !rating.IsValid() {
		return nil, errors.NewValidationError("rating", "must be one of again, hard, good, easy")
	}

	var days int
	state, err := s.repo.ApplyReview(ctx, tenantID, cardID, rating, now, func(prev models.ScheduleState) models.ScheduleState {
		var next models.ScheduleState
		next, days = s.scheduler.Review(prev, rating, now)
		return next
	})
	if err != nil {
		if errors.Is(err, errors.ErrCardNotFound) {
			return nil, errors.NewCardNotFoundError(cardID)
		}
		log.Error("failed to apply review: %v", err)
		return nil, errors.NewInternalError(err)
	}

	log.WithFields(map[string]any{
		"card_id":  cardID,
		"rating":   rating.String(),
		"phase":    state.Phase.String(),
		"interval": days,
	}).Info("review applied")

	result := s.result(*state, days)
	return &result, nil
}

func (s *reviewService) SubmitReviews(ctx context.Context, tenantID string, items []models.ReviewItem, now time.Time) (models.BatchResult[models.ReviewItemResult], error) {
	log := logger.FromContext(ctx).WithPrefix("review_service").WithTenant(tenantID)
	log.Debug("submitting %d reviews", len(items))

	result := models.NewBatchResult[models.ReviewItemResult](len(items))
	if err := validateTenant(tenantID); err != nil {
		return result, err
	}

	for i, item := range items {
		id := item.CardID
		res, err := s.SubmitReview(ctx, tenantID, id, item.Rating, now)
		if err != nil {
			result.Fail(models.BatchFailure{Index: i, CardID: &id, Error: failureMessage(err)})
			continue
		}
		result.Succeed(models.ReviewItemResult{CardID: id, ReviewResult: *res})
	}

	log.Info("batch review finished: successful=%d, failed=%d", len(result.Successful), len(result.Failed))
	return result, nil
}

func (s *reviewService) UndoReview(ctx context.Context, tenantID string, cardID int64) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("review_service").WithTenant(tenantID)
	log.Debug("undoing review: card_id=%d", cardID)

	if err := validateTenant(tenantID); err != nil {
		return false, err
	}

	ok, err := s.repo.Undo(ctx, tenantID, cardID)
	if err != nil {
		log.Error("failed to undo review: %v", err)
		return false, errors.NewInternalError(err)
	}
	if ok {
		log.WithField("card_id", cardID).Info("review undone")
	}
	return ok, nil
}

func (s *reviewService) GetDueCards(ctx context.Context, tenantID string, limit int, tags []string, now time.Time) ([]models.DueCard, error) {
	log := logger.FromContext(ctx).WithPrefix("review_service").WithTenant(tenantID)
	log.Debug("getting due cards: limit=%d, tags=%v", limit, tags)

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	labels, err := normalizeTags(tags)
	if err != nil {
		return nil, err
	}

	cards, err := s.repo.DueCards(ctx, tenantID, labels, now)
	if err != nil {
		log.Error("failed to load due cards: %v", err)
		return nil, errors.NewInternalError(err)
	}

	due := make([]models.DueCard, len(cards))
	for i, c := range cards {
		view := models.CardView{
			ID:           c.ID,
			Instructions: c.Instructions,
			Tags:         c.Tags,
			Due:          dueLabel(c.State.Due, now, s.opts.loc),
			CreatedAt:    c.CreatedAt,
		}
		if view.Tags == nil {
			view.Tags = []string{}
		}
		due[i] = models.NewDueCard(view, c.State, s.scheduler.Retrievability(c.State, now))
	}

	// The whole due set is ranked before the limit is applied.
	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if a.Retrievability != b.Retrievability {
			return a.Retrievability < b.Retrievability
		}
		if !a.DueAt().Equal(b.DueAt()) {
			return a.DueAt().Before(b.DueAt())
		}
		return a.ID < b.ID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	log.Debug("returning %d of %d due cards", len(due), len(cards))
	return due, nil
}

func (s *reviewService) PreviewReview(ctx context.Context, tenantID string, cardID int64, now time.Time) (map[string]models.ReviewResult, error) {
	log := logger.FromContext(ctx).WithPrefix("review_service").WithTenant(tenantID)
	log.Debug("previewing review: card_id=%d", cardID)

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}

	state, err := s.repo.GetState(ctx, tenantID, cardID)
	if err != nil {
		log.Error("failed to load schedule state: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if state == nil {
		return nil, errors.NewCardNotFoundError(cardID)
	}

	out := make(map[string]models.ReviewResult, len(models.Ratings))
	for rating, outcome := range s.scheduler.Preview(*state, now) {
		out[rating.String()] = s.result(outcome.State, outcome.IntervalDays)
	}
	return out, nil
}

// GetHistory lists the snapshots Undo would restore, oldest first.
func (s *reviewService) GetHistory(ctx context.Context, tenantID string, cardID int64) ([]models.HistorySnapshot, error) {
	log := logger.FromContext(ctx).WithPrefix("review_service").WithTenant(tenantID)
	log.Debug("getting review history: card_id=%d", cardID)

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}

	state, err := s.repo.GetState(ctx, tenantID, cardID)
	if err != nil {
		log.Error("failed to load schedule state: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if state == nil {
		return nil, errors.NewCardNotFoundError(cardID)
	}

	history, err := s.repo.History(ctx, tenantID, cardID)
	if err != nil {
		log.Error("failed to load review history: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if history == nil {
		history = []models.HistorySnapshot{}
	}
	return history, nil
}

func (s *reviewService) result(state models.ScheduleState, days int) models.ReviewResult {
	return models.ReviewResult{
		NextReviewDate: state.Due.In(s.opts.loc).Format(time.DateOnly),
		NextReviewAt:   state.Due,
		IntervalDays:   days,
		Phase:          state.Phase,
	}
}
