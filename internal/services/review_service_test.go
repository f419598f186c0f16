package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	apperrors "github.com/vytor/recall/internal/errors"
	"github.com/vytor/recall/internal/models"
	"github.com/vytor/recall/internal/services"
	"github.com/vytor/recall/internal/srs"
	"github.com/vytor/recall/internal/testutil/mocks"
)

func newReviewService(repo *mocks.MockReviewRepository) services.ReviewService {
	return services.NewReviewService(repo, srs.MustNew(srs.Config{LearningSteps: []time.Duration{}}))
}

// stateWithRetrievability builds a reviewed state, last seen 100 days ago,
// whose retrievability at now is r.
func stateWithRetrievability(t *testing.T, s *srs.Scheduler, id int64, r float64) models.ScheduleState {
	t.Helper()
	last := now.AddDate(0, 0, -100)
	st := models.ScheduleState{CardID: id, Phase: models.PhaseReviewing, Difficulty: 5, LastReview: &last, Due: now.Add(-time.Hour)}
	lo, hi := 0.001, 1e6
	for i := 0; i < 200; i++ {
		st.Stability = (lo + hi) / 2
		if s.Retrievability(st, now) < r {
			lo = st.Stability
		} else {
			hi = st.Stability
		}
	}
	require.InDelta(t, r, s.Retrievability(st, now), 1e-6)
	return st
}

func TestSubmitReview_AppliesScheduler(t *testing.T) {
	repo := new(mocks.MockReviewRepository)
	svc := newReviewService(repo)
	repo.On("ApplyReview", mock.Anything, "acme", int64(1), models.RatingGood, now).
		Return(models.NewScheduleState(now), nil)

	res, err := svc.SubmitReview(context.Background(), "acme", 1, models.RatingGood, now)

	require.NoError(t, err)
	assert.Equal(t, 2, res.IntervalDays)
	assert.Equal(t, "2026-03-12", res.NextReviewDate)
	assert.Equal(t, models.PhaseReviewing, res.Phase)
	assert.True(t, now.AddDate(0, 0, 2).Equal(res.NextReviewAt))
}

func TestSubmitReview_InvalidRatingNeverTouchesStorage(t *testing.T) {
	repo := new(mocks.MockReviewRepository)
	svc := newReviewService(repo)

	_, err := svc.SubmitReview(context.Background(), "acme", 1, models.Rating(0), now)

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
	assert.Contains(t, err.Error(), "rating")
	repo.AssertNotCalled(t, "ApplyReview", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitReview_MissingCardIsHardFailure(t *testing.T) {
	repo := new(mocks.MockReviewRepository)
	svc := newReviewService(repo)
	repo.On("ApplyReview", mock.Anything, "acme", int64(42), models.RatingAgain, now).
		Return(models.ScheduleState{}, fmt.Errorf("%w: %d", apperrors.ErrCardNotFound, 42))

	_, err := svc.SubmitReview(context.Background(), "acme", 42, models.RatingAgain, now)

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	assert.True(t, errors.Is(err, apperrors.ErrCardNotFound))
	assert.Contains(t, err.Error(), "42")
}

func TestSubmitReview_StorageFailureIsInternal(t *testing.T) {
	repo := new(mocks.MockReviewRepository)
	svc := newReviewService(repo)
	repo.On("ApplyReview", mock.Anything, "acme", int64(1), models.RatingGood, now).
		Return(models.ScheduleState{}, errors.New("database is locked"))

	_, err := svc.SubmitReview(context.Background(), "acme", 1, models.RatingGood, now)

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInternal))
}

func TestSubmitReviews_IsolatesFailures(t *testing.T) {
	repo := new(mocks.MockReviewRepository)
	svc := newReviewService(repo)
	repo.On("ApplyReview", mock.Anything, "acme", int64(1), models.RatingEasy, now).Return(models.NewScheduleState(now), nil)
	repo.On("ApplyReview", mock.Anything, "acme", int64(2), models.RatingGood, now).
		Return(models.ScheduleState{}, apperrors.ErrCardNotFound)

	res, err := svc.SubmitReviews(context.Background(), "acme", []models.ReviewItem{
		{CardID: 1, Rating: models.RatingEasy},
		{CardID: 2, Rating: models.RatingGood},
		{CardID: 3, Rating: models.Rating(9)},
	}, now)

	require.NoError(t, err)
	require.Len(t, res.Successful, 1)
	assert.Equal(t, int64(1), res.Successful[0].CardID)
	assert.Equal(t, 8, res.Successful[0].IntervalDays)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, "card not found: 2", res.Failed[0].Error)
	assert.Equal(t, 2, res.Failed[1].Index)
	assert.Contains(t, res.Failed[1].Error, "rating")
}

func TestUndoReview(t *testing.T) {
	repo := new(mocks.MockReviewRepository)
	svc := newReviewService(repo)
	repo.On("Undo", mock.Anything, "acme", int64(1)).Return(true, nil).Once()
	repo.On("Undo", mock.Anything, "acme", int64(1)).Return(false, nil).Once()

	ok, err := svc.UndoReview(context.Background(), "acme", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.UndoReview(context.Background(), "acme", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetDueCards_SortsByRetrievabilityBeforeLimit(t *testing.T) {
	repo := new(mocks.MockReviewRepository)
	scheduler := srs.MustNew(srs.Config{})
	svc := services.NewReviewService(repo, scheduler)

	high := stateWithRetrievability(t, scheduler, 1, 0.9)
	mid := stateWithRetrievability(t, scheduler, 2, 0.5)
	low := stateWithRetrievability(t, scheduler, 3, 0.2)
	repo.On("DueCards", mock.Anything, "acme", []string{}, now).Return([]models.CardWithState{
		{Card: models.Card{ID: 1, Due: high.Due}, State: high},
		{Card: models.Card{ID: 2, Due: mid.Due}, State: mid},
		{Card: models.Card{ID: 3, Due: low.Due}, State: low},
	}, nil)

	all, err := svc.GetDueCards(context.Background(), "acme", 0, nil, now)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{all[0].ID, all[1].ID, all[2].ID})
	assert.Less(t, all[0].Retrievability, all[1].Retrievability)
	assert.Less(t, all[1].Retrievability, all[2].Retrievability)

	limited, err := svc.GetDueCards(context.Background(), "acme", 2, nil, now)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, []int64{3, 2}, []int64{limited[0].ID, limited[1].ID})
}

func TestGetDueCards_NewCardsFirstThenByDue(t *testing.T) {
	repo := new(mocks.MockReviewRepository)
	svc := newReviewService(repo)
	older := models.NewScheduleState(now.Add(-2 * time.Hour))
	newer := models.NewScheduleState(now.Add(-time.Hour))
	repo.On("DueCards", mock.Anything, "acme", []string{"x"}, now).Return([]models.CardWithState{
		{Card: models.Card{ID: 5}, State: newer},
		{Card: models.Card{ID: 9}, State: older},
		{Card: models.Card{ID: 4}, State: newer},
	}, nil)

	due, err := svc.GetDueCards(context.Background(), "acme", 10, []string{"x"}, now)

	require.NoError(t, err)
	assert.Equal(t, []int64{9, 4, 5}, []int64{due[0].ID, due[1].ID, due[2].ID})
	assert.Equal(t, "today", due[0].Due)
	assert.NotNil(t, due[0].Tags)
}

func TestPreviewReview(t *testing.T) {
	repo := new(mocks.MockReviewRepository)
	svc := newReviewService(repo)
	state := models.NewScheduleState(now)
	repo.On("GetState", mock.Anything, "acme", int64(1)).Return(&state, nil)
	repo.On("GetState", mock.Anything, "acme", int64(2)).Return(nil, nil)

	preview, err := svc.PreviewReview(context.Background(), "acme", 1, now)
	require.NoError(t, err)
	require.Len(t, preview, 4)
	assert.Equal(t, 0, preview["again"].IntervalDays)
	assert.Equal(t, 1, preview["hard"].IntervalDays)
	assert.Equal(t, 2, preview["good"].IntervalDays)
	assert.Equal(t, 8, preview["easy"].IntervalDays)

	_, err = svc.PreviewReview(context.Background(), "acme", 2, now)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestGetHistory(t *testing.T) {
	repo := new(mocks.MockReviewRepository)
	svc := newReviewService(repo)
	state := models.NewScheduleState(now)
	snapshots := []models.HistorySnapshot{
		{ID: 1, CardID: 1, Rating: models.RatingGood, State: models.NewScheduleState(now), CreatedAt: now},
	}
	repo.On("GetState", mock.Anything, "acme", int64(1)).Return(&state, nil)
	repo.On("History", mock.Anything, "acme", int64(1)).Return(snapshots, nil)
	repo.On("GetState", mock.Anything, "acme", int64(2)).Return(&state, nil)
	repo.On("History", mock.Anything, "acme", int64(2)).Return(nil, nil)
	repo.On("GetState", mock.Anything, "acme", int64(3)).Return(nil, nil)

	history, err := svc.GetHistory(context.Background(), "acme", 1)
	require.NoError(t, err)
	assert.Equal(t, snapshots, history)

	history, err = svc.GetHistory(context.Background(), "acme", 2)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)

	_, err = svc.GetHistory(context.Background(), "acme", 3)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	repo.AssertNotCalled(t, "History", mock.Anything, "acme", int64(3))
}

func TestGetHistory_StorageFailureIsInternal(t *testing.T) {
	repo := new(mocks.MockReviewRepository)
	svc := newReviewService(repo)
	state := models.NewScheduleState(now)
	repo.On("GetState", mock.Anything, "acme", int64(1)).Return(&state, nil)
	repo.On("History", mock.Anything, "acme", int64(1)).Return(nil, errors.New("disk I/O error"))

	_, err := svc.GetHistory(context.Background(), "acme", 1)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInternal))
}

func TestReviewOperationsRejectEmptyTenant(t *testing.T) {
	repo := new(mocks.MockReviewRepository)
	svc := newReviewService(repo)
	ctx := context.Background()

	_, err := svc.SubmitReview(ctx, "  ", 1, models.RatingGood, now)
	assert.True(t, errors.Is(err, apperrors.ErrEmptyTenant))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

	_, err = svc.UndoReview(ctx, "", 1)
	assert.True(t, errors.Is(err, apperrors.ErrEmptyTenant))

	_, err = svc.GetHistory(ctx, "", 1)
	assert.True(t, errors.Is(err, apperrors.ErrEmptyTenant))

	repo.AssertNotCalled(t, "ApplyReview", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Undo", mock.Anything, mock.Anything, mock.Anything)
}
