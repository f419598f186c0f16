package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/recall/internal/models"
)

// MockReviewRepository is a mock implementation of repository.ReviewRepository.
// ApplyReview runs next against the state returned by the expectation, the
// way the real repository does inside its transaction.
type MockReviewRepository struct {
	mock.Mock
}

func (m *MockReviewRepository) GetState(ctx context.Context, tenantID string, cardID int64) (*models.ScheduleState, error) {
	args := m.Called(ctx, tenantID, cardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScheduleState), args.Error(1)
}

func (m *MockReviewRepository) ApplyReview(ctx context.Context, tenantID string, cardID int64, rating models.Rating, at time.Time,
	next func(models.ScheduleState) models.ScheduleState) (*models.ScheduleState, error) {
	args := m.Called(ctx, tenantID, cardID, rating, at)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	prev := args.Get(0).(models.ScheduleState)
	updated := next(prev)
	updated.CardID = cardID
	return &updated, nil
}

func (m *MockReviewRepository) Undo(ctx context.Context, tenantID string, cardID int64) (bool, error) {
	args := m.Called(ctx, tenantID, cardID)
	return args.Bool(0), args.Error(1)
}

func (m *MockReviewRepository) DueCards(ctx context.Context, tenantID string, tags []string, now time.Time) ([]models.CardWithState, error) {
	args := m.Called(ctx, tenantID, tags, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CardWithState), args.Error(1)
}

func (m *MockReviewRepository) History(ctx context.Context, tenantID string, cardID int64) ([]models.HistorySnapshot, error) {
	args := m.Called(ctx, tenantID, cardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.HistorySnapshot), args.Error(1)
}
