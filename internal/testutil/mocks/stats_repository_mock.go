package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/recall/internal/models"
)

// MockStatsRepository is a mock implementation of repository.StatsRepository
type MockStatsRepository struct {
	mock.Mock
}

func (m *MockStatsRepository) CountCards(ctx context.Context, tenantID string, tags []string) (int, error) {
	args := m.Called(ctx, tenantID, tags)
	return args.Int(0), args.Error(1)
}

func (m *MockStatsRepository) CountDue(ctx context.Context, tenantID string, tags []string, now time.Time) (int, error) {
	args := m.Called(ctx, tenantID, tags, now)
	return args.Int(0), args.Error(1)
}

func (m *MockStatsRepository) CountReviewedCardsSince(ctx context.Context, tenantID string, since, until time.Time) (int, error) {
	args := m.Called(ctx, tenantID, since, until)
	return args.Int(0), args.Error(1)
}

func (m *MockStatsRepository) CountReviews(ctx context.Context, tenantID string) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

func (m *MockStatsRepository) ReviewTimes(ctx context.Context, tenantID string) ([]time.Time, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]time.Time), args.Error(1)
}

func (m *MockStatsRepository) TagCounts(ctx context.Context, tenantID string, now time.Time) ([]models.TagCount, error) {
	args := m.Called(ctx, tenantID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TagCount), args.Error(1)
}

func (m *MockStatsRepository) PhaseCounts(ctx context.Context, tenantID string, tags []string) (map[models.Phase]int, error) {
	args := m.Called(ctx, tenantID, tags)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.Phase]int), args.Error(1)
}

func (m *MockStatsRepository) ReviewedStates(ctx context.Context, tenantID string, tags []string) ([]models.ScheduleState, error) {
	args := m.Called(ctx, tenantID, tags)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ScheduleState), args.Error(1)
}
