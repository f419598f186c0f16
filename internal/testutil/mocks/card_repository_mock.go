package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/recall/internal/models"
)

// MockCardRepository is a mock implementation of repository.CardRepository
type MockCardRepository struct {
	mock.Mock
}

func (m *MockCardRepository) Create(ctx context.Context, card models.Card, initial models.ScheduleState) (int64, error) {
	args := m.Called(ctx, card, initial)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCardRepository) Get(ctx context.Context, tenantID string, id int64) (*models.Card, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Card), args.Error(1)
}

func (m *MockCardRepository) Update(ctx context.Context, tenantID string, id int64, edit models.CardEdit) (bool, error) {
	args := m.Called(ctx, tenantID, id, edit)
	return args.Bool(0), args.Error(1)
}

func (m *MockCardRepository) Delete(ctx context.Context, tenantID string, id int64) (bool, error) {
	args := m.Called(ctx, tenantID, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockCardRepository) List(ctx context.Context, filter models.CardFilter) ([]models.Card, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Card), args.Error(1)
}

func (m *MockCardRepository) Search(ctx context.Context, filter models.CardFilter) ([]models.Card, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Card), args.Error(1)
}
