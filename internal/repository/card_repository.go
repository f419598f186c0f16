package repository

import (
	"context"

	"github.com/vytor/recall/internal/models"
)

// CardRepository handles tenant-scoped card and tag data access. Every
// method filters by tenant; rows of other tenants behave as missing.
type CardRepository interface {
	// Create inserts the card, its tags and its initial schedule state atomically.
	Create(ctx context.Context, card models.Card, initial models.ScheduleState) (int64, error)
	// Get returns nil, nil when the card does not exist for the tenant.
	Get(ctx context.Context, tenantID string, id int64) (*models.Card, error)
	// Update reports false when the card does not exist for the tenant.
	Update(ctx context.Context, tenantID string, id int64, edit models.CardEdit) (bool, error)
	Delete(ctx context.Context, tenantID string, id int64) (bool, error)
	List(ctx context.Context, filter models.CardFilter) ([]models.Card, error)
	Search(ctx context.Context, filter models.CardFilter) ([]models.Card, error)
}
