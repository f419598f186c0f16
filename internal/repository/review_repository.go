package repository

import (
	"context"
	"time"

	"github.com/vytor/recall/internal/models"
)

// ReviewRepository handles schedule state and review history data access.
type ReviewRepository interface {
	// GetState returns nil, nil when the card does not exist for the tenant.
	GetState(ctx context.Context, tenantID string, cardID int64) (*models.ScheduleState, error)
	// ApplyReview loads the card's state, records it as a history snapshot and
	// stores next(state) in a single transaction. A missing card yields an
	// error wrapping errors.ErrCardNotFound.
	ApplyReview(ctx context.Context, tenantID string, cardID int64, rating models.Rating, at time.Time,
		next func(models.ScheduleState) models.ScheduleState) (*models.ScheduleState, error)
	// Undo restores and deletes the most recently written snapshot; false when
	// there is none. Snapshots are ordered by insertion, not by review time.
	Undo(ctx context.Context, tenantID string, cardID int64) (bool, error)
	// DueCards returns every card due at or before now, OR-filtered by tags.
	DueCards(ctx context.Context, tenantID string, tags []string, now time.Time) ([]models.CardWithState, error)
	// History lists the card's snapshots in the order they were written.
	History(ctx context.Context, tenantID string, cardID int64) ([]models.HistorySnapshot, error)
}
