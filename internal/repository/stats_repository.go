package repository

import (
	"context"
	"time"

	"github.com/vytor/recall/internal/models"
)

// StatsRepository handles the aggregate reads behind tenant statistics.
// Tag arguments filter with OR semantics; nil means no filter.
type StatsRepository interface {
	CountCards(ctx context.Context, tenantID string, tags []string) (int, error)
	CountDue(ctx context.Context, tenantID string, tags []string, now time.Time) (int, error)
	CountReviewedCardsSince(ctx context.Context, tenantID string, since, until time.Time) (int, error)
	CountReviews(ctx context.Context, tenantID string) (int, error)
	// ReviewTimes returns the creation time of every snapshot, oldest first.
	ReviewTimes(ctx context.Context, tenantID string) ([]time.Time, error)
	TagCounts(ctx context.Context, tenantID string, now time.Time) ([]models.TagCount, error)
	PhaseCounts(ctx context.Context, tenantID string, tags []string) (map[models.Phase]int, error)
	// ReviewedStates returns the states of cards reviewed at least once.
	ReviewedStates(ctx context.Context, tenantID string, tags []string) ([]models.ScheduleState, error)
}
