package sqlite

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/vytor/recall/internal/logger"
	"github.com/vytor/recall/internal/models"
	"github.com/vytor/recall/internal/repository"
)

type statsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository creates a new StatsRepository implementation
func NewStatsRepository(db *sqlx.DB) repository.StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) CountCards(ctx context.Context, tenantID string, tags []string) (int, error) {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")
	log.Debug("counting cards: tags=%v", tags)

	q := sqlBuilder.Select("COUNT(*)").From("cards c").Where(squirrel.Eq{"c.tenant_id": tenantID})
	if len(tags) > 0 {
		q = q.Where(taggedWith("c.id", tenantID, tags))
	}
	count, err := r.count(ctx, q)
	if err != nil {
		log.Error("failed to count cards: %v", err)
	}
	return count, err
}

func (r *statsRepository) CountDue(ctx context.Context, tenantID string, tags []string, now time.Time) (int, error) {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")
	log.Debug("counting due cards: tags=%v", tags)

	q := sqlBuilder.Select("COUNT(*)").From("schedule_states s").
		Where(squirrel.Eq{"s.tenant_id": tenantID}).
		Where(squirrel.LtOrEq{"s.due": now.UTC()})
	if len(tags) > 0 {
		q = q.Where(taggedWith("s.card_id", tenantID, tags))
	}
	count, err := r.count(ctx, q)
	if err != nil {
		log.Error("failed to count due cards: %v", err)
	}
	return count, err
}

func (r *statsRepository) CountReviewedCardsSince(ctx context.Context, tenantID string, since, until time.Time) (int, error) {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")
	log.Debug("counting reviewed cards between %s and %s", since.Format(time.RFC3339), until.Format(time.RFC3339))

	q := sqlBuilder.Select("COUNT(DISTINCT card_id)").From("review_history").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		Where(squirrel.Gt{"created_at": since.UTC()}).
		Where(squirrel.LtOrEq{"created_at": until.UTC()})
	count, err := r.count(ctx, q)
	if err != nil {
		log.Error("failed to count reviewed cards: %v", err)
	}
	return count, err
}

func (r *statsRepository) CountReviews(ctx context.Context, tenantID string) (int, error) {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")
	log.Debug("counting reviews")

	count, err := r.count(ctx, sqlBuilder.Select("COUNT(*)").From("review_history").Where(squirrel.Eq{"tenant_id": tenantID}))
	if err != nil {
		log.Error("failed to count reviews: %v", err)
	}
	return count, err
}

func (r *statsRepository) ReviewTimes(ctx context.Context, tenantID string) ([]time.Time, error) {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")
	log.Debug("fetching review times")

	times := []time.Time{}
	err := r.db.SelectContext(ctx, &times, `
SELECT created_at
FROM review_history
WHERE tenant_id = ?
ORDER BY created_at ASC
`, tenantID)
	if err != nil {
		log.Error("failed to fetch review times: %v", err)
		return nil, err
	}
	log.Debug("found %d review times", len(times))
	return times, nil
}

func (r *statsRepository) TagCounts(ctx context.Context, tenantID string, now time.Time) ([]models.TagCount, error) {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")
	log.Debug("fetching tag counts")

	query, args, err := sqlBuilder.Select("t.label", "COUNT(*) AS total").
		Column(squirrel.Expr("COALESCE(SUM(CASE WHEN s.due <= ? THEN 1 ELSE 0 END), 0) AS due", now.UTC())).
		From("card_tags t").
		Join("schedule_states s ON s.card_id = t.card_id").
		Where(squirrel.Eq{"t.tenant_id": tenantID}).
		GroupBy("t.label").
		OrderBy("t.label").
		ToSql()
	if err != nil {
		return nil, err
	}

	counts := []models.TagCount{}
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		log.Error("failed to fetch tag counts: %v", err)
		return nil, err
	}
	log.Debug("found %d tags", len(counts))
	return counts, nil
}

func (r *statsRepository) PhaseCounts(ctx context.Context, tenantID string, tags []string) (map[models.Phase]int, error) {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")
	log.Debug("fetching phase counts: tags=%v", tags)

	q := sqlBuilder.Select("s.phase", "COUNT(*) AS total").From("schedule_states s").
		Where(squirrel.Eq{"s.tenant_id": tenantID}).
		GroupBy("s.phase")
	if len(tags) > 0 {
		q = q.Where(taggedWith("s.card_id", tenantID, tags))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Phase models.Phase `db:"phase"`
		Total int          `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		log.Error("failed to fetch phase counts: %v", err)
		return nil, err
	}
	out := make(map[models.Phase]int, len(rows))
	for _, row := range rows {
		out[row.Phase] = row.Total
	}
	return out, nil
}

func (r *statsRepository) ReviewedStates(ctx context.Context, tenantID string, tags []string) ([]models.ScheduleState, error) {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")
	log.Debug("fetching reviewed states: tags=%v", tags)

	q := sqlBuilder.Select("s.card_id", "s.phase", "s.due", "s.stability", "s.difficulty", "s.elapsed_days",
		"s.scheduled_days", "s.learning_steps", "s.reps", "s.lapses", "s.last_review").
		From("schedule_states s").
		Where(squirrel.Eq{"s.tenant_id": tenantID}).
		Where(squirrel.NotEq{"s.last_review": nil})
	if len(tags) > 0 {
		q = q.Where(taggedWith("s.card_id", tenantID, tags))
	}
	query, args, err := q.OrderBy("s.card_id").ToSql()
	if err != nil {
		return nil, err
	}

	states := []models.ScheduleState{}
	if err := r.db.SelectContext(ctx, &states, query, args...); err != nil {
		log.Error("failed to fetch reviewed states: %v", err)
		return nil, err
	}
	return states, nil
}

func (r *statsRepository) count(ctx context.Context, q squirrel.SelectBuilder) (int, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.GetContext(ctx, &n, query, args...)
	return n, err
}
