package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	apperrors "github.com/vytor/recall/internal/errors"
	"github.com/vytor/recall/internal/logger"
	"github.com/vytor/recall/internal/models"
	"github.com/vytor/recall/internal/repository"
)

const stateColumns = "card_id, phase, due, stability, difficulty, elapsed_days, scheduled_days, learning_steps, reps, lapses, last_review"

type reviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new ReviewRepository implementation
func NewReviewRepository(db *sqlx.DB) repository.ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) GetState(ctx context.Context, tenantID string, cardID int64) (*models.ScheduleState, error) {
	log := logger.FromContext(ctx).WithPrefix("review_repo")
	log.Debug("getting schedule state: card_id=%d", cardID)

	state, err := getState(ctx, r.db, tenantID, cardID)
	if err != nil {
		log.Error("failed to get schedule state: %v", err)
	}
	return state, err
}

func (r *reviewRepository) ApplyReview(ctx context.Context, tenantID string, cardID int64, rating models.Rating, at time.Time,
	next func(models.ScheduleState) models.ScheduleState) (*models.ScheduleState, error) {
	log := logger.FromContext(ctx).WithPrefix("review_repo")
	log.Debug("applying review: card_id=%d, rating=%s", cardID, rating)

	var updated models.ScheduleState
	err := tx(ctx, r.db, func(tx *sqlx.Tx) error {
		prev, err := getState(ctx, tx, tenantID, cardID)
		if err != nil {
			return err
		}
		if prev == nil {
			return fmt.Errorf("%w: %d", apperrors.ErrCardNotFound, cardID)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO review_history (card_id, tenant_id, rating, phase, due, stability, difficulty, elapsed_days, scheduled_days, learning_steps, reps, lapses, last_review, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, cardID, tenantID, int(rating), int(prev.Phase), prev.Due.UTC(), prev.Stability, prev.Difficulty, prev.ElapsedDays,
			prev.ScheduledDays, prev.LearningSteps, prev.Reps, prev.Lapses, utcPtr(prev.LastReview), at.UTC()); err != nil {
			return err
		}

		updated = next(*prev)
		updated.CardID = cardID
		return writeState(ctx, tx, tenantID, updated)
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrCardNotFound) {
			log.Debug("review rejected, card not found: card_id=%d", cardID)
		} else {
			log.Error("failed to apply review: %v", err)
		}
		return nil, err
	}
	log.Debug("review applied: card_id=%d, phase=%s, due=%s", cardID, updated.Phase, updated.Due.Format(time.RFC3339))
	return &updated, nil
}

func (r *reviewRepository) Undo(ctx context.Context, tenantID string, cardID int64) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("review_repo")
	log.Debug("undoing last review: card_id=%d", cardID)

	restored := false
	err := tx(ctx, r.db, func(tx *sqlx.Tx) error {
		var snap struct {
			ID int64 `db:"id"`
			models.ScheduleState
		}
		err := tx.GetContext(ctx, &snap, `
SELECT id, `+stateColumns+`
FROM review_history
WHERE tenant_id = ? AND card_id = ?
ORDER BY id DESC
LIMIT 1
`, tenantID, cardID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := writeState(ctx, tx, tenantID, snap.ScheduleState); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM review_history WHERE id = ?`, snap.ID); err != nil {
			return err
		}
		restored = true
		return nil
	})
	if err != nil {
		log.Error("failed to undo review: %v", err)
		return false, err
	}
	log.Debug("undo finished: card_id=%d, restored=%t", cardID, restored)
	return restored, nil
}

func (r *reviewRepository) DueCards(ctx context.Context, tenantID string, tags []string, now time.Time) ([]models.CardWithState, error) {
	log := logger.FromContext(ctx).WithPrefix("review_repo")
	log.Debug("fetching due cards: tags=%v", tags)

	q := sqlBuilder.Select(
		"c.id", "c.tenant_id", "c.instructions", "c.created_at", "s.due",
		"s.phase", "s.stability", "s.difficulty", "s.elapsed_days", "s.scheduled_days",
		"s.learning_steps", "s.reps", "s.lapses", "s.last_review",
	).
		From("cards c").
		Join("schedule_states s ON s.card_id = c.id").
		Where(squirrel.Eq{"c.tenant_id": tenantID}).
		Where(squirrel.LtOrEq{"s.due": now.UTC()})
	if len(tags) > 0 {
		q = q.Where(taggedWith("c.id", tenantID, tags))
	}
	query, args, err := q.OrderBy("s.due", "c.id").ToSql()
	if err != nil {
		return nil, err
	}

	var rows []struct {
		models.Card
		Phase         models.Phase `db:"phase"`
		Stability     float64      `db:"stability"`
		Difficulty    float64      `db:"difficulty"`
		ElapsedDays   int          `db:"elapsed_days"`
		ScheduledDays int          `db:"scheduled_days"`
		LearningSteps int          `db:"learning_steps"`
		Reps          int          `db:"reps"`
		Lapses        int          `db:"lapses"`
		LastReview    *time.Time   `db:"last_review"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		log.Error("failed to query due cards: %v", err)
		return nil, err
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	tagMap, err := loadTags(ctx, r.db, tenantID, ids)
	if err != nil {
		log.Error("failed to load tags: %v", err)
		return nil, err
	}

	out := make([]models.CardWithState, len(rows))
	for i, row := range rows {
		card := row.Card
		card.Tags = nonNil(tagMap[card.ID])
		out[i] = models.CardWithState{
			Card: card,
			State: models.ScheduleState{
				CardID:        card.ID,
				Phase:         row.Phase,
				Due:           card.Due,
				Stability:     row.Stability,
				Difficulty:    row.Difficulty,
				ElapsedDays:   row.ElapsedDays,
				ScheduledDays: row.ScheduledDays,
				LearningSteps: row.LearningSteps,
				Reps:          row.Reps,
				Lapses:        row.Lapses,
				LastReview:    row.LastReview,
			},
		}
	}
	log.Debug("found %d due cards", len(out))
	return out, nil
}

func (r *reviewRepository) History(ctx context.Context, tenantID string, cardID int64) ([]models.HistorySnapshot, error) {
	log := logger.FromContext(ctx).WithPrefix("review_repo")
	log.Debug("listing review history: card_id=%d", cardID)

	var rows []struct {
		ID        int64         `db:"id"`
		TenantID  string        `db:"tenant_id"`
		Rating    int           `db:"rating"`
		CreatedAt time.Time     `db:"created_at"`
		models.ScheduleState
	}
	err := r.db.SelectContext(ctx, &rows, `
SELECT id, tenant_id, rating, created_at, `+stateColumns+`
FROM review_history
WHERE tenant_id = ? AND card_id = ?
ORDER BY id ASC
`, tenantID, cardID)
	if err != nil {
		log.Error("failed to list review history: %v", err)
		return nil, err
	}

	out := make([]models.HistorySnapshot, len(rows))
	for i, row := range rows {
		out[i] = models.HistorySnapshot{
			ID:        row.ID,
			CardID:    row.CardID,
			TenantID:  row.TenantID,
			Rating:    models.Rating(row.Rating),
			State:     row.ScheduleState,
			CreatedAt: row.CreatedAt,
		}
	}
	return out, nil
}

func getState(ctx context.Context, q sqlx.QueryerContext, tenantID string, cardID int64) (*models.ScheduleState, error) {
	var s models.ScheduleState
	err := sqlx.GetContext(ctx, q, &s, `
SELECT `+stateColumns+`
FROM schedule_states
WHERE tenant_id = ? AND card_id = ?
`, tenantID, cardID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func writeState(ctx context.Context, tx *sqlx.Tx, tenantID string, s models.ScheduleState) error {
	_, err := tx.ExecContext(ctx, `
UPDATE schedule_states
SET phase = ?, due = ?, stability = ?, difficulty = ?, elapsed_days = ?, scheduled_days = ?,
    learning_steps = ?, reps = ?, lapses = ?, last_review = ?
WHERE tenant_id = ? AND card_id = ?
`, int(s.Phase), s.Due.UTC(), s.Stability, s.Difficulty, s.ElapsedDays, s.ScheduledDays,
		s.LearningSteps, s.Reps, s.Lapses, utcPtr(s.LastReview), tenantID, s.CardID)
	return err
}
