package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/vytor/recall/internal/logger"
	"github.com/vytor/recall/internal/models"
	"github.com/vytor/recall/internal/repository"
)

type cardRepository struct {
	db *sqlx.DB
}

// NewCardRepository creates a new CardRepository implementation
func NewCardRepository(db *sqlx.DB) repository.CardRepository {
	return &cardRepository{db: db}
}

func (r *cardRepository) Create(ctx context.Context, card models.Card, initial models.ScheduleState) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("creating card: tags=%d", len(card.Tags))

	var id int64
	err := tx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO cards (tenant_id, instructions, created_at)
VALUES (?, ?, ?)
`, card.TenantID, card.Instructions, card.CreatedAt.UTC())
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		if err := insertTags(ctx, tx, id, card.TenantID, card.Tags); err != nil {
			return err
		}
		initial.CardID = id
		return insertState(ctx, tx, card.TenantID, initial)
	})
	if err != nil {
		log.Error("failed to create card: %v", err)
		return 0, err
	}
	log.Debug("card created: id=%d", id)
	return id, nil
}

func (r *cardRepository) Get(ctx context.Context, tenantID string, id int64) (*models.Card, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("getting card: id=%d", id)

	query, args, err := cardSelect().
		Where(squirrel.Eq{"c.tenant_id": tenantID, "c.id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var c models.Card
	if err := r.db.GetContext(ctx, &c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("card not found: id=%d", id)
			return nil, nil
		}
		log.Error("failed to get card: %v", err)
		return nil, err
	}
	tags, err := loadTags(ctx, r.db, tenantID, []int64{id})
	if err != nil {
		log.Error("failed to load tags: %v", err)
		return nil, err
	}
	c.Tags = nonNil(tags[id])
	return &c, nil
}

func (r *cardRepository) Update(ctx context.Context, tenantID string, id int64, edit models.CardEdit) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("updating card: id=%d, instructions=%t, tags=%t", id, edit.Instructions != nil, edit.Tags != nil)

	found := false
	err := tx(ctx, r.db, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM cards WHERE tenant_id = ? AND id = ?`, tenantID, id); err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		found = true

		if edit.Instructions != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE cards SET instructions = ? WHERE tenant_id = ? AND id = ?`,
				*edit.Instructions, tenantID, id); err != nil {
				return err
			}
		}
		if edit.Tags != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM card_tags WHERE tenant_id = ? AND card_id = ?`, tenantID, id); err != nil {
				return err
			}
			return insertTags(ctx, tx, id, tenantID, *edit.Tags)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to update card: %v", err)
		return false, err
	}
	log.Debug("card update finished: id=%d, found=%t", id, found)
	return found, nil
}

func (r *cardRepository) Delete(ctx context.Context, tenantID string, id int64) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("deleting card: id=%d", id)

	res, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		log.Error("failed to delete card: %v", err)
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	log.Debug("card deleted: id=%d, rows=%d", id, n)
	return n > 0, nil
}

func (r *cardRepository) List(ctx context.Context, filter models.CardFilter) ([]models.Card, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("listing cards: tags=%v", filter.Tags)

	return r.query(ctx, filter, cardSelect().Where(squirrel.Eq{"c.tenant_id": filter.TenantID}))
}

func (r *cardRepository) Search(ctx context.Context, filter models.CardFilter) ([]models.Card, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("searching cards: query=%q, tags=%v", filter.Query, filter.Tags)

	if ftsQuery(filter.Query) == "" {
		return []models.Card{}, nil
	}
	return r.query(ctx, filter, cardSelect().
		Where(squirrel.Eq{"c.tenant_id": filter.TenantID}).
		Where(matching("c.id", filter.Query)))
}

func (r *cardRepository) query(ctx context.Context, filter models.CardFilter, q squirrel.SelectBuilder) ([]models.Card, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")

	if len(filter.Tags) > 0 {
		q = q.Where(taggedWith("c.id", filter.TenantID, filter.Tags))
	}
	query, args, err := q.OrderBy("c.id").ToSql()
	if err != nil {
		log.Error("failed to build card query: %v", err)
		return nil, err
	}

	cards := []models.Card{}
	if err := r.db.SelectContext(ctx, &cards, query, args...); err != nil {
		log.Error("failed to query cards: %v", err)
		return nil, err
	}

	ids := make([]int64, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	tags, err := loadTags(ctx, r.db, filter.TenantID, ids)
	if err != nil {
		log.Error("failed to load tags: %v", err)
		return nil, err
	}
	for i := range cards {
		cards[i].Tags = nonNil(tags[cards[i].ID])
	}
	log.Debug("found %d cards", len(cards))
	return cards, nil
}

func cardSelect() squirrel.SelectBuilder {
	return sqlBuilder.Select("c.id", "c.tenant_id", "c.instructions", "c.created_at", "s.due").
		From("cards c").
		Join("schedule_states s ON s.card_id = c.id")
}

func insertState(ctx context.Context, tx *sqlx.Tx, tenantID string, s models.ScheduleState) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO schedule_states (card_id, tenant_id, phase, due, stability, difficulty, elapsed_days, scheduled_days, learning_steps, reps, lapses, last_review)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, s.CardID, tenantID, int(s.Phase), s.Due.UTC(), s.Stability, s.Difficulty, s.ElapsedDays, s.ScheduledDays,
		s.LearningSteps, s.Reps, s.Lapses, utcPtr(s.LastReview))
	return err
}
