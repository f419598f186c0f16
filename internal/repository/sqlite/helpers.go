package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/vytor/recall/internal/logger"
)

var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

// Helper functions shared across repository implementations

func tx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	log := logger.FromContext(ctx).WithPrefix("repo")
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction: %v", err)
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		log.Debug("transaction rolled back due to error: %v", err)
		return err
	}
	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction: %v", err)
		return err
	}
	log.Debug("transaction committed")
	return nil
}

// taggedWith restricts column to cards carrying any of tags.
func taggedWith(column, tenantID string, tags []string) squirrel.Sqlizer {
	sub := sqlBuilder.Select("card_id").From("card_tags").
		Where(squirrel.Eq{"tenant_id": tenantID, "label": tags})
	sql, args, err := sub.ToSql()
	if err != nil {
		return squirrel.Expr("0")
	}
	return squirrel.Expr(column+" IN ("+sql+")", args...)
}

// matching restricts column to cards whose instructions match query.
func matching(column, query string) squirrel.Sqlizer {
	return squirrel.Expr(column+" IN (SELECT docid FROM cards_fts WHERE cards_fts MATCH ?)", ftsQuery(query))
}

// ftsQuery quotes every term so user input is never parsed as FTS syntax;
// terms are implicitly ANDed.
func ftsQuery(query string) string {
	words := strings.Fields(query)
	out := words[:0]
	for _, w := range words {
		w = strings.ReplaceAll(w, `"`, "")
		if w == "" {
			continue
		}
		out = append(out, `"`+w+`"`)
	}
	return strings.Join(out, " ")
}

// loadTags fills the Tags of every card with one query.
func loadTags(ctx context.Context, q sqlx.QueryerContext, tenantID string, ids []int64) (map[int64][]string, error) {
	tags := make(map[int64][]string, len(ids))
	if len(ids) == 0 {
		return tags, nil
	}
	query, args, err := sqlBuilder.Select("card_id", "label").From("card_tags").
		Where(squirrel.Eq{"tenant_id": tenantID, "card_id": ids}).
		OrderBy("card_id", "label").
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []struct {
		CardID int64  `db:"card_id"`
		Label  string `db:"label"`
	}
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, err
	}
	for _, r := range rows {
		tags[r.CardID] = append(tags[r.CardID], r.Label)
	}
	return tags, nil
}

func insertTags(ctx context.Context, tx *sqlx.Tx, cardID int64, tenantID string, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	insert := sqlBuilder.Insert("card_tags").Options("OR IGNORE").Columns("card_id", "tenant_id", "label")
	for _, l := range labels {
		insert = insert.Values(cardID, tenantID, l)
	}
	query, args, err := insert.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// utcPtr keeps stored timestamps in one offset so they compare as text.
func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
