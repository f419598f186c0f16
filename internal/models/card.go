package models

import "time"

// Card is a tenant-owned instruction card. Due is joined from the card's
// schedule state; Tags are loaded separately.
type Card struct {
	ID           int64     `db:"id" json:"id"`
	TenantID     string    `db:"tenant_id" json:"-"`
	Instructions string    `db:"instructions" json:"instructions"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	Due          time.Time `db:"due" json:"-"`
	Tags         []string  `db:"-" json:"tags"`
}

// CardView is the caller-facing card shape. Due is "today", "tomorrow" or a YYYY-MM-DD date.
type CardView struct {
	ID           int64     `json:"id"`
	Instructions string    `json:"instructions"`
	Tags         []string  `json:"tags"`
	Due          string    `json:"due"`
	CreatedAt    time.Time `json:"created_at"`
}

// CardFilter scopes card queries. Tags use OR semantics.
type CardFilter struct {
	TenantID string
	Tags     []string
	Query    string
}

// CardInput is the payload for creating a card.
type CardInput struct {
	Instructions string   `json:"instructions" validate:"required"`
	Tags         []string `json:"tags"`
}

// CardEdit holds the optional fields of an edit. A nil Tags leaves tags alone,
// a non-nil (even empty) Tags replaces all of them.
type CardEdit struct {
	Instructions *string   `json:"instructions,omitempty"`
	Tags         *[]string `json:"tags,omitempty"`
}

// CardEditItem is one element of a batch edit.
type CardEditItem struct {
	CardID int64 `json:"card_id" validate:"required"`
	CardEdit
}

// CardRef identifies a card in batch results.
type CardRef struct {
	CardID int64 `json:"card_id"`
}

// SearchResult is one query's output in a batch search.
type SearchResult struct {
	Query string     `json:"query"`
	Cards []CardView `json:"cards"`
}

// SearchQuery is one element of a batch search.
type SearchQuery struct {
	Query string   `json:"query" validate:"required"`
	Tags  []string `json:"tags"`
}
