package models

// TagStat is the per-tag rollup of the stats overview.
type TagStat struct {
	Total int `json:"total"`
	Due   int `json:"due"`
}

// TagCount is a tag row as aggregated by the store.
type TagCount struct {
	Label string `db:"label"`
	Total int    `db:"total"`
	Due   int    `db:"due"`
}

// Stats is the aggregate view for one tenant.
type Stats struct {
	DueToday              int                `json:"due_today"`
	Total                 int                `json:"total"`
	CardsReviewedLast24h  int                `json:"cards_reviewed_last_24h"`
	CurrentStreak         int                `json:"current_streak"`
	LongestStreak         int                `json:"longest_streak"`
	TotalReviews          int                `json:"total_reviews"`
	ByTag                 map[string]TagStat `json:"by_tag,omitempty"`
	PhaseCounts           map[string]int     `json:"phase_counts"`
	AverageRetrievability float64            `json:"average_retrievability"`
}
