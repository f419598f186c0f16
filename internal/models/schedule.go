package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vytor/recall/internal/errors"
)

// Phase is the coarse memory-state bucket of a card.
type Phase int

const (
	PhaseNew Phase = iota
	PhaseLearning
	PhaseReviewing
	PhaseRelearning
)

var phaseNames = [...]string{
	PhaseNew:        "new",
	PhaseLearning:   "learning",
	PhaseReviewing:  "reviewing",
	PhaseRelearning: "relearning",
}

func (p Phase) String() string {
	if p >= PhaseNew && p <= PhaseRelearning {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid phase: %s", data)
	}
	for i, name := range phaseNames {
		if name == strings.ToLower(s) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("invalid phase: %q", s)
}

// Rating is the caller's self-assessment of a review, ordered worst to best.
type Rating int

const (
	RatingAgain Rating = iota + 1
	RatingHard
	RatingGood
	RatingEasy
)

// Ratings lists every valid grade from worst to best.
var Ratings = []Rating{RatingAgain, RatingHard, RatingGood, RatingEasy}

var ratingNames = [...]string{
	RatingAgain: "again",
	RatingHard:  "hard",
	RatingGood:  "good",
	RatingEasy:  "easy",
}

// IsValid reports whether r is one of the four grades.
func (r Rating) IsValid() bool {
	return r >= RatingAgain && r <= RatingEasy
}

func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// ParseRating accepts a grade name (case-insensitive) or its number 1..4.
func ParseRating(s string) (Rating, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		r := Rating(n)
		if r.IsValid() {
			return r, nil
		}
		return 0, fmt.Errorf("%w: %d", errors.ErrInvalidRating, n)
	}
	for _, r := range Ratings {
		if ratingNames[r] == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", errors.ErrInvalidRating, s)
}

func (r Rating) MarshalJSON() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", errors.ErrInvalidRating, int(r))
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts either a JSON string ("good", "3") or a JSON number.
func (r *Rating) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("%w: %s", errors.ErrInvalidRating, data)
		}
		s = strconv.Itoa(n)
	}
	v, err := ParseRating(s)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ScheduleState is the current memory model of one card.
type ScheduleState struct {
	CardID        int64      `db:"card_id" json:"card_id"`
	Phase         Phase      `db:"phase" json:"phase"`
	Due           time.Time  `db:"due" json:"due"`
	Stability     float64    `db:"stability" json:"stability"`
	Difficulty    float64    `db:"difficulty" json:"difficulty"`
	ElapsedDays   int        `db:"elapsed_days" json:"elapsed_days"`
	ScheduledDays int        `db:"scheduled_days" json:"scheduled_days"`
	LearningSteps int        `db:"learning_steps" json:"learning_steps"`
	Reps          int        `db:"reps" json:"reps"`
	Lapses        int        `db:"lapses" json:"lapses"`
	LastReview    *time.Time `db:"last_review" json:"last_review,omitempty"`
}

// NewScheduleState is the state of a freshly created card: New and due at now.
func NewScheduleState(now time.Time) ScheduleState {
	return ScheduleState{Phase: PhaseNew, Due: now}
}

// Clone returns a copy that shares no pointers with s.
func (s ScheduleState) Clone() ScheduleState {
	out := s
	if s.LastReview != nil {
		t := *s.LastReview
		out.LastReview = &t
	}
	return out
}

// HistorySnapshot is the immutable pre-review copy of a card's state.
type HistorySnapshot struct {
	ID        int64         `json:"id"`
	CardID    int64         `json:"card_id"`
	TenantID  string        `json:"-"`
	Rating    Rating        `json:"rating"`
	State     ScheduleState `json:"state"`
	CreatedAt time.Time     `json:"created_at"`
}

// ReviewItem is one element of a batch review.
type ReviewItem struct {
	CardID int64  `json:"card_id"`
	Rating Rating `json:"rating"`
}

// ReviewResult is returned after a review has been applied.
type ReviewResult struct {
	NextReviewDate string    `json:"next_review_date"`
	NextReviewAt   time.Time `json:"next_review_at"`
	IntervalDays   int       `json:"interval_days"`
	Phase          Phase     `json:"phase"`
}

// ReviewItemResult pairs a batch review's card with its outcome.
type ReviewItemResult struct {
	CardID int64 `json:"card_id"`
	ReviewResult
}

// CardWithState is a card joined with its full schedule state.
type CardWithState struct {
	Card
	State ScheduleState
}

// DueCard is a card ready for review, ranked by Retrievability (lowest first).
type DueCard struct {
	CardView
	Phase          Phase   `json:"phase"`
	Retrievability float64 `json:"retrievability"`
	dueAt          time.Time
}

// DueAt returns the exact due timestamp used for tie-breaking.
func (d DueCard) DueAt() time.Time {
	return d.dueAt
}

// NewDueCard builds a DueCard from its view and state.
func NewDueCard(view CardView, state ScheduleState, retrievability float64) DueCard {
	return DueCard{CardView: view, Phase: state.Phase, Retrievability: retrievability, dueAt: state.Due}
}
