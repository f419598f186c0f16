// Package srs computes the next schedule state of a card from its current
// state, a rating and the review time. It does no I/O; configuration is an
// explicit value so several schedulers can coexist.
package srs

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/vytor/recall/internal/models"
)

const day = 24 * time.Hour

// Config configures a Scheduler. Zero values select defaults.
type Config struct {
	Parameters       [21]float64     // zero -> DefaultParameters
	DesiredRetention float64         // zero -> 0.9
	LearningSteps    []time.Duration // nil -> [1m, 10m]; empty -> graduate on first pass
	RelearningSteps  []time.Duration // nil -> [10m]; empty -> due again immediately
	MaximumInterval  int             // zero -> 36500 days
	EnableFuzz       bool
	FuzzSeed         int64
}

// Scheduler is safe for concurrent use: it holds no mutable state.
type Scheduler struct {
	model            model
	desiredRetention float64
	learningSteps    []time.Duration
	relearningSteps  []time.Duration
	maximumInterval  int
	fuzz             bool
	seed             int64
}

// Outcome is the preview of one rating.
type Outcome struct {
	State        models.ScheduleState
	IntervalDays int
}

// New validates cfg and builds a Scheduler.
func New(cfg Config) (*Scheduler, error) {
	params := cfg.Parameters
	if params == [21]float64{} {
		params = DefaultParameters
	}
	if err := ValidateParameters(params); err != nil {
		return nil, err
	}

	retention := cfg.DesiredRetention
	if retention == 0 {
		retention = 0.9
	}
	if retention <= 0 || retention > 1 {
		return nil, fmt.Errorf("srs: desired retention %g outside (0, 1]", retention)
	}

	maxIvl := cfg.MaximumInterval
	if maxIvl == 0 {
		maxIvl = 36500
	}
	if maxIvl < 1 {
		return nil, fmt.Errorf("srs: maximum interval %d must be positive", maxIvl)
	}

	learning := cfg.LearningSteps
	if learning == nil {
		learning = []time.Duration{time.Minute, 10 * time.Minute}
	}
	relearning := cfg.RelearningSteps
	if relearning == nil {
		relearning = []time.Duration{10 * time.Minute}
	}
	for _, steps := range [][]time.Duration{learning, relearning} {
		for _, st := range steps {
			if st <= 0 {
				return nil, fmt.Errorf("srs: step %s must be positive", st)
			}
		}
	}

	return &Scheduler{
		model:            newModel(params),
		desiredRetention: retention,
		learningSteps:    append([]time.Duration(nil), learning...),
		relearningSteps:  append([]time.Duration(nil), relearning...),
		maximumInterval:  maxIvl,
		fuzz:             cfg.EnableFuzz,
		seed:             cfg.FuzzSeed,
	}, nil
}

// MustNew is New for configurations known to be valid.
func MustNew(cfg Config) *Scheduler {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// Review applies rating at now. The input state is not modified. Ratings
// outside the four grades are clamped, so Review never fails.
func (s *Scheduler) Review(state models.ScheduleState, rating models.Rating, now time.Time) (models.ScheduleState, int) {
	rating = clampRating(rating)
	next := state.Clone()

	var elapsed float64
	if state.LastReview != nil {
		elapsed = math.Max(now.Sub(*state.LastReview).Hours()/24, 0)
	}
	next.ElapsedDays = int(elapsed)

	var interval time.Duration
	inSteps := next.Phase == models.PhaseNew || next.Phase == models.PhaseLearning || next.Phase == models.PhaseRelearning
	if !inSteps && rating != models.RatingAgain {
		// Interval ordering needs every grade's stability from the pre-review state.
		interval = s.reviewInterval(state, rating, elapsed)
	}
	s.updateMemory(&next, rating, elapsed)

	switch next.Phase {
	case models.PhaseNew:
		next.Phase = models.PhaseLearning
		next.LearningSteps = 0
		interval = s.stepTransition(&next, rating, s.learningSteps)
	case models.PhaseLearning:
		interval = s.stepTransition(&next, rating, s.learningSteps)
	case models.PhaseRelearning:
		interval = s.stepTransition(&next, rating, s.relearningSteps)
	default:
		next.Phase = models.PhaseReviewing
		interval = s.reviewTransition(&next, rating, interval)
	}

	if s.fuzz && next.Phase == models.PhaseReviewing && interval >= day {
		rng := rand.New(rand.NewSource(s.seed ^ now.UnixNano() ^ int64(state.Reps)<<32))
		interval = time.Duration(fuzzDays(int(interval/day), s.maximumInterval, rng)) * day
	}

	next.ScheduledDays = int(interval / day)
	next.Due = now.Add(interval)
	next.Reps++
	reviewed := now
	next.LastReview = &reviewed

	return next, IntervalDays(next.Due, now)
}

// Preview returns what each rating would produce at now.
func (s *Scheduler) Preview(state models.ScheduleState, now time.Time) map[models.Rating]Outcome {
	out := make(map[models.Rating]Outcome, len(models.Ratings))
	for _, r := range models.Ratings {
		st, days := s.Review(state, r, now)
		out[r] = Outcome{State: st, IntervalDays: days}
	}
	return out
}

// Retrievability estimates the probability of recall at now. Cards that
// were never reviewed have nothing to recall and report 0.
func (s *Scheduler) Retrievability(state models.ScheduleState, now time.Time) float64 {
	if state.LastReview == nil || state.Stability <= 0 {
		return 0
	}
	elapsed := math.Max(now.Sub(*state.LastReview).Hours()/24, 0)
	return s.model.retrievability(elapsed, state.Stability)
}

// IntervalDays rounds due-now to whole days, never below zero.
func IntervalDays(due, now time.Time) int {
	days := int(math.Round(due.Sub(now).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

func (s *Scheduler) updateMemory(st *models.ScheduleState, rating models.Rating, elapsed float64) {
	if st.Phase == models.PhaseNew || st.Stability <= 0 {
		st.Stability = s.model.initialStability(rating)
		st.Difficulty = s.model.initialDifficulty(rating, true)
		return
	}

	if elapsed < 1 {
		st.Stability = s.model.sameDayStability(st.Stability, rating)
	} else {
		r := s.model.retrievability(elapsed, st.Stability)
		st.Stability = s.model.nextStability(st.Difficulty, st.Stability, r, rating)
	}
	st.Difficulty = s.model.nextDifficulty(st.Difficulty, rating)
}

// stepTransition drives the Learning and Relearning micro-steps.
func (s *Scheduler) stepTransition(st *models.ScheduleState, rating models.Rating, steps []time.Duration) time.Duration {
	if rating == models.RatingAgain {
		st.LearningSteps = 0
		if len(steps) == 0 {
			return 0
		}
		return steps[0]
	}

	step := st.LearningSteps
	if len(steps) == 0 || step >= len(steps) {
		return s.graduate(st)
	}

	switch rating {
	case models.RatingHard:
		if step == 0 && len(steps) == 1 {
			return steps[0] * 3 / 2
		}
		if step == 0 {
			return (steps[0] + steps[1]) / 2
		}
		return steps[step]
	case models.RatingGood:
		if step+1 >= len(steps) {
			return s.graduate(st)
		}
		st.LearningSteps = step + 1
		return steps[step+1]
	default:
		return s.graduate(st)
	}
}

func (s *Scheduler) reviewTransition(st *models.ScheduleState, rating models.Rating, interval time.Duration) time.Duration {
	if rating == models.RatingAgain {
		st.Lapses++
		st.Phase = models.PhaseRelearning
		st.LearningSteps = 0
		if len(s.relearningSteps) == 0 {
			return 0
		}
		return s.relearningSteps[0]
	}
	return interval
}

// reviewInterval rounds the Hard, Good and Easy intervals of a Reviewing card
// and forces hard < good < easy below the maximum interval.
func (s *Scheduler) reviewInterval(prev models.ScheduleState, rating models.Rating, elapsed float64) time.Duration {
	var days [models.RatingEasy + 1]int
	for _, r := range []models.Rating{models.RatingHard, models.RatingGood, models.RatingEasy} {
		st := prev.Clone()
		s.updateMemory(&st, r, elapsed)
		days[r] = s.model.intervalDays(st.Stability, s.desiredRetention, s.maximumInterval)
	}

	hard := min(days[models.RatingHard], days[models.RatingGood])
	good := min(max(days[models.RatingGood], hard+1), s.maximumInterval)
	easy := min(max(days[models.RatingEasy], good+1), s.maximumInterval)

	switch rating {
	case models.RatingHard:
		return time.Duration(hard) * day
	case models.RatingGood:
		return time.Duration(good) * day
	default:
		return time.Duration(easy) * day
	}
}

func (s *Scheduler) graduate(st *models.ScheduleState) time.Duration {
	st.Phase = models.PhaseReviewing
	st.LearningSteps = 0
	return s.longInterval(st)
}

func (s *Scheduler) longInterval(st *models.ScheduleState) time.Duration {
	days := s.model.intervalDays(st.Stability, s.desiredRetention, s.maximumInterval)
	return time.Duration(days) * day
}

func clampRating(r models.Rating) models.Rating {
	if r < models.RatingAgain {
		return models.RatingAgain
	}
	if r > models.RatingEasy {
		return models.RatingEasy
	}
	return r
}
