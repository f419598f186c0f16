package services

import (
	"context"
	"time"

	"github.com/vytor/recall/internal/errors"
	"github.com/vytor/recall/internal/logger"
	"github.com/vytor/recall/internal/models"
	"github.com/vytor/recall/internal/repository"
)

// StatsService handles statistics-related business logic
type StatsService interface {
	GetStats(ctx context.Context, tenantID string, tags []string, now time.Time) (*models.Stats, error)
}

type statsService struct {
	statsRepo repository.StatsRepository
	scheduler Scheduler
	opts      options
}

// NewStatsService creates a new StatsService
func NewStatsService(statsRepo repository.StatsRepository, scheduler Scheduler, opts ...Option) StatsService {
	return &statsService{statsRepo: statsRepo, scheduler: scheduler, opts: newOptions(opts)}
}

func (s *statsService) GetStats(ctx context.Context, tenantID string, tags []string, now time.Time) (*models.Stats, error) {
	log := logger.FromContext(ctx).WithPrefix("stats_service").WithTenant(tenantID)
	log.Debug("getting stats: tags=%v", tags)

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	labels, err := normalizeTags(tags)
	if err != nil {
		return nil, err
	}

	var stats models.Stats
	if stats.Total, err = s.statsRepo.CountCards(ctx, tenantID, labels); err != nil {
		log.Error("failed to count cards: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if stats.DueToday, err = s.statsRepo.CountDue(ctx, tenantID, labels, now); err != nil {
		log.Error("failed to count due cards: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if stats.CardsReviewedLast24h, err = s.statsRepo.CountReviewedCardsSince(ctx, tenantID, now.Add(-24*time.Hour), now); err != nil {
		log.Error("failed to count reviewed cards: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if stats.TotalReviews, err = s.statsRepo.CountReviews(ctx, tenantID); err != nil {
		log.Error("failed to count reviews: %v", err)
		return nil, errors.NewInternalError(err)
	}

	times, err := s.statsRepo.ReviewTimes(ctx, tenantID)
	if err != nil {
		log.Error("failed to load review times: %v", err)
		return nil, errors.NewInternalError(err)
	}
	days := activeDays(times, now, s.opts.loc)
	stats.CurrentStreak = currentStreak(days, now, s.opts.loc, s.opts.streakGrace)
	stats.LongestStreak = longestStreak(days)

	if len(labels) == 0 {
		counts, err := s.statsRepo.TagCounts(ctx, tenantID, now)
		if err != nil {
			log.Error("failed to load tag counts: %v", err)
			return nil, errors.NewInternalError(err)
		}
		stats.ByTag = make(map[string]models.TagStat, len(counts))
		for _, c := range counts {
			stats.ByTag[c.Label] = models.TagStat{Total: c.Total, Due: c.Due}
		}
	}

	phases, err := s.statsRepo.PhaseCounts(ctx, tenantID, labels)
	if err != nil {
		log.Error("failed to load phase counts: %v", err)
		return nil, errors.NewInternalError(err)
	}
	stats.PhaseCounts = make(map[string]int, 4)
	for _, p := range []models.Phase{models.PhaseNew, models.PhaseLearning, models.PhaseReviewing, models.PhaseRelearning} {
		stats.PhaseCounts[p.String()] = phases[p]
	}

	states, err := s.statsRepo.ReviewedStates(ctx, tenantID, labels)
	if err != nil {
		log.Error("failed to load reviewed states: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if len(states) > 0 {
		var sum float64
		for _, st := range states {
			sum += s.scheduler.Retrievability(st, now)
		}
		stats.AverageRetrievability = sum / float64(len(states))
	}

	log.Debug("stats computed: total=%d, due=%d, streak=%d", stats.Total, stats.DueToday, stats.CurrentStreak)
	return &stats, nil
}

// activeDays returns the distinct calendar days, oldest first, that have at
// least one review at or before now. times must be sorted ascending.
func activeDays(times []time.Time, now time.Time, loc *time.Location) []time.Time {
	var days []time.Time
	for _, t := range times {
		if t.After(now) {
			break
		}
		d := dayStart(t, loc)
		if len(days) == 0 || !days[len(days)-1].Equal(d) {
			days = append(days, d)
		}
	}
	return days
}

// currentStreak counts consecutive active days ending today. With grace, a
// run ending yesterday still counts until today is over.
func currentStreak(days []time.Time, now time.Time, loc *time.Location, grace bool) int {
	if len(days) == 0 {
		return 0
	}
	today := dayStart(now, loc)
	last := days[len(days)-1]
	switch {
	case last.Equal(today):
	case grace && last.Equal(today.AddDate(0, 0, -1)):
	default:
		return 0
	}

	streak := 1
	for i := len(days) - 1; i > 0; i-- {
		if !days[i-1].Equal(days[i].AddDate(0, 0, -1)) {
			break
		}
		streak++
	}
	return streak
}

func longestStreak(days []time.Time) int {
	longest, run := 0, 0
	for i, d := range days {
		if i > 0 && d.Equal(days[i-1].AddDate(0, 0, 1)) {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
	}
	return longest
}
