package services

import (
	"strings"
	"time"

	"github.com/vytor/recall/internal/errors"
)

type options struct {
	now         func() time.Time
	loc         *time.Location
	streakGrace bool
}

// Option configures a service.
type Option func(*options)

// WithClock replaces time.Now for operations that are not given an explicit time.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLocation sets the calendar used for due labels and streak days.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithStreakGrace keeps a streak alive through a day that has not had a review yet.
func WithStreakGrace(enabled bool) Option {
	return func(o *options) { o.streakGrace = enabled }
}

func newOptions(opts []Option) options {
	o := options{now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func validateTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		e := errors.NewValidationError("tenant_id", "must not be empty")
		e.Err = errors.ErrEmptyTenant
		return e
	}
	return nil
}

// normalizeTags trims labels and drops duplicates, keeping first-seen order.
func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, errors.NewValidationError("tags", "labels must not be empty")
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

// dayStart truncates t to midnight in loc.
func dayStart(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// dueLabel renders due relative to now: "today", "tomorrow" or YYYY-MM-DD.
func dueLabel(due, now time.Time, loc *time.Location) string {
	today := dayStart(now, loc)
	day := dayStart(due, loc)
	if day.Equal(today) {
		return "today"
	}
	if day.Equal(today.AddDate(0, 0, 1)) {
		return "tomorrow"
	}
	return due.In(loc).Format(time.DateOnly)
}

// failureMessage is the per-item error text of a batch failure.
func failureMessage(err error) string {
	if appErr, ok := errors.As(err); ok {
		return appErr.Message
	}
	return err.Error()
}
