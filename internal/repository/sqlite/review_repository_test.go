package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"
	apperrors "github.com/vytor/recall/internal/errors"
	"github.com/vytor/recall/internal/models"
	"github.com/vytor/recall/internal/repository"
	"github.com/vytor/recall/internal/repository/sqlite"
	"github.com/vytor/recall/internal/testutil"
)

type ReviewRepositorySuite struct {
	suite.Suite
	db    *sqlx.DB
	cards repository.CardRepository
	repo  repository.ReviewRepository
}

func (s *ReviewRepositorySuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.cards = sqlite.NewCardRepository(s.db)
	s.repo = sqlite.NewReviewRepository(s.db)
}

func (s *ReviewRepositorySuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *ReviewRepositorySuite) create(tenant string, due time.Time, tags ...string) int64 {
	id, err := s.cards.Create(context.Background(), models.Card{
		TenantID:     tenant,
		Instructions: "card",
		CreatedAt:    baseTime,
		Tags:         tags,
	}, models.NewScheduleState(due))
	s.Require().NoError(err)
	return id
}

// advance is a stand-in scheduler step.
func advance(days int, at time.Time) func(models.ScheduleState) models.ScheduleState {
	return func(st models.ScheduleState) models.ScheduleState {
		next := st.Clone()
		next.Phase = models.PhaseReviewing
		next.Stability += float64(days)
		next.Difficulty = 5
		next.ScheduledDays = days
		next.Due = at.AddDate(0, 0, days)
		next.Reps++
		next.LastReview = &at
		return next
	}
}

func (s *ReviewRepositorySuite) TestApplyReviewSnapshotsPreviousState() {
	ctx := context.Background()
	id := s.create("acme", baseTime)

	updated, err := s.repo.ApplyReview(ctx, "acme", id, models.RatingGood, baseTime, advance(3, baseTime))
	s.Require().NoError(err)
	s.Require().NotNil(updated)
	s.Assert().Equal(models.PhaseReviewing, updated.Phase)
	s.Assert().Equal(id, updated.CardID)

	state, err := s.repo.GetState(ctx, "acme", id)
	s.Require().NoError(err)
	s.Assert().Equal(1, state.Reps)
	s.Assert().True(state.Due.Equal(baseTime.AddDate(0, 0, 3)))
	s.Require().NotNil(state.LastReview)
	s.Assert().True(state.LastReview.Equal(baseTime))

	history, err := s.repo.History(ctx, "acme", id)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Assert().Equal(models.RatingGood, history[0].Rating)
	s.Assert().Equal(models.PhaseNew, history[0].State.Phase)
	s.Assert().Nil(history[0].State.LastReview)
	s.Assert().True(history[0].CreatedAt.Equal(baseTime))
}

func (s *ReviewRepositorySuite) TestApplyReviewMissingCard() {
	ctx := context.Background()
	other := s.create("other", baseTime)

	for _, id := range []int64{999999, other} {
		_, err := s.repo.ApplyReview(ctx, "acme", id, models.RatingGood, baseTime, advance(1, baseTime))
		s.Require().Error(err)
		s.Assert().True(errors.Is(err, apperrors.ErrCardNotFound))
	}

	var n int
	s.Require().NoError(s.db.Get(&n, `SELECT COUNT(*) FROM review_history`))
	s.Assert().Zero(n)
}

func (s *ReviewRepositorySuite) TestUndoRoundTrip() {
	ctx := context.Background()
	id := s.create("acme", baseTime)

	_, err := s.repo.ApplyReview(ctx, "acme", id, models.RatingGood, baseTime, advance(2, baseTime))
	s.Require().NoError(err)
	before, err := s.repo.GetState(ctx, "acme", id)
	s.Require().NoError(err)

	later := baseTime.AddDate(0, 0, 2)
	_, err = s.repo.ApplyReview(ctx, "acme", id, models.RatingEasy, later, advance(9, later))
	s.Require().NoError(err)

	ok, err := s.repo.Undo(ctx, "acme", id)
	s.Require().NoError(err)
	s.Assert().True(ok)

	after, err := s.repo.GetState(ctx, "acme", id)
	s.Require().NoError(err)
	s.Assert().Equal(before.Phase, after.Phase)
	s.Assert().Equal(before.Reps, after.Reps)
	s.Assert().Equal(before.Stability, after.Stability)
	s.Assert().Equal(before.ScheduledDays, after.ScheduledDays)
	s.Assert().True(before.Due.Equal(after.Due))
	s.Assert().True(before.LastReview.Equal(*after.LastReview))

	ok, err = s.repo.Undo(ctx, "acme", id)
	s.Require().NoError(err)
	s.Assert().True(ok)

	initial, err := s.repo.GetState(ctx, "acme", id)
	s.Require().NoError(err)
	s.Assert().Equal(models.PhaseNew, initial.Phase)
	s.Assert().Nil(initial.LastReview)

	ok, err = s.repo.Undo(ctx, "acme", id)
	s.Require().NoError(err)
	s.Assert().False(ok)
}

func (s *ReviewRepositorySuite) TestUndoIsTenantScoped() {
	ctx := context.Background()
	id := s.create("acme", baseTime)
	_, err := s.repo.ApplyReview(ctx, "acme", id, models.RatingGood, baseTime, advance(2, baseTime))
	s.Require().NoError(err)

	ok, err := s.repo.Undo(ctx, "intruder", id)
	s.Require().NoError(err)
	s.Assert().False(ok)

	state, err := s.repo.GetState(ctx, "acme", id)
	s.Require().NoError(err)
	s.Assert().Equal(1, state.Reps)
}

func (s *ReviewRepositorySuite) TestUndoFollowsWriteOrderNotReviewTime() {
	ctx := context.Background()
	id := s.create("acme", baseTime)

	first := baseTime.Add(2 * time.Second)
	_, err := s.repo.ApplyReview(ctx, "acme", id, models.RatingGood, first, advance(2, first))
	s.Require().NoError(err)
	afterFirst, err := s.repo.GetState(ctx, "acme", id)
	s.Require().NoError(err)

	// The second review carries an earlier timestamp than the first.
	skewed := baseTime.Add(time.Second)
	_, err = s.repo.ApplyReview(ctx, "acme", id, models.RatingAgain, skewed, advance(0, skewed))
	s.Require().NoError(err)

	history, err := s.repo.History(ctx, "acme", id)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Assert().Equal(0, history[0].State.Reps)
	s.Assert().Equal(1, history[1].State.Reps)

	ok, err := s.repo.Undo(ctx, "acme", id)
	s.Require().NoError(err)
	s.Require().True(ok)

	restored, err := s.repo.GetState(ctx, "acme", id)
	s.Require().NoError(err)
	s.Assert().Equal(models.PhaseReviewing, restored.Phase)
	s.Assert().Equal(1, restored.Reps)
	s.Assert().Equal(afterFirst.Stability, restored.Stability)
	s.Assert().True(first.Equal(*restored.LastReview))

	history, err = s.repo.History(ctx, "acme", id)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Assert().Equal(0, history[0].State.Reps)
}

func (s *ReviewRepositorySuite) TestDueCards() {
	ctx := context.Background()
	now := baseTime.Add(time.Hour)
	overdue := s.create("acme", baseTime.Add(-48*time.Hour), "x")
	dueNow := s.create("acme", now, "y")
	s.create("acme", now.Add(time.Minute), "x")
	s.create("other", baseTime, "x")

	cards, err := s.repo.DueCards(ctx, "acme", nil, now)
	s.Require().NoError(err)
	s.Require().Len(cards, 2)
	s.Assert().Equal(overdue, cards[0].ID)
	s.Assert().Equal(dueNow, cards[1].ID)
	s.Assert().Equal([]string{"x"}, cards[0].Tags)
	s.Assert().Equal(overdue, cards[0].State.CardID)
	s.Assert().Equal(models.PhaseNew, cards[0].State.Phase)

	cards, err = s.repo.DueCards(ctx, "acme", []string{"y"}, now)
	s.Require().NoError(err)
	s.Require().Len(cards, 1)
	s.Assert().Equal(dueNow, cards[0].ID)
}

func TestReviewRepositorySuite(t *testing.T) {
	suite.Run(t, new(ReviewRepositorySuite))
}
