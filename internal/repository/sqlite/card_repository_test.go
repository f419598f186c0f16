package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"
	"github.com/vytor/recall/internal/models"
	"github.com/vytor/recall/internal/repository"
	"github.com/vytor/recall/internal/repository/sqlite"
	"github.com/vytor/recall/internal/testutil"
)

var baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type CardRepositorySuite struct {
	suite.Suite
	db   *sqlx.DB
	repo repository.CardRepository
}

func (s *CardRepositorySuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.repo = sqlite.NewCardRepository(s.db)
}

func (s *CardRepositorySuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *CardRepositorySuite) create(tenant, instructions string, tags ...string) int64 {
	id, err := s.repo.Create(context.Background(), models.Card{
		TenantID:     tenant,
		Instructions: instructions,
		CreatedAt:    baseTime,
		Tags:         tags,
	}, models.NewScheduleState(baseTime))
	s.Require().NoError(err)
	return id
}

func (s *CardRepositorySuite) TestCreateAndGet() {
	ctx := context.Background()
	id := s.create("acme", "Rotate the API keys", "ops", "security")
	s.Assert().Greater(id, int64(0))

	card, err := s.repo.Get(ctx, "acme", id)
	s.Require().NoError(err)
	s.Require().NotNil(card)
	s.Assert().Equal("Rotate the API keys", card.Instructions)
	s.Assert().Equal([]string{"ops", "security"}, card.Tags)
	s.Assert().True(card.Due.Equal(baseTime))
	s.Assert().True(card.CreatedAt.Equal(baseTime))

	var phase, reps int
	s.Require().NoError(s.db.QueryRowx(`SELECT phase, reps FROM schedule_states WHERE card_id = ?`, id).Scan(&phase, &reps))
	s.Assert().Equal(int(models.PhaseNew), phase)
	s.Assert().Zero(reps)
}

func (s *CardRepositorySuite) TestCreateIgnoresDuplicateTags() {
	id := s.create("acme", "Water the plants", "home", "home")

	card, err := s.repo.Get(context.Background(), "acme", id)
	s.Require().NoError(err)
	s.Assert().Equal([]string{"home"}, card.Tags)
}

func (s *CardRepositorySuite) TestGetMissingReturnsNil() {
	card, err := s.repo.Get(context.Background(), "acme", 999)
	s.Require().NoError(err)
	s.Assert().Nil(card)
}

func (s *CardRepositorySuite) TestTenantIsolation() {
	ctx := context.Background()
	a := s.create("tenant-a", "Same instructions", "shared")
	b := s.create("tenant-b", "Same instructions", "shared")

	cards, err := s.repo.List(ctx, models.CardFilter{TenantID: "tenant-b"})
	s.Require().NoError(err)
	s.Require().Len(cards, 1)
	s.Assert().Equal(b, cards[0].ID)

	found, err := s.repo.Search(ctx, models.CardFilter{TenantID: "tenant-b", Query: "instructions"})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Assert().Equal(b, found[0].ID)

	card, err := s.repo.Get(ctx, "tenant-b", a)
	s.Require().NoError(err)
	s.Assert().Nil(card)

	text := "hijacked"
	ok, err := s.repo.Update(ctx, "tenant-b", a, models.CardEdit{Instructions: &text})
	s.Require().NoError(err)
	s.Assert().False(ok)

	ok, err = s.repo.Delete(ctx, "tenant-b", a)
	s.Require().NoError(err)
	s.Assert().False(ok)

	card, err = s.repo.Get(ctx, "tenant-a", a)
	s.Require().NoError(err)
	s.Require().NotNil(card)
	s.Assert().Equal("Same instructions", card.Instructions)
}

func (s *CardRepositorySuite) TestUpdateReplacesTags() {
	ctx := context.Background()
	id := s.create("acme", "Draft the report", "work", "q1")

	text := "Draft the quarterly report"
	tags := []string{"q2"}
	ok, err := s.repo.Update(ctx, "acme", id, models.CardEdit{Instructions: &text, Tags: &tags})
	s.Require().NoError(err)
	s.Assert().True(ok)

	card, err := s.repo.Get(ctx, "acme", id)
	s.Require().NoError(err)
	s.Assert().Equal(text, card.Instructions)
	s.Assert().Equal([]string{"q2"}, card.Tags)

	empty := []string{}
	ok, err = s.repo.Update(ctx, "acme", id, models.CardEdit{Tags: &empty})
	s.Require().NoError(err)
	s.Assert().True(ok)

	card, err = s.repo.Get(ctx, "acme", id)
	s.Require().NoError(err)
	s.Assert().Empty(card.Tags)
	s.Assert().Equal(text, card.Instructions)
}

func (s *CardRepositorySuite) TestUpdateKeepsSearchIndexInSync() {
	ctx := context.Background()
	id := s.create("acme", "Feed the cat")

	text := "Walk the dog"
	_, err := s.repo.Update(ctx, "acme", id, models.CardEdit{Instructions: &text})
	s.Require().NoError(err)

	cards, err := s.repo.Search(ctx, models.CardFilter{TenantID: "acme", Query: "cat"})
	s.Require().NoError(err)
	s.Assert().Empty(cards)

	cards, err = s.repo.Search(ctx, models.CardFilter{TenantID: "acme", Query: "dog"})
	s.Require().NoError(err)
	s.Require().Len(cards, 1)
	s.Assert().Equal(id, cards[0].ID)
}

func (s *CardRepositorySuite) TestListFiltersByAnyTag() {
	ctx := context.Background()
	x := s.create("acme", "One", "x")
	y := s.create("acme", "Two", "y")
	s.create("acme", "Three", "z")
	both := s.create("acme", "Four", "x", "y")

	cards, err := s.repo.List(ctx, models.CardFilter{TenantID: "acme", Tags: []string{"x", "y"}})
	s.Require().NoError(err)

	ids := make([]int64, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	s.Assert().Equal([]int64{x, y, both}, ids)
}

func (s *CardRepositorySuite) TestSearchQuotesTermsAndIntersectsTags() {
	ctx := context.Background()
	s.create("acme", "Review the pull request", "code")
	wanted := s.create("acme", "Review the budget request", "finance")
	s.create("acme", "Approve the budget", "finance")

	cards, err := s.repo.Search(ctx, models.CardFilter{TenantID: "acme", Query: "review request", Tags: []string{"finance"}})
	s.Require().NoError(err)
	s.Require().Len(cards, 1)
	s.Assert().Equal(wanted, cards[0].ID)
	s.Assert().Equal([]string{"finance"}, cards[0].Tags)

	// FTS operators in user input are treated as plain terms
	cards, err = s.repo.Search(ctx, models.CardFilter{TenantID: "acme", Query: `budget OR "NEAR"`})
	s.Require().NoError(err)
	s.Assert().Empty(cards)

	cards, err = s.repo.Search(ctx, models.CardFilter{TenantID: "acme", Query: `""`})
	s.Require().NoError(err)
	s.Assert().Empty(cards)
}

func (s *CardRepositorySuite) TestDeleteCascades() {
	ctx := context.Background()
	id := s.create("acme", "Archive old tickets", "ops")
	_, err := s.db.Exec(`
		INSERT INTO review_history (card_id, tenant_id, rating, phase, due, stability, difficulty, elapsed_days, scheduled_days, learning_steps, reps, lapses, created_at)
		VALUES (?, 'acme', 3, 0, ?, 0, 0, 0, 0, 0, 0, 0, ?)
	`, id, baseTime, baseTime)
	s.Require().NoError(err)

	ok, err := s.repo.Delete(ctx, "acme", id)
	s.Require().NoError(err)
	s.Assert().True(ok)

	for _, table := range []string{"card_tags", "schedule_states", "review_history"} {
		var n int
		s.Require().NoError(s.db.Get(&n, `SELECT COUNT(*) FROM `+table+` WHERE card_id = ?`, id))
		s.Assert().Zero(n, table)
	}

	cards, err := s.repo.Search(ctx, models.CardFilter{TenantID: "acme", Query: "archive"})
	s.Require().NoError(err)
	s.Assert().Empty(cards)

	ok, err = s.repo.Delete(ctx, "acme", id)
	s.Require().NoError(err)
	s.Assert().False(ok)
}

func TestCardRepositorySuite(t *testing.T) {
	suite.Run(t, new(CardRepositorySuite))
}
