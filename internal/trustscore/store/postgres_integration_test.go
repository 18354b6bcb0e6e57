//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verihire/internal/trustscore/models"
	"verihire/internal/trustscore/store"
	"verihire/pkg/domain"
	"verihire/pkg/platform/sentinel"
	"verihire/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "trust_scores"))
}

func score(value int, source models.Source, at time.Time) *models.TrustScore {
	return &models.TrustScore{
		ID:          domain.NewScoreID(),
		CandidateID: "cand-1",
		Result: models.Result{
			Score:     value,
			Breakdown: models.Breakdown{VerificationRate: 100, CareerProgression: 50, SkillConsistency: 90, TimelineConsistency: 90, VerificationCount: 40},
			Source:    source,
			Analysis:  "steady history",
			Extras:    models.Extras{Strengths: []string{"verified employment"}},
		},
		ComputedAt: at,
	}
}

func (s *PostgresStoreSuite) TestLatestAndHistory() {
	ctx := context.Background()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	first := score(30, models.SourceNoRequests, t0)
	second := score(81, models.SourcePrimary, t0.Add(time.Hour))
	s.Require().NoError(s.store.Save(ctx, first))
	s.Require().NoError(s.store.Save(ctx, second))

	latest, err := s.store.Latest(ctx, "cand-1")
	s.Require().NoError(err)
	s.Equal(second.ID, latest.ID)
	s.Equal(81, latest.Score)
	s.Equal(second.Breakdown, latest.Breakdown)
	s.Equal([]string{"verified employment"}, latest.Extras.Strengths)
	s.True(latest.ComputedAt.Equal(second.ComputedAt))

	history, err := s.store.ListByCandidate(ctx, "cand-1")
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(second.ID, history[0].ID)
	s.Equal(first.ID, history[1].ID)
}

func (s *PostgresStoreSuite) TestLatestMissing() {
	_, err := s.store.Latest(context.Background(), "ghost")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
