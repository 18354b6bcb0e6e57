//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verihire/internal/candidate/models"
	"verihire/internal/candidate/store"
	"verihire/pkg/domain"
	"verihire/pkg/platform/sentinel"
	txcontext "verihire/pkg/platform/tx"
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
	err := s.postgres.TruncateTables(context.Background(), "education_entries", "work_history_entries", "candidates")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestCandidateRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	c := &models.Candidate{
		ID:        "cand-pg",
		Name:      "John Doe",
		Skills:    []string{"Go", "PostgreSQL"},
		Presence:  &models.PresenceSignals{Combined: 55, Summary: "active"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(s.store.CreateCandidate(ctx, c))
	s.True(errors.Is(s.store.CreateCandidate(ctx, c), sentinel.ErrAlreadyUsed))

	got, err := s.store.FindCandidate(ctx, "cand-pg")
	s.Require().NoError(err)
	s.Equal("John Doe", got.Name)
	s.Equal([]string{"Go", "PostgreSQL"}, got.Skills)
	s.Require().NotNil(got.Presence)
	s.Equal(55, got.Presence.Combined)

	_, err = s.store.FindCandidate(ctx, "missing")
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresStoreSuite) TestSupersedeActiveHidesOldHistory() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.CreateCandidate(ctx, &models.Candidate{ID: "cand-pg", CreatedAt: now, UpdatedAt: now}))

	old := models.WorkHistoryEntry{
		ID: domain.NewEntryID(), CandidateID: "cand-pg", Company: "Google", Position: "Engineer",
		StartDate: "2020", EndDate: "2023", CreatedAt: now, UpdatedAt: now,
	}
	s.Require().NoError(s.store.AddEntries(ctx, []models.WorkHistoryEntry{old}))
	s.Require().NoError(s.store.SupersedeActive(ctx, "cand-pg", now.Add(time.Second)))

	fresh := old
	fresh.ID = domain.NewEntryID()
	fresh.Company = "Stripe"
	s.Require().NoError(s.store.AddEntries(ctx, []models.WorkHistoryEntry{fresh}))

	history, err := s.store.ListWorkHistory(ctx, "cand-pg")
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal("Stripe", history[0].Company)

	stored, err := s.store.FindEntry(ctx, "cand-pg", old.ID)
	s.Require().NoError(err)
	s.False(stored.Active())
}

func (s *PostgresStoreSuite) TestFrozenEntryRowLock() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.CreateCandidate(ctx, &models.Candidate{ID: "cand-pg", CreatedAt: now, UpdatedAt: now}))
	entry := models.WorkHistoryEntry{
		ID: domain.NewEntryID(), CandidateID: "cand-pg", Company: "Google", Position: "Engineer",
		StartDate: "2020", EndDate: "2023", CreatedAt: now, UpdatedAt: now,
	}
	s.Require().NoError(s.store.AddEntries(ctx, []models.WorkHistoryEntry{entry}))

	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	defer func() { _ = tx.Rollback() }()
	txCtx := txcontext.WithTx(ctx, tx)

	locked, err := s.store.FindEntryForUpdate(txCtx, "cand-pg", entry.ID)
	s.Require().NoError(err)
	s.False(locked.Frozen())

	other, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	defer func() { _ = other.Rollback() }()
	waitCtx, cancel := context.WithTimeout(txcontext.WithTx(ctx, other), 300*time.Millisecond)
	defer cancel()
	_, err = s.store.FindEntryForUpdate(waitCtx, "cand-pg", entry.ID)
	s.Error(err, "a second locker waits on the row")
	s.Require().NoError(other.Rollback())

	locked.FrozenAt = &now
	s.Require().NoError(s.store.UpdateEntry(txCtx, locked))
	s.Require().NoError(tx.Commit())

	stored, err := s.store.FindEntry(ctx, "cand-pg", entry.ID)
	s.Require().NoError(err)
	s.Require().True(stored.Frozen())
	s.True(now.Equal(*stored.FrozenAt))
}
