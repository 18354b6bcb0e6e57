package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verihire/internal/verification/models"
	"verihire/pkg/domain"
	"verihire/pkg/platform/sentinel"
)

func newRequest(candidate domain.CandidateID, created time.Time, expires time.Time) *models.VerificationRequest {
	return &models.VerificationRequest{
		ID:          domain.NewVerificationID(),
		CandidateID: candidate,
		EntryID:     domain.NewEntryID(),
		Company:     "Google",
		Position:    "Engineer",
		Status:      models.StatusSent,
		CreatedAt:   created,
		ExpiresAt:   expires,
	}
}

func TestInMemoryReserveNullifierIsExclusive(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	var reserved, taken atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.ReserveNullifier(ctx, &models.Reservation{
				CandidateID:    "cand-1",
				Nullifier:      "0xabc",
				VerificationID: domain.NewVerificationID(),
				ReservedAt:     time.Now(),
			})
			switch {
			case err == nil:
				reserved.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				taken.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), reserved.Load())
	assert.Equal(t, int32(19), taken.Load())

	// the same nullifier is free for another candidate
	require.NoError(t, s.ReserveNullifier(ctx, &models.Reservation{CandidateID: "cand-2", Nullifier: "0xabc"}))
}

func TestInMemoryOutcomeUniqueness(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	vid := domain.NewVerificationID()

	require.NoError(t, s.SaveOutcome(ctx, &models.VerificationOutcome{ID: domain.NewOutcomeID(), VerificationID: vid, CandidateID: "c", Nullifier: "n"}))

	err := s.SaveOutcome(ctx, &models.VerificationOutcome{ID: domain.NewOutcomeID(), VerificationID: vid, CandidateID: "c", Nullifier: "m"})
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed, "second outcome for the request")

	err = s.SaveOutcome(ctx, &models.VerificationOutcome{ID: domain.NewOutcomeID(), VerificationID: domain.NewVerificationID(), CandidateID: "c", Nullifier: "n"})
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed, "second outcome for the pair")

	got, err := s.FindOutcomeByRequest(ctx, vid)
	require.NoError(t, err)
	assert.Equal(t, "n", got.Nullifier)
}

func TestInMemoryListingAndExpiry(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	older := newRequest("cand-1", now.Add(-48*time.Hour), now.Add(-time.Hour))
	newer := newRequest("cand-1", now.Add(-time.Hour), now.Add(time.Hour))
	other := newRequest("cand-2", now, now.Add(-time.Minute))
	for _, r := range []*models.VerificationRequest{older, newer, other} {
		require.NoError(t, s.CreateRequest(ctx, r))
	}

	list, err := s.ListByCandidate(ctx, "cand-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	n, err := s.CountByEntry(ctx, "cand-1", older.EntryID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	expired, err := s.ListExpiredUnnotified(ctx, now, 10)
	require.NoError(t, err)
	assert.Len(t, expired, 2)

	require.NoError(t, s.MarkExpiryNotified(ctx, older.ID, now))
	expired, err = s.ListExpiredUnnotified(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, other.ID, expired[0].ID)

	_, err = s.FindRequest(ctx, domain.NewVerificationID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
