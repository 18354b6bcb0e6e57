package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verihire/internal/credential/models"
	"verihire/pkg/domain"
	"verihire/pkg/platform/sentinel"
)

func TestInMemoryOneCredentialPerCandidate(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	_, err := s.FindByCandidate(ctx, "cand-1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	first := &models.Credential{ID: domain.NewCredentialID(), CandidateID: "cand-1"}
	require.NoError(t, s.Reserve(ctx, first))
	err = s.Reserve(ctx, &models.Credential{ID: domain.NewCredentialID(), CandidateID: "cand-1"})
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed, "a pending reservation blocks a second one")

	got, err := s.FindByCandidate(ctx, "cand-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)

	first.TokenID, first.TxHash = "1", "0x1"
	require.NoError(t, s.Finalize(ctx, first))
	assert.ErrorIs(t, s.Finalize(ctx, first), sentinel.ErrNotFound, "already issued")

	got, err = s.FindByCandidate(ctx, "cand-1")
	require.NoError(t, err)
	assert.True(t, got.Issued())
	assert.Equal(t, "1", got.TokenID)

	require.NoError(t, s.Discard(ctx, first.ID, "cand-1"))
	_, err = s.FindByCandidate(ctx, "cand-1")
	assert.NoError(t, err, "issued credentials survive discard")
}

func TestInMemoryDiscardFreesReservation(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	pending := &models.Credential{ID: domain.NewCredentialID(), CandidateID: "cand-1"}
	require.NoError(t, s.Reserve(ctx, pending))
	require.NoError(t, s.Discard(ctx, domain.NewCredentialID(), "cand-1"), "foreign id is a no-op")
	assert.ErrorIs(t, s.Reserve(ctx, &models.Credential{ID: domain.NewCredentialID(), CandidateID: "cand-1"}), sentinel.ErrAlreadyUsed)

	require.NoError(t, s.Discard(ctx, pending.ID, "cand-1"))
	assert.NoError(t, s.Reserve(ctx, &models.Credential{ID: domain.NewCredentialID(), CandidateID: "cand-1"}))
}
