package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verihire/internal/verification/models"
	"verihire/internal/verification/store"
	"verihire/pkg/domain"
)

func TestReplayGuardOneHolderPerNullifier(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	st := store.NewInMemory()
	guard := NewReplayGuard()

	ids := []domain.VerificationID{domain.NewVerificationID(), domain.NewVerificationID()}
	results := make([]models.ReserveResult, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := guard.Reserve(ctx, st, "cand-1", "0xnullifier", id, at)
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()
	assert.ElementsMatch(t, []models.ReserveResult{models.Reserved, models.Conflict}, results)

	res, _, err := guard.Reserve(ctx, st, "cand-2", "0xnullifier", domain.NewVerificationID(), at)
	require.NoError(t, err)
	assert.Equal(t, models.Reserved, res, "nullifiers are scoped per candidate")
}

func TestReplayGuardSameRequestReservesAgain(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	st := store.NewInMemory()
	guard := NewReplayGuard()
	id := domain.NewVerificationID()

	first, held, err := guard.Reserve(ctx, st, "cand-1", "0xnullifier", id, at)
	require.NoError(t, err)
	require.Equal(t, models.Reserved, first)

	// A retried submission of the same request finds its own reservation.
	second, holder, err := guard.Reserve(ctx, st, "cand-1", "0xnullifier", id, at.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.Reserved, second)
	assert.Equal(t, held.VerificationID, holder.VerificationID)
	assert.True(t, holder.ReservedAt.Equal(at), "the original reservation is kept")

	other, holder, err := guard.Reserve(ctx, st, "cand-1", "0xnullifier", domain.NewVerificationID(), at)
	require.NoError(t, err)
	assert.Equal(t, models.Conflict, other)
	assert.Equal(t, id, holder.VerificationID)
}
