package service

import (
	"context"
	"errors"
	"time"

	"verihire/internal/verification/models"
	"verihire/pkg/domain"
	"verihire/pkg/platform/sentinel"
)

// ReservationStore is the storage the ReplayGuard needs. ReserveNullifier must
// be a single atomic insert guarded by a unique key on (candidate, nullifier).
type ReservationStore interface {
	ReserveNullifier(ctx context.Context, r *models.Reservation) error
	FindReservation(ctx context.Context, candidateID domain.CandidateID, nullifier string) (*models.Reservation, error)
}

// ReplayGuard binds a prover's nullifier to a candidate at most once.
type ReplayGuard struct{}

func NewReplayGuard() *ReplayGuard {
	return &ReplayGuard{}
}

// Reserve claims (candidateID, nullifier) for verificationID. The uniqueness
// decision is taken by the store's insert, never by a prior read. When the
// pair is already held, the holder is returned; a reservation held by the same
// request counts as Reserved so an interrupted submission can be completed.
func (g *ReplayGuard) Reserve(
	ctx context.Context,
	store ReservationStore,
	candidateID domain.CandidateID,
	nullifier string,
	verificationID domain.VerificationID,
	at time.Time,
) (models.ReserveResult, *models.Reservation, error) {
	reservation := &models.Reservation{
		CandidateID:    candidateID,
		Nullifier:      nullifier,
		VerificationID: verificationID,
		ReservedAt:     at,
	}
	err := store.ReserveNullifier(ctx, reservation)
	if err == nil {
		return models.Reserved, reservation, nil
	}
	if !errors.Is(err, sentinel.ErrAlreadyUsed) {
		return models.Conflict, nil, err
	}

	holder, err := store.FindReservation(ctx, candidateID, nullifier)
	if err != nil {
		return models.Conflict, nil, err
	}
	if holder.VerificationID == verificationID {
		return models.Reserved, holder, nil
	}
	return models.Conflict, holder, nil
}
