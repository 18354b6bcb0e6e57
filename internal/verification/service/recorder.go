package service

import (
	"context"
	"errors"
	"time"

	"verihire/internal/verification/models"
	"verihire/pkg/domain"
	dErrors "verihire/pkg/domain-errors"
	audit "verihire/pkg/platform/audit"
	"verihire/pkg/platform/sentinel"
)

// OutcomeStore is the storage the Recorder needs.
type OutcomeStore interface {
	SaveOutcome(ctx context.Context, o *models.VerificationOutcome) error
	FindOutcomeByRequest(ctx context.Context, id domain.VerificationID) (*models.VerificationOutcome, error)
	UpdateRequest(ctx context.Context, r *models.VerificationRequest) error
}

// Recorder persists an attestation and completes its request. It runs inside
// the caller's transaction after a successful reservation.
type Recorder struct {
	auditor AuditPublisher
}

func NewRecorder(auditor AuditPublisher) *Recorder {
	return &Recorder{auditor: auditor}
}

// Record writes the outcome for req and advances it to completed. A retry
// carrying the same nullifier returns the outcome already stored; a different
// nullifier for a recorded request is a conflict.
func (r *Recorder) Record(
	ctx context.Context,
	store OutcomeStore,
	req *models.VerificationRequest,
	nullifier string,
	verified bool,
	comments string,
	at time.Time,
) (*models.VerificationOutcome, bool, error) {
	existing, err := store.FindOutcomeByRequest(ctx, req.ID)
	switch {
	case err == nil:
		return sameOutcome(existing, nullifier)
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, false, err
	}

	outcome := &models.VerificationOutcome{
		ID:             domain.NewOutcomeID(),
		VerificationID: req.ID,
		CandidateID:    req.CandidateID,
		Nullifier:      nullifier,
		Verified:       verified,
		Comments:       comments,
		RecordedAt:     at,
	}
	if err := store.SaveOutcome(ctx, outcome); err != nil {
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, false, err
		}
		existing, findErr := store.FindOutcomeByRequest(ctx, req.ID)
		if findErr != nil {
			return nil, false, dErrors.New(dErrors.CodeConflict, "identity proof has already been used for this candidate")
		}
		return sameOutcome(existing, nullifier)
	}

	if req.Status != models.StatusCompleted {
		if err := req.Advance(models.StatusCompleted, at); err != nil {
			return nil, false, err
		}
		if err := store.UpdateRequest(ctx, req); err != nil {
			return nil, false, err
		}
	}

	if r.auditor != nil {
		if err := r.auditor.Emit(ctx, audit.Event{
			CandidateID:    req.CandidateID.String(),
			VerificationID: req.ID.String(),
			Action:         string(audit.EventVerificationRecorded),
			Decision:       verifiedDecision(verified),
			Subject:        req.Company,
		}); err != nil {
			return nil, false, err
		}
	}
	return outcome, false, nil
}

// sameOutcome reports existing as a replay when it was recorded with nullifier.
func sameOutcome(existing *models.VerificationOutcome, nullifier string) (*models.VerificationOutcome, bool, error) {
	if existing.Nullifier != nullifier {
		return nil, false, dErrors.New(dErrors.CodeConflict, "verification request already has a recorded outcome")
	}
	return existing, true, nil
}

func verifiedDecision(verified bool) string {
	if verified {
		return "verified"
	}
	return "denied"
}
