package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"verihire/internal/providers"
	"verihire/internal/verification/models"
	dErrors "verihire/pkg/domain-errors"
	audit "verihire/pkg/platform/audit"
	"verihire/pkg/platform/sentinel"
	txcontext "verihire/pkg/platform/tx"
	"verihire/pkg/requestcontext"
)

const conflictMessage = "identity proof has already been used for this candidate"

// Submit records a prover's attestation for the claim in req.Token.
//
// The proof is checked by the identity verifier first, then the nullifier is
// reserved for the candidate and the outcome written in the same transaction.
// Proof rejections and reservation conflicts are terminal. Resubmitting the
// exact same proof after success returns the stored outcome with Replayed set.
func (s *Service) Submit(ctx context.Context, req models.SubmitRequest) (*models.SubmitResult, error) {
	request, _, err := s.loadByToken(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	claimed := normalizeNullifier(req.Proof.NullifierHash)

	if request.Status == models.StatusCompleted {
		return s.replayed(ctx, request, claimed, now)
	}
	if err := checkSubmittable(request, now); err != nil {
		return nil, err
	}

	proof, err := s.verifier.Verify(ctx, *req.Proof, request.ID.String())
	if err != nil {
		return nil, s.proofFailure(ctx, request, err)
	}
	if !proof.Success {
		return nil, s.proofFailure(ctx, request, providers.NewError(providers.CategoryRejected, "identity", "verification unsuccessful", nil))
	}
	nullifier := normalizeNullifier(proof.Nullifier)
	if nullifier == "" {
		nullifier = claimed
	}

	var (
		result   models.SubmitResult
		conflict bool
	)
	err = s.tx.RunInTx(txcontext.WithShardKey(ctx, request.CandidateID.String()), func(ctx context.Context, store Store) error {
		current, err := store.FindRequest(ctx, request.ID)
		if err != nil {
			return translateNotFound(err, "verification request not found", "failed to load verification request")
		}
		if current.Status == models.StatusCompleted {
			existing, err := store.FindOutcomeByRequest(ctx, current.ID)
			if err != nil {
				return translateNotFound(err, "verification outcome not found", "failed to load verification outcome")
			}
			if existing.Nullifier != nullifier {
				return dErrors.New(dErrors.CodeInvalidState, "verification request is already completed")
			}
			result = models.SubmitResult{
				Outcome:  *existing,
				Request:  models.NewRequestView(*current, existing, now),
				Replayed: true,
			}
			return nil
		}
		if err := checkSubmittable(current, now); err != nil {
			return err
		}

		reserved, _, err := s.guard.Reserve(ctx, store, current.CandidateID, nullifier, current.ID, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve identity proof")
		}
		if reserved == models.Conflict {
			conflict = true
			return dErrors.New(dErrors.CodeConflict, conflictMessage)
		}

		outcome, replayed, err := s.recorder.Record(ctx, store, current, nullifier, req.Answer == models.AnswerYes, req.Comments, now)
		if err != nil {
			conflict = dErrors.HasCode(err, dErrors.CodeConflict)
			return err
		}
		result = models.SubmitResult{
			Outcome:  *outcome,
			Request:  models.NewRequestView(*current, outcome, now),
			Replayed: replayed,
		}
		return nil
	})
	if err != nil {
		if conflict {
			s.replayRejected(ctx, request)
		}
		return nil, asDomainError(err, "failed to record verification outcome")
	}

	if !result.Replayed {
		s.metrics.IncOutcomesRecorded(result.Outcome.Verified)
		s.logger.InfoContext(ctx, "verification outcome recorded",
			"request_id", requestcontext.RequestID(ctx),
			"candidate_id", request.CandidateID.String(),
			"verification_id", request.ID.String(),
			"verified", result.Outcome.Verified,
		)
	}
	return &result, nil
}

// replayed answers a submission against a completed request without calling
// the identity verifier: the same nullifier gets the stored outcome back,
// anything else is refused.
func (s *Service) replayed(ctx context.Context, request *models.VerificationRequest, nullifier string, now time.Time) (*models.SubmitResult, error) {
	outcome, err := s.store.FindOutcomeByRequest(ctx, request.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidState, "verification request is already completed")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification outcome")
	}
	if outcome.Nullifier != nullifier {
		s.replayRejected(ctx, request)
		return nil, dErrors.New(dErrors.CodeInvalidState, "verification request is already completed")
	}
	return &models.SubmitResult{
		Outcome:  *outcome,
		Request:  models.NewRequestView(*request, outcome, now),
		Replayed: true,
	}, nil
}

// checkSubmittable rejects requests that cannot take an outcome. The stored
// state is left untouched.
func checkSubmittable(r *models.VerificationRequest, now time.Time) error {
	switch r.Status {
	case models.StatusSent:
	case models.StatusCompleted:
		return dErrors.New(dErrors.CodeInvalidState, "verification request is already completed")
	default:
		return dErrors.New(dErrors.CodeInvalidState, "verification request has not been sent")
	}
	if r.IsExpired(now) {
		return dErrors.New(dErrors.CodeTokenExpired, "verification link has expired")
	}
	return nil
}

func (s *Service) proofFailure(ctx context.Context, request *models.VerificationRequest, err error) error {
	category := providers.CategoryOf(err)
	if category != providers.CategoryRejected {
		s.logger.WarnContext(ctx, "identity verifier unavailable",
			"request_id", requestcontext.RequestID(ctx),
			"verification_id", request.ID.String(),
			"error", err,
		)
		if category == providers.CategoryTimeout {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "identity verification timed out")
		}
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "identity verification unavailable")
	}

	s.metrics.IncProofsRejected("rejected")
	s.logger.WarnContext(ctx, "identity proof rejected",
		"request_id", requestcontext.RequestID(ctx),
		"candidate_id", request.CandidateID.String(),
		"verification_id", request.ID.String(),
	)
	if emitErr := s.emit(ctx, audit.Event{
		CandidateID:    request.CandidateID.String(),
		VerificationID: request.ID.String(),
		Action:         string(audit.EventProofRejected),
		Decision:       "rejected",
	}); emitErr != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "error", emitErr)
	}
	return dErrors.Wrap(err, dErrors.CodeProofRejected, "identity proof was rejected")
}

func (s *Service) replayRejected(ctx context.Context, request *models.VerificationRequest) {
	s.metrics.IncProofsRejected("replay")
	s.logger.WarnContext(ctx, "identity proof replay rejected",
		"request_id", requestcontext.RequestID(ctx),
		"candidate_id", request.CandidateID.String(),
		"verification_id", request.ID.String(),
	)
	if err := s.emit(ctx, audit.Event{
		CandidateID:    request.CandidateID.String(),
		VerificationID: request.ID.String(),
		Action:         string(audit.EventReplayRejected),
		Decision:       "conflict",
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "error", err)
	}
}

func normalizeNullifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
