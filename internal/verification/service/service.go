package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	candidatemodels "verihire/internal/candidate/models"
	"verihire/internal/platform/metrics"
	"verihire/internal/providers/messaging"
	"verihire/internal/verification/models"
	"verihire/internal/verification/token"
	"verihire/pkg/domain"
	dErrors "verihire/pkg/domain-errors"
	audit "verihire/pkg/platform/audit"
	"verihire/pkg/platform/sentinel"
	txcontext "verihire/pkg/platform/tx"
	"verihire/pkg/requestcontext"
)

// Store persists verification requests, nullifier reservations and outcomes.
// ReserveNullifier and SaveOutcome return sentinel.ErrAlreadyUsed when their
// unique key is taken.
type Store interface {
	CreateRequest(ctx context.Context, r *models.VerificationRequest) error
	FindRequest(ctx context.Context, id domain.VerificationID) (*models.VerificationRequest, error)
	UpdateRequest(ctx context.Context, r *models.VerificationRequest) error
	ListByCandidate(ctx context.Context, candidateID domain.CandidateID) ([]models.VerificationRequest, error)
	CountByEntry(ctx context.Context, candidateID domain.CandidateID, entryID domain.EntryID) (int, error)
	ReserveNullifier(ctx context.Context, r *models.Reservation) error
	FindReservation(ctx context.Context, candidateID domain.CandidateID, nullifier string) (*models.Reservation, error)
	SaveOutcome(ctx context.Context, o *models.VerificationOutcome) error
	FindOutcomeByRequest(ctx context.Context, id domain.VerificationID) (*models.VerificationOutcome, error)
	ListOutcomesByCandidate(ctx context.Context, candidateID domain.CandidateID) ([]models.VerificationOutcome, error)
	ListExpiredUnnotified(ctx context.Context, now time.Time, limit int) ([]models.VerificationRequest, error)
	MarkExpiryNotified(ctx context.Context, id domain.VerificationID, at time.Time) error
}

// StoreTx runs fn inside one transactional boundary.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// CandidateReader resolves the candidate and work-history entry a request is
// issued for. FreezeEntry returns the entry only once it can no longer be
// edited in place, and fails with invalid_state for a superseded entry.
// Errors are domain errors (not_found for unknown ids).
type CandidateReader interface {
	Get(ctx context.Context, id domain.CandidateID) (*candidatemodels.Candidate, error)
	FreezeEntry(ctx context.Context, id domain.CandidateID, entryID domain.EntryID) (*candidatemodels.WorkHistoryEntry, error)
}

// IdentityVerifier checks a prover's identity proof. Failures are
// *providers.Error values.
type IdentityVerifier interface {
	Verify(ctx context.Context, proof models.IdentityProof, signal string) (models.ProofResult, error)
}

// Messenger delivers request links out of band.
type Messenger interface {
	Send(ctx context.Context, msg messaging.Message) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const (
	defaultBatchConcurrency = 4
	sweepBatchSize          = 100
)

// Service issues verification requests and records their outcomes.
type Service struct {
	store      Store
	tx         StoreTx
	candidates CandidateReader
	signer     *token.Signer
	verifier   IdentityVerifier
	messenger  Messenger
	guard      *ReplayGuard
	recorder   *Recorder
	logger     *slog.Logger
	auditor    AuditPublisher
	metrics    *metrics.Metrics
	baseURL    string
	batchLimit int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublicBaseURL sets the origin request links point at.
func WithPublicBaseURL(base string) Option {
	return func(s *Service) {
		s.baseURL = strings.TrimRight(base, "/")
	}
}

func WithBatchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

func New(
	store Store,
	tx StoreTx,
	candidates CandidateReader,
	signer *token.Signer,
	verifier IdentityVerifier,
	messenger Messenger,
	opts ...Option,
) *Service {
	s := &Service{
		store:      store,
		tx:         tx,
		candidates: candidates,
		signer:     signer,
		verifier:   verifier,
		messenger:  messenger,
		logger:     slog.Default(),
		baseURL:    "http://localhost:3000",
		batchLimit: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.guard = NewReplayGuard()
	s.recorder = NewRecorder(s.auditor)
	return s
}

// Issue creates one request for a work-history entry, moves it to sent and
// dispatches the link. A dispatch failure is reported in the result; the
// request stays sent and can be resent.
func (s *Service) Issue(ctx context.Context, candidateID domain.CandidateID, item models.IssueItem) (*models.IssueResult, error) {
	result := &models.IssueResult{EntryID: item.EntryID, EmployerEmail: item.EmployerEmail}

	entryID, err := domain.ParseEntryID(item.EntryID)
	if err != nil {
		return result, err
	}
	email, err := models.NormalizeEmail(item.EmployerEmail)
	if err != nil {
		return result, err
	}
	result.EmployerEmail = email

	candidate, err := s.candidates.Get(ctx, candidateID)
	if err != nil {
		return result, err
	}
	entry, err := s.candidates.FreezeEntry(ctx, candidateID, entryID)
	if err != nil {
		return result, err
	}

	now := requestcontext.Now(ctx)
	req := &models.VerificationRequest{
		ID:            domain.NewVerificationID(),
		CandidateID:   candidateID,
		EntryID:       entryID,
		Company:       entry.Company,
		Position:      entry.Position,
		StartDate:     entry.StartDate,
		EndDate:       entry.EndDate,
		EmployerEmail: email,
		Status:        models.StatusPending,
		CreatedAt:     now,
	}
	raw, expiresAt, err := s.signer.Sign(claimFor(req, candidate.Name), now)
	if err != nil {
		return result, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign request token")
	}
	req.TokenHash = token.Hash(raw)
	req.ExpiresAt = expiresAt

	err = s.tx.RunInTx(txcontext.WithShardKey(ctx, candidateID.String()), func(ctx context.Context, store Store) error {
		if err := store.CreateRequest(ctx, req); err != nil {
			return err
		}
		if err := req.Advance(models.StatusSent, now); err != nil {
			return err
		}
		if err := store.UpdateRequest(ctx, req); err != nil {
			return err
		}
		return s.emit(ctx, audit.Event{
			CandidateID:    candidateID.String(),
			VerificationID: req.ID.String(),
			Action:         string(audit.EventVerificationRequested),
			Subject:        req.Company,
		})
	})
	if err != nil {
		return result, asDomainError(err, "failed to store verification request")
	}

	result.VerificationID = req.ID.String()
	result.Status = string(req.Status)

	deliveryID, dispatchErr := s.dispatch(ctx, req, candidate.Name, raw)
	s.metrics.IncRequestsIssued(dispatchErr == nil)
	if dispatchErr != nil {
		result.Error = "dispatch failed; resend to retry"
		return result, nil
	}
	result.Dispatched = true
	result.DeliveryID = deliveryID
	return result, nil
}

// IssueBatch issues one request per item. Items are independent: a failing
// item is reported in its result and never aborts the others.
func (s *Service) IssueBatch(ctx context.Context, candidateID domain.CandidateID, batch models.BatchIssueRequest) (*models.BatchIssueResult, error) {
	if _, err := s.candidates.Get(ctx, candidateID); err != nil {
		return nil, err
	}

	results := make([]models.IssueResult, len(batch.Items))
	var g errgroup.Group
	g.SetLimit(s.batchLimit)
	for i, item := range batch.Items {
		g.Go(func() error {
			res, err := s.Issue(ctx, candidateID, item)
			if err != nil {
				res.Error = itemError(err)
				if dErrors.CodeOf(err) == dErrors.CodeInternal {
					s.logger.ErrorContext(ctx, "batch item failed",
						"candidate_id", candidateID.String(),
						"entry_id", item.EntryID,
						"error", err,
					)
				}
			}
			results[i] = *res
			return nil
		})
	}
	_ = g.Wait()

	out := &models.BatchIssueResult{Results: results}
	for _, r := range results {
		if r.VerificationID != "" && r.Dispatched {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	return out, nil
}

// Resend re-dispatches a sent request. The token is always re-signed since
// only its hash is stored; an expired request gets a fresh validity window,
// otherwise the original expiry is kept.
func (s *Service) Resend(ctx context.Context, id domain.VerificationID) (*models.IssueResult, error) {
	existing, err := s.store.FindRequest(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "verification request not found", "failed to load verification request")
	}
	candidate, err := s.candidates.Get(ctx, existing.CandidateID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var (
		req *models.VerificationRequest
		raw string
	)
	err = s.tx.RunInTx(txcontext.WithShardKey(ctx, existing.CandidateID.String()), func(ctx context.Context, store Store) error {
		current, err := store.FindRequest(ctx, id)
		if err != nil {
			return translateNotFound(err, "verification request not found", "failed to load verification request")
		}
		if current.Status == models.StatusCompleted {
			return dErrors.New(dErrors.CodeInvalidState, "verification request is already completed")
		}
		if current.Status == models.StatusPending {
			if err := current.Advance(models.StatusSent, now); err != nil {
				return err
			}
		}

		issuedAt := current.ExpiresAt.Add(-s.signer.TTL())
		renewed := current.IsExpired(now)
		if renewed {
			issuedAt = now
			current.ExpiryNotifiedAt = nil
		}
		signed, expiresAt, err := s.signer.Sign(claimFor(current, candidate.Name), issuedAt)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign request token")
		}
		current.TokenHash = token.Hash(signed)
		current.ExpiresAt = expiresAt
		if err := store.UpdateRequest(ctx, current); err != nil {
			return err
		}
		req, raw = current, signed
		return s.emit(ctx, audit.Event{
			CandidateID:    current.CandidateID.String(),
			VerificationID: current.ID.String(),
			Action:         string(audit.EventVerificationResent),
			Decision:       resendDecision(renewed),
			Subject:        current.Company,
		})
	})
	if err != nil {
		return nil, asDomainError(err, "failed to resend verification request")
	}

	result := &models.IssueResult{
		EntryID:        req.EntryID.String(),
		EmployerEmail:  req.EmployerEmail,
		VerificationID: req.ID.String(),
		Status:         string(req.Status),
	}
	deliveryID, dispatchErr := s.dispatch(ctx, req, candidate.Name, raw)
	if dispatchErr != nil {
		return nil, dErrors.Wrap(dispatchErr, dErrors.CodeUpstreamUnavailable, "failed to deliver verification request")
	}
	result.Dispatched = true
	result.DeliveryID = deliveryID
	return result, nil
}

// List returns the candidate's requests, newest first, with derived state
// and any recorded outcome.
func (s *Service) List(ctx context.Context, candidateID domain.CandidateID) ([]models.RequestView, error) {
	if _, err := s.candidates.Get(ctx, candidateID); err != nil {
		return nil, err
	}
	requests, err := s.store.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verification requests")
	}
	outcomes, err := s.store.ListOutcomesByCandidate(ctx, candidateID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verification outcomes")
	}
	byRequest := make(map[domain.VerificationID]*models.VerificationOutcome, len(outcomes))
	for i := range outcomes {
		byRequest[outcomes[i].VerificationID] = &outcomes[i]
	}

	now := requestcontext.Now(ctx)
	views := make([]models.RequestView, 0, len(requests))
	for _, r := range requests {
		views = append(views, models.NewRequestView(r, byRequest[r.ID], now))
	}
	return views, nil
}

// Outcomes returns every recorded outcome of the candidate.
func (s *Service) Outcomes(ctx context.Context, candidateID domain.CandidateID) ([]models.VerificationOutcome, error) {
	outcomes, err := s.store.ListOutcomesByCandidate(ctx, candidateID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verification outcomes")
	}
	return outcomes, nil
}

// Resolve verifies a request token and returns its claim for display. It
// never mutates state.
func (s *Service) Resolve(ctx context.Context, raw string) (*models.Resolution, error) {
	req, claim, err := s.loadByToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &models.Resolution{Claim: *claim, State: req.DisplayState(requestcontext.Now(ctx))}, nil
}

// loadByToken parses raw and returns the request it was issued for. A token
// whose hash no longer matches (superseded by a resend) is invalid.
func (s *Service) loadByToken(ctx context.Context, raw string) (*models.VerificationRequest, *models.Claim, error) {
	claim, err := s.signer.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, nil, err
	}
	req, err := s.store.FindRequest(ctx, claim.VerificationID)
	if err != nil {
		return nil, nil, translateNotFound(err, "verification request not found", "failed to load verification request")
	}
	if req.CandidateID != claim.CandidateID || req.TokenHash != token.Hash(strings.TrimSpace(raw)) {
		return nil, nil, dErrors.New(dErrors.CodeInvalidToken, "verification link is no longer valid")
	}
	return req, claim, nil
}

func (s *Service) dispatch(ctx context.Context, req *models.VerificationRequest, candidateName, raw string) (string, error) {
	msg, err := messaging.RenderVerificationRequest(messaging.VerificationEmail{
		To:            req.EmployerEmail,
		CandidateName: displayName(candidateName),
		Company:       req.Company,
		Position:      req.Position,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		Link:          s.link(raw),
		ExpiresOn:     req.ExpiresAt.UTC().Format("January 2, 2006"),
	})
	var deliveryID string
	if err == nil {
		deliveryID, err = s.messenger.Send(ctx, msg)
	}

	s.recordDispatch(ctx, req, deliveryID, err)
	if err != nil {
		s.logger.WarnContext(ctx, "verification request dispatch failed",
			"request_id", requestcontext.RequestID(ctx),
			"candidate_id", req.CandidateID.String(),
			"verification_id", req.ID.String(),
			"error", err,
		)
		return "", err
	}
	return deliveryID, nil
}

// recordDispatch stores the delivery attempt. It is best effort: the request
// is already sent and a failure here only loses bookkeeping.
func (s *Service) recordDispatch(ctx context.Context, req *models.VerificationRequest, deliveryID string, sendErr error) {
	action, decision := audit.EventVerificationDispatched, "delivered"
	if sendErr != nil {
		action, decision = audit.EventDispatchFailed, "failed"
	}
	err := s.tx.RunInTx(txcontext.WithShardKey(ctx, req.CandidateID.String()), func(ctx context.Context, store Store) error {
		current, err := store.FindRequest(ctx, req.ID)
		if err != nil {
			return err
		}
		current.DispatchAttempts++
		if sendErr != nil {
			current.DispatchError = truncate(sendErr.Error(), 500)
		} else {
			current.DeliveryID = deliveryID
			current.DispatchError = ""
		}
		if err := store.UpdateRequest(ctx, current); err != nil {
			return err
		}
		*req = *current
		return s.emit(ctx, audit.Event{
			CandidateID:    current.CandidateID.String(),
			VerificationID: current.ID.String(),
			Action:         string(action),
			Decision:       decision,
			Subject:        current.EmployerEmail,
		})
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record dispatch attempt",
			"verification_id", req.ID.String(),
			"error", err,
		)
	}
}

func (s *Service) link(raw string) string {
	return s.baseURL + "/verify?token=" + url.QueryEscape(raw)
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.Emit(ctx, event)
}

func claimFor(r *models.VerificationRequest, candidateName string) models.Claim {
	return models.Claim{
		VerificationID: r.ID,
		CandidateID:    r.CandidateID,
		CandidateName:  candidateName,
		Company:        r.Company,
		Position:       r.Position,
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		EmployerEmail:  r.EmployerEmail,
	}
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "A candidate"
	}
	return name
}

func itemError(err error) string {
	var de *dErrors.Error
	if errors.As(err, &de) && de.Code != dErrors.CodeInternal {
		return de.Message
	}
	return "internal error"
}

func resendDecision(renewed bool) string {
	if renewed {
		return "renewed"
	}
	return "same_window"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func translateNotFound(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	}
	return asDomainError(err, internalMsg)
}

func asDomainError(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
