package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	candidatemodels "verihire/internal/candidate/models"
	"verihire/internal/platform/metrics"
	"verihire/internal/trustscore/models"
	verificationmodels "verihire/internal/verification/models"
	"verihire/pkg/domain"
	dErrors "verihire/pkg/domain-errors"
	audit "verihire/pkg/platform/audit"
	"verihire/pkg/platform/sentinel"
	"verihire/pkg/requestcontext"
)

// Store keeps the append-only score history. ListByCandidate is newest first;
// Latest returns sentinel.ErrNotFound when no score exists.
type Store interface {
	Save(ctx context.Context, score *models.TrustScore) error
	Latest(ctx context.Context, candidateID domain.CandidateID) (*models.TrustScore, error)
	ListByCandidate(ctx context.Context, candidateID domain.CandidateID) ([]models.TrustScore, error)
}

// ProfileReader returns the candidate aggregate; errors are domain errors.
type ProfileReader interface {
	Get(ctx context.Context, id domain.CandidateID) (*candidatemodels.Candidate, error)
	Profile(ctx context.Context, id domain.CandidateID) (*candidatemodels.Profile, error)
}

// VerificationReader lists a candidate's requests with their outcomes.
type VerificationReader interface {
	List(ctx context.Context, candidateID domain.CandidateID) ([]verificationmodels.RequestView, error)
}

// Calculator never fails; it degrades to a deterministic score.
type Calculator interface {
	Calculate(ctx context.Context, data models.CandidateData) models.Result
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service computes and records trust scores.
type Service struct {
	store         Store
	profiles      ProfileReader
	verifications VerificationReader
	calculator    Calculator
	logger        *slog.Logger
	auditor       AuditPublisher
	metrics       *metrics.Metrics
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

func New(store Store, profiles ProfileReader, verifications VerificationReader, calculator Calculator, opts ...Option) *Service {
	s := &Service{
		store:         store,
		profiles:      profiles,
		verifications: verifications,
		calculator:    calculator,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compute scores the candidate from current state and appends the result to
// the history.
func (s *Service) Compute(ctx context.Context, candidateID domain.CandidateID) (*models.TrustScore, error) {
	data, err := s.Gather(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	result := s.calculator.Calculate(ctx, *data)
	score := &models.TrustScore{
		ID:          domain.NewScoreID(),
		CandidateID: candidateID,
		Result:      result,
		ComputedAt:  requestcontext.Now(ctx),
	}
	if err := s.store.Save(ctx, score); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save trust score")
	}

	s.metrics.ObserveTrustScore(string(score.Source), score.Score)
	if err := s.emit(ctx, audit.Event{
		CandidateID: candidateID.String(),
		Action:      string(audit.EventTrustScoreComputed),
		Decision:    string(score.Source),
		Reason:      strconv.Itoa(score.Score),
		RequestID:   requestcontext.RequestID(ctx),
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit trust score audit event", "candidate_id", candidateID, "error", err)
	}

	logArgs := []any{"candidate_id", candidateID, "score", score.Score, "source", score.Source}
	if score.Source.IsFallback() {
		s.logger.WarnContext(ctx, "trust score computed with fallback", logArgs...)
	} else {
		s.logger.InfoContext(ctx, "trust score computed", logArgs...)
	}
	return score, nil
}

// Gather aggregates the engine input for one candidate.
func (s *Service) Gather(ctx context.Context, candidateID domain.CandidateID) (*models.CandidateData, error) {
	profile, err := s.profiles.Profile(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	views, err := s.verifications.List(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	data := &models.CandidateData{
		CandidateID:   candidateID,
		Name:          profile.Candidate.Name,
		TotalRequests: len(views),
		WorkHistory:   profile.WorkHistory,
		Skills:        profile.Candidate.Skills,
		Profiles:      profile.Candidate.Profiles,
		Presence:      profile.Candidate.Presence,
	}
	for _, v := range views {
		if v.Outcome == nil {
			continue
		}
		data.TotalOutcomes++
		if v.Outcome.Verified {
			data.SuccessfulOutcomes++
		}
	}
	return data, nil
}

// History returns every score of the candidate, newest first.
func (s *Service) History(ctx context.Context, candidateID domain.CandidateID) ([]models.TrustScore, error) {
	if _, err := s.profiles.Get(ctx, candidateID); err != nil {
		return nil, err
	}
	scores, err := s.store.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list trust scores")
	}
	return scores, nil
}

// Latest returns the current score, or a not_found error when the candidate
// has never been scored.
func (s *Service) Latest(ctx context.Context, candidateID domain.CandidateID) (*models.TrustScore, error) {
	score, err := s.store.Latest(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "trust score not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trust score")
	}
	return score, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.Emit(ctx, event)
}
