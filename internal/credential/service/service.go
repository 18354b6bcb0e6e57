package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	candidatemodels "verihire/internal/candidate/models"
	"verihire/internal/credential/lock"
	"verihire/internal/credential/models"
	"verihire/internal/platform/metrics"
	"verihire/internal/providers"
	"verihire/internal/providers/ledger"
	trustmodels "verihire/internal/trustscore/models"
	verificationmodels "verihire/internal/verification/models"
	"verihire/pkg/domain"
	dErrors "verihire/pkg/domain-errors"
	audit "verihire/pkg/platform/audit"
	"verihire/pkg/platform/sentinel"
	"verihire/pkg/requestcontext"
)

// Store persists credentials. Reserve inserts a pending row and returns
// sentinel.ErrAlreadyUsed when the candidate already has one, pending or
// issued; that insert is what guarantees a single ledger call per candidate.
type Store interface {
	FindByCandidate(ctx context.Context, candidateID domain.CandidateID) (*models.Credential, error)
	Reserve(ctx context.Context, credential *models.Credential) error
	Finalize(ctx context.Context, credential *models.Credential) error
	Discard(ctx context.Context, id domain.CredentialID, candidateID domain.CandidateID) error
}

type ProfileReader interface {
	Get(ctx context.Context, id domain.CandidateID) (*candidatemodels.Candidate, error)
	Profile(ctx context.Context, id domain.CandidateID) (*candidatemodels.Profile, error)
}

type OutcomeReader interface {
	Outcomes(ctx context.Context, candidateID domain.CandidateID) ([]verificationmodels.VerificationOutcome, error)
}

// Scorer computes and records a fresh trust score.
type Scorer interface {
	Compute(ctx context.Context, candidateID domain.CandidateID) (*trustmodels.TrustScore, error)
}

// Ledger mints the on-chain token. Failures are *providers.Error values.
type Ledger interface {
	Mint(ctx context.Context, req ledger.MintRequest) (ledger.Receipt, error)
}

// Locker serializes issuance for one key across every caller that shares it.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (lock.Release, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const (
	defaultLockTTL = time.Minute
	lockTimeout    = 10 * time.Second
	lockMargin     = 15 * time.Second
)

// LockTTL sizes the issuance lease so it outlives a full scoring call plus a
// full ledger call.
func LockTTL(reasoningTimeout, ledgerTimeout time.Duration) time.Duration {
	return reasoningTimeout + ledgerTimeout + lockMargin
}

// Service issues at most one credential per candidate.
type Service struct {
	store            Store
	profiles         ProfileReader
	outcomes         OutcomeReader
	scorer           Scorer
	ledger           Ledger
	locker           Locker
	lockTTL          time.Duration
	key              []byte
	defaultRecipient string
	group            singleflight.Group
	logger           *slog.Logger
	auditor          AuditPublisher
	metrics          *metrics.Metrics
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

// WithLocker replaces the in-process lock, e.g. with a Redis lock shared by
// every replica.
func WithLocker(l Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithLockTTL sets how long the issuance lock is leased; see LockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithDefaultRecipient names the wallet used when a request carries none.
func WithDefaultRecipient(recipient string) Option {
	return func(s *Service) {
		s.defaultRecipient = recipient
	}
}

func New(store Store, profiles ProfileReader, outcomes OutcomeReader, scorer Scorer, mint Ledger, hmacKey []byte, opts ...Option) *Service {
	s := &Service{
		store:    store,
		profiles: profiles,
		outcomes: outcomes,
		scorer:   scorer,
		ledger:   mint,
		locker:   lock.NewMemory(),
		lockTTL:  defaultLockTTL,
		key:      hmacKey,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue returns the candidate's credential, minting it on first call.
// Concurrent calls for one candidate share a single mint.
func (s *Service) Issue(ctx context.Context, candidateID domain.CandidateID, req models.IssueRequest) (*models.Credential, error) {
	existing, err := s.existing(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	// A pending row may be this process's own in-flight mint; the flight below
	// joins it, and the locked path reports conflict when it belongs elsewhere.
	if existing != nil && existing.Issued() {
		return s.settled(existing, nil)
	}

	recipient := req.Recipient
	if recipient == "" {
		recipient = s.defaultRecipient
	}
	if recipient == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "recipient is required")
	}

	v, err, _ := s.group.Do(candidateID.String(), func() (any, error) {
		return s.issueLocked(ctx, candidateID, recipient)
	})
	if err != nil {
		s.metrics.IncCredentialsIssued("failed")
		return nil, err
	}
	return v.(*models.Credential), nil
}

func (s *Service) issueLocked(ctx context.Context, candidateID domain.CandidateID, recipient string) (*models.Credential, error) {
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	release, err := s.locker.Acquire(lockCtx, "credential:"+candidateID.String(), s.lockTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConflict, "credential issuance already in progress")
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to release issuance lock", "candidate_id", candidateID, "error", err)
		}
	}()

	// Another replica may have reserved or minted while we waited.
	if existing, err := s.existing(ctx, candidateID); err != nil || existing != nil {
		return s.settled(existing, err)
	}

	credential, err := s.build(ctx, candidateID, recipient)
	if err != nil {
		return nil, err
	}

	// The reservation, not the lock, decides who calls the ledger: a lease that
	// expired mid-mint still leaves this row in place for the next holder.
	if err := s.store.Reserve(ctx, credential); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return s.settled(s.existing(ctx, candidateID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve credential")
	}

	receipt, err := s.ledger.Mint(ctx, ledger.MintRequest{
		Recipient:         credential.Recipient,
		CandidateID:       candidateID.String(),
		Hash:              credential.Hash,
		Score:             credential.Score,
		VerificationCount: credential.VerificationCount,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "credential mint failed",
			"candidate_id", candidateID,
			"category", providers.CategoryOf(err),
			"error", err,
		)
		if derr := s.store.Discard(context.WithoutCancel(ctx), credential.ID, candidateID); derr != nil {
			s.logger.ErrorContext(ctx, "failed to discard credential reservation", "candidate_id", candidateID, "error", derr)
		}
		return nil, mintError(err)
	}
	credential.TokenID = receipt.TokenID
	credential.TxHash = receipt.TxHash

	if err := s.store.Finalize(context.WithoutCancel(ctx), credential); err != nil {
		s.logger.ErrorContext(ctx, "minted credential not recorded",
			"candidate_id", candidateID,
			"token_id", receipt.TokenID,
			"tx_hash", receipt.TxHash,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save credential")
	}
	credential.Status = models.StatusIssued

	s.metrics.IncCredentialsIssued("minted")
	if err := s.emit(ctx, audit.Event{
		CandidateID: candidateID.String(),
		Action:      string(audit.EventCredentialIssued),
		Decision:    string(credential.TrustLevel),
		Reason:      strconv.Itoa(credential.Score),
		Subject:     credential.TokenID,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit credential audit event", "candidate_id", candidateID, "error", err)
	}
	s.logger.InfoContext(ctx, "credential issued",
		"candidate_id", candidateID,
		"token_id", credential.TokenID,
		"trust_level", credential.TrustLevel,
	)
	return credential, nil
}

// settled resolves a stored row for Issue: an issued credential is returned
// as is, a pending one means another caller is minting right now.
func (s *Service) settled(credential *models.Credential, err error) (*models.Credential, error) {
	if err != nil {
		return nil, err
	}
	if credential == nil || !credential.Issued() {
		return nil, dErrors.New(dErrors.CodeConflict, "credential issuance already in progress")
	}
	s.metrics.IncCredentialsIssued("existing")
	return credential, nil
}

func (s *Service) build(ctx context.Context, candidateID domain.CandidateID, recipient string) (*models.Credential, error) {
	profile, err := s.profiles.Profile(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	outcomes, err := s.outcomes.Outcomes(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	score, err := s.scorer.Compute(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	verified := make([]verificationmodels.VerificationOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Verified {
			verified = append(verified, o)
		}
	}
	roles := 0
	for _, e := range profile.WorkHistory {
		if !e.Placeholder {
			roles++
		}
	}

	now := requestcontext.Now(ctx)
	hash, err := Digest(s.key, candidateID, profile.WorkHistory, verified, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute credential digest")
	}
	return &models.Credential{
		ID:                domain.NewCredentialID(),
		CandidateID:       candidateID,
		Hash:              hash,
		Score:             score.Score,
		VerificationCount: len(verified),
		TrustLevel:        models.LevelFor(score.Score),
		ExperienceYears:   models.ExperienceYears(roles),
		Recipient:         recipient,
		Status:            models.StatusPending,
		IssuedAt:          now,
	}, nil
}

// Get returns the candidate's credential.
func (s *Service) Get(ctx context.Context, candidateID domain.CandidateID) (*models.Credential, error) {
	credential, err := s.existing(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if credential == nil || !credential.Issued() {
		return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
	}
	return credential, nil
}

// existing checks the candidate exists and returns its credential row, pending
// or issued, or nil when there is none.
func (s *Service) existing(ctx context.Context, candidateID domain.CandidateID) (*models.Credential, error) {
	if _, err := s.profiles.Get(ctx, candidateID); err != nil {
		return nil, err
	}
	credential, err := s.store.FindByCandidate(ctx, candidateID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	return credential, nil
}

func mintError(err error) error {
	switch providers.CategoryOf(err) {
	case providers.CategoryTimeout:
		return dErrors.Wrap(err, dErrors.CodeTimeout, "ledger timed out")
	case providers.CategoryRejected:
		return dErrors.Wrap(err, dErrors.CodeConflict, "ledger rejected the mint")
	default:
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "ledger unavailable")
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.Emit(ctx, event)
}
