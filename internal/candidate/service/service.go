package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"verihire/internal/candidate/models"
	"verihire/internal/platform/metrics"
	"verihire/internal/resume"
	"verihire/pkg/domain"
	dErrors "verihire/pkg/domain-errors"
	audit "verihire/pkg/platform/audit"
	"verihire/pkg/platform/sentinel"
	txcontext "verihire/pkg/platform/tx"
	"verihire/pkg/requestcontext"
)

// Store persists candidates and the résumé-derived records they own.
type Store interface {
	FindCandidate(ctx context.Context, id domain.CandidateID) (*models.Candidate, error)
	CreateCandidate(ctx context.Context, c *models.Candidate) error
	UpdateCandidate(ctx context.Context, c *models.Candidate) error
	ListWorkHistory(ctx context.Context, id domain.CandidateID) ([]models.WorkHistoryEntry, error)
	FindEntry(ctx context.Context, id domain.CandidateID, entryID domain.EntryID) (*models.WorkHistoryEntry, error)
	FindEntryForUpdate(ctx context.Context, id domain.CandidateID, entryID domain.EntryID) (*models.WorkHistoryEntry, error)
	AddEntries(ctx context.Context, entries []models.WorkHistoryEntry) error
	UpdateEntry(ctx context.Context, entry *models.WorkHistoryEntry) error
	SupersedeActive(ctx context.Context, id domain.CandidateID, at time.Time) error
	ReplaceEducation(ctx context.Context, id domain.CandidateID, education []models.Education) error
	ListEducation(ctx context.Context, id domain.CandidateID) ([]models.Education, error)
}

// StoreTx runs fn inside one transactional boundary.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// RequestCounter reports how many verification requests reference an entry.
type RequestCounter interface {
	CountByEntry(ctx context.Context, candidateID domain.CandidateID, entryID domain.EntryID) (int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns candidates, their work history and education.
type Service struct {
	store    Store
	tx       StoreTx
	requests RequestCounter
	parser   *resume.Parser
	logger   *slog.Logger
	auditor  AuditPublisher
	metrics  *metrics.Metrics
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

func WithParser(p *resume.Parser) Option {
	return func(s *Service) {
		s.parser = p
	}
}

func New(store Store, tx StoreTx, requests RequestCounter, opts ...Option) *Service {
	s := &Service{
		store:    store,
		tx:       tx,
		requests: requests,
		parser:   resume.NewParser(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest parses résumé text and stores the result. The candidate is created
// on first upload; on later uploads missing contact details are filled and the
// previous work history is superseded by the new one.
func (s *Service) Ingest(ctx context.Context, id domain.CandidateID, text string, extraSkills []string) (*models.IngestResult, error) {
	parsed := s.parser.Parse(text)
	now := requestcontext.Now(ctx)

	result := &models.IngestResult{Parsed: parsed}
	err := s.tx.RunInTx(txcontext.WithShardKey(ctx, id.String()), func(ctx context.Context, store Store) error {
		candidate, err := store.FindCandidate(ctx, id)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			candidate = &models.Candidate{
				ID:        id,
				Name:      parsed.Name,
				Email:     parsed.Email,
				Phone:     parsed.Phone,
				Skills:    models.MergeSkills(parsed.Skills, extraSkills...),
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := store.CreateCandidate(ctx, candidate); err != nil {
				return err
			}
			result.Created = true
		case err != nil:
			return err
		default:
			fillContact(candidate, parsed)
			candidate.Skills = models.MergeSkills(candidate.Skills, append(parsed.Skills, extraSkills...)...)
			candidate.UpdatedAt = now
			if err := store.UpdateCandidate(ctx, candidate); err != nil {
				return err
			}
			if err := store.SupersedeActive(ctx, id, now); err != nil {
				return err
			}
		}

		entries := make([]models.WorkHistoryEntry, 0, len(parsed.WorkExperience))
		for i, w := range parsed.WorkExperience {
			entries = append(entries, models.WorkHistoryEntry{
				ID:          domain.NewEntryID(),
				CandidateID: id,
				Ordinal:     i,
				Company:     w.Company,
				Position:    w.Position,
				StartDate:   w.StartDate,
				EndDate:     w.EndDate,
				Description: w.Description,
				Location:    w.Location,
				Placeholder: w.Placeholder,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
		if err := store.AddEntries(ctx, entries); err != nil {
			return err
		}

		education := make([]models.Education, 0, len(parsed.Education))
		for i, e := range parsed.Education {
			education = append(education, models.Education{
				ID:          uuid.New(),
				CandidateID: id,
				Ordinal:     i,
				Institution: e.Institution,
				Degree:      e.Degree,
				Field:       e.Field,
				Year:        e.Year,
			})
		}
		if err := store.ReplaceEducation(ctx, id, education); err != nil {
			return err
		}

		result.Candidate = candidate
		result.WorkHistory = entries
		result.Education = education
		return s.emit(ctx, audit.Event{
			CandidateID: id.String(),
			Action:      string(audit.EventResumeIngested),
			Decision:    decisionFor(result.Created),
		})
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store parsed résumé")
	}

	s.metrics.IncResumesParsed(parsed.PlaceholderCount())
	s.logger.InfoContext(ctx, "résumé ingested",
		"request_id", requestcontext.RequestID(ctx),
		"candidate_id", id.String(),
		"entries", len(result.WorkHistory),
		"placeholders", parsed.PlaceholderCount(),
		"created", result.Created,
	)
	return result, nil
}

// Get returns the candidate record.
func (s *Service) Get(ctx context.Context, id domain.CandidateID) (*models.Candidate, error) {
	candidate, err := s.store.FindCandidate(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "candidate not found", "failed to load candidate")
	}
	return candidate, nil
}

// Profile returns the candidate with active work history and education.
func (s *Service) Profile(ctx context.Context, id domain.CandidateID) (*models.Profile, error) {
	candidate, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := s.store.ListWorkHistory(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load work history")
	}
	education, err := s.store.ListEducation(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load education")
	}
	return &models.Profile{Candidate: candidate, WorkHistory: history, Education: education}, nil
}

// FindEntry returns one work-history entry of the candidate, superseded or not.
func (s *Service) FindEntry(ctx context.Context, id domain.CandidateID, entryID domain.EntryID) (*models.WorkHistoryEntry, error) {
	entry, err := s.store.FindEntry(ctx, id, entryID)
	if err != nil {
		return nil, translateNotFound(err, "work history entry not found", "failed to load work history entry")
	}
	return entry, nil
}

// FreezeEntry marks an active entry as claimed by a verification request and
// returns it. Once frozen, edits go to a successor entry, so the returned
// snapshot stays the entry's content for good.
func (s *Service) FreezeEntry(ctx context.Context, id domain.CandidateID, entryID domain.EntryID) (*models.WorkHistoryEntry, error) {
	var frozen *models.WorkHistoryEntry
	err := s.tx.RunInTx(txcontext.WithShardKey(ctx, id.String()), func(ctx context.Context, store Store) error {
		entry, err := store.FindEntryForUpdate(ctx, id, entryID)
		if err != nil {
			return translateNotFound(err, "work history entry not found", "failed to load work history entry")
		}
		if !entry.Active() {
			return dErrors.New(dErrors.CodeInvalidState, "work history entry has been superseded")
		}
		if !entry.Frozen() {
			now := requestcontext.Now(ctx)
			entry.FrozenAt = &now
			if err := store.UpdateEntry(ctx, entry); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to freeze work history entry")
			}
		}
		frozen = entry
		return nil
	})
	if err != nil {
		return nil, asDomainError(err, "failed to freeze work history entry")
	}
	return frozen, nil
}

// EditEntry applies a manual edit. An entry that is frozen or already
// referenced by a verification request is left as is: the edit creates a
// successor entry and the original is marked superseded.
func (s *Service) EditEntry(ctx context.Context, id domain.CandidateID, entryID domain.EntryID, update models.WorkHistoryUpdate) (*models.EditResult, error) {
	now := requestcontext.Now(ctx)
	var result models.EditResult

	err := s.tx.RunInTx(txcontext.WithShardKey(ctx, id.String()), func(ctx context.Context, store Store) error {
		entry, err := store.FindEntryForUpdate(ctx, id, entryID)
		if err != nil {
			return translateNotFound(err, "work history entry not found", "failed to load work history entry")
		}
		if !entry.Active() {
			return dErrors.New(dErrors.CodeInvalidState, "work history entry has been superseded")
		}

		referenced := 0
		if !entry.Frozen() {
			if referenced, err = s.requests.CountByEntry(ctx, id, entryID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check verification requests")
			}
		}

		if !entry.Frozen() && referenced == 0 {
			applyUpdate(entry, update)
			entry.UpdatedAt = now
			if err := store.UpdateEntry(ctx, entry); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update work history entry")
			}
			result.Entry = *entry
		} else {
			successor := *entry
			successor.ID = domain.NewEntryID()
			successor.FrozenAt = nil
			successor.CreatedAt = now
			successor.UpdatedAt = now
			applyUpdate(&successor, update)

			entry.SupersededAt = &now
			entry.SupersededBy = &successor.ID
			entry.UpdatedAt = now
			if err := store.UpdateEntry(ctx, entry); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to supersede work history entry")
			}
			if err := store.AddEntries(ctx, []models.WorkHistoryEntry{successor}); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store work history entry")
			}
			superseded := entry.ID
			result.Entry = successor
			result.Superseded = &superseded
		}

		return s.emit(ctx, audit.Event{
			CandidateID: id.String(),
			Action:      string(audit.EventWorkHistoryEdited),
			Decision:    editDecision(result.Superseded != nil),
			Subject:     result.Entry.Company,
		})
	})
	if err != nil {
		return nil, asDomainError(err, "failed to edit work history entry")
	}
	return &result, nil
}

// UpdateProfiles stores social profile references, presence signals and any
// explicitly declared skills.
func (s *Service) UpdateProfiles(ctx context.Context, id domain.CandidateID, update models.ProfilesUpdate) (*models.Candidate, error) {
	var updated *models.Candidate
	err := s.tx.RunInTx(txcontext.WithShardKey(ctx, id.String()), func(ctx context.Context, store Store) error {
		candidate, err := store.FindCandidate(ctx, id)
		if err != nil {
			return translateNotFound(err, "candidate not found", "failed to load candidate")
		}
		candidate.Profiles = models.SocialProfiles{GitHubURL: update.GitHubURL, LinkedInURL: update.LinkedInURL}
		if update.Presence != nil {
			candidate.Presence = update.Presence
		}
		candidate.Skills = models.MergeSkills(candidate.Skills, update.Skills...)
		candidate.UpdatedAt = requestcontext.Now(ctx)
		if err := store.UpdateCandidate(ctx, candidate); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update candidate")
		}
		updated = candidate
		return s.emit(ctx, audit.Event{
			CandidateID: id.String(),
			Action:      string(audit.EventProfilesUpdated),
		})
	})
	if err != nil {
		return nil, asDomainError(err, "failed to update profiles")
	}
	return updated, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.Emit(ctx, event)
}

func fillContact(c *models.Candidate, parsed resume.Result) {
	if c.Name == "" {
		c.Name = parsed.Name
	}
	if c.Email == "" {
		c.Email = parsed.Email
	}
	if c.Phone == "" {
		c.Phone = parsed.Phone
	}
}

func applyUpdate(e *models.WorkHistoryEntry, u models.WorkHistoryUpdate) {
	e.Company = u.Company
	e.Position = u.Position
	e.StartDate = u.StartDate
	e.EndDate = u.EndDate
	e.Description = u.Description
	e.Location = u.Location
	e.Placeholder = false
	e.SupersededAt = nil
	e.SupersededBy = nil
}

func translateNotFound(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
}

func asDomainError(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func decisionFor(created bool) string {
	if created {
		return "created"
	}
	return "replaced"
}

func editDecision(superseded bool) string {
	if superseded {
		return "superseded"
	}
	return "in_place"
}
