package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"verihire/internal/candidate/models"
	"verihire/pkg/domain"
	"verihire/pkg/platform/sentinel"
)

// InMemoryStore keeps candidates in maps. Returned values are copies.
type InMemoryStore struct {
	mu         sync.RWMutex
	candidates map[domain.CandidateID]models.Candidate
	entries    map[domain.EntryID]models.WorkHistoryEntry
	education  map[domain.CandidateID][]models.Education
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		candidates: make(map[domain.CandidateID]models.Candidate),
		entries:    make(map[domain.EntryID]models.WorkHistoryEntry),
		education:  make(map[domain.CandidateID][]models.Education),
	}
}

func (s *InMemoryStore) FindCandidate(_ context.Context, id domain.CandidateID) (*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.candidates[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneCandidate(c), nil
}

func (s *InMemoryStore) CreateCandidate(_ context.Context, c *models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.candidates[c.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.candidates[c.ID] = *cloneCandidate(*c)
	return nil
}

func (s *InMemoryStore) UpdateCandidate(_ context.Context, c *models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.candidates[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.candidates[c.ID] = *cloneCandidate(*c)
	return nil
}

func (s *InMemoryStore) ListWorkHistory(_ context.Context, id domain.CandidateID) ([]models.WorkHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.WorkHistoryEntry, 0)
	for _, e := range s.entries {
		if e.CandidateID == id && e.Active() {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Ordinal != out[j].Ordinal {
			return out[i].Ordinal < out[j].Ordinal
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) FindEntry(_ context.Context, id domain.CandidateID, entryID domain.EntryID) (*models.WorkHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[entryID]
	if !ok || e.CandidateID != id {
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}

// FindEntryForUpdate is FindEntry; the sharded transaction around the caller
// already serializes writers of one candidate.
func (s *InMemoryStore) FindEntryForUpdate(ctx context.Context, id domain.CandidateID, entryID domain.EntryID) (*models.WorkHistoryEntry, error) {
	return s.FindEntry(ctx, id, entryID)
}

func (s *InMemoryStore) AddEntries(_ context.Context, entries []models.WorkHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if _, ok := s.entries[e.ID]; ok {
			return sentinel.ErrAlreadyUsed
		}
	}
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	return nil
}

func (s *InMemoryStore) UpdateEntry(_ context.Context, entry *models.WorkHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.entries[entry.ID] = *entry
	return nil
}

func (s *InMemoryStore) SupersedeActive(_ context.Context, id domain.CandidateID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for entryID, e := range s.entries {
		if e.CandidateID == id && e.Active() {
			stamp := at
			e.SupersededAt = &stamp
			e.UpdatedAt = at
			s.entries[entryID] = e
		}
	}
	return nil
}

func (s *InMemoryStore) ReplaceEducation(_ context.Context, id domain.CandidateID, education []models.Education) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.education[id] = append([]models.Education(nil), education...)
	return nil
}

func (s *InMemoryStore) ListEducation(_ context.Context, id domain.CandidateID) ([]models.Education, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Education{}, s.education[id]...), nil
}

func cloneCandidate(c models.Candidate) *models.Candidate {
	c.Skills = append([]string{}, c.Skills...)
	if c.Presence != nil {
		p := *c.Presence
		c.Presence = &p
	}
	return &c
}
