// Package store persists verification requests, nullifier reservations and
// outcomes in memory or PostgreSQL.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"verihire/internal/verification/models"
	"verihire/pkg/domain"
	"verihire/pkg/platform/sentinel"
)

type pairKey struct {
	candidate domain.CandidateID
	nullifier string
}

// InMemoryStore keeps verification state in maps guarded by one mutex, so
// reservation inserts are atomic check-and-set operations.
type InMemoryStore struct {
	mu           sync.RWMutex
	requests     map[domain.VerificationID]models.VerificationRequest
	reservations map[pairKey]models.Reservation
	outcomes     map[domain.VerificationID]models.VerificationOutcome
	outcomePairs map[pairKey]domain.VerificationID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		requests:     make(map[domain.VerificationID]models.VerificationRequest),
		reservations: make(map[pairKey]models.Reservation),
		outcomes:     make(map[domain.VerificationID]models.VerificationOutcome),
		outcomePairs: make(map[pairKey]domain.VerificationID),
	}
}

func (s *InMemoryStore) CreateRequest(_ context.Context, r *models.VerificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.requests[r.ID] = *r
	return nil
}

func (s *InMemoryStore) FindRequest(_ context.Context, id domain.VerificationID) (*models.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &r, nil
}

func (s *InMemoryStore) UpdateRequest(_ context.Context, r *models.VerificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.requests[r.ID] = *r
	return nil
}

func (s *InMemoryStore) ListByCandidate(_ context.Context, candidateID domain.CandidateID) ([]models.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.VerificationRequest, 0)
	for _, r := range s.requests {
		if r.CandidateID == candidateID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) CountByEntry(_ context.Context, candidateID domain.CandidateID, entryID domain.EntryID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.requests {
		if r.CandidateID == candidateID && r.EntryID == entryID {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) ReserveNullifier(_ context.Context, r *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{candidate: r.CandidateID, nullifier: r.Nullifier}
	if _, ok := s.reservations[key]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.reservations[key] = *r
	return nil
}

func (s *InMemoryStore) FindReservation(_ context.Context, candidateID domain.CandidateID, nullifier string) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[pairKey{candidate: candidateID, nullifier: nullifier}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &r, nil
}

func (s *InMemoryStore) SaveOutcome(_ context.Context, o *models.VerificationOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{candidate: o.CandidateID, nullifier: o.Nullifier}
	if _, ok := s.outcomes[o.VerificationID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.outcomePairs[key]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.outcomes[o.VerificationID] = *o
	s.outcomePairs[key] = o.VerificationID
	return nil
}

func (s *InMemoryStore) FindOutcomeByRequest(_ context.Context, id domain.VerificationID) (*models.VerificationOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.outcomes[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &o, nil
}

func (s *InMemoryStore) ListOutcomesByCandidate(_ context.Context, candidateID domain.CandidateID) ([]models.VerificationOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.VerificationOutcome, 0)
	for _, o := range s.outcomes {
		if o.CandidateID == candidateID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out, nil
}

func (s *InMemoryStore) ListExpiredUnnotified(_ context.Context, now time.Time, limit int) ([]models.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.VerificationRequest, 0)
	for _, r := range s.requests {
		if r.Status == models.StatusSent && r.IsExpired(now) && r.ExpiryNotifiedAt == nil {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) MarkExpiryNotified(_ context.Context, id domain.VerificationID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	r.ExpiryNotifiedAt = &at
	s.requests[id] = r
	return nil
}
