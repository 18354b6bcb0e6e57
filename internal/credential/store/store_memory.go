// Package store persists credentials with a uniqueness constraint on the
// candidate. A row is reserved as pending before the ledger is called and
// finalized with the receipt afterwards.
package store

import (
	"context"
	"sync"

	"verihire/internal/credential/models"
	"verihire/pkg/domain"
	"verihire/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu          sync.RWMutex
	credentials map[domain.CandidateID]models.Credential
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{credentials: make(map[domain.CandidateID]models.Credential)}
}

func (s *InMemoryStore) FindByCandidate(_ context.Context, candidateID domain.CandidateID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[candidateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

// Reserve stores credential as pending. It fails with sentinel.ErrAlreadyUsed
// when the candidate has any row, pending or issued.
func (s *InMemoryStore) Reserve(_ context.Context, credential *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credentials[credential.CandidateID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	c := *credential
	c.Status = models.StatusPending
	s.credentials[c.CandidateID] = c
	return nil
}

// Finalize records the ledger receipt on a pending reservation.
func (s *InMemoryStore) Finalize(_ context.Context, credential *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[credential.CandidateID]
	if !ok || c.ID != credential.ID || c.Status != models.StatusPending {
		return sentinel.ErrNotFound
	}
	c.TokenID = credential.TokenID
	c.TxHash = credential.TxHash
	c.Status = models.StatusIssued
	s.credentials[c.CandidateID] = c
	return nil
}

// Discard drops a pending reservation. Issued rows are left alone.
func (s *InMemoryStore) Discard(_ context.Context, id domain.CredentialID, candidateID domain.CandidateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[candidateID]
	if ok && c.ID == id && c.Status == models.StatusPending {
		delete(s.credentials, candidateID)
	}
	return nil
}
