// Package store keeps the trust score history in memory or PostgreSQL.
package store

import (
	"context"
	"sort"
	"sync"

	"verihire/internal/trustscore/models"
	"verihire/pkg/domain"
	"verihire/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	scores map[domain.CandidateID][]models.TrustScore
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{scores: make(map[domain.CandidateID][]models.TrustScore)}
}

func (s *InMemoryStore) Save(_ context.Context, score *models.TrustScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[score.CandidateID] = append(s.scores[score.CandidateID], *score)
	return nil
}

func (s *InMemoryStore) Latest(ctx context.Context, candidateID domain.CandidateID) (*models.TrustScore, error) {
	scores, _ := s.ListByCandidate(ctx, candidateID)
	if len(scores) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return &scores[0], nil
}

func (s *InMemoryStore) ListByCandidate(_ context.Context, candidateID domain.CandidateID) ([]models.TrustScore, error) {
	s.mu.RLock()
	out := append([]models.TrustScore(nil), s.scores[candidateID]...)
	s.mu.RUnlock()
	// Stable keeps insertion order for equal timestamps; reverse it for newest first.
	sort.SliceStable(out, func(i, j int) bool { return out[i].ComputedAt.Before(out[j].ComputedAt) })
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
