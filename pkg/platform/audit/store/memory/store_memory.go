package memory

import (
	"context"
	"sync"

	audit "verihire/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.CandidateID] = append(s.events[event.CandidateID], event)
	return nil
}

func (s *InMemoryStore) ListByCandidate(_ context.Context, candidateID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[candidateID]...), nil
}

// CountAction returns how many events with the given action were appended; tests only.
func (s *InMemoryStore) CountAction(action audit.AuditEvent) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, events := range s.events {
		for _, e := range events {
			if e.Action == string(action) {
				n++
			}
		}
	}
	return n
}
