// Package lock serializes credential issuance per candidate, in process or
// across replicas through Redis.
package lock

import (
	"context"
	"sync"
	"time"
)

// Release frees a held lock.
type Release func(ctx context.Context) error

// Memory is a per-key lock for a single process.
type Memory struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewMemory() *Memory {
	return &Memory{held: make(map[string]chan struct{})}
}

// Acquire blocks until key is free or ctx is done. ttl is ignored; the lock
// lives until released.
func (m *Memory) Acquire(ctx context.Context, key string, _ time.Duration) (Release, error) {
	for {
		m.mu.Lock()
		wait, taken := m.held[key]
		if !taken {
			done := make(chan struct{})
			m.held[key] = done
			m.mu.Unlock()
			return m.release(key, done), nil
		}
		m.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *Memory) release(key string, done chan struct{}) Release {
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
			close(done)
		})
		return nil
	}
}
