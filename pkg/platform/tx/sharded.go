package tx

import (
	"context"
	"sync"
	"time"

	dErrors "verihire/pkg/domain-errors"
)

const (
	numShards      = 128
	defaultTimeout = 5 * time.Second
)

type shardKey struct{}

// WithShardKey selects the lock shard an in-memory transaction runs under.
// Services key it by candidate so unrelated candidates never contend.
func WithShardKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, shardKey{}, key)
}

// Sharded serializes in-memory transactions with a fixed set of mutexes
// selected by the shard key in context.
type Sharded[S any] struct {
	shards  [numShards]sync.Mutex
	store   S
	timeout time.Duration
}

func NewSharded[S any](store S) *Sharded[S] {
	return &Sharded[S]{store: store, timeout: defaultTimeout}
}

func (t *Sharded[S]) RunInTx(ctx context.Context, fn func(ctx context.Context, store S) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx, t.store)
}

func (t *Sharded[S]) selectShard(ctx context.Context) int {
	if key, ok := ctx.Value(shardKey{}).(string); ok && key != "" {
		return int(fnv1a(key) % numShards)
	}
	return 0
}

func fnv1a(s string) uint32 {
	const (
		offset = 2166136261
		prime  = 16777619
	)
	h := uint32(offset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}
