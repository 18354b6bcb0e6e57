package tx

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "verihire/pkg/domain-errors"
)

func TestSharded_SerializesSameKey(t *testing.T) {
	runner := NewSharded(struct{}{})
	ctx := WithShardKey(context.Background(), "cand-1")

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := runner.RunInTx(ctx, func(ctx context.Context, _ struct{}) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestSharded_CancelledContext(t *testing.T) {
	runner := NewSharded(struct{}{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := runner.RunInTx(ctx, func(context.Context, struct{}) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.False(t, called)
}

func TestSharded_PropagatesError(t *testing.T) {
	runner := NewSharded("store")
	want := dErrors.New(dErrors.CodeConflict, "taken")
	err := runner.RunInTx(context.Background(), func(_ context.Context, s string) error {
		assert.Equal(t, "store", s)
		return want
	})
	assert.Same(t, want, err)
}
