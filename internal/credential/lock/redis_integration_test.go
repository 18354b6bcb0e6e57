//go:build integration

package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verihire/internal/credential/lock"
	"verihire/pkg/testutil/containers"
)

const lockPrefix = "test:credential:"

type RedisLockSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	lock  *lock.Redis
}

func TestRedisLockSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockSuite))
}

func (s *RedisLockSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.lock = lock.NewRedis(s.redis.Client, lockPrefix)
}

func (s *RedisLockSuite) SetupTest() {
	s.Require().NoError(s.redis.Purge(context.Background(), lockPrefix))
}

func (s *RedisLockSuite) TestExclusiveAcrossHolders() {
	var inside, overlaps int32
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			release, err := s.lock.Acquire(ctx, "cand-1", time.Second)
			if !s.NoError(err) {
				return
			}
			if atomic.AddInt32(&inside, 1) > 1 {
				atomic.AddInt32(&overlaps, 1)
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			s.NoError(release(context.Background()))
		}()
	}
	wg.Wait()
	s.Equal(int32(0), overlaps)
}

func (s *RedisLockSuite) TestExpiredLockCannotReleaseNewHolder() {
	ctx := context.Background()
	stale, err := s.lock.Acquire(ctx, "cand-1", 50*time.Millisecond)
	s.Require().NoError(err)
	time.Sleep(100 * time.Millisecond)

	current, err := s.lock.Acquire(ctx, "cand-1", time.Second)
	s.Require().NoError(err)
	s.ErrorIs(stale(ctx), lock.ErrNotHeld)

	exists, err := s.redis.Client.Exists(ctx, "test:credential:cand-1").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), exists)
	s.NoError(current(ctx))
}
