package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotHeld = errors.New("lock no longer held")

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const defaultRetryInterval = 50 * time.Millisecond

// Redis is a SET NX PX lock shared by every replica.
type Redis struct {
	client redis.Cmdable
	prefix string
	retry  time.Duration
}

func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix, retry: defaultRetryInterval}
}

// Acquire polls until the key is set or ctx is done. The key expires after
// ttl so a crashed holder cannot block issuance forever.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	full := r.prefix + key
	token := uuid.NewString()
	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, full, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", full, err)
		}
		if ok {
			return r.release(full, token), nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (r *Redis) release(key, token string) Release {
	return func(ctx context.Context) error {
		deleted, err := releaseScript.Run(ctx, r.client, []string{key}, token).Int()
		if err != nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		if deleted == 0 {
			return ErrNotHeld
		}
		return nil
	}
}
