// Package lock provides a redis-backed distributed lock for singleton jobs
// such as the invoice sweep.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned by TryWithLock when another holder owns the key.
var ErrNotAcquired = errors.New("lock: not acquired")

// unlockScript deletes the key only while the caller still owns it, so an
// expired holder cannot release a lock someone else re-acquired.
const unlockScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`

// Locker acquires redis locks keyed by job name.
type Locker struct {
	R redis.UniversalClient
}

// TryWithLock runs fn only if the lock is free; it never waits. The lock is
// released when fn returns, even on error.
func (l Locker) TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	switch {
	case l.R == nil:
		return errors.New("lock: redis client not configured")
	case fn == nil:
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	owner := uuid.NewString()
	acquired, err := l.R.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return err
	}
	if !acquired {
		return ErrNotAcquired
	}
	// release must run even when ctx is already canceled
	defer func() {
		_ = l.R.Eval(context.Background(), unlockScript, []string{key}, owner).Err()
	}()
	return fn(ctx)
}
