// Package lock provides the optional serialisation point taken while a
// rebooking decision checks and commits its target slot.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/venue-scheduler/internal/application"
)

// ErrNotAcquired is returned when the lock stays held by another owner until
// the wait deadline. Services map it to application.ErrBusy; any other
// Acquire error is a fault.
var ErrNotAcquired = application.ErrLockNotAcquired

const (
	// DefaultTTL bounds how long a crashed holder can keep a slot locked.
	DefaultTTL = 10 * time.Second
	// DefaultWait is how long Acquire retries before giving up.
	DefaultWait = 3 * time.Second

	retryInterval = 50 * time.Millisecond
	keyPrefix     = "venue-scheduler:lock:"
)

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements a single-instance Redis lock using SET NX PX.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
	token  func() string
}

// NewRedisLocker returns a locker over client. Non-positive durations fall
// back to DefaultTTL and DefaultWait.
func NewRedisLocker(client redis.UniversalClient, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if wait <= 0 {
		wait = DefaultWait
	}
	return &RedisLocker{client: client, ttl: ttl, wait: wait, token: uuid.NewString}
}

// Acquire takes the lock for key, retrying until the wait deadline or ctx ends.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	redisKey := keyPrefix + key
	token := l.token()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(waitCtx, redisKey, token, l.ttl).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("lock: set %s: %w", key, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) releaser(redisKey, token string) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
			return fmt.Errorf("lock: release %s: %w", redisKey, err)
		}
		return nil
	}
}

// Noop is a Locker that never blocks. It keeps the check-then-commit path
// unserialised across processes.
type Noop struct{}

// Acquire returns immediately.
func (Noop) Acquire(context.Context, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
