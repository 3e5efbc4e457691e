package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/venue-scheduler/internal/application"
)

func setupLocker(t *testing.T, wait time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, 5*time.Second, wait), mr
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	locker, mr := setupLocker(t, 200*time.Millisecond)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "rebook:hall:2025-03-14")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"rebook:hall:2025-03-14"))
	assert.Equal(t, 5*time.Second, mr.TTL(keyPrefix+"rebook:hall:2025-03-14"))

	_, err = locker.Acquire(ctx, "rebook:hall:2025-03-14")
	require.ErrorIs(t, err, ErrNotAcquired)
	assert.ErrorIs(t, err, application.ErrLockNotAcquired)

	other, err := locker.Acquire(ctx, "rebook:annex:2025-03-14")
	require.NoError(t, err, "different slots lock independently")
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists(keyPrefix+"rebook:hall:2025-03-14"))

	again, err := locker.Acquire(ctx, "rebook:hall:2025-03-14")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	locker, mr := setupLocker(t, 200*time.Millisecond)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "slot")
	require.NoError(t, err)

	// The lock expired and another owner took it over.
	require.NoError(t, mr.Set(keyPrefix+"slot", "someone-else"))

	require.NoError(t, release(ctx))
	value, err := mr.Get(keyPrefix + "slot")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
}

func TestRedisLocker_WaitsForRelease(t *testing.T) {
	locker, _ := setupLocker(t, 2*time.Second)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "slot")
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = release(context.Background())
	}()

	second, err := locker.Acquire(ctx, "slot")
	require.NoError(t, err)
	require.NoError(t, second(ctx))
}

func TestRedisLocker_ContextCancelled(t *testing.T) {
	locker, _ := setupLocker(t, time.Second)

	_, err := locker.Acquire(context.Background(), "slot")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.Acquire(ctx, "slot")
	require.ErrorIs(t, err, context.Canceled)
}

func TestRedisLocker_ServerDownIsNotContention(t *testing.T) {
	locker, mr := setupLocker(t, 5*time.Second)
	mr.Close()

	_, err := locker.Acquire(context.Background(), "slot")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAcquired)
	assert.Contains(t, err.Error(), "lock: set slot")
}

func TestNoop(t *testing.T) {
	release, err := Noop{}.Acquire(context.Background(), "anything")
	require.NoError(t, err)
	require.NoError(t, release(context.Background()))
}
