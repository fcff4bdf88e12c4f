package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLockAcquireRelease(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestLock(t)

	lock := NewRedisLock(client, LockKey(), time.Minute)

	acquired, err := lock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, mr.Exists(LockKey()))

	require.NoError(t, lock.Release(ctx))
	assert.False(t, mr.Exists(LockKey()))
}

func TestRedisLockContention(t *testing.T) {
	ctx := context.Background()
	_, client := newTestLock(t)

	first := NewRedisLock(client, LockKey(), time.Minute)
	second := NewRedisLock(client, LockKey(), time.Minute)

	acquired, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, acquired, "held lock must not be re-acquired")

	require.NoError(t, first.Release(ctx))

	acquired, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, acquired, "released lock must be acquirable again")
}

func TestRedisLockReleaseOnlyOwnToken(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestLock(t)

	holder := NewRedisLock(client, LockKey(), time.Minute)
	stranger := NewRedisLock(client, LockKey(), time.Minute)

	acquired, err := holder.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	// A release from an instance that never acquired must not drop
	// someone else's lock.
	require.NoError(t, stranger.Release(ctx))
	assert.True(t, mr.Exists(LockKey()))

	require.NoError(t, holder.Release(ctx))
	assert.False(t, mr.Exists(LockKey()))
}

func TestRedisLockExpires(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestLock(t)

	lock := NewRedisLock(client, LockKey(), time.Second)
	acquired, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	mr.FastForward(2 * time.Second)

	other := NewRedisLock(client, LockKey(), time.Second)
	acquired, err = other.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, acquired, "expired lock must be acquirable")
}
