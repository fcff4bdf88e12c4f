package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LockKey builds the redis key for the reconciliation critical section.
func LockKey() string {
	return "budget:reconcile:lock"
}

// Locker is the mutual-exclusion contract the service depends on.
type Locker interface {
	// Acquire returns false without error when the lock is already
	// held elsewhere.
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// releaseScript deletes the lock only when the stored token still
// belongs to this holder, so an expired lock re-acquired by another
// run is never released from here.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// RedisLock is a TTL mutex on a single redis key. The TTL bounds the
// blast radius of a crashed holder; stale locks self-expire.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// NewRedisLock constructs the lock. A zero ttl defaults to 5 minutes.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLock{
		client: client,
		key:    key,
		ttl:    ttl,
		token:  uuid.NewString(),
	}
}

// Acquire attempts a SET NX with the lock TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reconcile: acquire lock: %w", err)
	}
	return ok, nil
}

// Release drops the lock if this instance still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	if err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("reconcile: release lock: %w", err)
	}
	return nil
}
