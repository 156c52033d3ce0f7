// internal/pkg/lock/redis_lock.go
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock is already held by another process.
var ErrNotAcquired = errors.New("lock already held")

// releaseScript deletes the key only when it still carries our token, so a
// holder whose TTL already lapsed cannot delete a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Lock is a held lock to be released on every exit path.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker acquires short-lived mutual-exclusion locks in Redis via SET NX.
// The TTL is the backstop against a crashed holder.
type Locker struct {
	client *redis.Client
}

func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// Acquire attempts to take the lock. It returns ErrNotAcquired when another
// process holds it; any other error is a Redis failure.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return &Guard{client: l.client, key: key, token: token}, nil
}

// Guard represents a held lock. Release it on every exit path; if the process
// dies first, the TTL expires the key.
type Guard struct {
	client *redis.Client
	key    string
	token  string
}

// Release drops the lock if this guard still owns it. Releasing an expired or
// stolen lock is a no-op, not an error.
func (g *Guard) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, g.client, []string{g.key}, g.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock %q: %w", g.key, err)
	}
	return nil
}
