package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces lock keys in the shared cache.
const keyPrefix = "webhook:lock:"

// releaseScript deletes the key only if the releasing acquisition still
// holds it, so a slow worker whose lock already expired cannot release a
// successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker on a shared Redis instance using
// SET key token NX PX ttl. The token is unique per acquisition, not per
// process, so releases stay safe under TTL expiry races even between two
// requests handled by the same instance.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a RedisLocker with the given TTL. The TTL must
// exceed worst-case reconciliation latency; a stalled worker's lock expires
// rather than blocking the notification id forever.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    ttl,
	}
}

// Acquire performs an atomic set-if-absent with TTL and returns the token
// identifying this acquisition.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (string, bool, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, keyPrefix+key, token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquiring lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release deletes the lock if the token's acquisition still holds it.
func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{keyPrefix + key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("releasing lock %s: %w", key, err)
	}
	return nil
}

var _ Locker = (*RedisLocker)(nil)
