package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hrishabh6/algocrack/internal/repository"
)

var _ repository.IdempotencyStore = (*redisIdempotency)(nil)

const (
	lockKeyPrefix  = "algocrack:lock:"
	DefaultLockTTL = 30 * time.Second
)

// releaseScript deletes the lock only if the caller still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0
`)

// extendScript resets the TTL only if the caller still owns the lock.
var extendScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

type redisIdempotency struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewRedisIdempotencyStore creates a Redis-backed lock store using SET NX with a TTL.
// The TTL bounds how long a crashed worker can block redelivery of a submission;
// live workers keep their lock with ExtendLock.
func NewRedisIdempotencyStore(client goredis.UniversalClient, ttl time.Duration) repository.IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &redisIdempotency{client: client, ttl: ttl}
}

func (r *redisIdempotency) AcquireLock(ctx context.Context, id uuid.UUID, owner string) (bool, error) {
	ok, err := r.client.SetNX(ctx, lockKeyPrefix+id.String(), owner, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire lock: %w", err)
	}
	return ok, nil
}

func (r *redisIdempotency) ReleaseLock(ctx context.Context, id uuid.UUID, owner string) error {
	if err := releaseScript.Run(ctx, r.client, []string{lockKeyPrefix + id.String()}, owner).Err(); err != nil {
		return fmt.Errorf("redis: release lock: %w", err)
	}
	return nil
}

func (r *redisIdempotency) ExtendLock(ctx context.Context, id uuid.UUID, owner string) (bool, error) {
	n, err := extendScript.Run(ctx, r.client, []string{lockKeyPrefix + id.String()}, owner, r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis: extend lock: %w", err)
	}
	return n == 1, nil
}
