package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token, so a
// lease that expired and was taken over is never released by its old owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and a token-checked release.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisLocker creates a RedisLocker. Keys are stored under prefix.
func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

// Acquire takes key for ttl. It returns ErrNotAcquired when another holder
// has it.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	fullKey := l.prefix + key
	token := uuid.NewString()

	status, err := l.client.SetArgs(ctx, fullKey, token, redis.SetArgs{Mode: "NX", TTL: ttl}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotAcquired
		}
		return nil, fmt.Errorf("redis SET NX %s: %w", fullKey, err)
	}
	if status != "OK" {
		return nil, ErrNotAcquired
	}
	return &redisLease{client: l.client, key: fullKey, token: token}, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (r *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key}, r.token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", r.key, err)
	}
	return nil
}
