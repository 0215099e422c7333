package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/academy/backend/internal/domain/fee"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultSequenceKeyPrefix = "seq:"

// RedisSequenceCounter implements fee.SequenceCounter with Redis INCR.
// INCR is atomic on the server, so every caller of a bucket gets a distinct
// value no matter how many instances share the Redis.
type RedisSequenceCounter struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisSequenceCounter creates a counter on an existing client. A
// positive ttl is refreshed on every increment so idle buckets expire.
func NewRedisSequenceCounter(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisSequenceCounter {
	if keyPrefix == "" {
		keyPrefix = defaultSequenceKeyPrefix
	}
	return &RedisSequenceCounter{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// Next increments the bucket and returns the new value
func (c *RedisSequenceCounter) Next(ctx context.Context, tenantID uuid.UUID, scope, periodKey string) (int64, error) {
	key := c.key(tenantID, scope, periodKey)

	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		if c.ttl > 0 {
			pipe.Expire(ctx, key, c.ttl)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s counter: %w", scope, err)
	}
	return incr.Val(), nil
}

func (c *RedisSequenceCounter) key(tenantID uuid.UUID, scope, periodKey string) string {
	return c.keyPrefix + tenantID.String() + ":" + scope + ":" + periodKey
}

// Ensure RedisSequenceCounter implements SequenceCounter
var _ fee.SequenceCounter = (*RedisSequenceCounter)(nil)
