package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nvinayak/pharmanet/internal/port"
)

const (
	snapshotKeyPrefix = "snapshot:"
	requestKeyPrefix  = "request:"

	// Snapshots are invalidated on write; the TTL only bounds staleness
	// when an invalidation is lost.
	snapshotTTL       = 10 * time.Minute
	idempotencyKeyTTL = 24 * time.Hour
)

// RedisAdapter caches latest-version record snapshots and deduplicates
// front-end request ids.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) GetSnapshot(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, snapshotKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (r *RedisAdapter) SetSnapshot(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, snapshotKeyPrefix+key, value, snapshotTTL).Err()
}

func (r *RedisAdapter) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = snapshotKeyPrefix + k
	}
	return r.client.Del(ctx, prefixed...).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, requestKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}
