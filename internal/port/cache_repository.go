package port

import "context"

type CacheRepository interface {
	// GetSnapshot returns a cached record body for key, or ErrNotFound on miss.
	GetSnapshot(ctx context.Context, key string) ([]byte, error)

	// SetSnapshot caches a record body for key.
	SetSnapshot(ctx context.Context, key string, value []byte) error

	// Invalidate drops cached snapshots for the given keys.
	Invalidate(ctx context.Context, keys ...string) error

	// SetIdempotency marks a request id, returns false if already seen.
	SetIdempotency(ctx context.Context, key string) (bool, error)
}
