package storage

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nvinayak/pharmanet/internal/port"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestRedisAdapter_SnapshotRoundTrip(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	key := "drug\x00" + uuid.NewString()

	if _, err := adapter.GetSnapshot(ctx, key); !errors.Is(err, port.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on miss, got %v", err)
	}

	if err := adapter.SetSnapshot(ctx, key, []byte(`{"owner":"x"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, err := adapter.GetSnapshot(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != `{"owner":"x"}` {
		t.Errorf("value = %s", value)
	}

	if err := adapter.Invalidate(ctx, key); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := adapter.GetSnapshot(ctx, key); !errors.Is(err, port.ErrNotFound) {
		t.Errorf("expected ErrNotFound after invalidate, got %v", err)
	}
}

func TestRedisAdapter_InvalidateNoKeysIsNoop(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	if err := NewRedisAdapter(client).Invalidate(context.Background()); err != nil {
		t.Errorf("empty invalidate: %v", err)
	}
}

func TestRedisAdapter_Idempotency(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	requestID := uuid.NewString()

	ok, err := adapter.SetIdempotency(ctx, requestID)
	if err != nil || !ok {
		t.Fatalf("first claim = %v, %v", ok, err)
	}
	ok, err = adapter.SetIdempotency(ctx, requestID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Error("duplicate request id accepted")
	}
}
