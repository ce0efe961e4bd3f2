package memory

import (
	"context"
	"testing"
	"time"

	"stayhub/internal/app/middleware"
)

func TestIdempotencyStoreEvictsExpiredKeys(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewIdempotencyStore(time.Hour)
	store.now = func() time.Time { return clock }

	if err := store.Save(ctx, middleware.IdempotencyRecord{Key: "guest|a", OccurredAt: clock}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "guest|a"); !ok {
		t.Fatal("fresh key missing")
	}

	clock = clock.Add(2 * time.Hour)
	if _, ok, _ := store.Get(ctx, "guest|a"); ok {
		t.Fatal("expired key still served")
	}
	if len(store.items) != 0 {
		t.Fatalf("expired key kept in memory, len=%d", len(store.items))
	}
}

func TestIdempotencyStoreSweepsOnSave(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewIdempotencyStore(time.Hour)
	store.now = func() time.Time { return clock }

	for _, key := range []string{"guest|a", "guest|b"} {
		_ = store.Save(ctx, middleware.IdempotencyRecord{Key: key, OccurredAt: clock})
	}
	clock = clock.Add(90 * time.Minute)
	_ = store.Save(ctx, middleware.IdempotencyRecord{Key: "guest|c", OccurredAt: clock})
	if len(store.items) != 1 {
		t.Fatalf("len = %d, want only the live key", len(store.items))
	}
	if _, ok, _ := store.Get(ctx, "guest|c"); !ok {
		t.Fatal("live key missing")
	}
}

func TestIdempotencyStoreWithoutTTLKeepsKeys(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(0)
	_ = store.Save(ctx, middleware.IdempotencyRecord{Key: "guest|a", OccurredAt: time.Unix(0, 0)})
	if _, ok, _ := store.Get(ctx, "guest|a"); !ok {
		t.Fatal("key without ttl dropped")
	}
}
