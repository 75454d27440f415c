package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/skillsenselab/interview-analyzer/logger"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), RedisConfig{Addr: mr.Addr()}, logger.Nop())
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStorePutGet(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	key := KeyFor("keywords", "tell me about a project")
	entry := Entry{
		Key:       key,
		Payload:   json.RawMessage(`{"keywords":["kubernetes","migration"]}`),
		ModelTag:  "gpt-4o-mini",
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	if err := store.Put(ctx, entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected hit, got miss")
	}
	if string(got.Payload) != string(entry.Payload) {
		t.Errorf("payload = %s, want %s", got.Payload, entry.Payload)
	}
	if got.ModelTag != "gpt-4o-mini" {
		t.Errorf("model tag = %q", got.ModelTag)
	}
	if got.HitCount != 1 {
		t.Errorf("hit count = %d, want 1", got.HitCount)
	}
}

func TestRedisStoreMiss(t *testing.T) {
	store, _ := newTestRedisStore(t)
	got, err := store.Get(context.Background(), "keywords:missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("expected miss, got %+v", got)
	}
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	entry := Entry{
		Key:       "sentiment:short",
		Payload:   json.RawMessage(`{}`),
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}
	if err := store.Put(ctx, entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, entry.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Error("entry served past its TTL")
	}
}

func TestRedisStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	entry := Entry{
		Key:       "politeness:y",
		Payload:   json.RawMessage(`{}`),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	if err := store.Put(ctx, entry); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Delete(ctx, entry.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := store.Get(ctx, entry.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Error("deleted entry still served")
	}
}
