package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skillsenselab/interview-analyzer/logger"
)

func TestGetOrComputeCachesResult(t *testing.T) {
	ctx := context.Background()
	keyed := NewKeyed(NewMemoryStore(), logger.Nop())

	var calls int32
	compute := func(ctx context.Context) (ComputeResult, error) {
		atomic.AddInt32(&calls, 1)
		return ComputeResult{
			Payload:  json.RawMessage(`{"summary":"positive"}`),
			ModelTag: "gpt-4o-mini",
		}, nil
	}

	entry, fromCache, err := keyed.GetOrCompute(ctx, "sentiment", "great answer", compute)
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if fromCache {
		t.Error("first call reported a cache hit")
	}
	if string(entry.Payload) != `{"summary":"positive"}` {
		t.Errorf("payload = %s", entry.Payload)
	}

	entry, fromCache, err = keyed.GetOrCompute(ctx, "sentiment", "great answer", compute)
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if !fromCache {
		t.Error("second call missed the cache")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("compute ran %d times, want 1", got)
	}
	_ = entry
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	ctx := context.Background()
	keyed := NewKeyed(NewMemoryStore(), logger.Nop())

	var calls int32
	release := make(chan struct{})
	compute := func(ctx context.Context) (ComputeResult, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return ComputeResult{Payload: json.RawMessage(`{"v":1}`)}, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]Entry, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = keyed.GetOrCompute(ctx, "keywords", "shared text", compute)
		}(i)
	}

	// Let all callers reach the in-flight table before releasing the leader.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("compute ran %d times for one key, want 1", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if string(results[i].Payload) != `{"v":1}` {
			t.Errorf("caller %d payload = %s", i, results[i].Payload)
		}
	}
}

func TestGetOrComputeFallbackTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	keyed := NewKeyed(NewMemoryStore(), logger.Nop(),
		WithKeyedClock(func() time.Time { return now }))

	entry, _, err := keyed.GetOrCompute(ctx, "keywords", "text", func(ctx context.Context) (ComputeResult, error) {
		return ComputeResult{Payload: json.RawMessage(`{}`), Fallback: true}, nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if !entry.Fallback {
		t.Error("fallback flag not carried into the entry")
	}
	if got := entry.ExpiresAt.Sub(entry.CreatedAt); got != FallbackTTL {
		t.Errorf("fallback TTL = %v, want %v", got, FallbackTTL)
	}

	entry, _, err = keyed.GetOrCompute(ctx, "sentiment", "text", func(ctx context.Context) (ComputeResult, error) {
		return ComputeResult{Payload: json.RawMessage(`{}`)}, nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if got := entry.ExpiresAt.Sub(entry.CreatedAt); got != DefaultTTL {
		t.Errorf("normal TTL = %v, want %v", got, DefaultTTL)
	}
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	ctx := context.Background()
	keyed := NewKeyed(NewMemoryStore(), logger.Nop())

	wantErr := errors.New("service down")
	var calls int32
	failing := func(ctx context.Context) (ComputeResult, error) {
		atomic.AddInt32(&calls, 1)
		return ComputeResult{}, wantErr
	}

	_, _, err := keyed.GetOrCompute(ctx, "keywords", "text", failing)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}

	// Errors must not poison the key: the next call computes again.
	entry, fromCache, err := keyed.GetOrCompute(ctx, "keywords", "text", func(ctx context.Context) (ComputeResult, error) {
		atomic.AddInt32(&calls, 1)
		return ComputeResult{Payload: json.RawMessage(`{"ok":true}`)}, nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute after error: %v", err)
	}
	if fromCache {
		t.Error("failed compute left a cached entry")
	}
	if string(entry.Payload) != `{"ok":true}` {
		t.Errorf("payload = %s", entry.Payload)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("compute ran %d times, want 2", got)
	}
}

// storeDown fails every operation, standing in for an unreachable backend.
type storeDown struct{}

func (storeDown) Get(context.Context, string) (*Entry, error) { return nil, errors.New("down") }
func (storeDown) Put(context.Context, Entry) error            { return errors.New("down") }
func (storeDown) Delete(context.Context, string) error        { return errors.New("down") }

func TestGetOrComputeStoreFailureDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	keyed := NewKeyed(storeDown{}, logger.Nop())

	entry, fromCache, err := keyed.GetOrCompute(ctx, "sentiment", "text", func(ctx context.Context) (ComputeResult, error) {
		return ComputeResult{Payload: json.RawMessage(`{"summary":"ok"}`)}, nil
	})
	if err != nil {
		t.Fatalf("store failure surfaced as pipeline error: %v", err)
	}
	if fromCache {
		t.Error("unreachable store reported a hit")
	}
	if string(entry.Payload) != `{"summary":"ok"}` {
		t.Errorf("payload = %s", entry.Payload)
	}
}
