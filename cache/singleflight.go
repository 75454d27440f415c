package cache

import (
	"context"
	"sync"
	"time"

	pipeerrors "github.com/skillsenselab/interview-analyzer/errors"
	"github.com/skillsenselab/interview-analyzer/logger"
)

// ComputeResult is what a compute function produces on success.
type ComputeResult struct {
	// Payload is the validated analysis result.
	Payload []byte
	// ModelTag identifies the producing model/version.
	ModelTag string
	// Fallback marks a rule-based fallback result; it is cached with
	// FallbackTTL instead of the normal TTL.
	Fallback bool
}

// ComputeFunc produces a result for a cache key when no entry exists.
type ComputeFunc func(ctx context.Context) (ComputeResult, error)

// call is one in-flight computation shared by concurrent callers of a key.
type call struct {
	done  chan struct{}
	entry Entry
	err   error
}

// Keyed fronts a Store with content-addressed keys and single-flight
// coordination: for any key, at most one compute runs at a time across all
// sessions in the process; concurrent callers wait for and share its
// result. Store failures degrade to cache misses, never to pipeline errors.
type Keyed struct {
	store       Store
	log         *logger.Logger
	ttl         time.Duration
	fallbackTTL time.Duration
	clock       func() time.Time

	mu       sync.Mutex
	inflight map[string]*call
}

// KeyedOption configures a Keyed cache front.
type KeyedOption func(*Keyed)

// WithTTLs overrides the normal and fallback entry lifetimes.
func WithTTLs(normal, fallback time.Duration) KeyedOption {
	return func(k *Keyed) {
		k.ttl = normal
		k.fallbackTTL = fallback
	}
}

// WithKeyedClock overrides the time source used for entry timestamps.
func WithKeyedClock(clock func() time.Time) KeyedOption {
	return func(k *Keyed) { k.clock = clock }
}

// NewKeyed creates a single-flight cache front over the given store.
func NewKeyed(store Store, log *logger.Logger, opts ...KeyedOption) *Keyed {
	k := &Keyed{
		store:       store,
		log:         log.WithComponent("cache"),
		ttl:         DefaultTTL,
		fallbackTTL: FallbackTTL,
		clock:       time.Now,
		inflight:    make(map[string]*call),
	}
	for _, o := range opts {
		o(k)
	}
	return k
}

// GetOrCompute returns the cached entry for (analysisType, text), or runs
// compute exactly once to produce it. The second return value reports
// whether the entry came from the cache.
func (k *Keyed) GetOrCompute(ctx context.Context, analysisType, text string, compute ComputeFunc) (Entry, bool, error) {
	key := KeyFor(analysisType, text)

	if entry, ok := k.lookup(ctx, key); ok {
		return entry, true, nil
	}

	k.mu.Lock()
	if c, ok := k.inflight[key]; ok {
		k.mu.Unlock()
		select {
		case <-c.done:
			return c.entry, c.err == nil, c.err
		case <-ctx.Done():
			return Entry{}, false, ctx.Err()
		}
	}
	c := &call{done: make(chan struct{})}
	k.inflight[key] = c
	k.mu.Unlock()

	defer func() {
		k.mu.Lock()
		delete(k.inflight, key)
		k.mu.Unlock()
		close(c.done)
	}()

	// Re-check under leadership: another caller may have stored the entry
	// between the first lookup and acquiring the in-flight slot.
	if entry, ok := k.lookup(ctx, key); ok {
		c.entry, c.err = entry, nil
		return entry, true, nil
	}

	result, err := compute(ctx)
	if err != nil {
		c.err = err
		return Entry{}, false, err
	}

	now := k.clock().UTC()
	ttl := k.ttl
	if result.Fallback {
		ttl = k.fallbackTTL
	}
	entry := Entry{
		Key:       key,
		Payload:   result.Payload,
		ModelTag:  result.ModelTag,
		Fallback:  result.Fallback,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := k.store.Put(ctx, entry); err != nil {
		// Storage trouble must not fail the pipeline.
		k.log.Warn("cache put failed", logger.Fields(
			logger.FieldCacheKey, key,
			logger.FieldError, pipeerrors.CacheUnavailable(err).Error(),
		))
	}

	c.entry = entry
	return entry, false, nil
}

// lookup reads the store, treating backend errors as misses.
func (k *Keyed) lookup(ctx context.Context, key string) (Entry, bool) {
	entry, err := k.store.Get(ctx, key)
	if err != nil {
		k.log.Warn("cache get failed, treating as miss", logger.Fields(
			logger.FieldCacheKey, key,
			logger.FieldError, err.Error(),
		))
		return Entry{}, false
	}
	if entry == nil {
		return Entry{}, false
	}
	return *entry, true
}
