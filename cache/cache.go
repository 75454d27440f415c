// Package cache provides a content-addressed result cache for semantic
// analysis calls: TTL'd entries keyed by a hash of normalized input text,
// with single-flight coordination so concurrent requests for the same key
// share one underlying computation.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Default entry lifetimes. Fallback results expire quickly so the external
// service is retried soon after it may have recovered.
const (
	DefaultTTL  = 30 * 24 * time.Hour
	FallbackTTL = time.Hour
)

// Entry is one cached analysis result.
type Entry struct {
	// Key is the content-addressed cache key (analysis type + content hash).
	Key string `json:"key"`
	// Payload is the structured analysis result, already validated.
	Payload json.RawMessage `json:"payload"`
	// ModelTag identifies the model/version that produced the payload.
	ModelTag string `json:"model_tag,omitempty"`
	// Fallback marks results produced by the rule-based fallback analyzer.
	Fallback bool `json:"fallback"`
	// HitCount is the number of cache hits served from this entry.
	HitCount int64 `json:"hit_count"`
	// CreatedAt is when the entry was first stored.
	CreatedAt time.Time `json:"created_at"`
	// ExpiresAt is when the entry stops being served.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its expiry at the given time.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Store is a TTL'd key/value backend. Get returns (nil, nil) on a miss;
// expired entries are misses and must never surface stale data. Backends
// increment HitCount on served hits (best-effort).
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, key string) error
}
