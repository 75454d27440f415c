package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/skillsenselab/interview-analyzer/cache"
	pipeerrors "github.com/skillsenselab/interview-analyzer/errors"
	"github.com/skillsenselab/interview-analyzer/logger"
	"github.com/skillsenselab/interview-analyzer/resilience"
)

// ClientConfig configures the retrying semantic client.
type ClientConfig struct {
	// MaxConcurrent bounds outbound calls in flight across all sessions.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	// RatePerSecond is the outbound request rate budget.
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	// RateBurst is the rate limiter's burst capacity.
	RateBurst int `yaml:"rate_burst" mapstructure:"rate_burst"`
	// MaxAttempts is the total attempts per analysis, including the first.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
}

// ApplyDefaults applies default values to the client configuration.
func (c *ClientConfig) ApplyDefaults() {
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 10
	}
	if c.RatePerSecond == 0 {
		c.RatePerSecond = 5.0
	}
	if c.RateBurst == 0 {
		c.RateBurst = 10
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = time.Second
	}
}

// Result is one completed analysis: the validated payload plus where it
// came from.
type Result struct {
	Type         AnalysisType    `json:"type"`
	Payload      json.RawMessage `json:"payload"`
	ModelTag     string          `json:"model_tag,omitempty"`
	FromCache    bool            `json:"from_cache"`
	UsedFallback bool            `json:"used_fallback"`
}

// Client calls the semantic provider with retry, schema validation, bounded
// concurrency, rate limiting, and a rule-based fallback, caching every
// result. Analyze never fails on provider trouble: exhausted retries
// degrade to the fallback rather than an error.
type Client struct {
	provider Provider
	cache    *cache.Keyed
	bulkhead *resilience.Bulkhead
	limiter  *resilience.RateLimiter
	retryCfg resilience.RetryConfig
	log      *logger.Logger
}

// NewClient creates a semantic client over the given provider and cache.
func NewClient(provider Provider, keyed *cache.Keyed, cfg ClientConfig, log *logger.Logger) *Client {
	cfg.ApplyDefaults()

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = cfg.MaxAttempts
	retryCfg.InitialBackoff = cfg.InitialBackoff

	return &Client{
		provider: provider,
		cache:    keyed,
		bulkhead: resilience.NewBulkhead("semantic", cfg.MaxConcurrent),
		limiter:  resilience.NewRateLimiter("semantic", cfg.RatePerSecond, cfg.RateBurst),
		retryCfg: retryCfg,
		log:      log.WithComponent("semantic"),
	}
}

// Analyze returns the cached or freshly computed result for the analysis
// type over text. On a miss the provider is called with retry; after
// exhaustion the deterministic fallback result is used and cached with a
// short TTL. The only error paths are context cancellation and an unknown
// analysis type.
func (c *Client) Analyze(ctx context.Context, analysisType AnalysisType, text string) (Result, error) {
	if !analysisType.Valid() {
		return Result{}, pipeerrors.InvalidInput(fmt.Sprintf("unknown analysis type %q", analysisType))
	}

	truncated := cache.Normalize(text)

	entry, fromCache, err := c.cache.GetOrCompute(ctx, string(analysisType), text,
		func(ctx context.Context) (cache.ComputeResult, error) {
			return c.compute(ctx, analysisType, truncated)
		})
	if err != nil {
		return Result{}, err
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("semantic.type", string(analysisType)),
		attribute.Bool("semantic.cache_hit", fromCache),
		attribute.Bool("semantic.fallback", entry.Fallback),
	)

	return Result{
		Type:         analysisType,
		Payload:      entry.Payload,
		ModelTag:     entry.ModelTag,
		FromCache:    fromCache,
		UsedFallback: entry.Fallback,
	}, nil
}

// AnalyzeAll runs every analysis type over text, in report order. A
// per-type failure other than cancellation does not occur; cancellation
// aborts the remainder.
func (c *Client) AnalyzeAll(ctx context.Context, text string) ([]Result, error) {
	results := make([]Result, 0, len(AllTypes()))
	for _, typ := range AllTypes() {
		r, err := c.Analyze(ctx, typ, text)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// compute is the cache-miss path: retried provider call, then fallback.
func (c *Client) compute(ctx context.Context, analysisType AnalysisType, text string) (cache.ComputeResult, error) {
	payload, err := resilience.ExecuteWithResult(ctx, c.bulkhead, func() (json.RawMessage, error) {
		return resilience.Retry(ctx, c.retryConfig(analysisType), func() (json.RawMessage, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			raw, err := c.provider.Analyze(ctx, analysisType, text)
			if err != nil {
				return nil, err
			}
			return decodeAndValidate(analysisType, raw)
		})
	})
	if err == nil {
		return cache.ComputeResult{
			Payload:  payload,
			ModelTag: c.provider.Name(),
		}, nil
	}
	if ctx.Err() != nil {
		return cache.ComputeResult{}, ctx.Err()
	}

	c.log.Warn("semantic analysis exhausted retries, using rule-based fallback", logger.Fields(
		logger.FieldAnalysisType, string(analysisType),
		logger.FieldError, err.Error(),
	))

	fb, fbErr := Fallback(analysisType, text)
	if fbErr != nil {
		return cache.ComputeResult{}, err
	}
	return cache.ComputeResult{
		Payload:  fb,
		ModelTag: "rule-based",
		Fallback: true,
	}, nil
}

func (c *Client) retryConfig(analysisType AnalysisType) resilience.RetryConfig {
	cfg := c.retryCfg
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		c.log.Warn("semantic call failed, retrying", logger.Fields(
			logger.FieldAnalysisType, string(analysisType),
			logger.FieldAttempt, attempt,
			"backoff", backoff.String(),
			logger.FieldError, err.Error(),
		))
	}
	return cfg
}
