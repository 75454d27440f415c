package resilience

import (
	"context"
	"errors"
)

// ErrBulkheadFull is returned when no slot is available and waiting is disabled.
var ErrBulkheadFull = errors.New("bulkhead is full")

// Bulkhead limits the number of concurrent calls through a component.
// The semantic client uses one to respect the external service's rate
// limit; the orchestrator uses one sized to the CPU count for
// feature-extraction work.
type Bulkhead struct {
	name string
	sem  chan struct{}
}

// NewBulkhead creates a bulkhead allowing maxConcurrent simultaneous calls.
func NewBulkhead(name string, maxConcurrent int) *Bulkhead {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Bulkhead{
		name: name,
		sem:  make(chan struct{}, maxConcurrent),
	}
}

// Execute runs fn once a slot is available, waiting until ctx is done.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-b.sem }()
	return fn()
}

// TryExecute runs fn if a slot is free, otherwise fails immediately.
func (b *Bulkhead) TryExecute(fn func() error) error {
	select {
	case b.sem <- struct{}{}:
	default:
		return ErrBulkheadFull
	}
	defer func() { <-b.sem }()
	return fn()
}

// ExecuteWithResult runs a function that returns a value within the bulkhead.
func ExecuteWithResult[T any](ctx context.Context, b *Bulkhead, fn func() (T, error)) (T, error) {
	var result T
	err := b.Execute(ctx, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	return result, err
}

// InUse returns the number of slots currently in use.
func (b *Bulkhead) InUse() int { return len(b.sem) }

// MaxConcurrent returns the maximum concurrent calls allowed.
func (b *Bulkhead) MaxConcurrent() int { return cap(b.sem) }
