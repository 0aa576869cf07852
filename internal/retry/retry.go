package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/registry"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/upstream"
)

// ErrRetriesExhausted wraps the final transport error once every attempt has
// failed. The wrapped error keeps its transport classification, so the
// breaker sees the whole retried request as a single failure signal.
var ErrRetriesExhausted = errors.New("retries exhausted")

const (
	DefaultBaseDelay = 100 * time.Millisecond
	DefaultMaxDelay  = 2 * time.Second
)

// AttemptFunc performs one proxy attempt.
type AttemptFunc func(ctx context.Context) (*upstream.Response, error)

// Attempt describes one completed attempt for observability. It is ephemeral
// and never shared beyond the observer call.
type Attempt struct {
	Number  int
	Latency time.Duration
	Err     error
}

// Observer receives per-attempt records. Implementations must not block.
type Observer func(service string, attempt Attempt)

// Executor retries a single logical call with capped exponential backoff.
// Only transient transport failures are retried; a completed backend
// response of any status returns immediately with zero extra attempts.
type Executor struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Observer  Observer
}

func NewExecutor() *Executor {
	return &Executor{
		BaseDelay: DefaultBaseDelay,
		MaxDelay:  DefaultMaxDelay,
	}
}

// Execute runs up to desc.MaxRetries sequential attempts. The delay before
// retry k is BaseDelay * 2^(k-1), capped at MaxDelay. Caller cancellation
// aborts the backoff wait and schedules no further attempts; the in-flight
// attempt's result, if any, is discarded by returning the context error.
func (e *Executor) Execute(ctx context.Context, desc registry.Descriptor, attempt AttemptFunc) (*upstream.Response, error) {
	var lastErr error

	for k := 1; k <= desc.MaxRetries; k++ {
		if k > 1 {
			if err := e.wait(ctx, k-1); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		resp, err := attempt(ctx)
		e.observe(desc.Name, Attempt{Number: k, Latency: time.Since(start), Err: err})

		if err == nil {
			return resp, nil
		}

		// Completed error responses and caller cancellation propagate
		// immediately; only transport failures are worth another try.
		if !upstream.IsTransient(err) {
			return nil, err
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

// wait sleeps for the backoff delay before the given retry (1-indexed),
// returning early if the caller goes away.
func (e *Executor) wait(ctx context.Context, retryNum int) error {
	delay := e.delay(retryNum)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) delay(retryNum int) time.Duration {
	base := e.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	maxDelay := e.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	delay := base << (retryNum - 1)
	if delay > maxDelay || delay <= 0 {
		return maxDelay
	}
	return delay
}

func (e *Executor) observe(service string, a Attempt) {
	if e.Observer != nil {
		e.Observer(service, a)
	}
}
