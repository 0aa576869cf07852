package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Failing fast, no backend contact
	StateHalfOpen              // Probing with a single trial call
)

// ErrCircuitOpen is returned when a call is rejected without contacting the
// backend: either the circuit is open, or a half-open probe is already in
// flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// StateChangeFunc observes transitions. It is invoked outside the breaker's
// lock, so it may safely call back into the breaker.
type StateChangeFunc func(service string, from, to State)

// FailureFunc decides whether an operation error counts against the circuit.
// Errors it rejects (completed backend responses, caller cancellation) leave
// the failure count untouched.
type FailureFunc func(error) bool

// CircuitBreaker guards calls to one backend service. All state lives behind
// a single per-breaker mutex; transitions are linearizable, so concurrent
// callers cannot both claim the half-open probe slot.
type CircuitBreaker struct {
	service       string
	threshold     int
	resetTimeout  time.Duration
	isFailure     FailureFunc
	onStateChange StateChangeFunc

	mu             sync.Mutex
	state          State
	failures       int
	lastTransition time.Time
	probeInFlight  bool
}

func New(service string, threshold int, resetTimeout time.Duration, isFailure FailureFunc, onStateChange StateChangeFunc) *CircuitBreaker {
	if isFailure == nil {
		isFailure = func(err error) bool { return err != nil }
	}
	return &CircuitBreaker{
		service:      service,
		state:        StateClosed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		isFailure:    isFailure,

		onStateChange: onStateChange,
	}
}

// Execute runs fn under the breaker's protection. It consults the breaker
// exactly once: fn is expected to contain the whole retry envelope, so
// internal retries never inflate the failure count. The error returned by fn
// passes through unchanged.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.acquire(); err != nil {
		return err
	}

	err := fn()
	cb.record(err)
	return err
}

// acquire decides whether a call may proceed and claims the probe slot when
// entering or inside HALF_OPEN.
func (cb *CircuitBreaker) acquire() error {
	cb.mu.Lock()

	switch cb.state {
	case StateClosed:
		cb.mu.Unlock()
		return nil

	case StateOpen:
		if time.Since(cb.lastTransition) < cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		// Cooldown elapsed: this caller becomes the probe.
		notify := cb.transition(StateHalfOpen)
		cb.probeInFlight = true
		cb.mu.Unlock()
		notify()
		return nil

	case StateHalfOpen:
		if cb.probeInFlight {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.probeInFlight = true
		cb.mu.Unlock()
		return nil
	}

	cb.mu.Unlock()
	return nil
}

// record applies the outcome of a completed call. Outcomes that are neither
// success nor circuit failure (e.g. caller cancellation) release the probe
// slot without a transition.
func (cb *CircuitBreaker) record(err error) {
	success := err == nil
	failed := !success && cb.isFailure(err)

	cb.mu.Lock()

	notify := func() {}
	switch cb.state {
	case StateClosed:
		if failed {
			cb.failures++
			if cb.failures >= cb.threshold {
				notify = cb.transition(StateOpen)
			}
		} else if success {
			cb.failures = 0
		}

	case StateHalfOpen:
		cb.probeInFlight = false
		if failed {
			notify = cb.transition(StateOpen)
		} else if success {
			notify = cb.transition(StateClosed)
		}
	}

	cb.mu.Unlock()
	notify()
}

// transition moves to the target state and returns the deferred state-change
// notification. Must be called with cb.mu held; the returned func must be
// called after releasing it.
func (cb *CircuitBreaker) transition(to State) func() {
	from := cb.state
	cb.state = to
	cb.lastTransition = time.Now()
	if to == StateClosed {
		cb.failures = 0
	}

	if cb.onStateChange == nil || from == to {
		return func() {}
	}
	return func() { cb.onStateChange(cb.service, from, to) }
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Cooldown reports how long until an open circuit admits a probe.
// It returns 0 unless the circuit is open.
func (cb *CircuitBreaker) Cooldown() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return 0
	}

	remaining := cb.resetTimeout - time.Since(cb.lastTransition)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}
