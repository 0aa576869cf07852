// Package circuitbreaker implements the circuit breaker pattern guarding
// calls to backend services.
//
// A circuit breaker prevents cascading failures by temporarily blocking
// requests to a failing backend. It has three states:
//
//   - CLOSED: normal operation, calls pass through
//   - OPEN: backend failing, calls rejected without backend contact
//   - HALF_OPEN: one trial call probes whether the backend recovered
//
// Probing is single-flight: while a trial call is in flight, concurrent
// callers are rejected as if the circuit were still open.
//
// Usage:
//
//	cb := circuitbreaker.New("analytics-engine", 5, 60*time.Second, upstream.IsTransient, nil)
//	err := cb.Execute(func() error {
//	    // one logical request, retries included
//	    return callBackend()
//	})
//	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
//	    // fail fast
//	}
package circuitbreaker
