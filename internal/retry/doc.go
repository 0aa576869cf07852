// Package retry bounds and backs off the attempts of a single logical proxy
// call. It sits inside the circuit breaker's envelope: the breaker admits
// one logical request, this package may try it several times, and exhaustion
// collapses into one failure signal.
package retry
