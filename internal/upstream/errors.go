package upstream

import (
	"errors"
	"fmt"
)

// TransportError marks a failure to complete an HTTP exchange with a backend:
// connection refused, reset, DNS failure, or per-attempt timeout. These are
// the only failures the retry executor retries and the only ones the circuit
// breaker counts. A completed exchange with an error status is not a
// TransportError; it is returned to the caller verbatim.
type TransportError struct {
	Service string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream %s unreachable: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is (or wraps) a TransportError.
func IsTransient(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
