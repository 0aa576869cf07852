package circuitbreaker

import (
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/registry"
)

// Registry holds exactly one breaker per service for the process lifetime.
// The service set is fixed at startup, so the map is built eagerly and read
// without locking; the breakers synchronize themselves.
type Registry struct {
	breakers map[string]*CircuitBreaker
}

func NewRegistry(descs []registry.Descriptor, isFailure FailureFunc, onStateChange StateChangeFunc) *Registry {
	breakers := make(map[string]*CircuitBreaker, len(descs))
	for _, desc := range descs {
		breakers[desc.Name] = New(desc.Name, desc.FailureThreshold, desc.ResetTimeout, isFailure, onStateChange)
	}
	return &Registry{breakers: breakers}
}

// Get returns the breaker for the named service.
func (r *Registry) Get(service string) (*CircuitBreaker, bool) {
	cb, ok := r.breakers[service]
	return cb, ok
}

// Stats returns the current state of every breaker.
func (r *Registry) Stats() map[string]State {
	stats := make(map[string]State, len(r.breakers))
	for service, cb := range r.breakers {
		stats[service] = cb.State()
	}
	return stats
}
