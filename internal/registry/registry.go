package registry

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/ruslanbaba/Azure-Healthcare-Platform/config"
)

// ErrServiceNotFound is returned by Lookup for an unknown service name.
var ErrServiceNotFound = errors.New("service not found")

// Descriptor holds the per-service dispatch settings. Descriptors are built
// once at startup and never mutated, so they can be read concurrently
// without locking.
type Descriptor struct {
	Name             string
	BaseURL          *url.URL
	Timeout          time.Duration
	MaxRetries       int
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Registry is a frozen name-to-descriptor lookup table.
type Registry struct {
	services map[string]Descriptor
}

// New builds the registry from validated configuration. The service set is
// fixed for the process lifetime; there is no hot-reload.
func New(cfgs []config.ServiceConfig) (*Registry, error) {
	services := make(map[string]Descriptor, len(cfgs))

	for _, cfg := range cfgs {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("service %s: invalid base_url: %w", cfg.Name, err)
		}

		services[cfg.Name] = Descriptor{
			Name:             cfg.Name,
			BaseURL:          base,
			Timeout:          time.Duration(cfg.TimeoutSeconds) * time.Second,
			MaxRetries:       cfg.MaxRetries,
			FailureThreshold: cfg.CircuitFailureThreshold,
			ResetTimeout:     time.Duration(cfg.CircuitResetTimeoutSeconds) * time.Second,
		}
	}

	return &Registry{services: services}, nil
}

// Lookup returns the descriptor for the named service.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	desc, ok := r.services[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	return desc, nil
}

// Names returns the sorted list of registered service names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every descriptor, ordered by service name.
func (r *Registry) All() []Descriptor {
	descs := make([]Descriptor, 0, len(r.services))
	for _, name := range r.Names() {
		descs = append(descs, r.services[name])
	}
	return descs
}
