package registry

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ruslanbaba/Azure-Healthcare-Platform/config"
)

// Route maps a path prefix to a backend service and carries the admission
// budget for that prefix.
type Route struct {
	Prefix   string
	Service  string
	Capacity int
	Window   time.Duration
}

// Routes resolves request paths to routes by longest-prefix match.
// Like the service registry it is frozen at startup.
type Routes struct {
	routes []Route
}

// NewRoutes builds the route table from validated configuration. Every route
// must reference a service known to the registry.
func NewRoutes(cfgs []config.RouteConfig, reg *Registry) (*Routes, error) {
	routes := make([]Route, 0, len(cfgs))

	for _, cfg := range cfgs {
		if _, err := reg.Lookup(cfg.Service); err != nil {
			return nil, fmt.Errorf("route %s: %w", cfg.Prefix, err)
		}

		routes = append(routes, Route{
			Prefix:   cfg.Prefix,
			Service:  cfg.Service,
			Capacity: cfg.Capacity,
			Window:   time.Duration(cfg.WindowSeconds) * time.Second,
		})
	}

	// Longest prefix first so Match can return the first hit.
	sort.Slice(routes, func(i, j int) bool {
		return len(routes[i].Prefix) > len(routes[j].Prefix)
	})

	return &Routes{routes: routes}, nil
}

// Match returns the most specific route for the given request path.
func (rt *Routes) Match(path string) (Route, bool) {
	for _, route := range rt.routes {
		if path == route.Prefix {
			return route, true
		}
		if strings.HasPrefix(path, route.Prefix) {
			// Match only on path segment boundaries: /data must not
			// capture /database.
			rest := path[len(route.Prefix):]
			if strings.HasSuffix(route.Prefix, "/") || strings.HasPrefix(rest, "/") {
				return route, true
			}
		}
	}
	return Route{}, false
}

// All returns the route table ordered by descending prefix length.
func (rt *Routes) All() []Route {
	out := make([]Route, len(rt.routes))
	copy(out, rt.routes)
	return out
}
