package handler

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/ratelimit"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/registry"
)

// Health reports the gateway's own liveness. Backend health is a metrics
// concern, not a gate here.
func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Services lists the registered backend services.
func Services(reg *registry.Registry) http.HandlerFunc {
	type serviceInfo struct {
		Name    string `json:"name"`
		BaseURL string `json:"base_url"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		services := make([]serviceInfo, 0)
		for _, desc := range reg.All() {
			services = append(services, serviceInfo{
				Name:    desc.Name,
				BaseURL: desc.BaseURL.String(),
			})
		}
		writeJSON(w, map[string]any{"services": services})
	}
}

// RateLimitStatus reports the configured per-route budgets along with the
// caller's hashed rate-limit key.
func RateLimitStatus(limiter *ratelimit.Limiter) http.HandlerFunc {
	type routeLimit struct {
		Route         string `json:"route"`
		Capacity      int    `json:"capacity"`
		WindowSeconds int    `json:"window_seconds"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		clientKey := r.Header.Get(ClientIDHeader)
		if clientKey == "" {
			clientKey = extractClientIP(r)
		}

		limits := make([]routeLimit, 0)
		for prefix, limit := range limiter.Limits() {
			limits = append(limits, routeLimit{
				Route:         prefix,
				Capacity:      limit.Capacity,
				WindowSeconds: int(limit.Window.Seconds()),
			})
		}
		sort.Slice(limits, func(i, j int) bool { return limits[i].Route < limits[j].Route })

		writeJSON(w, map[string]any{
			"client_key":  HashKey(clientKey),
			"rate_limits": limits,
		})
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
