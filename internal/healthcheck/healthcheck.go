package healthcheck

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/metrics"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/registry"
)

// Watch periodically probes a backend service's /health endpoint and reports
// transitions to the log and the metrics collector. It is informational
// only: dispatch never consults it, the circuit breaker owns that decision.
func Watch(
	ctx context.Context,
	desc registry.Descriptor,
	interval time.Duration,
	logger *slog.Logger,
	collector *metrics.Collector,
) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := false
	known := false

	for {
		select {
		case <-ctx.Done():
			logger.Info("Health watch stopped",
				slog.String("service", desc.Name))
			return

		case <-ticker.C:
			healthURL := desc.BaseURL.ResolveReference(&url.URL{Path: "/health"})

			req, err := http.NewRequestWithContext(
				ctx, http.MethodGet, healthURL.String(), nil)
			if err != nil {
				continue
			}

			up := false
			res, err := client.Do(req)
			if err == nil {
				up = res.StatusCode == http.StatusOK
				res.Body.Close()
			}

			if known && up == healthy {
				continue
			}
			healthy = up
			known = true

			if collector != nil {
				collector.Emit(metrics.Event{
					Type:    metrics.EventUpstreamHealthChanged,
					Service: desc.Name,
					Healthy: healthy,
				})
			}

			if healthy {
				logger.Info("Service is back up",
					slog.String("service", desc.Name))
			} else {
				logger.Warn("Service is down",
					slog.String("service", desc.Name))
			}
		}
	}
}
