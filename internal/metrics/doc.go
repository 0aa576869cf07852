// Package metrics provides real-time metrics collection for the gateway.
//
// It uses a channel-based event pipeline to asynchronously aggregate:
//   - Request and completion counts per backend service
//   - Response times with percentile calculations (P50, P95, P99)
//   - HTTP status code distribution per service
//   - Circuit breaker state per service
//   - Rate-limit rejections per route
//   - Upstream health transitions
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the request path: events are sent via a buffered channel with
// non-blocking semantics, so a saturated collector drops events instead of
// slowing or failing requests.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.Event{
//		Type:       metrics.EventRequestCompleted,
//		Service:    "analytics-engine",
//		Duration:   150 * time.Millisecond,
//		StatusCode: 200,
//	})
//
//	snapshot := collector.Snapshot()
//
// Aggregated state is guarded by sync.RWMutex and drained on shutdown so
// late events are not lost.
package metrics
