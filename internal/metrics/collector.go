package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRequestReceived       EventType = "request_received"
	EventRequestCompleted      EventType = "request_completed"
	EventCircuitStateChanged   EventType = "circuit_state_changed"
	EventRateLimitRejected     EventType = "rate_limit_rejected"
	EventUpstreamHealthChanged EventType = "upstream_health_changed"
)

type Event struct {
	Type       EventType
	Timestamp  time.Time
	Service    string
	Route      string
	StatusCode int
	Duration   time.Duration
	FromState  string
	ToState    string
	Healthy    bool
}

// Collector aggregates gateway events off the request path. Emission is
// best-effort: a full buffer drops the event rather than blocking or
// failing the request.
type Collector struct {
	eventCh chan Event
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan Event, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

// Emit enqueues an event without blocking.
func (c *Collector) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventRequestReceived:
		c.metrics.IncrementRequests(event.Service)

	case EventRequestCompleted:
		c.metrics.RecordCompletion(event.Service, event.Duration, event.StatusCode)

	case EventCircuitStateChanged:
		c.metrics.RecordCircuitState(event.Service, event.ToState)

	case EventRateLimitRejected:
		c.metrics.IncrementRejections(event.Route)

	case EventUpstreamHealthChanged:
		c.metrics.UpdateHealthStatus(event.Service, event.Healthy)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
