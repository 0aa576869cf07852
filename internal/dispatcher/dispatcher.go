package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/circuitbreaker"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/metrics"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/ratelimit"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/registry"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/retry"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/upstream"
)

// ErrorCode is the stable machine-readable code carried by every failure
// response.
type ErrorCode string

const (
	CodeNotFound           ErrorCode = "not_found"
	CodeRateLimited        ErrorCode = "rate_limited"
	CodeCircuitOpen        ErrorCode = "circuit_open"
	CodeServiceUnavailable ErrorCode = "service_unavailable"
)

// Request is the dispatch core's view of one inbound request. It is created
// at entry, discarded at response, and never shared across requests.
type Request struct {
	ID        string
	Method    string
	Path      string
	Query     string
	Header    http.Header
	Body      []byte
	ClientKey string
	ClientIP  string
}

// Outcome is either a verbatim backend response (success or unretried
// application error) or a structured failure with a stable code.
type Outcome struct {
	Response   *upstream.Response
	Code       ErrorCode
	RetryAfter time.Duration
	Service    string
}

// Dispatcher composes routing, admission control, circuit breaking, and
// retried proxying into a single decision per inbound request.
type Dispatcher struct {
	logger   *slog.Logger
	registry *registry.Registry
	routes   *registry.Routes
	breakers *circuitbreaker.Registry
	limiter  *ratelimit.Limiter
	retrier  *retry.Executor
	client   *upstream.Client

	collector *metrics.Collector
}

func New(
	logger *slog.Logger,
	reg *registry.Registry,
	routes *registry.Routes,
	breakers *circuitbreaker.Registry,
	limiter *ratelimit.Limiter,
	retrier *retry.Executor,
	client *upstream.Client,
	collector *metrics.Collector,
) *Dispatcher {
	return &Dispatcher{
		logger:    logger,
		registry:  reg,
		routes:    routes,
		breakers:  breakers,
		limiter:   limiter,
		retrier:   retrier,
		client:    client,
		collector: collector,
	}
}

// Dispatch routes, admits, guards, and forwards one request. The order is
// fixed: route resolution, then rate limiting (rejections never touch the
// breaker or a backend), then the breaker wrapping the whole retry envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Outcome {
	start := time.Now()

	route, ok := d.routes.Match(req.Path)
	if !ok {
		d.logger.Warn("No route for path",
			slog.String("request_id", req.ID),
			slog.String("path", req.Path))
		return d.complete(req, start, &Outcome{Code: CodeNotFound})
	}

	d.emit(metrics.Event{
		Type:    metrics.EventRequestReceived,
		Service: route.Service,
		Route:   route.Prefix,
	})

	decision := d.limiter.Admit(route.Prefix, req.ClientKey)
	if !decision.Allowed {
		d.emit(metrics.Event{
			Type:  metrics.EventRateLimitRejected,
			Route: route.Prefix,
		})
		d.logger.Info("Request rejected by rate limiter",
			slog.String("request_id", req.ID),
			slog.String("route", route.Prefix),
			slog.Duration("retry_after", decision.RetryAfter))
		return d.complete(req, start, &Outcome{
			Code:       CodeRateLimited,
			RetryAfter: decision.RetryAfter,
			Service:    route.Service,
		})
	}

	desc, err := d.registry.Lookup(route.Service)
	if err != nil {
		return d.complete(req, start, &Outcome{Code: CodeNotFound, Service: route.Service})
	}

	cb, ok := d.breakers.Get(desc.Name)
	if !ok {
		return d.complete(req, start, &Outcome{Code: CodeNotFound, Service: desc.Name})
	}

	preq := &upstream.Request{
		Method:    req.Method,
		Path:      req.Path,
		Query:     req.Query,
		Header:    req.Header,
		Body:      req.Body,
		ClientIP:  req.ClientIP,
		RequestID: req.ID,
	}

	var resp *upstream.Response
	err = cb.Execute(func() error {
		r, attemptErr := d.retrier.Execute(ctx, desc, func(attemptCtx context.Context) (*upstream.Response, error) {
			return d.client.Do(attemptCtx, desc, preq)
		})
		if attemptErr != nil {
			return attemptErr
		}
		resp = r
		return nil
	})

	outcome := d.mapResult(req, desc.Name, cb, resp, err)
	return d.complete(req, start, outcome)
}

func (d *Dispatcher) mapResult(req *Request, service string, cb *circuitbreaker.CircuitBreaker, resp *upstream.Response, err error) *Outcome {
	switch {
	case err == nil:
		return &Outcome{Response: resp, Service: service}

	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		d.logger.Warn("Circuit open, failing fast",
			slog.String("request_id", req.ID),
			slog.String("service", service))
		return &Outcome{
			Code:       CodeCircuitOpen,
			RetryAfter: cb.Cooldown(),
			Service:    service,
		}

	default:
		// Transport exhaustion and caller cancellation both surface as
		// unavailability; internals stay out of the response body.
		d.logger.Error("Upstream dispatch failed",
			slog.String("request_id", req.ID),
			slog.String("service", service),
			slog.String("error", err.Error()))
		return &Outcome{Code: CodeServiceUnavailable, Service: service}
	}
}

// complete emits the request_completed event and returns the outcome.
func (d *Dispatcher) complete(req *Request, start time.Time, outcome *Outcome) *Outcome {
	d.emit(metrics.Event{
		Type:       metrics.EventRequestCompleted,
		Service:    outcome.Service,
		StatusCode: outcome.Status(),
		Duration:   time.Since(start),
	})
	return outcome
}

// emit forwards an event best-effort; a nil or saturated collector never
// affects the request.
func (d *Dispatcher) emit(event metrics.Event) {
	if d.collector == nil {
		return
	}
	d.collector.Emit(event)
}

// Status maps the outcome to the HTTP status the caller will see.
func (o *Outcome) Status() int {
	if o.Response != nil {
		return o.Response.StatusCode
	}

	switch o.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusServiceUnavailable
	}
}
