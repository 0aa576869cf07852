package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruslanbaba/Azure-Healthcare-Platform/config"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/circuitbreaker"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/dispatcher"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/handler"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/healthcheck"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/httpserver"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/metrics"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/ratelimit"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/registry"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/retry"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/upstream"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/pkg/logger"
)

const metricsBufferSize = 1000

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg, err := registry.New(cfg.Services)
	if err != nil {
		log.Error("Failed to build service registry", slog.Any("err", err))
		os.Exit(1)
	}

	routes, err := registry.NewRoutes(cfg.Routes, reg)
	if err != nil {
		log.Error("Failed to build route table", slog.Any("err", err))
		os.Exit(1)
	}

	collector := metrics.NewCollector(metricsBufferSize, log)
	collector.Start(ctx)

	breakers := circuitbreaker.NewRegistry(reg.All(), upstream.IsTransient,
		func(service string, from, to circuitbreaker.State) {
			log.Warn("Circuit state changed",
				slog.String("service", service),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			collector.Emit(metrics.Event{
				Type:      metrics.EventCircuitStateChanged,
				Service:   service,
				FromState: from.String(),
				ToState:   to.String(),
			})
		})

	limiter := ratelimit.New(routes.All(), cfg.GlobalRate.RPS, cfg.GlobalRate.Burst)

	retrier := retry.NewExecutor()
	retrier.Observer = func(service string, attempt retry.Attempt) {
		if attempt.Err != nil {
			log.Warn("Proxy attempt failed",
				slog.String("service", service),
				slog.Int("attempt", attempt.Number),
				slog.Duration("latency", attempt.Latency),
				slog.String("error", attempt.Err.Error()))
		}
	}

	disp := dispatcher.New(log, reg, routes, breakers, limiter, retrier, upstream.NewClient(), collector)
	gatewayHandler := handler.New(log, disp)

	startHealthWatchers(ctx, cfg, reg, log, collector)

	mux := setupRouter(gatewayHandler, collector, reg, limiter)

	srv, err := httpserver.New(cfg.Server.Address, mux)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Gateway listening", slog.String("address", cfg.Server.Address))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting gateway", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func startHealthWatchers(ctx context.Context, cfg *config.Config, reg *registry.Registry, log *slog.Logger, collector *metrics.Collector) {
	interval, err := time.ParseDuration(cfg.HealthCheck.Interval)
	if err != nil {
		interval = 15 * time.Second
	}

	for _, desc := range reg.All() {
		go healthcheck.Watch(ctx, desc, interval, log, collector)
	}
}
