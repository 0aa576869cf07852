package main

import (
	"net/http"

	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/handler"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/metrics"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/ratelimit"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/registry"
)

func setupRouter(gatewayHandler *handler.GatewayHandler, collector *metrics.Collector, reg *registry.Registry, limiter *ratelimit.Limiter) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", gatewayHandler.ServeHTTP)
	mux.HandleFunc("/health", handler.Health())
	mux.HandleFunc("/metrics", collector.Handler())
	mux.HandleFunc("/services", handler.Services(reg))
	mux.HandleFunc("/rate-limit/status", handler.RateLimitStatus(limiter))

	return mux
}
