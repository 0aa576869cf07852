// Package config handles loading and parsing of gateway configuration from
// YAML files and environment variables. It defines the structures for server
// settings, backend service descriptors (timeouts, retries, circuit breaker
// thresholds), and per-route rate limits, and rejects invalid values at load.
package config
