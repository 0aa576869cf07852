// Package healthcheck runs background probes against backend /health
// endpoints, feeding transition events into the metrics pipeline. Probes
// never gate dispatch.
package healthcheck
