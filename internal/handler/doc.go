// Package handler implements the gateway's inbound HTTP surface. It attaches
// a fresh request id, derives the rate-limit client key from the
// pre-validated caller identity, hands the request to the dispatcher, and
// translates the outcome back to HTTP, including the structured error body
// contract for rate-limit, circuit, and transport failures.
package handler
