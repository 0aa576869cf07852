// Package upstream performs the outbound leg of a proxied request: building
// the backend URL, forwarding headers with hop-by-hop hygiene, enforcing the
// per-attempt timeout, and classifying failures into transport errors
// (retryable, circuit-relevant) versus completed error responses (neither).
package upstream
