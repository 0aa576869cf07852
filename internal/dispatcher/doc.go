// Package dispatcher composes the gateway's resilience layers into a single
// request pipeline: route resolution, rate-limit admission, per-service
// circuit breaking, and bounded retry around the upstream client. Every
// inbound request yields exactly one Outcome: a verbatim backend response or
// a structured error with a stable code.
package dispatcher
