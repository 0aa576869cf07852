// Package ratelimit provides the gateway's admission control: a lazily
// refilled fixed-window token bucket per (route, client key) plus an optional
// golang.org/x/time/rate gate for the process as a whole. Admission runs
// strictly before routing, circuit breaking, and retry, so rejected traffic
// costs nothing downstream.
package ratelimit
