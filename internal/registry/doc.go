// Package registry provides the static service and route lookup tables for
// the gateway. Both are built once from configuration at startup and frozen,
// so any number of request goroutines can read them without synchronization.
package registry
