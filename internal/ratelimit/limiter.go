package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/registry"
)

// Decision is the outcome of an admission check. RetryAfter is set only on
// rejection and is always positive.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RouteLimit is the admission budget for one route prefix.
type RouteLimit struct {
	Capacity int
	Window   time.Duration
}

// bucket tracks one (route, client key) pair. Tokens are replenished lazily
// at check time; there is no background refill.
type bucket struct {
	mu          sync.Mutex
	remaining   int
	windowStart time.Time
}

// Limiter is a fixed-window token-bucket admission gate keyed by
// (route, client key), with an optional process-wide gate in front of it.
// Rejected requests never reach the breaker or a backend.
type Limiter struct {
	limits map[string]RouteLimit
	global *rate.Limiter

	mu      sync.RWMutex
	buckets map[string]*bucket
}

// New builds the limiter from the frozen route table. globalRPS of 0
// disables the process-wide gate.
func New(routes []registry.Route, globalRPS float64, globalBurst int) *Limiter {
	limits := make(map[string]RouteLimit, len(routes))
	for _, r := range routes {
		limits[r.Prefix] = RouteLimit{Capacity: r.Capacity, Window: r.Window}
	}

	l := &Limiter{
		limits:  limits,
		buckets: make(map[string]*bucket),
	}
	if globalRPS > 0 {
		l.global = rate.NewLimiter(rate.Limit(globalRPS), globalBurst)
	}
	return l
}

// Admit decides whether one request on the given route, from the given
// client key, may proceed. Safe for high-concurrency access to the same key:
// map lookups take a read lock, token accounting takes the bucket's own lock.
func (l *Limiter) Admit(route, clientKey string) Decision {
	if l.global != nil {
		res := l.global.Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			return Decision{RetryAfter: delay}
		}
	}

	limit, ok := l.limits[route]
	if !ok {
		// Routes are matched before admission, so an unknown route means
		// no budget is configured for it; let it through.
		return Decision{Allowed: true, Remaining: -1}
	}

	b := l.getOrCreate(route, clientKey, limit)

	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.windowStart) >= limit.Window {
		b.windowStart = now
		b.remaining = limit.Capacity
	}

	if b.remaining > 0 {
		b.remaining--
		return Decision{Allowed: true, Remaining: b.remaining}
	}

	return Decision{RetryAfter: b.windowStart.Add(limit.Window).Sub(now)}
}

// Limits returns the configured budget per route prefix.
func (l *Limiter) Limits() map[string]RouteLimit {
	out := make(map[string]RouteLimit, len(l.limits))
	for prefix, limit := range l.limits {
		out[prefix] = limit
	}
	return out
}

func (l *Limiter) getOrCreate(route, clientKey string, limit RouteLimit) *bucket {
	key := route + "\x00" + clientKey

	l.mu.RLock()
	b, exists := l.buckets[key]
	l.mu.RUnlock()

	if exists {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check: another goroutine may have created it
	if b, exists = l.buckets[key]; exists {
		return b
	}

	b = &bucket{remaining: limit.Capacity, windowStart: time.Now()}
	l.buckets[key] = b
	return b
}
