// Package ratelimit provides a shared token-bucket gate for external
// service calls, keyed by service name.
package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Gate holds one token bucket per external service. Callers block until
// a token is available; there is deliberately no wait timeout, since for
// a daily batch job correctness beats latency.
type Gate struct {
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
}

// New creates an empty gate.
func New() *Gate {
	return &Gate{buckets: make(map[string]*rate.Limiter)}
}

// AddBucket registers a bucket refilling at perMinute tokens per minute
// with the given burst capacity. Re-registering a name replaces it.
func (g *Gate) AddBucket(name string, perMinute float64, burst int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.buckets[name] = rate.NewLimiter(rate.Limit(perMinute/60.0), burst)
}

// Wait blocks until a token is available in the named bucket, or until
// ctx is cancelled.
func (g *Gate) Wait(ctx context.Context, name string) error {
	g.mu.RLock()
	limiter, ok := g.buckets[name]
	g.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown rate-limit bucket: %s", name)
	}
	return limiter.Wait(ctx)
}
