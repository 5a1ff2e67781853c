// Package ratelimit gates all outbound provider calls behind a single
// shared budget. One Limiter is created per process and passed into
// every adapter; its counters are the only process-wide mutable state
// and are safe under concurrent access.
package ratelimit

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Limiter wraps a token bucket shared across all in-flight pipeline runs.
type Limiter struct {
	bucket *rate.Limiter
	calls  atomic.Int64
}

// New creates a limiter allowing callsPerSecond sustained calls with the
// given burst. callsPerSecond <= 0 disables throttling.
func New(callsPerSecond float64, burst int) *Limiter {
	if callsPerSecond <= 0 {
		return &Limiter{bucket: rate.NewLimiter(rate.Inf, 1)}
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(callsPerSecond), burst)}
}

// Wait blocks until the shared budget permits another call, or the
// context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.calls.Add(1)
	return l.bucket.Wait(ctx)
}

// Calls returns the total number of calls admitted through the limiter.
func (l *Limiter) Calls() int64 {
	return l.calls.Load()
}
