// Package backoff provides an explicit retry policy for external provider
// calls: max attempts, exponential base delay with jitter, and a clock
// abstraction so policies are testable without real delays.
package backoff

import (
	"context"
	"math/rand"
	"time"

	"copilot/internal/domain"
)

// Clock abstracts time for testing.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RealClock returns a Clock backed by the system clock.
func RealClock() Clock { return realClock{} }

// Policy controls retries for one external call. The zero value is not
// usable; construct with New.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64 // fraction of the delay randomized, in [0,1]

	clock Clock
}

// New creates a retry policy with the given attempt ceiling and base delay.
func New(maxAttempts int, baseDelay time.Duration) Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    30 * time.Second,
		Jitter:      0.2,
		clock:       realClock{},
	}
}

// WithClock returns a copy of the policy using the given clock.
func (p Policy) WithClock(clock Clock) Policy {
	p.clock = clock
	return p
}

// WithJitter returns a copy with the jitter fraction replaced.
// Jitter 0 makes delays fully deterministic.
func (p Policy) WithJitter(jitter float64) Policy {
	p.Jitter = jitter
	return p
}

// Delay returns the backoff delay before the given retry attempt
// (attempt 1 is the first retry).
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt-1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		d = d - time.Duration(float64(d)*p.Jitter*rand.Float64())
	}
	return d
}

// Retry runs fn up to MaxAttempts times, sleeping between attempts.
// Only transient provider errors are retried; permanent errors and
// context cancellation short-circuit. The last error is returned after
// the ceiling is exhausted.
func (p Policy) Retry(ctx context.Context, fn func() error) error {
	clock := p.clock
	if clock == nil {
		clock = realClock{}
	}

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fn()
		if err == nil {
			return nil
		}
		if !domain.IsTransient(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		if serr := clock.Sleep(ctx, p.Delay(attempt)); serr != nil {
			return serr
		}
	}
	return err
}
