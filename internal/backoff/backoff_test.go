package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"copilot/internal/domain"
)

// fakeClock records requested sleeps and returns immediately.
type fakeClock struct {
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return time.Unix(0, 0) }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return ctx.Err()
}

func TestDelayGrowsExponentially(t *testing.T) {
	p := New(5, 100*time.Millisecond).WithJitter(0)

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestDelayCapped(t *testing.T) {
	p := New(10, time.Second).WithJitter(0)
	if got := p.Delay(10); got != p.MaxDelay {
		t.Errorf("expected delay capped at %v, got %v", p.MaxDelay, got)
	}
}

func TestDelayJitterStaysBelowFull(t *testing.T) {
	p := New(3, 100*time.Millisecond) // default jitter 0.2
	for i := 0; i < 50; i++ {
		d := p.Delay(1)
		if d > 100*time.Millisecond || d < 80*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", d)
		}
	}
}

func TestRetryStopsAtCeiling(t *testing.T) {
	clock := &fakeClock{}
	p := New(3, 10*time.Millisecond).WithClock(clock).WithJitter(0)

	calls := 0
	err := p.Retry(context.Background(), func() error {
		calls++
		return domain.TransientProviderError("test", errors.New("unavailable"))
	})

	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if !domain.IsTransient(err) {
		t.Errorf("exhausted retry must return the last error: %v", err)
	}
	// Sleeps happen between attempts, not after the last one.
	if len(clock.sleeps) != 2 {
		t.Errorf("expected 2 sleeps, got %v", clock.sleeps)
	}
}

func TestRetryPermanentShortCircuits(t *testing.T) {
	clock := &fakeClock{}
	p := New(3, 10*time.Millisecond).WithClock(clock)

	calls := 0
	err := p.Retry(context.Background(), func() error {
		calls++
		return domain.PermanentProviderError("test", errors.New("bad key"))
	})

	if calls != 1 {
		t.Errorf("permanent errors must not be retried, got %d attempts", calls)
	}
	if err == nil || domain.IsTransient(err) {
		t.Errorf("unexpected error: %v", err)
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("no sleep should happen: %v", clock.sleeps)
	}
}

func TestRetrySucceedsAfterTransient(t *testing.T) {
	p := New(3, 10*time.Millisecond).WithClock(&fakeClock{})

	calls := 0
	err := p.Retry(context.Background(), func() error {
		calls++
		if calls < 2 {
			return domain.TransientProviderError("test", errors.New("unavailable"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}

func TestRetryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(3, 10*time.Millisecond).WithClock(&fakeClock{})

	calls := 0
	err := p.Retry(ctx, func() error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("cancelled context must prevent the call, got %d attempts", calls)
	}
}

func TestRetryCancellationDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	clock := &fakeClock{}
	p := New(3, 10*time.Millisecond).WithClock(clock)

	calls := 0
	err := p.Retry(ctx, func() error {
		calls++
		cancel() // takes effect at the next sleep
		return domain.TransientProviderError("test", errors.New("unavailable"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
}

func TestNewClampsArguments(t *testing.T) {
	p := New(0, 0)
	if p.MaxAttempts != 1 {
		t.Errorf("expected MaxAttempts clamped to 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay <= 0 {
		t.Errorf("expected a positive base delay, got %v", p.BaseDelay)
	}
}
