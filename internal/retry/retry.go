package retry

import (
	"context"
	"time"
)

// Policy describes how an operation is retried: how many attempts are made
// and how long to wait after each failed one.
type Policy struct {
	MaxAttempts int
	// Delay returns the wait before re-running attempt+1; attempt starts at 1.
	Delay func(attempt int) time.Duration
	// Sleep is swappable for tests. Defaults to a context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Linear returns a backoff function growing by base per attempt
// (base, 2*base, 3*base, ...).
func Linear(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * base
	}
}

// Do runs fn up to MaxAttempts times, sleeping Delay(attempt) between
// attempts. The last attempt's error is returned unwrapped. Context
// cancellation aborts between attempts.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		var d time.Duration
		if p.Delay != nil {
			d = p.Delay(attempt)
		}
		if serr := sleep(ctx, d); serr != nil {
			return serr
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
