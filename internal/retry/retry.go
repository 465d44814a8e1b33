// Package retry runs an operation a bounded number of times with a fixed or
// exponentially growing pause between attempts.
package retry

import (
	"context"
	"log/slog"
	"time"
)

// Policy describes how often and how patiently an operation is retried.
// A Multiplier of 0 or 1 gives a fixed delay.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Fixed returns a policy with a constant pause between attempts.
func Fixed(attempts int, delay time.Duration) Policy {
	return Policy{MaxAttempts: attempts, InitialDelay: delay, MaxDelay: delay, Multiplier: 1}
}

// Exponential returns a policy whose pause doubles after every attempt.
func Exponential(attempts int, initial, max time.Duration) Policy {
	return Policy{MaxAttempts: attempts, InitialDelay: initial, MaxDelay: max, Multiplier: 2}
}

// Delay returns the pause that follows the given 1-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.InitialDelay <= 0 {
		return 0
	}
	delay := p.InitialDelay
	if p.Multiplier > 1 {
		for i := 1; i < attempt; i++ {
			delay = time.Duration(float64(delay) * p.Multiplier)
			if p.MaxDelay > 0 && delay >= p.MaxDelay {
				return p.MaxDelay
			}
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Do calls fn until it succeeds, returns an error that retryIf rejects, the
// attempts are exhausted, or ctx is done. A nil retryIf retries every error.
// The last error is returned unchanged.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error, retryIf func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if retryIf != nil && !retryIf(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		delay := p.Delay(attempt)
		slog.DebugContext(ctx, "retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("delay", delay),
			slog.String("error", lastErr.Error()))

		if err := Sleep(ctx, delay); err != nil {
			return lastErr
		}
	}
	return lastErr
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
