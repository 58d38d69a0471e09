// Package retry is the caller-side policy for retrying embedding work that
// failed with a rate limit or a transient provider error. The retrieval core
// never retries on its own.
package retry

import (
	"context"
	"time"

	"ragcore/internal/domain"
)

// Policy bounds how often and how long to retry.
type Policy struct {
	// MaxAttempts is the total number of calls, first one included.
	MaxAttempts int
	// BaseDelay is the first backoff delay; it doubles on every attempt.
	BaseDelay time.Duration
	// MaxDelay caps a single wait, including provider Retry-After hints.
	MaxDelay time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 4, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// Do calls fn until it succeeds, fails with a non-retryable error, the
// attempts run out or ctx is done. It returns fn's last error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !domain.IsRetryable(err) || attempt == attempts-1 {
			return err
		}
		timer := time.NewTimer(p.Delay(attempt, err))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

// Delay returns the wait before the retry that follows a failed attempt:
// the provider's Retry-After when it sent one, otherwise exponential backoff.
func (p Policy) Delay(attempt int, err error) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d, ok := domain.RetryAfter(err)
	if !ok {
		base := p.BaseDelay
		if base <= 0 {
			base = 200 * time.Millisecond
		}
		d = base << min(attempt, 30)
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
