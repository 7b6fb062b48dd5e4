// Package retry provides the bounded retry policy shared by every external
// HTTP client in the pipeline. Callers declare how many attempts they get,
// how long to back off, and which errors are worth retrying; everything else
// propagates immediately.
package retry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Policy is an explicit, reusable retry configuration.
type Policy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Retryable   func(err error) bool
}

// DefaultPolicy retries up to 3 attempts with exponential backoff starting at
// one second. Retryable defaults to retrying everything unless overridden.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     ExponentialBackoff(time.Second),
		Retryable:   func(error) bool { return true },
	}
}

// ExponentialBackoff doubles the base delay on each attempt: base, 2*base,
// 4*base, ...
func ExponentialBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base << uint(attempt)
	}
}

// Do runs op until it succeeds, exhausts MaxAttempts, hits a non-retryable
// error, or the context is canceled. The last error is returned.
func (p Policy) Do(ctx context.Context, label string, op func() error) error {
	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		delay := p.Backoff(attempt)
		logrus.Warnf("%s failed (attempt %d/%d), retrying in %v: %v", label, attempt+1, p.MaxAttempts, delay, err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
