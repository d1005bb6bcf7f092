package transcribe

import (
	"context"
	"time"
)

// retryPolicy retries an operation with exponential backoff. The delay
// before attempt n (zero-based, after the first failure) is
// BaseDelay * 2^n.
type retryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	Sleep     func(time.Duration)
}

// newRetryPolicy builds the production policy for a retry count.
func newRetryPolicy(attempts int) retryPolicy {
	return retryPolicy{
		Attempts:  attempts,
		BaseDelay: 30 * time.Second,
		Sleep:     time.Sleep,
	}
}

// Do runs fn until it succeeds or attempts are exhausted, returning the
// last error unwrapped so sentinel checks keep working.
func (p retryPolicy) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt < p.Attempts-1 {
			p.Sleep(p.BaseDelay * (1 << attempt))
		}
	}
	return lastErr
}
