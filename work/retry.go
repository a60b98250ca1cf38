package work

import (
	"context"
	"fmt"
	"time"
)

// RetryOptions configures Retry.
type RetryOptions struct {
	// Delay is the pause between attempts. Zero retries immediately.
	Delay time.Duration

	// RetryIf decides whether an error is worth another attempt. Nil
	// retries every error. Structural errors (malformed versions, cyclic
	// dependencies) should return false here: retrying them is useless.
	RetryIf func(error) bool
}

// RetryOption mutates RetryOptions.
type RetryOption func(*RetryOptions)

// WithDelay sets the pause between attempts.
func WithDelay(d time.Duration) RetryOption {
	return func(o *RetryOptions) { o.Delay = d }
}

// WithRetryIf sets the retry condition.
func WithRetryIf(fn func(error) bool) RetryOption {
	return func(o *RetryOptions) { o.RetryIf = fn }
}

// Retry invokes fn up to maxAttempts times, swallowing intermediate
// failures. It exists because the external collaborators this tool talks to
// fail transiently. The first success wins; otherwise the last failure is
// re-raised wrapped with the attempt count, or ErrRetriesExhausted when no
// attempt produced a concrete error (maxAttempts < 1).
func Retry(ctx context.Context, maxAttempts int, fn func(context.Context) error, opts ...RetryOption) error {
	options := RetryOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 && options.Delay > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("cancelled while waiting to retry: %w", ctx.Err())
			case <-time.After(options.Delay):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if options.RetryIf != nil && !options.RetryIf(lastErr) {
			return lastErr
		}
	}

	if lastErr == nil {
		return fmt.Errorf("no attempt out of %d ran: %w", maxAttempts, ErrRetriesExhausted)
	}
	return fmt.Errorf("all %d attempts failed: %w", maxAttempts, lastErr)
}
