package github

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// newRequestBackoff builds the exponential schedule used when the server
// gives no Retry-After hint. BackOff implementations are stateful;
// always return a fresh instance.
func newRequestBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = RetryDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0 // deterministic doubling
	bo.MaxElapsedTime = 0      // the attempt cap bounds us, not wall time
	return bo
}

// withRetry executes op, retrying rate-limit and server errors up to
// MaxRetries times. A Retry-After duration from the server takes
// precedence over the computed backoff. Auth failures, not-found, and
// every other error are permanent. Exhausting the cap on rate limiting
// fails with ErrMaxRetries so callers can tell it apart from a plain
// rate-limit error.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	bo := newRequestBackoff()
	var lastErr error

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		retryable := errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServer)
		if !retryable || attempt == MaxRetries {
			break
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			break
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			delay = apiErr.RetryAfter
		}

		if err := c.sleepCtx(ctx, delay); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if errors.Is(lastErr, ErrRateLimited) {
		return fmt.Errorf("%s after %d attempts: %w: %w", op, MaxRetries+1, ErrMaxRetries, lastErr)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

// sleepCtx waits for d or until ctx is cancelled. The sleep hook lets
// tests observe delays without waiting them out.
func (c *Client) sleepCtx(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		c.sleep(d)
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
