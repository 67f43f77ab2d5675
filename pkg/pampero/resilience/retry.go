package resilience

import (
	"context"
	"fmt"
	"math"
	"time"

	"k8s.io/klog/v2"

	"github.com/meteosur/pampero/pkg/pampero/config"
)

// WithRetry runs fn up to policy.MaxAttempts times. Only errors accepted by
// retryIf are retried; anything else returns immediately. Delay before
// attempt k+1 is min(initial*multiplier^k, maxDelay) plus up to 10%
// additive jitter, and waits respect ctx cancellation. When ctx expires
// after an attempt has already failed, the returned error wraps that last
// failure so its classification survives; only cancellation before any
// failure returns a bare context error.
func WithRetry(ctx context.Context, policy config.RetryConfig, retryIf func(error) bool, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("context cancelled after %d failed attempts: %w", attempt, lastErr)
			}
			return fmt.Errorf("context cancelled: %v", ctx.Err())
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		if retryIf != nil && !retryIf(err) {
			return err
		}
		lastErr = err

		if attempt == policy.MaxAttempts-1 {
			break
		}

		backoff := backoffDuration(policy, attempt)
		klog.V(2).InfoS("Call failed, retrying",
			"attempt", attempt+1,
			"maxAttempts", policy.MaxAttempts,
			"backoff", backoff,
			"error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("context cancelled during backoff after %d failed attempts: %w", attempt+1, lastErr)
		case <-timer.C:
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", policy.MaxAttempts, lastErr)
}

// backoffDuration computes the capped exponential delay for an attempt,
// with additive jitter in [0, 10%) of the base delay.
func backoffDuration(policy config.RetryConfig, attempt int) time.Duration {
	base := time.Duration(float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(attempt)))
	if base > policy.MaxDelay {
		base = policy.MaxDelay
	}
	if base <= 0 {
		base = policy.InitialDelay
	}

	jitter := time.Duration(float64(base) * 0.1 * float64(time.Now().UnixNano()%1000) / 1000.0)
	return base + jitter
}
