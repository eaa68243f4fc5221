package messaging

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds redelivery of a poison message before it is rejected to
// the dead-letter queue.
type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
}

// Delay returns the jittered backoff before the given retry (1-based, i.e.
// the delay taken after attempt n failed), capped at Max.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.Initial) * math.Pow(p.Multiplier, float64(attempt-1))

	jitter := 0.8 + rand.Float64()*0.4
	d = min(d*jitter, float64(p.Max))

	return time.Duration(d)
}

// processWithRetry invokes fn up to MaxAttempts times, sleeping the policy
// delay between attempts. It returns nil as soon as an attempt succeeds, the
// last processing error once attempts are exhausted, or the context error if
// cancelled mid-backoff.
func processWithRetry(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == policy.MaxAttempts {
			break
		}

		select {
		case <-time.After(policy.Delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
