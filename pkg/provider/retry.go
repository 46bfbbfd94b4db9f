package provider

import (
	"context"
	"math/rand"
	"time"

	"github.com/cuemby/pixelforge/pkg/apierr"
)

// backoffBase and backoffCap bound the jittered exponential backoff
// between retries: base * 2^attempt, capped, then jittered by up to
// 50% to avoid synchronized retries across concurrent workers.
const (
	backoffBase = 250 * time.Millisecond
	backoffCap  = 10 * time.Second
)

// WithRetry invokes fn up to maxRetries+1 times, retrying only when fn
// returns an *apierr.Error whose Kind is retryable. Sleeps are jittered
// exponential backoff and respect ctx cancellation.
func WithRetry(ctx context.Context, maxRetries int, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt-1); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !apierr.KindOf(err).Retryable() {
			return err
		}
	}
	return lastErr
}

func sleepBackoff(ctx context.Context, attempt int) error {
	delay := backoffBase * time.Duration(1<<uint(attempt))
	if delay > backoffCap {
		delay = backoffCap
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 2))
	delay = delay/2 + jitter

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return apierr.Wrap(apierr.KindCanceled, "canceled during backoff", ctx.Err())
	}
}
