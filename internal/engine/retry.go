package engine

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/flipstack/sync-service/internal/platform"
)

// pushWithRetry runs one adapter call with the engine's retry policy:
// transient failures retry up to MaxRetries with exponential backoff,
// permanent failures return immediately. Each attempt carries its own
// AdapterTimeout; a timeout cancels that attempt only.
func (e *Engine) pushWithRetry(ctx context.Context, call func(context.Context) error) (attempts int, err error) {
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.AdapterTimeout)
		err = call(callCtx)
		cancel()
		attempts = attempt + 1

		if err == nil || platform.IsPermanent(err) {
			return attempts, err
		}
		if attempt >= e.cfg.MaxRetries {
			return attempts, err
		}

		select {
		case <-time.After(backoffDelay(attempt, e.cfg.InitialBackoff, e.cfg.MaxBackoff)):
		case <-ctx.Done():
			return attempts, ctx.Err()
		}
	}
}

// backoffDelay computes the delay before retry number attempt+1:
// initial * 2^attempt, capped, with 0-25% jitter to avoid retry herds.
func backoffDelay(attempt int, initial, max time.Duration) time.Duration {
	delay := float64(initial) * math.Pow(2, float64(attempt))
	if delay > float64(max) {
		delay = float64(max)
	}
	jitter := rand.Float64() * 0.25 * delay
	return time.Duration(delay + jitter)
}
