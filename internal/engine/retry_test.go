package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipstack/sync-service/internal/platform"
)

func retryEngine(maxRetries int) *Engine {
	cfg := testConfig()
	cfg.MaxRetries = maxRetries
	return New(newMockStore(), platform.NewRegistry(), &fixedProber{}, cfg)
}

func TestPushWithRetryEventualSuccess(t *testing.T) {
	eng := retryEngine(3)
	transient := &platform.TransientError{Platform: "ebay", Op: "updatePrice", Err: errors.New("503")}

	calls := 0
	attempts, err := eng.pushWithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls <= 2 {
			return transient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestPushWithRetryExhaustion(t *testing.T) {
	eng := retryEngine(2)
	transient := &platform.TransientError{Platform: "ebay", Op: "updatePrice", Err: errors.New("503")}

	calls := 0
	attempts, err := eng.pushWithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return transient
	})

	require.Error(t, err)
	assert.True(t, platform.IsTransient(err))
	assert.Equal(t, 3, attempts, "initial attempt plus two retries")
	assert.Equal(t, 3, calls)
}

func TestPushWithRetryPermanentReturnsImmediately(t *testing.T) {
	eng := retryEngine(3)
	permanent := &platform.PermanentError{Platform: "ebay", Op: "updatePrice", Reason: "listing not found"}

	calls := 0
	attempts, err := eng.pushWithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return permanent
	})

	require.Error(t, err)
	assert.True(t, platform.IsPermanent(err))
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestPushWithRetryHonorsCancellation(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 5
	cfg.InitialBackoff = time.Hour // backoff long enough that only cancellation can end the wait
	eng := New(newMockStore(), platform.NewRegistry(), &fixedProber{}, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	transient := &platform.TransientError{Platform: "ebay", Op: "updatePrice", Err: errors.New("503")}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := eng.pushWithRetry(ctx, func(callCtx context.Context) error {
		return transient
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBackoffDelayGrowth(t *testing.T) {
	initial := 100 * time.Millisecond
	max := time.Second

	for attempt := 0; attempt < 3; attempt++ {
		base := initial * (1 << attempt)
		for i := 0; i < 20; i++ {
			d := backoffDelay(attempt, initial, max)
			assert.GreaterOrEqual(t, d, base)
			assert.LessOrEqual(t, d, base+base/4)
		}
	}
}

func TestBackoffDelayCap(t *testing.T) {
	initial := 100 * time.Millisecond
	max := time.Second

	for i := 0; i < 20; i++ {
		d := backoffDelay(10, initial, max)
		assert.GreaterOrEqual(t, d, max)
		assert.LessOrEqual(t, d, max+max/4)
	}
}
