package platform

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAdapter is a scriptable adapter for breaker and registry tests.
type stubAdapter struct {
	slug      string
	updateErr error
	readPrice int64
	readErr   error
	updates   int
	reads     int
}

func (s *stubAdapter) Slug() string { return s.slug }
func (s *stubAdapter) Name() string { return s.slug }

func (s *stubAdapter) ReadCompetitorPrice(ctx context.Context, ref ProductRef) (int64, error) {
	s.reads++
	return s.readPrice, s.readErr
}

func (s *stubAdapter) UpdatePrice(ctx context.Context, ref ListingRef, price int64) error {
	s.updates++
	return s.updateErr
}

func (s *stubAdapter) UpdateQuantity(ctx context.Context, ref ListingRef, quantity int) error {
	s.updates++
	return s.updateErr
}

func testBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxFailures:      3,
		ResetTimeout:     50 * time.Millisecond,
		HalfOpenMaxCalls: 2,
	}
}

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker("ebay", testBreakerConfig(), nil)
	failure := errors.New("connection reset")

	for i := 0; i < 2; i++ {
		b.RecordFailure(failure)
		assert.Equal(t, BreakerClosed, b.State())
	}
	b.RecordFailure(failure)
	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("ebay", testBreakerConfig(), nil)
	failure := errors.New("timeout")

	b.RecordFailure(failure)
	b.RecordFailure(failure)
	b.RecordSuccess()
	b.RecordFailure(failure)
	b.RecordFailure(failure)

	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cfg := testBreakerConfig()
	b := NewBreaker("etsy", cfg, nil)
	failure := errors.New("503")

	for i := 0; i < cfg.MaxFailures; i++ {
		b.RecordFailure(failure)
	}
	require.Equal(t, BreakerOpen, b.State())

	time.Sleep(cfg.ResetTimeout + 10*time.Millisecond)

	// First Allow after the reset timeout moves to half-open.
	assert.True(t, b.Allow())
	assert.Equal(t, BreakerHalfOpen, b.State())

	b.RecordSuccess()
	b.RecordSuccess()
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cfg := testBreakerConfig()
	b := NewBreaker("depop", cfg, nil)
	failure := errors.New("503")

	for i := 0; i < cfg.MaxFailures; i++ {
		b.RecordFailure(failure)
	}
	time.Sleep(cfg.ResetTimeout + 10*time.Millisecond)
	require.True(t, b.Allow())
	require.Equal(t, BreakerHalfOpen, b.State())

	b.RecordFailure(failure)
	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.Allow())
}

func TestGuardedFailsFastWhenOpen(t *testing.T) {
	cfg := testBreakerConfig()
	stub := &stubAdapter{slug: "ebay", updateErr: &TransientError{Platform: "ebay", Op: "updatePrice", Err: errors.New("502")}}
	g := Guard(stub, cfg, nil)

	ctx := context.Background()
	ref := ListingRef{ListingID: "l1", ExternalID: "ext1"}
	for i := 0; i < cfg.MaxFailures; i++ {
		err := g.UpdatePrice(ctx, ref, 100)
		require.Error(t, err)
	}
	require.Equal(t, BreakerOpen, g.Breaker().State())

	callsBefore := stub.updates
	err := g.UpdatePrice(ctx, ref, 100)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, callsBefore, stub.updates, "open breaker must not reach the adapter")
}

func TestGuardedTreatsMarketplaceAnswersAsSuccess(t *testing.T) {
	cfg := testBreakerConfig()
	ctx := context.Background()
	ref := ListingRef{ListingID: "l1", ExternalID: "ext1"}

	t.Run("permanent rejection", func(t *testing.T) {
		stub := &stubAdapter{slug: "ebay", updateErr: &PermanentError{Platform: "ebay", Op: "updatePrice", Reason: "listing not found"}}
		g := Guard(stub, cfg, nil)
		for i := 0; i < cfg.MaxFailures*2; i++ {
			require.Error(t, g.UpdatePrice(ctx, ref, 100))
		}
		assert.Equal(t, BreakerClosed, g.Breaker().State())
	})

	t.Run("no competitor data", func(t *testing.T) {
		stub := &stubAdapter{slug: "etsy", readErr: ErrUnavailable}
		g := Guard(stub, cfg, nil)
		for i := 0; i < cfg.MaxFailures*2; i++ {
			_, err := g.ReadCompetitorPrice(ctx, ProductRef{SKU: "sku-1"})
			require.Error(t, err)
		}
		assert.Equal(t, BreakerClosed, g.Breaker().State())
	})
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubAdapter{slug: "ebay"})
	reg.Register(&stubAdapter{slug: "etsy"})

	adapter, ok := reg.Get("ebay")
	require.True(t, ok)
	assert.Equal(t, "ebay", adapter.Slug())

	_, ok = reg.Get("vinted")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"ebay", "etsy"}, reg.Slugs())
	assert.True(t, reg.IsRegistered("etsy"))

	reg.Unregister("etsy")
	assert.False(t, reg.IsRegistered("etsy"))
}
