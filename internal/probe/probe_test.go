package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipstack/sync-service/internal/platform"
)

type fakeAdapter struct {
	slug  string
	price int64
	err   error
	delay time.Duration
	calls int
}

func (f *fakeAdapter) Slug() string { return f.slug }
func (f *fakeAdapter) Name() string { return f.slug }

func (f *fakeAdapter) ReadCompetitorPrice(ctx context.Context, ref platform.ProductRef) (int64, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return f.price, f.err
}

func (f *fakeAdapter) UpdatePrice(ctx context.Context, ref platform.ListingRef, price int64) error {
	return nil
}

func (f *fakeAdapter) UpdateQuantity(ctx context.Context, ref platform.ListingRef, quantity int) error {
	return nil
}

func newTestRegistry(adapters ...*fakeAdapter) *platform.Registry {
	reg := platform.NewRegistry()
	for _, a := range adapters {
		reg.Register(a)
	}
	return reg
}

func TestSampleReturnsLowestPrice(t *testing.T) {
	reg := newTestRegistry(
		&fakeAdapter{slug: "ebay", price: 2500},
		&fakeAdapter{slug: "etsy", price: 1999},
		&fakeAdapter{slug: "depop", price: 3100},
	)
	p := New(reg, time.Second)

	price, ok := p.Sample(context.Background(), "vinted", platform.ProductRef{SKU: "sku-1"})
	require.True(t, ok)
	assert.Equal(t, int64(1999), price)
}

func TestSampleExcludesTargetPlatform(t *testing.T) {
	target := &fakeAdapter{slug: "ebay", price: 1}
	reg := newTestRegistry(
		target,
		&fakeAdapter{slug: "etsy", price: 2000},
	)
	p := New(reg, time.Second)

	price, ok := p.Sample(context.Background(), "ebay", platform.ProductRef{SKU: "sku-1"})
	require.True(t, ok)
	assert.Equal(t, int64(2000), price)
	assert.Zero(t, target.calls, "target platform must not be probed")
}

func TestSampleSurvivesPartialFailure(t *testing.T) {
	reg := newTestRegistry(
		&fakeAdapter{slug: "ebay", err: errors.New("connection refused")},
		&fakeAdapter{slug: "etsy", price: 2200},
		&fakeAdapter{slug: "depop", err: platform.ErrUnavailable},
	)
	p := New(reg, time.Second)

	price, ok := p.Sample(context.Background(), "vinted", platform.ProductRef{SKU: "sku-1"})
	require.True(t, ok)
	assert.Equal(t, int64(2200), price)
}

func TestSampleNoDataFromAnyPlatform(t *testing.T) {
	reg := newTestRegistry(
		&fakeAdapter{slug: "ebay", err: platform.ErrUnavailable},
		&fakeAdapter{slug: "etsy", err: errors.New("503")},
	)
	p := New(reg, time.Second)

	_, ok := p.Sample(context.Background(), "vinted", platform.ProductRef{SKU: "sku-1"})
	assert.False(t, ok)
}

func TestSampleTimesOutSlowPlatform(t *testing.T) {
	reg := newTestRegistry(
		&fakeAdapter{slug: "ebay", price: 1500, delay: 500 * time.Millisecond},
		&fakeAdapter{slug: "etsy", price: 2000},
	)
	p := New(reg, 50*time.Millisecond)

	price, ok := p.Sample(context.Background(), "vinted", platform.ProductRef{SKU: "sku-1"})
	require.True(t, ok)
	assert.Equal(t, int64(2000), price, "slow platform is excluded, not waited for")
}

func TestSampleEmptyRegistry(t *testing.T) {
	p := New(platform.NewRegistry(), time.Second)
	_, ok := p.Sample(context.Background(), "ebay", platform.ProductRef{SKU: "sku-1"})
	assert.False(t, ok)
}
