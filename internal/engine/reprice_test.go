package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipstack/sync-service/internal/platform"
	"github.com/flipstack/sync-service/internal/pricing"
)

func autoRule() *pricing.Rule {
	return &pricing.Rule{
		ID:            "r1",
		ProductID:     "p1",
		Version:       1,
		MarkupPercent: 50,
		AutoReprice:   true,
	}
}

func TestRepricePushesToDriftedListings(t *testing.T) {
	st := newMockStore()
	st.product = activeProduct() // source price 2000, markup 50% -> 3000
	st.product.CurrentPrice = 2500
	st.rule = autoRule()
	st.listings = []Listing{
		{ID: "l1", ProductID: "p1", Platform: "ebay", ExternalID: "e1", Price: 2500, Quantity: 5, Status: ListingActive},
		{ID: "l2", ProductID: "p1", Platform: "etsy", ExternalID: "e2", Price: 2999, Quantity: 5, Status: ListingActive},
	}

	ebay := &scriptedAdapter{slug: "ebay"}
	etsy := &scriptedAdapter{slug: "etsy"}
	eng := testEngine(st, nil, ebay, etsy)

	out, err := eng.Execute(context.Background(), "p1", TriggerPeriodic, nil)
	require.NoError(t, err)

	assert.True(t, out.Repriced)
	assert.Equal(t, int64(3000), out.NewPrice)
	require.NotNil(t, st.savedProductPrice)
	assert.Equal(t, int64(3000), *st.savedProductPrice)

	// l2 is within epsilon of the target and keeps its mirror.
	assert.Equal(t, 1, ebay.callCount())
	assert.Zero(t, etsy.callCount())
	assert.Equal(t, int64(3000), st.listingPrices["l1"])
}

func TestRepricePartialFailureIsolation(t *testing.T) {
	st := newMockStore()
	st.product = activeProduct()
	st.rule = autoRule()
	st.listings = []Listing{
		{ID: "l-good", ProductID: "p1", Platform: "ebay", ExternalID: "e1", Price: 100, Quantity: 5, Status: ListingActive},
		{ID: "l-bad", ProductID: "p1", Platform: "etsy", ExternalID: "e2", Price: 100, Quantity: 5, Status: ListingActive},
	}

	ebay := &scriptedAdapter{slug: "ebay"}
	etsy := &scriptedAdapter{
		slug:     "etsy",
		err:      &platform.TransientError{Platform: "etsy", Op: "updatePrice", Err: errors.New("503")},
		failures: -1,
	}
	eng := testEngine(st, nil, ebay, etsy)

	out, err := eng.Execute(context.Background(), "p1", TriggerPeriodic, nil)
	require.NoError(t, err, "one failing platform must not fail the run")

	require.Len(t, out.Results, 2)
	failed := out.FailedResults()
	require.Len(t, failed, 1)
	assert.Equal(t, "l-bad", failed[0].ListingID)
	assert.Equal(t, FailureTransient, failed[0].FailureKind)

	// Transient exhaustion leaves the listing active for the next run.
	_, flagged := st.listingStatuses["l-bad"]
	assert.False(t, flagged)

	// The healthy platform's mirror was still updated.
	assert.Equal(t, int64(3000), st.listingPrices["l-good"])
}

func TestRepricePermanentFailureFlagsListing(t *testing.T) {
	st := newMockStore()
	st.product = activeProduct()
	st.rule = autoRule()
	st.listings = []Listing{
		{ID: "l1", ProductID: "p1", Platform: "ebay", ExternalID: "gone", Price: 100, Quantity: 5, Status: ListingActive},
	}

	ebay := &scriptedAdapter{
		slug:     "ebay",
		err:      &platform.PermanentError{Platform: "ebay", Op: "updatePrice", Reason: "listing not found"},
		failures: -1,
	}
	eng := testEngine(st, nil, ebay)

	out, err := eng.Execute(context.Background(), "p1", TriggerPeriodic, nil)
	require.NoError(t, err)

	require.Len(t, out.Results, 1)
	assert.Equal(t, FailurePermanent, out.Results[0].FailureKind)
	assert.Equal(t, 1, out.Results[0].Attempts, "permanent failures must not retry")
	assert.Equal(t, ListingError, st.listingStatuses["l1"])
}

func TestRepriceNoRuleIsNoOp(t *testing.T) {
	st := newMockStore()
	st.product = activeProduct()
	st.listings = []Listing{
		{ID: "l1", ProductID: "p1", Platform: "ebay", ExternalID: "e1", Price: 100, Quantity: 5, Status: ListingActive},
	}
	ebay := &scriptedAdapter{slug: "ebay"}
	eng := testEngine(st, nil, ebay)

	out, err := eng.Execute(context.Background(), "p1", TriggerPeriodic, nil)
	require.NoError(t, err)

	assert.False(t, out.Repriced)
	assert.Equal(t, out.PreviousPrice, out.NewPrice)
	assert.Zero(t, ebay.callCount())
	assert.Nil(t, st.savedProductPrice)
}

func TestRepriceDisplayOnlyRule(t *testing.T) {
	st := newMockStore()
	st.product = activeProduct()
	st.product.CurrentPrice = 2500 // drifted, so the display price must be rewritten
	rule := autoRule()
	rule.AutoReprice = false
	st.rule = rule
	st.listings = []Listing{
		{ID: "l1", ProductID: "p1", Platform: "ebay", ExternalID: "e1", Price: 100, Quantity: 5, Status: ListingActive},
	}
	ebay := &scriptedAdapter{slug: "ebay"}
	eng := testEngine(st, nil, ebay)

	out, err := eng.Execute(context.Background(), "p1", TriggerPeriodic, nil)
	require.NoError(t, err)

	// Display price updates, but nothing is pushed.
	assert.False(t, out.Repriced)
	assert.Equal(t, int64(3000), out.NewPrice)
	require.NotNil(t, st.savedProductPrice)
	assert.Equal(t, int64(3000), *st.savedProductPrice)
	assert.Zero(t, ebay.callCount())
}

func TestRepriceInvalidRuleLeavesPriceAlone(t *testing.T) {
	st := newMockStore()
	st.product = activeProduct()
	rule := autoRule()
	rule.MarkupPercent = -10
	st.rule = rule
	st.listings = []Listing{
		{ID: "l1", ProductID: "p1", Platform: "ebay", ExternalID: "e1", Price: 100, Quantity: 5, Status: ListingActive},
	}
	ebay := &scriptedAdapter{slug: "ebay"}
	eng := testEngine(st, nil, ebay)

	out, err := eng.Execute(context.Background(), "p1", TriggerPeriodic, nil)
	require.NoError(t, err)

	assert.Equal(t, out.PreviousPrice, out.NewPrice)
	assert.Zero(t, ebay.callCount())
	require.NotEmpty(t, out.Warnings)
	assert.Contains(t, out.Warnings[0], "markupPercent")
}

func TestRepriceUsesCompetitorSample(t *testing.T) {
	st := newMockStore()
	st.product = activeProduct()
	rule := autoRule()
	rule.CompetitorCheck = true
	st.rule = rule
	st.listings = []Listing{
		{ID: "l1", ProductID: "p1", Platform: "ebay", ExternalID: "e1", Price: 100, Quantity: 5, Status: ListingActive},
	}

	ebay := &scriptedAdapter{slug: "ebay"}
	prober := &fixedProber{price: 2600, ok: true}
	eng := testEngine(st, prober, ebay)

	out, err := eng.Execute(context.Background(), "p1", TriggerPeriodic, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, prober.samples)
	assert.Equal(t, 2600-pricing.UndercutStep, out.NewPrice)
}

func TestRepriceSkipsProbeWhenRuleOptsOut(t *testing.T) {
	st := newMockStore()
	st.product = activeProduct()
	st.rule = autoRule() // CompetitorCheck false
	st.listings = []Listing{
		{ID: "l1", ProductID: "p1", Platform: "ebay", ExternalID: "e1", Price: 100, Quantity: 5, Status: ListingActive},
	}

	prober := &fixedProber{price: 1, ok: true}
	eng := testEngine(st, prober, &scriptedAdapter{slug: "ebay"})

	out, err := eng.Execute(context.Background(), "p1", TriggerPeriodic, nil)
	require.NoError(t, err)

	assert.Zero(t, prober.samples, "probe costs remote calls, only run when usable")
	assert.Equal(t, int64(3000), out.NewPrice)
}

func TestRepriceMissedProbeFallsBackToMarkup(t *testing.T) {
	st := newMockStore()
	st.product = activeProduct()
	rule := autoRule()
	rule.CompetitorCheck = true
	st.rule = rule
	st.listings = []Listing{
		{ID: "l1", ProductID: "p1", Platform: "ebay", ExternalID: "e1", Price: 100, Quantity: 5, Status: ListingActive},
	}

	prober := &fixedProber{ok: false}
	eng := testEngine(st, prober, &scriptedAdapter{slug: "ebay"})

	out, err := eng.Execute(context.Background(), "p1", TriggerPeriodic, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, prober.samples)
	assert.Equal(t, int64(3000), out.NewPrice)
}

func TestRepriceUnknownPlatformRecordsPermanentFailure(t *testing.T) {
	st := newMockStore()
	st.product = activeProduct()
	st.rule = autoRule()
	st.listings = []Listing{
		{ID: "l1", ProductID: "p1", Platform: "vinted", ExternalID: "e1", Price: 100, Quantity: 5, Status: ListingActive},
	}
	eng := testEngine(st, nil)

	out, err := eng.Execute(context.Background(), "p1", TriggerPeriodic, nil)
	require.NoError(t, err)

	require.Len(t, out.Results, 1)
	assert.False(t, out.Results[0].OK)
	assert.Equal(t, FailurePermanent, out.Results[0].FailureKind)
	assert.Contains(t, out.Results[0].Error, "no adapter")
}
