package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/flipstack/sync-service/internal/platform"
	"github.com/flipstack/sync-service/internal/pricing"
)

// reprice evaluates the product's current rule and pushes the computed
// price to every active listing whose mirror has drifted past the
// configured epsilon. Runs after inventory reconciliation so it sees
// the corrected quantity.
func (e *Engine) reprice(ctx context.Context, product *Product, listings []Listing, out *Outcome) {
	out.PreviousPrice = product.CurrentPrice
	out.NewPrice = product.CurrentPrice

	rule, err := e.store.CurrentRule(ctx, product.ID)
	if err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("load pricing rule: %v", err))
		return
	}
	if rule == nil {
		e.metrics.RecordRepriceSkip("no_rule")
		return
	}

	// The probe costs remote calls on every other platform, so it only
	// runs when its result can actually reach a listing.
	var competitor *int64
	if rule.AutoReprice && rule.CompetitorCheck {
		ref := platform.ProductRef{SKU: product.SKU, Category: product.Category}
		if price, ok := e.probe.Sample(ctx, product.TargetPlatform, ref); ok {
			competitor = &price
		} else {
			e.logger.Debug().
				Str("product_id", product.ID).
				Msg("No competitor sample, skipping competitor adjustment this pass")
		}
	}

	price, err := pricing.Evaluate(product.SourcePrice, *rule, competitor)
	if err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("rule %s: %v", rule.ID, err))
		e.metrics.RecordInvalidRule()
		e.logger.Error().
			Err(err).
			Str("product_id", product.ID).
			Str("rule_id", rule.ID).
			Msg("Pricing rule rejected by evaluator")
		return
	}
	out.NewPrice = price

	if price != product.CurrentPrice {
		if serr := e.store.SaveProductPrice(ctx, product.ID, price); serr != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("persist price: %v", serr))
			e.logger.Error().
				Err(serr).
				Str("product_id", product.ID).
				Msg("Failed to persist display price")
		}
		product.CurrentPrice = price
	}

	if !rule.AutoReprice {
		e.metrics.RecordRepriceSkip("display_only")
		return
	}
	out.Repriced = true

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		pushed bool
	)
	for i := range listings {
		listing := &listings[i]
		if listing.Status != ListingActive {
			continue
		}
		if absDiff(listing.Price, price) <= e.cfg.PriceEpsilon {
			continue
		}

		pushed = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := e.pushPrice(ctx, listing, price)
			mu.Lock()
			out.Results = append(out.Results, result)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if !pushed {
		e.metrics.RecordRepriceSkip("within_epsilon")
	}
}

// pushPrice pushes the computed price to one listing.
func (e *Engine) pushPrice(ctx context.Context, listing *Listing, price int64) ListingResult {
	result := ListingResult{
		ListingID: listing.ID,
		Platform:  listing.Platform,
		Op:        OpPrice,
		Previous:  listing.Price,
		Applied:   price,
	}

	adapter, ok := e.registry.Get(listing.Platform)
	if !ok {
		result.FailureKind = FailurePermanent
		result.Error = fmt.Sprintf("no adapter registered for platform %s", listing.Platform)
		e.metrics.RecordPush(listing.Platform, OpPrice, false)
		return result
	}

	ref := platform.ListingRef{ListingID: listing.ID, ExternalID: listing.ExternalID}
	attempts, err := e.pushWithRetry(ctx, func(callCtx context.Context) error {
		return adapter.UpdatePrice(callCtx, ref, price)
	})
	result.Attempts = attempts
	e.metrics.RecordRetries(listing.Platform, OpPrice, attempts-1)

	if err != nil {
		e.recordPushFailure(ctx, &result, err)
		e.metrics.RecordPush(listing.Platform, OpPrice, false)
		return result
	}

	result.OK = true
	e.metrics.RecordPush(listing.Platform, OpPrice, true)
	if serr := e.store.SaveListingPrice(ctx, listing.ID, price); serr != nil {
		e.logger.Error().
			Err(serr).
			Str("listing_id", listing.ID).
			Msg("Failed to persist mirrored price")
	} else {
		listing.Price = price
	}
	return result
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
