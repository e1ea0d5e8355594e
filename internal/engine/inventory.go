package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/flipstack/sync-service/internal/platform"
)

// syncInventory reconciles a product's authoritative quantity across
// its listings. A sale-triggered run first applies the sold amounts to
// the authoritative quantity (floored at zero) and then fans the new
// value out to the remaining listings.
func (e *Engine) syncInventory(ctx context.Context, product *Product, listings []Listing, sales []SaleEvent, out *Outcome) {
	out.PreviousQuantity = product.Quantity

	newQuantity := product.Quantity
	for _, sale := range sales {
		if sale.QuantitySold <= 0 {
			out.Warnings = append(out.Warnings, fmt.Sprintf("sale %s: non-positive quantity %d ignored", sale.SaleID, sale.QuantitySold))
			continue
		}
		newQuantity -= sale.QuantitySold
	}
	if newQuantity < 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf(
			"oversell: %d units sold with only %d tracked, clamping quantity to zero",
			product.Quantity-newQuantity, product.Quantity))
		e.metrics.RecordOversellClamp()
		e.logger.Warn().
			Str("product_id", product.ID).
			Int("tracked", product.Quantity).
			Msg("Sale exceeded tracked stock, clamping quantity to zero")
		newQuantity = 0
	}
	out.NewQuantity = newQuantity

	if newQuantity != product.Quantity {
		if err := e.store.SaveProductQuantity(ctx, product.ID, newQuantity); err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("persist quantity: %v", err))
			e.logger.Error().
				Err(err).
				Str("product_id", product.ID).
				Msg("Failed to persist authoritative quantity")
		}
		product.Quantity = newQuantity
	}

	// The listing that reported a sale already reflects it remotely; a
	// redundant round trip would only burn its rate budget. Coalesced
	// runs carry several sales, so every mirror may have diverged and
	// the skip no longer applies.
	skipListing := ""
	if len(sales) == 1 {
		skipListing = sales[0].ListingID
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for i := range listings {
		listing := &listings[i]
		if listing.Status != ListingActive {
			continue
		}
		if listing.ID == skipListing {
			// Remote state already reflects the sale; persist the local
			// mirror too, or the drift scan keeps flagging this product.
			if listing.Quantity != newQuantity {
				if serr := e.store.SaveListingQuantity(ctx, listing.ID, newQuantity); serr != nil {
					e.logger.Error().
						Err(serr).
						Str("listing_id", listing.ID).
						Msg("Failed to persist reporting listing quantity")
				}
				listing.Quantity = newQuantity
			}
			continue
		}
		if listing.Quantity == newQuantity {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			result := e.pushQuantity(ctx, listing, newQuantity)
			mu.Lock()
			out.Results = append(out.Results, result)
			mu.Unlock()
		}()
	}
	wg.Wait()
}

// pushQuantity pushes the authoritative quantity to one listing.
func (e *Engine) pushQuantity(ctx context.Context, listing *Listing, quantity int) ListingResult {
	result := ListingResult{
		ListingID: listing.ID,
		Platform:  listing.Platform,
		Op:        OpQuantity,
		Previous:  int64(listing.Quantity),
		Applied:   int64(quantity),
	}

	adapter, ok := e.registry.Get(listing.Platform)
	if !ok {
		result.FailureKind = FailurePermanent
		result.Error = fmt.Sprintf("no adapter registered for platform %s", listing.Platform)
		e.metrics.RecordPush(listing.Platform, OpQuantity, false)
		return result
	}

	ref := platform.ListingRef{ListingID: listing.ID, ExternalID: listing.ExternalID}
	attempts, err := e.pushWithRetry(ctx, func(callCtx context.Context) error {
		return adapter.UpdateQuantity(callCtx, ref, quantity)
	})
	result.Attempts = attempts
	e.metrics.RecordRetries(listing.Platform, OpQuantity, attempts-1)

	if err != nil {
		e.recordPushFailure(ctx, &result, err)
		e.metrics.RecordPush(listing.Platform, OpQuantity, false)
		return result
	}

	result.OK = true
	e.metrics.RecordPush(listing.Platform, OpQuantity, true)
	if serr := e.store.SaveListingQuantity(ctx, listing.ID, quantity); serr != nil {
		e.logger.Error().
			Err(serr).
			Str("listing_id", listing.ID).
			Msg("Failed to persist mirrored quantity")
	} else {
		listing.Quantity = quantity
	}
	return result
}
