package marketplaces

import (
	"context"
	"fmt"

	"github.com/flipstack/sync-service/internal/platform"
	"github.com/flipstack/sync-service/internal/platform/rest"
)

// EtsyAdapter integrates with the Etsy Open API v3.
type EtsyAdapter struct {
	client *rest.Client
}

// NewEtsyAdapter creates the Etsy adapter.
func NewEtsyAdapter(cfg rest.Config) *EtsyAdapter {
	return &EtsyAdapter{client: rest.NewClient(cfg)}
}

// Slug returns the marketplace identifier.
func (a *EtsyAdapter) Slug() string { return "etsy" }

// Name returns the marketplace name.
func (a *EtsyAdapter) Name() string { return "Etsy" }

type etsyListingsResponse struct {
	Results []struct {
		ListingID int64 `json:"listing_id"`
		Price     struct {
			Amount  int64 `json:"amount"`
			Divisor int64 `json:"divisor"`
		} `json:"price"`
	} `json:"results"`
}

// ReadCompetitorPrice searches active listings for the product's SKU
// and returns the lowest asking price. Etsy reports prices as
// amount/divisor pairs, already in integral subunits.
func (a *EtsyAdapter) ReadCompetitorPrice(ctx context.Context, ref platform.ProductRef) (int64, error) {
	var body etsyListingsResponse
	res, err := a.client.Get(ctx, "/v3/application/listings/active", map[string]string{
		"keywords": ref.SKU,
		"limit":    "20",
	}, &body)
	if cerr := classify(a.Slug(), "readCompetitorPrice", res, err); cerr != nil {
		return 0, cerr
	}

	lowest := int64(-1)
	for _, listing := range body.Results {
		if listing.Price.Divisor == 0 {
			continue
		}
		price := listing.Price.Amount * 100 / listing.Price.Divisor
		if lowest < 0 || price < lowest {
			lowest = price
		}
	}
	if lowest < 0 {
		return 0, platform.ErrUnavailable
	}
	return lowest, nil
}

// UpdatePrice pushes a new price to one Etsy listing.
func (a *EtsyAdapter) UpdatePrice(ctx context.Context, ref platform.ListingRef, price int64) error {
	path := fmt.Sprintf("/v3/application/listings/%s", ref.ExternalID)
	res, err := a.client.Put(ctx, path, map[string]any{
		"price": fromMinorUnits(price),
	})
	return classify(a.Slug(), "updatePrice", res, err)
}

// UpdateQuantity pushes a new quantity to one Etsy listing.
func (a *EtsyAdapter) UpdateQuantity(ctx context.Context, ref platform.ListingRef, quantity int) error {
	path := fmt.Sprintf("/v3/application/listings/%s/inventory", ref.ExternalID)
	res, err := a.client.Put(ctx, path, map[string]any{
		"quantity": quantity,
	})
	return classify(a.Slug(), "updateQuantity", res, err)
}
