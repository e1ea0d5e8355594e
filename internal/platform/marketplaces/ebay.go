package marketplaces

import (
	"context"
	"fmt"

	"github.com/flipstack/sync-service/internal/platform"
	"github.com/flipstack/sync-service/internal/platform/rest"
)

// EbayAdapter integrates with the eBay Browse and Inventory APIs.
type EbayAdapter struct {
	client *rest.Client
}

// NewEbayAdapter creates the eBay adapter.
func NewEbayAdapter(cfg rest.Config) *EbayAdapter {
	return &EbayAdapter{client: rest.NewClient(cfg)}
}

// Slug returns the marketplace identifier.
func (a *EbayAdapter) Slug() string { return "ebay" }

// Name returns the marketplace name.
func (a *EbayAdapter) Name() string { return "eBay" }

type ebaySearchResponse struct {
	ItemSummaries []struct {
		ItemID string      `json:"itemId"`
		Price  moneyAmount `json:"price"`
	} `json:"itemSummaries"`
}

// ReadCompetitorPrice searches live offers matching the product's SKU
// and returns the lowest asking price.
func (a *EbayAdapter) ReadCompetitorPrice(ctx context.Context, ref platform.ProductRef) (int64, error) {
	var body ebaySearchResponse
	res, err := a.client.Get(ctx, "/buy/browse/v1/item_summary/search", map[string]string{
		"q":     ref.SKU,
		"limit": "20",
	}, &body)
	if cerr := classify(a.Slug(), "readCompetitorPrice", res, err); cerr != nil {
		return 0, cerr
	}

	lowest := int64(-1)
	for _, item := range body.ItemSummaries {
		price, err := parseAmount(item.Price.Value)
		if err != nil {
			continue
		}
		if lowest < 0 || price < lowest {
			lowest = price
		}
	}
	if lowest < 0 {
		return 0, platform.ErrUnavailable
	}
	return lowest, nil
}

// UpdatePrice pushes a new price to one eBay offer.
func (a *EbayAdapter) UpdatePrice(ctx context.Context, ref platform.ListingRef, price int64) error {
	path := fmt.Sprintf("/sell/inventory/v1/offer/%s/update_price", ref.ExternalID)
	res, err := a.client.Post(ctx, path, map[string]any{
		"pricingSummary": map[string]any{
			"price": moneyAmount{Value: fromMinorUnits(price), Currency: "USD"},
		},
	})
	return classify(a.Slug(), "updatePrice", res, err)
}

// UpdateQuantity pushes a new available quantity to one eBay offer.
func (a *EbayAdapter) UpdateQuantity(ctx context.Context, ref platform.ListingRef, quantity int) error {
	path := fmt.Sprintf("/sell/inventory/v1/offer/%s/update_quantity", ref.ExternalID)
	res, err := a.client.Post(ctx, path, map[string]any{
		"availableQuantity": quantity,
	})
	return classify(a.Slug(), "updateQuantity", res, err)
}
