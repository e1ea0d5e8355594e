package marketplaces

import (
	"context"
	"fmt"

	"github.com/flipstack/sync-service/internal/platform"
	"github.com/flipstack/sync-service/internal/platform/rest"
)

// DepopAdapter integrates with the Depop seller API.
type DepopAdapter struct {
	client *rest.Client
}

// NewDepopAdapter creates the Depop adapter.
func NewDepopAdapter(cfg rest.Config) *DepopAdapter {
	return &DepopAdapter{client: rest.NewClient(cfg)}
}

// Slug returns the marketplace identifier.
func (a *DepopAdapter) Slug() string { return "depop" }

// Name returns the marketplace name.
func (a *DepopAdapter) Name() string { return "Depop" }

type depopSearchResponse struct {
	Products []struct {
		ID    string      `json:"id"`
		Price moneyAmount `json:"price"`
	} `json:"products"`
}

// ReadCompetitorPrice searches live products in the product's category
// matching its SKU and returns the lowest asking price.
func (a *DepopAdapter) ReadCompetitorPrice(ctx context.Context, ref platform.ProductRef) (int64, error) {
	query := map[string]string{
		"q":     ref.SKU,
		"limit": "20",
	}
	if ref.Category != "" {
		query["category"] = ref.Category
	}

	var body depopSearchResponse
	res, err := a.client.Get(ctx, "/api/v2/search/products", query, &body)
	if cerr := classify(a.Slug(), "readCompetitorPrice", res, err); cerr != nil {
		return 0, cerr
	}

	lowest := int64(-1)
	for _, product := range body.Products {
		price, err := parseAmount(product.Price.Value)
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

// UpdatePrice pushes a new price to one Depop product.
func (a *DepopAdapter) UpdatePrice(ctx context.Context, ref platform.ListingRef, price int64) error {
	path := fmt.Sprintf("/api/v1/products/%s", ref.ExternalID)
	res, err := a.client.Put(ctx, path, map[string]any{
		"price": moneyAmount{Value: fromMinorUnits(price), Currency: "USD"},
	})
	return classify(a.Slug(), "updatePrice", res, err)
}

// UpdateQuantity pushes a new quantity to one Depop product.
func (a *DepopAdapter) UpdateQuantity(ctx context.Context, ref platform.ListingRef, quantity int) error {
	path := fmt.Sprintf("/api/v1/products/%s/stock", ref.ExternalID)
	res, err := a.client.Put(ctx, path, map[string]any{
		"quantity": quantity,
	})
	return classify(a.Slug(), "updateQuantity", res, err)
}
