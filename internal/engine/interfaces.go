package engine

import (
	"context"

	"github.com/flipstack/sync-service/internal/platform"
	"github.com/flipstack/sync-service/internal/pricing"
)

// Store is the persistence collaborator the engine reads product state
// from and writes corrected state back to. Row reads and writes are
// assumed strongly consistent within one orchestration run.
type Store interface {
	// ProductByID loads one product.
	ProductByID(ctx context.Context, id string) (*Product, error)

	// ListingsForProduct loads all listings for a product.
	ListingsForProduct(ctx context.Context, productID string) ([]Listing, error)

	// CurrentRule returns the latest pricing rule version for a
	// product, or nil when the product has none.
	CurrentRule(ctx context.Context, productID string) (*pricing.Rule, error)

	// SaveProductQuantity writes the authoritative quantity.
	SaveProductQuantity(ctx context.Context, productID string, quantity int) error

	// SaveProductPrice writes the display price.
	SaveProductPrice(ctx context.Context, productID string, price int64) error

	// SaveListingPrice records a successfully mirrored price.
	SaveListingPrice(ctx context.Context, listingID string, price int64) error

	// SaveListingQuantity records a successfully mirrored quantity.
	SaveListingQuantity(ctx context.Context, listingID string, quantity int) error

	// SaveListingStatus updates a listing's lifecycle status.
	SaveListingStatus(ctx context.Context, listingID string, status ListingStatus) error

	// AppendOutcome appends a run's outcome record.
	AppendOutcome(ctx context.Context, outcome *Outcome) error
}

// CompetitorProber supplies a reference competitor price. The bool is
// false when no platform produced a sample; that is a normal outcome
// and means "skip competitor adjustment this pass".
type CompetitorProber interface {
	Sample(ctx context.Context, targetPlatform string, ref platform.ProductRef) (int64, bool)
}
