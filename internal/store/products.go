package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/flipstack/sync-service/internal/engine"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ProductByID loads one product.
func (s *Store) ProductByID(ctx context.Context, id string) (*engine.Product, error) {
	var p engine.Product
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, sku, category, source_platform, target_platform,
		       source_price, current_price, quantity, status
		FROM products
		WHERE id = $1
	`, id).Scan(
		&p.ID, &p.UserID, &p.SKU, &p.Category, &p.SourcePlatform, &p.TargetPlatform,
		&p.SourcePrice, &p.CurrentPrice, &p.Quantity, &p.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListingsForProduct loads all listings for a product.
func (s *Store) ListingsForProduct(ctx context.Context, productID string) ([]engine.Listing, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, platform, external_id, price, quantity, status
		FROM listings
		WHERE product_id = $1
		ORDER BY platform
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := make([]engine.Listing, 0)
	for rows.Next() {
		var l engine.Listing
		if err := rows.Scan(&l.ID, &l.ProductID, &l.Platform, &l.ExternalID, &l.Price, &l.Quantity, &l.Status); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// ProductIDForListing resolves a listing to its owning product.
func (s *Store) ProductIDForListing(ctx context.Context, listingID string) (string, error) {
	var productID string
	err := s.pool.QueryRow(ctx, `
		SELECT product_id FROM listings WHERE id = $1
	`, listingID).Scan(&productID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
	}
	return productID, err
}

// ActiveProductIDs returns the ids of every active product, for the
// periodic sync tick.
func (s *Store) ActiveProductIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM products WHERE status = 'active' ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DriftedProductIDs returns products with at least one active listing
// whose mirrored price or quantity no longer matches the authoritative
// product state. Used by the drift sweeper.
func (s *Store) DriftedProductIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT p.id
		FROM products p
		JOIN listings l ON l.product_id = p.id
		WHERE p.status = 'active'
		  AND l.status = 'active'
		  AND (l.quantity <> p.quantity OR l.price <> p.current_price)
		ORDER BY p.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveProductQuantity writes the authoritative quantity.
func (s *Store) SaveProductQuantity(ctx context.Context, productID string, quantity int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE products SET quantity = $2, updated_at = NOW() WHERE id = $1
	`, productID, quantity)
	return err
}

// SaveProductPrice writes the display price.
func (s *Store) SaveProductPrice(ctx context.Context, productID string, price int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE products SET current_price = $2, updated_at = NOW() WHERE id = $1
	`, productID, price)
	return err
}

// SaveListingPrice records a successfully mirrored price.
func (s *Store) SaveListingPrice(ctx context.Context, listingID string, price int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE listings SET price = $2, updated_at = NOW() WHERE id = $1
	`, listingID, price)
	return err
}

// SaveListingQuantity records a successfully mirrored quantity.
func (s *Store) SaveListingQuantity(ctx context.Context, listingID string, quantity int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE listings SET quantity = $2, updated_at = NOW() WHERE id = $1
	`, listingID, quantity)
	return err
}

// SaveListingStatus updates a listing's lifecycle status.
func (s *Store) SaveListingStatus(ctx context.Context, listingID string, status engine.ListingStatus) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE listings SET status = $2, updated_at = NOW() WHERE id = $1
	`, listingID, string(status))
	return err
}
