package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/flipstack/sync-service/internal/pricing"
)

// CurrentRule returns the latest pricing rule version for a product,
// or nil when the product has none. Rules are immutable versions; the
// CRUD layer inserts new versions and never edits old ones, so the
// latest row is always the active rule.
func (s *Store) CurrentRule(ctx context.Context, productID string) (*pricing.Rule, error) {
	var r pricing.Rule
	err := s.pool.QueryRow(ctx, `
		SELECT id, product_id, version, markup_percent, markup_fixed,
		       min_price, max_price, auto_reprice, competitor_check, created_at
		FROM pricing_rules
		WHERE product_id = $1
		ORDER BY version DESC
		LIMIT 1
	`, productID).Scan(
		&r.ID, &r.ProductID, &r.Version, &r.MarkupPercent, &r.MarkupFixed,
		&r.MinPrice, &r.MaxPrice, &r.AutoReprice, &r.CompetitorCheck, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
