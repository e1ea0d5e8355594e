package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flipstack/sync-service/internal/engine"
)

// AppendOutcome appends one run's outcome record. Per-listing results
// and warnings are stored as JSON documents; the dashboard collaborator
// reads them as-is.
func (s *Store) AppendOutcome(ctx context.Context, outcome *engine.Outcome) error {
	results, err := json.Marshal(outcome.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	warnings, err := json.Marshal(outcome.Warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO sync_outcomes (
			run_id, product_id, trigger, previous_quantity, new_quantity,
			previous_price, new_price, repriced, results, warnings,
			started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		outcome.RunID, outcome.ProductID, string(outcome.Trigger),
		outcome.PreviousQuantity, outcome.NewQuantity,
		outcome.PreviousPrice, outcome.NewPrice, outcome.Repriced,
		results, warnings, outcome.StartedAt, outcome.CompletedAt,
	)
	return err
}

// OutcomesForProduct returns the most recent outcome records for one
// product, newest first.
func (s *Store) OutcomesForProduct(ctx context.Context, productID string, limit int) ([]engine.Outcome, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT run_id, product_id, trigger, previous_quantity, new_quantity,
		       previous_price, new_price, repriced, results, warnings,
		       started_at, completed_at
		FROM sync_outcomes
		WHERE product_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	outcomes := make([]engine.Outcome, 0)
	for rows.Next() {
		var (
			o        engine.Outcome
			results  []byte
			warnings []byte
		)
		if err := rows.Scan(
			&o.RunID, &o.ProductID, &o.Trigger, &o.PreviousQuantity, &o.NewQuantity,
			&o.PreviousPrice, &o.NewPrice, &o.Repriced, &results, &warnings,
			&o.StartedAt, &o.CompletedAt,
		); err != nil {
			return nil, err
		}
		if len(results) > 0 {
			if err := json.Unmarshal(results, &o.Results); err != nil {
				return nil, fmt.Errorf("unmarshal results for run %s: %w", o.RunID, err)
			}
		}
		if len(warnings) > 0 {
			if err := json.Unmarshal(warnings, &o.Warnings); err != nil {
				return nil, fmt.Errorf("unmarshal warnings for run %s: %w", o.RunID, err)
			}
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
