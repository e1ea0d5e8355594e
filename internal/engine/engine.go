// Package engine drives one product's orchestration run: inventory
// reconciliation across its listings followed by rule-based repricing.
// Failures are scoped to the single listing or platform call that
// produced them; a run never fails wholesale because one push did.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flipstack/sync-service/internal/platform"
)

// Engine executes orchestration runs. It holds no per-product mutable
// state; serialization of runs per product is the scheduler's job.
type Engine struct {
	store    Store
	registry *platform.Registry
	probe    CompetitorProber
	cfg      *Config
	metrics  *Metrics
	logger   zerolog.Logger
}

// New creates an engine.
func New(store Store, registry *platform.Registry, probe CompetitorProber, cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Engine{
		store:    store,
		registry: registry,
		probe:    probe,
		cfg:      cfg,
		metrics:  NewMetrics(),
		logger:   log.With().Str("component", "engine").Logger(),
	}
}

// Execute runs inventory synchronization and then repricing for one
// product. Inventory always completes first; repricing reads the
// corrected quantity. The returned outcome records per-listing
// success and failure, so partial failure stays visible.
//
// sales carries the sale events that triggered the run; it is empty
// for periodic and manual runs, and may hold several events when
// triggers were coalesced while a previous run was in flight.
func (e *Engine) Execute(ctx context.Context, productID string, trigger Trigger, sales []SaleEvent) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{
		RunID:     uuid.NewString(),
		ProductID: productID,
		Trigger:   trigger,
		StartedAt: start,
	}

	product, err := e.store.ProductByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", productID, err)
	}

	if product.Status != ProductActive {
		out.PreviousQuantity = product.Quantity
		out.NewQuantity = product.Quantity
		out.PreviousPrice = product.CurrentPrice
		out.NewPrice = product.CurrentPrice
		out.Warnings = append(out.Warnings, fmt.Sprintf("product status %s, skipping run", product.Status))
		return e.complete(ctx, out, start)
	}

	listings, err := e.store.ListingsForProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load listings for %s: %w", productID, err)
	}

	e.syncInventory(ctx, product, listings, sales, out)
	e.reprice(ctx, product, listings, out)

	return e.complete(ctx, out, start)
}

func (e *Engine) complete(ctx context.Context, out *Outcome, start time.Time) (*Outcome, error) {
	out.CompletedAt = time.Now()
	e.metrics.RecordRun(out.Trigger, time.Since(start))

	if err := e.store.AppendOutcome(ctx, out); err != nil {
		e.logger.Error().
			Err(err).
			Str("run_id", out.RunID).
			Str("product_id", out.ProductID).
			Msg("Failed to persist run outcome")
	}

	failed := out.FailedResults()
	evt := e.logger.Info()
	if len(failed) > 0 {
		evt = e.logger.Warn()
	}
	evt.
		Str("run_id", out.RunID).
		Str("product_id", out.ProductID).
		Str("trigger", string(out.Trigger)).
		Int("pushes", len(out.Results)).
		Int("failed", len(failed)).
		Int64("new_price", out.NewPrice).
		Int("new_quantity", out.NewQuantity).
		Dur("duration", out.CompletedAt.Sub(out.StartedAt)).
		Msg("Orchestration run completed")

	return out, nil
}

// recordPushFailure fills the failure fields of a listing result and
// flags the listing when the platform rejected it outright.
func (e *Engine) recordPushFailure(ctx context.Context, result *ListingResult, err error) {
	result.Error = err.Error()
	if platform.IsPermanent(err) {
		result.FailureKind = FailurePermanent
		if serr := e.store.SaveListingStatus(ctx, result.ListingID, ListingError); serr != nil {
			e.logger.Error().
				Err(serr).
				Str("listing_id", result.ListingID).
				Msg("Failed to flag listing after permanent failure")
		}
	} else {
		result.FailureKind = FailureTransient
	}

	e.logger.Warn().
		Err(err).
		Str("listing_id", result.ListingID).
		Str("platform", result.Platform).
		Str("op", string(result.Op)).
		Int("attempts", result.Attempts).
		Str("kind", string(result.FailureKind)).
		Msg("Listing push failed")
}
