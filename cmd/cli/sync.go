package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/flipstack/sync-service/internal/engine"
	"github.com/flipstack/sync-service/internal/platform"
	"github.com/flipstack/sync-service/internal/platform/marketplaces"
	"github.com/flipstack/sync-service/internal/platform/rest"
	"github.com/flipstack/sync-service/internal/probe"
)

var (
	syncAll     bool
	syncTimeout time.Duration
)

var syncCmd = &cobra.Command{
	Use:   "sync [productId]",
	Short: "Run one repricing and inventory sync pass",
	Long: `Runs a full orchestration pass for one product (or every active
product with --all): inventory sync first, then rule evaluation, then
price pushes to every active listing. Prints the run outcome.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "sync every active product")
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", 2*time.Minute, "timeout per product run")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if !syncAll && len(args) == 0 {
		return fmt.Errorf("provide a product id or --all")
	}
	if syncAll && len(args) > 0 {
		return fmt.Errorf("--all and a product id are mutually exclusive")
	}

	eng := buildEngine()

	ctx := context.Background()
	ids := args
	if syncAll {
		var err error
		ids, err = st.ActiveProductIDs(ctx)
		if err != nil {
			return fmt.Errorf("failed to list active products: %w", err)
		}
		logger.Info().Int("products", len(ids)).Msg("Syncing all active products")
	}

	var failures int
	for _, id := range ids {
		runCtx, cancel := context.WithTimeout(ctx, syncTimeout)
		outcome, err := eng.Execute(runCtx, id, engine.TriggerManual, nil)
		cancel()
		if err != nil {
			failures++
			logger.Error().Err(err).Str("product_id", id).Msg("Run failed")
			continue
		}
		printOutcome(outcome)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d runs failed", failures, len(ids))
	}
	return nil
}

// buildEngine assembles the run pipeline the same way the server does,
// minus the scheduler: CLI runs are one-shot and already serialized.
func buildEngine() *engine.Engine {
	registry := platform.NewRegistry()
	marketplaces.RegisterAll(registry, platformConfigs(), platform.DefaultBreakerConfig(), logger)

	engineCfg := &engine.Config{
		PriceEpsilon:   cfg.Engine.PriceEpsilon,
		MaxRetries:     cfg.Engine.MaxRetries,
		InitialBackoff: time.Duration(cfg.Engine.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.Engine.MaxBackoffMs) * time.Millisecond,
		AdapterTimeout: cfg.Engine.AdapterTimeout,
		ProbeTimeout:   cfg.Engine.ProbeTimeout,
	}
	prober := probe.New(registry, cfg.Engine.ProbeTimeout)
	return engine.New(st, registry, prober, engineCfg)
}

func platformConfigs() map[string]rest.Config {
	out := make(map[string]rest.Config, len(cfg.Platforms))
	for slug, pc := range cfg.Platforms {
		out[slug] = rest.Config{
			BaseURL:           pc.BaseURL,
			APIKey:            pc.APIKey,
			RequestsPerSecond: pc.RequestsPerSecond,
			Burst:             pc.Burst,
			Timeout:           pc.Timeout,
		}
	}
	return out
}

func printOutcome(o *engine.Outcome) {
	fmt.Printf("run %s  product=%s  trigger=%s\n", o.RunID, o.ProductID, o.Trigger)
	fmt.Printf("  quantity: %d -> %d\n", o.PreviousQuantity, o.NewQuantity)
	if o.Repriced {
		fmt.Printf("  price:    %d -> %d\n", o.PreviousPrice, o.NewPrice)
	} else {
		fmt.Printf("  price:    %d (unchanged)\n", o.PreviousPrice)
	}
	for _, r := range o.Results {
		status := "ok"
		if !r.OK {
			status = fmt.Sprintf("FAILED (%s: %s)", r.FailureKind, r.Error)
		}
		fmt.Printf("  push %s/%s listing=%s %d -> %d attempts=%d %s\n",
			r.Platform, r.Op, r.ListingID, r.Previous, r.Applied, r.Attempts, status)
	}
	for _, w := range o.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}
