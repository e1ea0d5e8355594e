package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/flipstack/sync-service/internal/engine"
)

var repriceTimeout time.Duration

var repriceCmd = &cobra.Command{
	Use:   "reprice <productId>",
	Short: "Run one repricing pass for a product",
	Long: `Evaluates the product's current pricing rule and pushes the computed
price to its listings. Inventory is reconciled first, as in every run,
so the evaluation sees corrected quantities.`,
	Args: cobra.ExactArgs(1),
	RunE: runReprice,
}

func init() {
	repriceCmd.Flags().DurationVar(&repriceTimeout, "timeout", 2*time.Minute, "timeout for the run")
	rootCmd.AddCommand(repriceCmd)
}

func runReprice(cmd *cobra.Command, args []string) error {
	eng := buildEngine()

	ctx, cancel := context.WithTimeout(context.Background(), repriceTimeout)
	defer cancel()

	outcome, err := eng.Execute(ctx, args[0], engine.TriggerManual, nil)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	printOutcome(outcome)
	return nil
}
