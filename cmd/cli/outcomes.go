package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var outcomesLimit int

var outcomesCmd = &cobra.Command{
	Use:   "outcomes <productId>",
	Short: "Show recent run outcomes for a product",
	Args:  cobra.ExactArgs(1),
	RunE:  runOutcomes,
}

func init() {
	outcomesCmd.Flags().IntVar(&outcomesLimit, "limit", 20, "maximum outcomes to show")
	rootCmd.AddCommand(outcomesCmd)
}

func runOutcomes(cmd *cobra.Command, args []string) error {
	outcomes, err := st.OutcomesForProduct(context.Background(), args[0], outcomesLimit)
	if err != nil {
		return fmt.Errorf("failed to load outcomes: %w", err)
	}
	if len(outcomes) == 0 {
		fmt.Println("no outcomes recorded")
		return nil
	}
	for i := range outcomes {
		printOutcome(&outcomes[i])
		fmt.Printf("  started=%s  duration=%s\n",
			outcomes[i].StartedAt.Format("2006-01-02 15:04:05"),
			outcomes[i].CompletedAt.Sub(outcomes[i].StartedAt).Round(time.Millisecond))
	}
	return nil
}
