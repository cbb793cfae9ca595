package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"showrunner/internal/metrics"
)

// NewStatusCmd creates the operational status command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue depth, cadence state, and review metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := context.Background()

			pending, err := app.Store.PendingGenerations(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Generation queue: %d pending\n", pending)

			if flag, err := app.Locker.CurrentProduction(ctx); err == nil && flag != nil {
				fmt.Printf("Production in flight: group=%s episode=%s\n", flag.GroupID, flag.EpisodeID)
			}

			duplicates, err := app.Dedup.DuplicateCount(ctx)
			if err == nil {
				fmt.Printf("Duplicates discarded: %d\n", duplicates)
			}

			groups, err := app.Store.ListActiveGroups(ctx)
			if err != nil {
				return err
			}
			fmt.Println("\nCadence:")
			for _, group := range groups {
				state, err := app.Scheduler.State(ctx, group.ID)
				if err != nil {
					fmt.Printf("  %-30s error: %v\n", group.Name, err)
					continue
				}
				last := "never"
				if !state.LastPublished.IsZero() {
					last = state.LastPublished.Format(time.RFC3339)
				}
				fmt.Printf("  %-30s bucket=%-9s last=%s\n", group.Name, state.Bucket, last)
			}

			fmt.Println("\nReview metrics:")
			printRollup(ctx, app, metrics.ListReview, 5*time.Minute)
			printRollup(ctx, app, metrics.ListReview, time.Hour)

			fmt.Println("\nGeneration metrics:")
			printRollup(ctx, app, metrics.ListGeneration, time.Hour)

			return nil
		},
	}
}

func printRollup(ctx context.Context, app *app, list string, window time.Duration) {
	rollup, err := app.Recorder.RollupWindow(ctx, list, window)
	if err != nil {
		fmt.Printf("  %-6s unavailable: %v\n", window, err)
		return
	}
	fmt.Printf("  %-6s count=%d errors=%d success=%.1f%% avg_latency=%.0fms\n",
		window, rollup.Count, rollup.ErrorCount, rollup.SuccessRate*100, rollup.AvgLatencyMS)
}
