package handlers

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewTickCmd creates the tick command: one scheduler evaluation pass without
// running any generation.
func NewTickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one cadence scheduler tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			enqueued, err := app.Scheduler.Tick(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Enqueued %d generation request(s)\n", enqueued)
			return nil
		},
	}
}
