package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"showrunner/internal/core"
	"showrunner/internal/generation"
)

// NewGenerateCmd creates the manual-trigger generation command. With --now it
// runs the full pipeline in-process; otherwise it enqueues a request for the
// next worker.
func NewGenerateCmd() *cobra.Command {
	var (
		groupID      string
		collectionID string
		now          bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Trigger episode generation for a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			if groupID == "" {
				return fmt.Errorf("--group is required")
			}

			ctx := context.Background()
			request := &core.GenerationRequest{
				ID:           uuid.NewString(),
				GroupID:      groupID,
				CollectionID: collectionID,
				Reason:       "manual trigger",
				DateEnqueued: time.Now().UTC(),
			}

			if !now {
				app, err := newApp()
				if err != nil {
					return err
				}
				defer app.Close()

				added, err := app.Store.EnqueueGeneration(ctx, request)
				if err != nil {
					return err
				}
				if !added {
					fmt.Println("A generation request is already pending for this group")
					return nil
				}
				fmt.Printf("Enqueued generation request %s\n", request.ID)
				return nil
			}

			app, err := newFullApp()
			if err != nil {
				return err
			}
			defer app.Close()

			outcome, err := app.Coordinator.Run(ctx, request)
			switch outcome.Status {
			case generation.OutcomeLocked:
				fmt.Println("Skipped: another generation run is in flight for this group")
				return nil
			case generation.OutcomeFailed:
				return fmt.Errorf("generation failed: %s", outcome.Reason)
			default:
				fmt.Printf("Generated episode %s\n", outcome.EpisodeID)
				return err
			}
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "", "group id to generate for")
	cmd.Flags().StringVar(&collectionID, "collection", "", "specific ready collection (optional)")
	cmd.Flags().BoolVar(&now, "now", false, "run the generation pipeline in-process instead of enqueuing")
	return cmd
}
