package handlers

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewCleanupCmd creates the expired-collection cleanup command.
func NewCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired collections past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			removed, err := app.Manager.CleanupExpired(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d expired collections\n", removed)
			return nil
		},
	}
}
