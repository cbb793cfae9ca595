package handlers

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewCollectionsCmd creates the collections inspection command.
func NewCollectionsCmd() *cobra.Command {
	var groupID string

	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List collections and their lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := context.Background()

			groups, err := app.Store.ListActiveGroups(ctx)
			if err != nil {
				return err
			}
			for _, group := range groups {
				if groupID != "" && group.ID != groupID {
					continue
				}
				fmt.Printf("%s (%s)\n", group.Name, group.ID)

				building, err := app.Manager.GetActiveCollection(ctx, group.ID)
				if err != nil {
					return err
				}
				if building != nil {
					fmt.Printf("  %-9s %s  articles=%d\n", building.Status, building.ID, building.ArticleCount)
				}

				ready, err := app.Manager.GetReadyCollections(ctx, group.ID)
				if err != nil {
					return err
				}
				for _, collection := range ready {
					if building != nil && collection.ID == building.ID {
						continue
					}
					fmt.Printf("  %-9s %s  articles=%d\n", collection.Status, collection.ID, collection.ArticleCount)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "", "only show collections for this group")
	return cmd
}
