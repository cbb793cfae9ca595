package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"showrunner/internal/core"
)

// NewGroupCmd creates the group management command.
func NewGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage podcast groups",
	}
	cmd.AddCommand(newGroupAddCmd())
	cmd.AddCommand(newGroupListCmd())
	return cmd
}

func newGroupAddCmd() *cobra.Command {
	var (
		name        string
		description string
		persona     string
		voice       string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a podcast group",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := context.Background()
			group := &core.Group{
				ID:          uuid.NewString(),
				Name:        name,
				Description: description,
				Persona:     persona,
				Voice:       voice,
				Active:      true,
				DateAdded:   time.Now().UTC(),
			}
			if err := app.Store.CreateGroup(ctx, group); err != nil {
				return err
			}

			// Open the group's first building collection right away so
			// ingestion never races group creation.
			if _, err := app.Manager.Create(ctx, "buffer-"+group.ID, "", []string{group.ID}); err != nil {
				return err
			}

			fmt.Printf("Created group %s (%s)\n", group.ID, group.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "group name")
	cmd.Flags().StringVar(&description, "description", "", "group description")
	cmd.Flags().StringVar(&persona, "persona", "", "host persona")
	cmd.Flags().StringVar(&voice, "voice", "alloy", "TTS voice")
	return cmd
}

func newGroupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			groups, err := app.Store.ListActiveGroups(context.Background())
			if err != nil {
				return err
			}
			for _, group := range groups {
				fmt.Printf("%s  %s\n", group.ID, group.Name)
			}
			return nil
		},
	}
}
