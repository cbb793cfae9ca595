package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"showrunner/internal/config"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "showrunner",
		Short: "Showrunner turns ingested articles into periodically published podcast episodes.",
		Long: `Showrunner is the orchestration core for group-based podcast channels:
it reviews ingested articles through a two-tier confidence router, buffers them
in per-group collections, and decides when each group's next episode is
generated and published.`,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.showrunner.yaml)")

	rootCmd.AddCommand(NewWorkerCmd())
	rootCmd.AddCommand(NewIngestCmd())
	rootCmd.AddCommand(NewTickCmd())
	rootCmd.AddCommand(NewGenerateCmd())
	rootCmd.AddCommand(NewGroupCmd())
	rootCmd.AddCommand(NewCollectionsCmd())
	rootCmd.AddCommand(NewStatusCmd())
	rootCmd.AddCommand(NewCleanupCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if _, err := config.Load(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}
