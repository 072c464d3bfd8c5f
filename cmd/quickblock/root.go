package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for quickblock.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quickblock",
		Short: "Hide content from blocked YouTube channels",
		Long: `quickblock hides comments, videos and search results from YouTube channels
you have blocked.

The blocklist lives in a local database shared by every command. Pages can
be filtered from saved HTML files or fetched from a URL, and scripted
sessions can be replayed to see how a page reacts to scrolling, navigation
and blocklist changes.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .quickblock in current or home directory)")
	cmd.PersistentFlags().String("data-dir", "",
		"Directory holding the blocklist database (default: XDG data directory)")

	cmd.AddCommand(NewBlockCmd())
	cmd.AddCommand(NewUnblockCmd())
	cmd.AddCommand(NewListCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewImportCmd())
	cmd.AddCommand(NewFilterCmd())
	cmd.AddCommand(NewReplayCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
