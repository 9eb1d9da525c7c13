package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for globfs
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "globfs",
		Short: "Incremental glob matching over a directory tree",
		Long: `Globfs evaluates glob patterns against a directory tree and keeps
the results up to date as files change.

The match command runs a one-shot evaluation and prints the matching
paths. The watch command keeps tracking the patterns, re-evaluating
after filesystem changes and reporting when the set of matches (or the
content of matched files) moves.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	// Add subcommands
	cmd.AddCommand(NewMatchCommand())
	cmd.AddCommand(NewWatchCommand())

	return cmd
}
