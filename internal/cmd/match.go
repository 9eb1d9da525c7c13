package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/incrbuild/globfs/internal/config"
	"github.com/incrbuild/globfs/internal/glob"
	"github.com/incrbuild/globfs/internal/globwalk"
	"github.com/incrbuild/globfs/internal/memo"
	"github.com/incrbuild/globfs/internal/vfs"
)

// NewMatchCommand creates and returns the match subcommand
func NewMatchCommand() *cobra.Command {
	var rootDir string
	var configPath string

	cmd := &cobra.Command{
		Use:   "match <pattern>...",
		Short: "Evaluate glob patterns once and print the matching paths",
		Long: `Walk the directory tree under --root and print every path matching
the given glob patterns, one per line, sorted. Directories are printed
with a trailing slash.

Patterns support *, ?, **, {a,b} alternation and [a-z] character
classes. Paths are relative to the root and use forward slashes.

Exit code: 0 on success, 1 if a pattern is malformed or the walk fails`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd.Context(), cmd.OutOrStdout(), rootDir, configPath, args)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&rootDir, "root", ".", "directory tree to match against")
	cmd.Flags().StringVar(&configPath, "config", "globfs.yaml", "path to config file")

	return cmd
}

func runMatch(ctx context.Context, output io.Writer, rootDir, configPath string, patterns []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if len(patterns) == 0 {
		patterns = cfg.Patterns
	}
	if len(patterns) == 0 {
		return fmt.Errorf("no patterns given on the command line or in config")
	}

	engine := memo.NewEngine()
	defer engine.Close()

	fs, err := vfs.NewDiskFileSystem(engine, rootDir)
	if err != nil {
		return fmt.Errorf("failed to open root %s: %w", rootDir, err)
	}
	walker := globwalk.New(engine, fs)

	matches := make(map[string]vfs.DirectoryEntry)
	for _, pattern := range patterns {
		g, err := glob.Parse(pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		result, err := walker.ReadGlob(ctx, "", g)
		if err != nil {
			return fmt.Errorf("glob %q failed: %w", pattern, err)
		}
		collectMatches(result, matches)
	}

	paths := make([]string, 0, len(matches))
	for path := range matches {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if matches[path].Type == vfs.TypeDirectory {
			fmt.Fprintf(output, "%s/\n", path)
			continue
		}
		fmt.Fprintln(output, path)
	}

	return nil
}

// collectMatches flattens a glob result tree into a path-keyed set.
// Match paths are already root-relative, so nesting contributes no
// extra prefix.
func collectMatches(result *globwalk.ReadGlobResult, into map[string]vfs.DirectoryEntry) {
	for path, entry := range result.Results {
		into[path] = entry
	}
	for _, inner := range result.Inner {
		collectMatches(inner, into)
	}
}
