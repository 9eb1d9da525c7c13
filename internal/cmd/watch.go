package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/incrbuild/globfs/internal/config"
	"github.com/incrbuild/globfs/internal/filelock"
	"github.com/incrbuild/globfs/internal/glob"
	"github.com/incrbuild/globfs/internal/globwalk"
	"github.com/incrbuild/globfs/internal/logger"
	"github.com/incrbuild/globfs/internal/memo"
	"github.com/incrbuild/globfs/internal/vfs"
)

// NewWatchCommand creates and returns the watch subcommand
func NewWatchCommand() *cobra.Command {
	var rootDir string
	var configPath string
	var includeDotFiles bool
	var debounce time.Duration
	var logLevel string

	cmd := &cobra.Command{
		Use:   "watch <pattern>...",
		Short: "Track glob patterns and report when their matches change",
		Long: `Track the given glob patterns against the tree under --root and keep
re-evaluating as files change. A pattern is reported when the set of
matching paths moves, or when the content of a matched file changes.

Dot files and dot directories are skipped unless --include-dot-files
is given. Only one watch session may run per tree; a lock file in the
root refuses concurrent sessions.

Runs until interrupted (Ctrl-C or SIGTERM).`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := watchOptions{
				rootDir:    rootDir,
				configPath: configPath,
				patterns:   args,
			}
			if cmd.Flags().Changed("include-dot-files") {
				opts.includeDotFiles = &includeDotFiles
			}
			if cmd.Flags().Changed("debounce") {
				opts.debounce = &debounce
			}
			if cmd.Flags().Changed("log-level") {
				opts.logLevel = &logLevel
			}
			return runWatch(cmd.Context(), cmd.OutOrStdout(), opts)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&rootDir, "root", ".", "directory tree to watch")
	cmd.Flags().StringVar(&configPath, "config", "globfs.yaml", "path to config file")
	cmd.Flags().BoolVar(&includeDotFiles, "include-dot-files", false, "follow dot files and dot directories")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "delay before re-evaluating after a change")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log verbosity (trace, debug, info, warn, error)")

	return cmd
}

// watchOptions carries command line settings into runWatch. Pointer
// fields override the config file only when the flag was given.
type watchOptions struct {
	rootDir         string
	configPath      string
	patterns        []string
	includeDotFiles *bool
	debounce        *time.Duration
	logLevel        *string
}

func runWatch(ctx context.Context, output io.Writer, opts watchOptions) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.includeDotFiles != nil {
		cfg.IncludeDotFiles = *opts.includeDotFiles
	}
	if opts.debounce != nil {
		cfg.Debounce = *opts.debounce
	}
	if opts.logLevel != nil {
		cfg.LogLevel = *opts.logLevel
	}
	// The flag can reintroduce the zero interval the config loader
	// already clamps away, and the re-evaluation ticker needs a
	// positive period.
	if cfg.Debounce <= 0 {
		cfg.Debounce = config.DefaultConfig().Debounce
	}

	patterns := opts.patterns
	if len(patterns) == 0 {
		patterns = cfg.Patterns
	}
	if len(patterns) == 0 {
		return fmt.Errorf("no patterns given on the command line or in config")
	}

	log := logger.NewConsoleLogger(output, cfg.LogLevel)

	globs := make([]*glob.Glob, len(patterns))
	for i, pattern := range patterns {
		g, err := glob.Parse(pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		globs[i] = g
	}

	engine := memo.NewEngine()
	defer engine.Close()

	fs, err := vfs.NewDiskFileSystem(engine, opts.rootDir)
	if err != nil {
		return fmt.Errorf("failed to open root %s: %w", opts.rootDir, err)
	}
	walker := globwalk.New(engine, fs)

	lock := filelock.New(filepath.Join(fs.Root(), ".globfs.lock"))
	acquired, err := lock.TryLock()
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("another watch session already holds %s", lock.Path())
	}
	defer lock.Unlock()

	watcher, err := vfs.NewWatcher(fs, func(err error) {
		log.Warnf("watcher: %v", err)
	})
	if err != nil {
		return fmt.Errorf("failed to start filesystem watcher: %w", err)
	}
	defer watcher.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens := make([]memo.Completion, len(globs))
	for i, g := range globs {
		token, err := walker.TrackGlob(ctx, "", g, cfg.IncludeDotFiles)
		if err != nil {
			return fmt.Errorf("glob %q failed: %w", patterns[i], err)
		}
		tokens[i] = token
	}
	log.Infof("watching %d pattern(s) under %s", len(globs), fs.Root())

	ticker := time.NewTicker(cfg.Debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Infof("shutting down")
			return nil
		case <-ticker.C:
		}

		if err := engine.Settle(ctx); err != nil {
			if ctx.Err() != nil {
				log.Infof("shutting down")
				return nil
			}
			return err
		}

		for i, g := range globs {
			token, err := walker.TrackGlob(ctx, "", g, cfg.IncludeDotFiles)
			if err != nil {
				log.Errorf("glob %q failed: %v", patterns[i], err)
				continue
			}
			if token == tokens[i] {
				log.Tracef("pattern %q unchanged", patterns[i])
				continue
			}
			tokens[i] = token
			result, err := walker.ReadGlob(ctx, "", g)
			if err != nil {
				log.Errorf("glob %q failed: %v", patterns[i], err)
				continue
			}
			log.Infof("pattern %q changed, now matching:", patterns[i])
			for _, path := range sortedMatchPaths(result) {
				log.Infof("  %s", path)
			}
		}
	}
}

func sortedMatchPaths(result *globwalk.ReadGlobResult) []string {
	matches := make(map[string]vfs.DirectoryEntry)
	collectMatches(result, matches)
	paths := make([]string, 0, len(matches))
	for path := range matches {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
