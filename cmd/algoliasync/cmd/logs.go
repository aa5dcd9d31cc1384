package cmd

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/logging"
)

type logsOptions struct {
	follow      bool
	lines       int
	level       string
	filter      string
	contentType string
	itemID      int64
	noColor     bool
	logFile     string
	source      string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View sync and daemon logs",
		Long: `View and tail the JSON logs written by --debug runs and the daemon.

Log Sources:
  sync    - CLI logs (~/.algoliasync/logs/sync.log)
  daemon  - daemon logs (~/.algoliasync/logs/daemon.log)
  all     - both sources merged by timestamp`,
		Example: `  algoliasync logs                        # Last 50 lines of sync.log
  algoliasync logs --source daemon -f     # Follow the daemon
  algoliasync logs --level warn           # Warnings and errors only
  algoliasync logs --type cocktail --item 12`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Filter by log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Filter by pattern (regex)")
	cmd.Flags().StringVar(&opts.contentType, "type", "", "Only entries for this content type")
	cmd.Flags().Int64Var(&opts.itemID, "item", 0, "Only entries for this item id")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Path to log file (overrides --source)")
	cmd.Flags().StringVar(&opts.source, "source", logging.SourceSync, "Log source: sync, daemon, or all")

	return cmd
}

func runLogs(ctx context.Context, stdout, stderr io.Writer, opts logsOptions) error {
	paths, err := logging.LogPaths(opts.source, opts.logFile)
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		if pattern, err = regexp.Compile(opts.filter); err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:       opts.level,
		Pattern:     pattern,
		ContentType: opts.contentType,
		ItemID:      opts.itemID,
		NoColor:     opts.noColor,
		ShowSource:  len(paths) > 1,
	}, stdout)

	_, _ = fmt.Fprintf(stderr, "Log files: %s\n", strings.Join(paths, ", "))
	if opts.follow {
		_, _ = fmt.Fprintln(stderr, "Following... (Ctrl+C to stop)")
	}
	_, _ = fmt.Fprintln(stderr, "---")

	entries, err := viewer.Tail(paths, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)

	if !opts.follow {
		return nil
	}
	return followLogs(ctx, viewer, stdout, paths)
}

// followLogs streams every existing file in paths until ctx is cancelled.
func followLogs(ctx context.Context, viewer *logging.Viewer, out io.Writer, paths []string) error {
	ch := make(chan logging.LogEntry, 100)
	g, gctx := errgroup.WithContext(ctx)

	for _, path := range paths {
		if !fileExists(path) {
			continue
		}
		g.Go(func() error {
			return viewer.Follow(gctx, path, ch)
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	for {
		select {
		case e := <-ch:
			_, _ = fmt.Fprintln(out, viewer.FormatEntry(e))
		case err := <-done:
			return err
		}
	}
}
