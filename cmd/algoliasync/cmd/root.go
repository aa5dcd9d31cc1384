// Package cmd provides the CLI commands for algoliasync.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/config"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/daemon"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/engine"
	syncerr "github.com/Mill3/1ou2cocktails-algolia-sync/internal/errors"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/logging"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/profiling"
	"github.com/Mill3/1ou2cocktails-algolia-sync/pkg/version"
)

// Debug logging and profiling flags
var (
	debugMode      bool
	loggingCleanup func()

	profileOpts profiling.Options
	profile     *profiling.Session
)

// Global flags shared by every command.
var (
	configDir string
	noDaemon  bool
)

// NewRootCmd creates the root command for the algoliasync CLI.
func NewRootCmd() *cobra.Command {
	// Flag variables are package-level; reset them so tests can build
	// several command trees in one process.
	debugMode, configDir, noDaemon = false, ".", false
	profileOpts = profiling.Options{}

	cmd := &cobra.Command{
		Use:   "algoliasync",
		Short: "Keep search indexes in sync with CMS content",
		Long: `algoliasync pushes published CMS content into search indexes.

Every content type (post, page, cocktail, eat, video and any custom type)
is flattened into records and saved to its own index. Lifecycle events
from the CMS keep the indexes current; reindex rebuilds them from scratch.

Configuration is read from .algoliasync.yaml in the --config directory,
the user config and ALGOLIA_* / ALGOLIASYNC_* environment variables.`,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.SetVersionTemplate("algoliasync version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.algoliasync/logs/")
	cmd.PersistentFlags().StringVarP(&configDir, "config", "c", ".", "Directory containing .algoliasync.yaml")
	cmd.PersistentFlags().BoolVar(&noDaemon, "no-daemon", false, "Run in-process even when the daemon is running")
	cmd.PersistentFlags().StringVar(&profileOpts.CPUPath, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.HeapPath, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.TracePath, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newSetSettingsCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newBulkCmd())
	cmd.AddCommand(newEventCmd())
	cmd.AddCommand(newContentCmd())
	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts debug logging and profiling if requested.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if err := startLogging(); err != nil {
		return err
	}
	if !profileOpts.Enabled() {
		return nil
	}

	session, err := profiling.Start(profileOpts, slog.Default())
	if err != nil {
		return err
	}
	profile = session
	return nil
}

// stopProfilingAndLogging writes pending profiles, then closes the debug log.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if profile != nil {
		if err = profile.Stop(); err != nil {
			err = fmt.Errorf("failed to write profiles: %w", err)
		}
		profile = nil
	}
	stopLogging()
	return err
}

func startLogging() error {
	if !debugMode {
		return nil
	}

	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug_logging_enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Version))
	return nil
}

func stopLogging() {
	if loggingCleanup != nil {
		slog.Info("debug_logging_stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
}

// Execute runs the root command until it returns or SIGINT/SIGTERM
// arrives. Sync errors are printed with their code and hint.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	var se *syncerr.SyncError
	if errors.As(err, &se) {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), syncerr.FormatForCLI(err))
	} else {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}

// loadConfig loads the configuration for the --config directory.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// openEngine loads the configuration and builds the engine. Credentials
// are validated before anything is opened.
func openEngine(cmd *cobra.Command) (*engine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return engine.New(cmd.Context(), cfg, commandLogger(cmd))
}

// commandLogger is the debug logger when --debug is set. Otherwise only
// warnings reach stderr so progress output stays readable.
func commandLogger(cmd *cobra.Command) *slog.Logger {
	if debugMode {
		return slog.Default()
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// daemonClient returns a client for the running daemon, or nil when the
// command should run in-process.
func daemonClient() *daemon.Client {
	if noDaemon {
		return nil
	}
	client := daemon.NewClient(daemon.DefaultConfig())
	if !client.IsRunning() {
		return nil
	}
	return client
}

// answeredByDaemon reports whether err is an answer from the daemon rather
// than a failure to reach it. Only the latter falls back to in-process.
func answeredByDaemon(err error) bool {
	var rpcErr *daemon.Error
	return errors.As(err, &rpcErr)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
