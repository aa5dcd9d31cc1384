package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/daemon"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/engine"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/logging"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/output"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background sync daemon",
		Long: `The daemon keeps the content database, the cache and the index clients
open and handles lifecycle events, queries, status checks and bulk actions
sent over its Unix socket.

Commands:
  start   Start the daemon (runs in background by default)
  stop    Stop the running daemon
  status  Show daemon status

Examples:
  algoliasync daemon start      # Start daemon in background
  algoliasync daemon start -f   # Run in foreground (for debugging)
  algoliasync daemon status     # Check if daemon is running
  algoliasync daemon stop       # Stop the daemon`,
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the background daemon",
		Long: `Start the sync daemon in the background.

The daemon is configured from the --config directory at start time.
Use --foreground for debugging or to see logs in real-time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStart(cmd.Context(), cmd, foreground)
		},
	}

	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (don't daemonize)")
	return cmd
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Long: `Stop the running sync daemon.

Sends SIGTERM for a graceful shutdown; in-flight requests are completed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStop(cmd)
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Long: `Show whether the daemon is running, its process ID, uptime,
index backend and the content types it serves.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runDaemonStart(ctx context.Context, cmd *cobra.Command, foreground bool) error {
	out := output.New(cmd.OutOrStdout())
	dcfg := daemon.DefaultConfig()

	client := daemon.NewClient(dcfg)
	if client.IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	if foreground {
		return runDaemonForeground(ctx, out, dcfg)
	}

	out.Status("", "Starting daemon in background...")

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	dir, err := filepath.Abs(configDir)
	if err != nil {
		return fmt.Errorf("failed to resolve config directory: %w", err)
	}

	args := []string{"daemon", "start", "--foreground", "--config", dir}
	if debugMode {
		args = append(args, "--debug")
	}
	bgCmd := exec.Command(execPath, args...)
	bgCmd.Stdout = nil
	bgCmd.Stderr = nil
	bgCmd.Stdin = nil
	bgCmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := bgCmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Reap the child and detect a premature exit.
	done := make(chan error, 1)
	go func() { done <- bgCmd.Wait() }()

	for i := 0; i < 20; i++ {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("daemon process exited unexpectedly (see %s): %w", logging.DaemonLogPath(), err)
			}
			return fmt.Errorf("daemon process exited unexpectedly with code 0")
		default:
		}

		time.Sleep(100 * time.Millisecond)
		if client.IsRunning() {
			out.Success(fmt.Sprintf("Daemon started (pid: %d)", bgCmd.Process.Pid))
			return nil
		}
	}

	return fmt.Errorf("daemon failed to start within timeout")
}

func runDaemonForeground(ctx context.Context, out *output.Writer, dcfg daemon.Config) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.FilePath = logging.DaemonLogPath()
	logCfg.Level = cfg.LogLevel
	if debugMode {
		logCfg.Level = "debug"
	}
	logCfg.WriteToStderr = true
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup daemon logging: %w", err)
	}
	defer cleanup()

	out.Status("", "Starting daemon in foreground...")
	out.Status("", fmt.Sprintf("Socket: %s", dcfg.SocketPath))
	out.Status("", fmt.Sprintf("Logs: %s", logCfg.FilePath))
	out.Status("", "Press Ctrl+C to stop")
	out.Newline()

	e, err := engine.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("daemon_engine_failed", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = e.Close() }()

	d, err := daemon.NewDaemon(dcfg, daemon.NewEngineHandler(e), logger)
	if err != nil {
		logger.Error("daemon_create_failed", slog.String("error", err.Error()))
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	return d.Run(ctx)
}

func runDaemonStop(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())
	pidFile := daemon.NewPIDFile(daemon.DefaultConfig().PIDPath)

	if !pidFile.IsRunning() {
		out.Status("", "Daemon is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !pidFile.IsRunning() {
			out.Success(fmt.Sprintf("Daemon stopped (was pid: %d)", pid))
			return nil
		}
	}

	out.Status("", "Daemon not responding, sending SIGKILL...")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill daemon: %w", err)
	}

	out.Success("Daemon killed")
	return nil
}

func runDaemonStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	out := output.New(cmd.OutOrStdout())
	dcfg := daemon.DefaultConfig()
	client := daemon.NewClient(dcfg)

	if !client.IsRunning() {
		if jsonOutput {
			return out.JSON(daemon.StatusResult{Running: false})
		}
		out.Status("", "Daemon is not running")
		out.Status("", "Run 'algoliasync daemon start' to start it")
		return nil
	}

	status, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	if jsonOutput {
		return out.JSON(status)
	}

	out.Status("", "Daemon is running")
	out.Status("", fmt.Sprintf("  PID:           %d", status.PID))
	out.Status("", fmt.Sprintf("  Uptime:        %s", status.Uptime))
	out.Status("", fmt.Sprintf("  Backend:       %s", status.Backend))
	out.Status("", fmt.Sprintf("  Content types: %s", strings.Join(status.ContentTypes, ", ")))
	out.Status("", fmt.Sprintf("  Indexes:       %d", len(status.Indexes)))
	out.Status("", fmt.Sprintf("  Socket:        %s", dcfg.SocketPath))

	return nil
}
