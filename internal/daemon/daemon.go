package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/logging"
)

// Daemon owns the socket server and the PID file of one daemon process.
type Daemon struct {
	cfg     Config
	server  *Server
	pidFile *PIDFile
	logger  *slog.Logger
}

// NewDaemon creates a daemon serving requests with handler.
func NewDaemon(cfg Config, handler RequestHandler, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid daemon config: %w", err)
	}
	logger = logging.OrDefault(logger)

	srv, err := NewServer(cfg.SocketPath, cfg.Timeout, logger)
	if err != nil {
		return nil, err
	}
	srv.SetHandler(handler)

	return &Daemon{
		cfg:     cfg,
		server:  srv,
		pidFile: NewPIDFile(cfg.PIDPath),
		logger:  logger,
	}, nil
}

// Run serves until ctx is cancelled. It refuses to start when another
// daemon owns the PID file, and removes the PID file on exit.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}
	if err := d.pidFile.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := d.pidFile.Remove(); err != nil {
			d.logger.Warn("pid_file_remove_failed", slog.String("error", err.Error()))
		}
	}()

	d.logger.Info("daemon_started",
		slog.String("socket", d.cfg.SocketPath),
		slog.String("pid_file", d.cfg.PIDPath))

	errCh := make(chan error, 1)
	go func() { errCh <- d.server.ListenAndServe(ctx) }()

	select {
	case err := <-errCh:
		return serveResult(err)
	case <-ctx.Done():
	}

	select {
	case err := <-errCh:
		d.logger.Info("daemon_stopped")
		return serveResult(err)
	case <-time.After(d.cfg.ShutdownGracePeriod):
		d.logger.Warn("daemon_shutdown_timeout", slog.Duration("grace_period", d.cfg.ShutdownGracePeriod))
		return fmt.Errorf("shutdown timed out after %s", d.cfg.ShutdownGracePeriod)
	}
}

func serveResult(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
