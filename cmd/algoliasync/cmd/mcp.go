package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/engine"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/logging"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve indexed content over the Model Context Protocol",
		Long: `Start an MCP server exposing the indexed content read-only:

  list_content   records of a content type in one locale
  index_status   backend, index names and per-item record existence

Each content type is also published as a resource describing its fields,
taxonomies and index settings.

stdout carries the protocol exclusively; logs go to
~/.algoliasync/logs/sync.log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			cleanup, err := logging.SetupMCPMode(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}
			defer cleanup()

			ctx := cmd.Context()
			e, err := engine.New(ctx, cfg, slog.Default())
			if err != nil {
				slog.Error("mcp_engine_failed", slog.String("error", err.Error()))
				return err
			}
			defer func() { _ = e.Close() }()

			srv, err := mcp.NewServer(e, slog.Default())
			if err != nil {
				return err
			}
			defer func() { _ = srv.Close() }()

			return srv.Serve(ctx, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport (stdio)")

	return cmd
}
