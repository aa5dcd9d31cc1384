package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/daemon"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/output"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/synchronizer"
)

func newBulkCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "bulk <push|remove> <type> <id...>",
		Short: "Push or remove records for selected items",
		Long: `Apply an admin bulk action to the given items, in order.

  push    save each item's record (the wpalgolia_index_update action)
  remove  delete each item's record from every index of the type
          (the wpalgolia_index_delete action)

Push ignores publication status. A failing item is reported and the
remaining items are still processed.`,
		Example: `  algoliasync bulk push cocktail 12 15
  algoliasync bulk remove cocktail 42`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := synchronizer.ParseAction(args[0])
			if err != nil {
				return err
			}
			ids, err := parseIDs(args[2:])
			if err != nil {
				return err
			}

			result, err := runBulk(cmd, action, args[1], ids)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(result)
			}
			for _, it := range result.Items {
				detail := it.Reason
				if it.Error != "" {
					detail = it.Error
				}
				out.Item(args[1], it.ID, it.Title, it.Outcome, detail)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output per-item results as JSON")

	return cmd
}

// runBulk sends the action to the daemon when it runs, otherwise applies
// it in-process. Per-item failures are part of the result, not an error.
func runBulk(cmd *cobra.Command, action synchronizer.Action, contentType string, ids []int64) (*daemon.BulkResult, error) {
	ctx := cmd.Context()
	params := daemon.BulkParams{Action: string(action), ContentType: contentType, IDs: ids}

	if client := daemonClient(); client != nil {
		result, err := client.Bulk(ctx, params)
		if err == nil {
			return result, nil
		}
		if answeredByDaemon(err) {
			return nil, err
		}
		slog.Warn("daemon_bulk_failed_falling_back", slog.String("error", err.Error()))
	}

	e, err := openEngine(cmd)
	if err != nil {
		return nil, err
	}
	defer func() { _ = e.Close() }()

	result, err := daemon.NewEngineHandler(e).HandleBulk(ctx, params)
	if len(result.Items) == 0 && err != nil {
		return nil, err
	}
	return &result, nil
}
