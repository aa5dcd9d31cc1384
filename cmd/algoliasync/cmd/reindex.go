package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/engine"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/synchronizer"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/ui"
)

func newReindexCmd() *cobra.Command {
	var (
		plain   bool
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "reindex <type>",
		Short: "Rebuild the index of a content type",
		Long: `Save every published item of a content type to its index.

Items hidden from search are skipped and the run continues. An item that
fails to save is reported and does not stop the run; only a configuration
problem, a reindex already running for the same type or a failure to list
the items ends with a non-zero exit code.

Reindex always runs in-process and holds a per-type lock file, so two runs
for the same content type cannot interleave.`,
		Example: `  # Rebuild the cocktail index
  algoliasync reindex cocktail

  # Line-per-item output (CI, pipes)
  algoliasync reindex cocktail --plain`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
				ui.WithForcePlain(plain),
				ui.WithNoColor(noColor),
				ui.WithContentType(args[0]),
			))
			return runReindex(cmd.Context(), e, args[0], renderer)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Plain text output, one line per item")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")

	return cmd
}

// runReindex drives renderer from the reindex progress of contentType.
func runReindex(ctx context.Context, e *engine.Engine, contentType string, renderer ui.Renderer) error {
	if _, err := e.Registry().MustGet(contentType); err != nil {
		return err
	}

	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageListing, ContentType: contentType})

	start := time.Now()
	res, err := e.Reindex(ctx, contentType, func(p synchronizer.Progress) {
		renderer.UpdateProgress(progressEvent(contentType, p))
		if p.Result.Err != nil {
			renderer.AddError(ui.ErrorEvent{ItemID: p.Result.ID, Err: p.Result.Err})
		}
	})
	if err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		return err
	}

	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}
	renderer.Complete(ui.CompletionStats{
		ContentType: contentType,
		Total:       res.Total,
		Saved:       res.Saved,
		Skipped:     res.Skipped,
		Failed:      res.Failed,
		Duration:    res.Duration,
	})
	return nil
}

func progressEvent(contentType string, p synchronizer.Progress) ui.ProgressEvent {
	return ui.ProgressEvent{
		Stage:       ui.StageIndexing,
		Current:     p.Current,
		Total:       p.Total,
		ContentType: contentType,
		IndexName:   p.IndexName,
		ItemID:      p.Result.ID,
		Title:       p.Result.Title,
		Outcome:     string(p.Result.Outcome),
		Reason:      p.Result.Reason,
	}
}
