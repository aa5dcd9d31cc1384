package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/daemon"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/index"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/output"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/record"
)

func newQueryCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "query <type> [locale]",
		Short: "List the records of a content type",
		Long: `List every record of a content type in one locale, as the front-end
sees it. The locale defaults to localization.default_locale.

Results come from the cache when a recent identical query was made.
The running daemon answers when available; use --no-daemon to query
in-process.`,
		Example: `  algoliasync query cocktail
  algoliasync query cocktail fr --json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			contentType, locale := args[0], ""
			if len(args) == 2 {
				locale = args[1]
			} else {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				locale = cfg.Localization.DefaultLocale
			}

			resp, err := queryRecords(cmd, contentType, locale)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(resp)
			}
			printRecords(out, contentType, locale, resp, limit)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the raw search response as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum records to print (0 = all)")

	return cmd
}

// queryRecords asks the daemon when it runs, otherwise routes in-process.
func queryRecords(cmd *cobra.Command, contentType, locale string) (*index.SearchResponse, error) {
	ctx := cmd.Context()

	if client := daemonClient(); client != nil {
		resp, err := client.Query(ctx, daemon.QueryParams{ContentType: contentType, Locale: locale})
		if err == nil {
			return resp, nil
		}
		if answeredByDaemon(err) {
			return nil, err
		}
		slog.Warn("daemon_query_failed_falling_back", slog.String("error", err.Error()))
	}

	e, err := openEngine(cmd)
	if err != nil {
		return nil, err
	}
	defer func() { _ = e.Close() }()

	resp, ok, err := e.Router().Route(ctx, contentType, locale)
	if !ok {
		_, err = e.Registry().MustGet(contentType)
		return nil, err
	}
	return resp, err
}

func printRecords(out *output.Writer, contentType, locale string, resp *index.SearchResponse, limit int) {
	hits := resp.Hits
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	out.Statusf("🔎", "%d %s record(s) for locale %q", len(resp.Hits), contentType, locale)
	if len(hits) == 0 {
		return
	}
	out.Newline()
	for _, r := range hits {
		title, _ := r[record.AttrTitle].(string)
		out.Statusf("", "%-16s %s", r.ObjectID(), title)
	}
	if len(hits) < len(resp.Hits) {
		out.Statusf("", "... %d more", len(resp.Hits)-len(hits))
	}
}
