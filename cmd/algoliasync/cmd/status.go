package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	syncerr "github.com/Mill3/1ou2cocktails-algolia-sync/internal/errors"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/synchronizer"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var (
		jsonOutput bool
		noColor    bool
	)

	cmd := &cobra.Command{
		Use:   "status <type> [id...]",
		Short: "Show the indexes of a content type and which items have records",
		Long: `Show the backend and index names of a content type. When item ids are
given, report for each one whether its record exists in any index of the
type. A failing index service reads as "missing".`,
		Example: `  algoliasync status cocktail
  algoliasync status cocktail 12 15 42 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}

			e, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			s, err := e.Registry().MustGet(args[0])
			if err != nil {
				return err
			}

			info := ui.StatusInfo{
				ContentType: s.Name(),
				Backend:     e.Config().Index.Backend,
				Indexes:     s.IndexNames(),
			}
			if len(ids) > 0 {
				applyStatus(&info, s.CheckStatus(cmd.Context(), ids))
			}

			r := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor())
			if jsonOutput {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")

	return cmd
}

func applyStatus(info *ui.StatusInfo, resp synchronizer.StatusResponse) {
	if !resp.Success || resp.Data == nil {
		info.Error = resp.Error
		return
	}
	for _, it := range resp.Data.Items {
		info.Items = append(info.Items, ui.ItemStatus{ID: it.ID, Indexed: it.RecordExist})
	}
}

// parseIDs converts item id arguments. Ids must be positive.
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, syncerr.ValidationError(fmt.Sprintf("invalid item id %q", a), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
