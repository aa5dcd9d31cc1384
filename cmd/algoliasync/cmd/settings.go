package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/output"
)

func newSetSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-settings <type> [locale]",
		Short: "Push searchable attributes, ranking and facets to the indexes",
		Long: `Create the indexes of a content type if needed and push its settings:
searchable attributes, custom ranking and attributes for faceting.

Without a locale every index of the type is updated.`,
		Example: `  algoliasync set-settings cocktail
  algoliasync set-settings cocktail fr`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			locale := ""
			if len(args) == 2 {
				locale = args[1]
			}

			e, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			out := output.New(cmd.OutOrStdout())
			names, err := e.SetSettings(cmd.Context(), args[0], locale)
			for _, name := range names {
				out.Successf("Settings applied to %s", name)
			}
			return err
		},
	}

	return cmd
}
