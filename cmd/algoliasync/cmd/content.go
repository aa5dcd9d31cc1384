package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/content"
	syncerr "github.com/Mill3/1ou2cocktails-algolia-sync/internal/errors"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/output"
)

func newContentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Manage the local content database",
		Long: `The content database is the SQLite copy of the CMS content the
synchronizers read from: items, terms, custom fields and thumbnails.`,
	}

	cmd.AddCommand(newContentImportCmd())

	return cmd
}

func newContentImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import a CMS export into the content database",
		Long: `Import a JSON export into the content database in one transaction.
Existing rows with the same ids are replaced.

The document has the shape:

  {
    "items":       [{"id": 1, "type": "cocktail", "status": "publish", "title": "..."}],
    "terms":       [{"id": 7, "taxonomy": "spirit", "name": "Gin"}],
    "item_terms":  {"1": [7]},
    "item_fields": {"1": {"ingredients": ["gin", "vermouth"]}},
    "term_fields": {"7": {"color": "clear"}},
    "thumbnails":  {"1": {"medium": "https://..."}}
  }

Importing does not touch the indexes; run reindex or send events afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(args[0])
			if err != nil {
				return err
			}

			e, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			if err := e.Content().Import(cmd.Context(), snap); err != nil {
				return syncerr.SourceError("failed to import content", err).WithDetail("file", args[0])
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("Imported %d item(s) and %d term(s) from %s", len(snap.Items), len(snap.Terms), args[0])
			return nil
		},
	}
}

func readSnapshot(path string) (content.Snapshot, error) {
	var snap content.Snapshot

	data, err := os.ReadFile(path)
	if err != nil {
		return snap, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, syncerr.ValidationError(fmt.Sprintf("invalid content export %s", path), err)
	}
	return snap, nil
}
