package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/daemon"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/events"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/output"
)

func newEventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Deliver a content lifecycle event",
		Long: `Deliver a lifecycle event from the CMS to the synchronizers.

Commands:
  saved    An item was created, updated, published or unpublished
  deleted  An item was permanently deleted
  term     A taxonomy term was edited or deleted

The running daemon handles the event when available; use --no-daemon to
handle it in-process. A failing handler is reported as a warning: the CMS
operation that triggered the event has already succeeded.`,
		Example: `  algoliasync event saved cocktail 42
  algoliasync event deleted cocktail 42
  algoliasync event term edited 7`,
	}

	cmd.AddCommand(newItemEventCmd("saved", events.KindItemSaved))
	cmd.AddCommand(newItemEventCmd("deleted", events.KindItemDeleted))
	cmd.AddCommand(newTermEventCmd())

	return cmd
}

func newItemEventCmd(name string, kind events.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <type> <id>",
		Short: fmt.Sprintf("Deliver an %s event", kind),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			return runEvent(cmd, daemon.EventParams{
				Kind:        kind.String(),
				ContentType: args[0],
				ItemID:      ids[0],
			})
		},
	}
}

func newTermEventCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "term <edited|deleted> <term-id>",
		Short: "Deliver a term.edited or term.deleted event",
		Long: `Deliver a term event. Every published item carrying the term is
saved again in each content type that indexes its taxonomy.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind events.Kind
			switch args[0] {
			case "edited":
				kind = events.KindTermEdited
			case "deleted":
				kind = events.KindTermDeleted
			default:
				return fmt.Errorf("unknown term event %q (valid: edited, deleted)", args[0])
			}
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			return runEvent(cmd, daemon.EventParams{Kind: kind.String(), TermID: ids[0]})
		},
	}
}

// runEvent delivers params through the daemon when it runs, otherwise
// in-process. Only invalid input or a failing setup is an error.
func runEvent(cmd *cobra.Command, params daemon.EventParams) error {
	ev, err := params.Event()
	if err != nil {
		return err
	}
	out := output.New(cmd.OutOrStdout())
	ctx := cmd.Context()

	if client := daemonClient(); client != nil {
		res, err := client.Publish(ctx, params)
		switch {
		case err == nil:
			out.Successf("Event %s delivered to daemon (id: %s)", params.Kind, res.EventID)
			return nil
		case answeredByDaemon(err):
			out.Warningf("Event %s handled with errors: %v", params.Kind, err)
			return nil
		}
		slog.Warn("daemon_event_failed_falling_back", slog.String("error", err.Error()))
	}

	e, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	if ev.IsItem() {
		if _, err := e.Registry().MustGet(ev.ContentType); err != nil {
			return err
		}
	}

	if err := e.Publish(ctx, ev); err != nil {
		out.Warningf("Event %s handled with errors: %v", params.Kind, err)
		return nil
	}
	out.Successf("Event %s handled (id: %s)", params.Kind, ev.ID)
	return nil
}
