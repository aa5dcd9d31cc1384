package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/content"
)

// Action is an admin bulk action.
type Action string

// Bulk action identifiers as exposed to the admin UI.
const (
	ActionPush   Action = "wpalgolia_index_update"
	ActionRemove Action = "wpalgolia_index_delete"
)

// ParseAction accepts an action identifier or its short alias (push, remove).
func ParseAction(s string) (Action, error) {
	switch s {
	case string(ActionPush), "push":
		return ActionPush, nil
	case string(ActionRemove), "remove":
		return ActionRemove, nil
	default:
		return "", fmt.Errorf("unknown bulk action %q (valid: push, remove)", s)
	}
}

// Outcome is what happened to one item.
type Outcome string

const (
	OutcomeSaved   Outcome = "saved"
	OutcomeRemoved Outcome = "removed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// ItemResult reports the outcome of one item of a bulk or reindex run.
type ItemResult struct {
	ID      int64   `json:"id"`
	Title   string  `json:"title,omitempty"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
	Err     error   `json:"-"`
}

// Error returns the failure message, or "".
func (r ItemResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Bulk applies action to every id in order. Items are independent: a failure
// is reported in its result and the next item is processed. Push saves an
// item only when the inclusion policy allows it; remove deletes
// unconditionally.
func (s *Synchronizer) Bulk(ctx context.Context, action Action, ids []int64) ([]ItemResult, error) {
	if action != ActionPush && action != ActionRemove {
		return nil, fmt.Errorf("unknown bulk action %q", action)
	}

	results := make([]ItemResult, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.bulkOne(ctx, action, id))
	}

	s.logger.Info("bulk_done",
		slog.String("action", string(action)),
		slog.Int("items", len(ids)))
	return results, nil
}

func (s *Synchronizer) bulkOne(ctx context.Context, action Action, id int64) ItemResult {
	res := ItemResult{ID: id}

	item, err := s.source.Item(ctx, id)
	if errors.Is(err, content.ErrNotFound) {
		res.Outcome, res.Reason = OutcomeSkipped, "not found"
		return res
	}
	if err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}
	res.Title = item.Title

	if item.Type != s.Name() {
		res.Outcome, res.Reason = OutcomeSkipped, "content type "+item.Type
		return res
	}

	switch action {
	case ActionPush:
		if !s.ShouldIndex(ctx, item) {
			res.Outcome, res.Reason = OutcomeSkipped, "hidden from search"
			return res
		}
		if _, err := s.save(ctx, item); err != nil {
			res.Outcome, res.Err = OutcomeFailed, err
			return res
		}
		res.Outcome = OutcomeSaved

	case ActionRemove:
		if err := s.remove(ctx, id); err != nil {
			res.Outcome, res.Err = OutcomeFailed, err
			return res
		}
		res.Outcome = OutcomeRemoved
	}
	return res
}
