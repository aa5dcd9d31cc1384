package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/index"
)

// Progress is reported once per item during Reindex.
type Progress struct {
	Current   int
	Total     int
	IndexName string
	Result    ItemResult
}

// ReindexResult summarizes a Reindex run.
type ReindexResult struct {
	Total    int
	Saved    int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// Reindex saves every published item of this type, sequentially. Items
// excluded by the inclusion policy are skipped and the run continues; a
// failing item is reported through progress and does not abort the run.
// Only listing the items or cancellation fails the whole run.
func (s *Synchronizer) Reindex(ctx context.Context, progress func(Progress)) (ReindexResult, error) {
	start := time.Now()

	items, err := s.source.PublishedItems(ctx, s.Name())
	if err != nil {
		return ReindexResult{}, fmt.Errorf("list %s items: %w", s.Name(), err)
	}

	res := ReindexResult{Total: len(items)}
	s.logger.Info("reindex_started", slog.Int("items", len(items)))

	for i := range items {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}

		item := &items[i]
		ir := ItemResult{ID: item.ID, Title: item.Title}
		indexName := ""

		if !s.ShouldIndex(ctx, item) {
			ir.Outcome, ir.Reason = OutcomeSkipped, "hidden from search"
			res.Skipped++
		} else {
			locale := ""
			if s.localized {
				locale, _ = s.builder.Locale(ctx, item)
			}
			indexName = s.gateway(locale).IndexName()

			if _, err := s.save(ctx, item); err != nil {
				ir.Outcome, ir.Err = OutcomeFailed, err
				res.Failed++
			} else {
				ir.Outcome = OutcomeSaved
				res.Saved++
			}
		}

		if progress != nil {
			progress(Progress{Current: i + 1, Total: len(items), IndexName: indexName, Result: ir})
		}
	}

	res.Duration = time.Since(start)
	s.logger.Info("reindex_done",
		slog.Int("saved", res.Saved),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// SetSettings pushes the index settings for locale. An empty locale applies
// them to every index of this type.
func (s *Synchronizer) SetSettings(ctx context.Context, locale string) ([]string, error) {
	targets := s.distinctGateways()
	if locale != "" {
		targets = []*index.Gateway{s.gateway(locale)}
	}

	var (
		names []string
		errs  []error
	)
	for _, gw := range targets {
		if _, err := gw.EnsureIndex(ctx, true); err != nil {
			errs = append(errs, err)
			continue
		}
		names = append(names, gw.IndexName())
	}
	return names, errors.Join(errs...)
}
