package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer prints one line per item (for CI and pipes).
type PlainRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case event.Stage != StageIndexing:
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), event.ContentType)
	case event.Outcome == OutcomeSkipped:
		_, _ = fmt.Fprintf(r.out, "[%d/%d] Skipping PostID %d : %s (%s)\n",
			event.Current, event.Total, event.ItemID, event.Title, event.Reason)
	case event.Outcome == OutcomeFailed:
		// Reported through AddError.
	default:
		_, _ = fmt.Fprintf(r.out, "[%d/%d] %s\n",
			event.Current, event.Total, ProgressLine(event.ContentType, event.ItemID, event.Title))
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.ItemID != 0 {
		_, _ = fmt.Fprintf(r.out, "%s: PostID %d: %v\n", prefix, event.ItemID, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d of %d %s items indexed in %s",
		stats.Saved, stats.Total, stats.ContentType, stats.Duration.Round(100*time.Millisecond))
	if stats.Skipped > 0 || stats.Failed > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d skipped, %d failed)", stats.Skipped, stats.Failed)
	}
	_, _ = fmt.Fprintln(r.out)
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
