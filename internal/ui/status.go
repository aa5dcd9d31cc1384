package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ItemStatus reports whether one content item has a record.
type ItemStatus struct {
	ID      int64 `json:"id"`
	Indexed bool  `json:"indexed"`
}

// StatusInfo describes the index state of one content type.
type StatusInfo struct {
	ContentType string       `json:"content_type"`
	Backend     string       `json:"backend"`
	Indexes     []string     `json:"indexes"`
	Items       []ItemStatus `json:"items,omitempty"`

	// Error is set when the status check itself failed.
	Error string `json:"error,omitempty"`
}

// Indexed counts the items with a record.
func (s StatusInfo) Indexed() int {
	n := 0
	for _, it := range s.Items {
		if it.Indexed {
			n++
		}
	}
	return n
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status: "+info.ContentType))
	_, _ = fmt.Fprintf(r.out, "  Backend: %s\n", info.Backend)
	_, _ = fmt.Fprintf(r.out, "  Indexes: %s\n", strings.Join(info.Indexes, ", "))

	if info.Error != "" {
		_, _ = fmt.Fprintf(r.out, "\n  %s\n", r.styles.Error.Render("check failed: "+info.Error))
		return nil
	}
	if len(info.Items) == 0 {
		return nil
	}

	_, _ = fmt.Fprintf(r.out, "\n  Items (%d/%d indexed):\n", info.Indexed(), len(info.Items))
	for _, it := range info.Items {
		_, _ = fmt.Fprintf(r.out, "    %-8d %s\n", it.ID, r.renderIndexed(it.Indexed))
	}
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderIndexed(indexed bool) string {
	if indexed {
		return r.styles.Success.Render("indexed")
	}
	return r.styles.Warning.Render("missing")
}
