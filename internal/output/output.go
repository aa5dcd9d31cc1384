// Package output provides consistent CLI output for sync commands.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out io.Writer
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Item prints the outcome of one content item of a bulk action.
func (w *Writer) Item(contentType string, id int64, title, outcome, detail string) {
	switch outcome {
	case "saved":
		w.Statusf("✅", "Updating index %q with PostID %d : %s", contentType, id, title)
	case "removed":
		w.Statusf("🗑 ", "Removed PostID %d from %q", id, contentType)
	case "skipped":
		w.Statusf("⏭ ", "Skipped PostID %d : %s (%s)", id, title, detail)
	default:
		w.Errorf("PostID %d : %s", id, detail)
	}
}

// KeyValues prints aligned key/value pairs in key order.
func (w *Writer) KeyValues(pairs map[string]string) {
	keys := make([]string, 0, len(pairs))
	width := 0
	for k := range pairs {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w.out, "  %-*s  %s\n", width+1, k+":", pairs[k])
	}
}

// List prints a bulleted list under title.
func (w *Writer) List(title string, items []string) {
	_, _ = fmt.Fprintf(w.out, "%s\n", title)
	if len(items) == 0 {
		_, _ = fmt.Fprintln(w.out, "  (none)")
		return
	}
	_, _ = fmt.Fprintf(w.out, "  - %s\n", strings.Join(items, "\n  - "))
}

// JSON prints v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
