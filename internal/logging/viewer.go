package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Log sources shown by the viewer.
const (
	SourceSync   = "sync"
	SourceDaemon = "daemon"
)

// LogEntry is one parsed JSON log line.
type LogEntry struct {
	Time   time.Time
	Level  string
	Msg    string
	Source string
	Attrs  map[string]any

	// Raw is the original line; Valid is false when it was not JSON.
	Raw   string
	Valid bool
}

// ViewerConfig filters and styles viewer output.
type ViewerConfig struct {
	// Level hides entries below it, and non-JSON lines. Empty shows everything.
	Level string
	// Pattern matches the raw line.
	Pattern *regexp.Regexp
	// ContentType and ItemID match the content_type and item_id attributes.
	ContentType string
	ItemID      int64
	NoColor     bool
	ShowSource  bool
}

// Viewer reads, filters and prints sync logs.
type Viewer struct {
	cfg    ViewerConfig
	out    io.Writer
	styles map[string]lipgloss.Style
}

// NewViewer creates a log viewer printing to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	v := &Viewer{cfg: cfg, out: out, styles: map[string]lipgloss.Style{}}
	if !cfg.NoColor {
		color := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
		v.styles = map[string]lipgloss.Style{
			"debug":      color("245"),
			"info":       color("113"),
			"warn":       color("220"),
			"error":      color("196"),
			SourceSync:   color("214"),
			SourceDaemon: color("81"),
		}
	}
	return v
}

// SourceFromPath derives the log source from a log file name.
func SourceFromPath(path string) string {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "daemon"):
		return SourceDaemon
	case strings.HasPrefix(base, "sync"):
		return SourceSync
	default:
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
}

// Tail returns the matching entries among the last n lines of each file,
// merged by time and trimmed to n. Missing files are skipped.
func (v *Viewer) Tail(paths []string, n int) ([]LogEntry, error) {
	var (
		all    []LogEntry
		opened int
	)
	for _, path := range paths {
		lines, err := lastLines(path, n)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		opened++

		source := SourceFromPath(path)
		for _, line := range lines {
			if e := parseLine(line, source); v.matches(e) {
				all = append(all, e)
			}
		}
	}
	if opened == 0 {
		return nil, fmt.Errorf("no log file found (looked in %s)", strings.Join(paths, ", "))
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Time.Before(all[j].Time) })
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

func lastLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	const maxLine = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}

// Follow sends new matching entries of path to entries until ctx is done.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- LogEntry) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	source := SourceFromPath(path)
	reader := bufio.NewReader(f)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var partial string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		for {
			chunk, err := reader.ReadString('\n')
			partial += chunk
			if err != nil {
				// Incomplete line: keep it until the writer finishes it.
				break
			}
			line := strings.TrimSuffix(partial, "\n")
			partial = ""
			if line == "" {
				continue
			}
			if e := parseLine(line, source); v.matches(e) {
				select {
				case entries <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// Print writes entries, one per line.
func (v *Viewer) Print(entries []LogEntry) {
	for _, e := range entries {
		_, _ = fmt.Fprintln(v.out, v.FormatEntry(e))
	}
}

// FormatEntry renders e as "time LEVEL [source] msg key=value...".
// Attributes are sorted by key.
func (v *Viewer) FormatEntry(e LogEntry) string {
	if !e.Valid {
		return e.Raw
	}

	var sb strings.Builder
	sb.WriteString(e.Time.Format("15:04:05.000"))
	sb.WriteByte(' ')

	level := strings.ToUpper(e.Level)
	if len(level) > 5 {
		level = level[:5]
	}
	sb.WriteString(v.style(strings.ToLower(e.Level), fmt.Sprintf("%-5s", level)))
	sb.WriteByte(' ')

	if v.cfg.ShowSource && e.Source != "" {
		sb.WriteString(v.style(e.Source, "["+e.Source+"]"))
		sb.WriteByte(' ')
	}
	sb.WriteString(e.Msg)

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, e.Attrs[k])
	}
	return sb.String()
}

func (v *Viewer) style(key, s string) string {
	if st, ok := v.styles[key]; ok {
		return st.Render(s)
	}
	return s
}

func parseLine(line, source string) LogEntry {
	e := LogEntry{Raw: line, Source: source}

	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return e
	}
	e.Valid = true

	if t, ok := data["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			e.Time = parsed
		}
	}
	e.Level, _ = data["level"].(string)
	e.Msg, _ = data["msg"].(string)

	e.Attrs = make(map[string]any, len(data))
	for k, val := range data {
		switch k {
		case "time", "level", "msg":
		default:
			e.Attrs[k] = val
		}
	}
	return e
}

func (v *Viewer) matches(e LogEntry) bool {
	if v.cfg.Level != "" && (!e.Valid || ParseLevel(e.Level) < ParseLevel(v.cfg.Level)) {
		return false
	}
	if v.cfg.Pattern != nil && !v.cfg.Pattern.MatchString(e.Raw) {
		return false
	}
	if v.cfg.ContentType != "" {
		if ct, _ := e.Attrs["content_type"].(string); ct != v.cfg.ContentType {
			return false
		}
	}
	if v.cfg.ItemID != 0 {
		// JSON numbers decode as float64.
		if id, _ := e.Attrs["item_id"].(float64); int64(id) != v.cfg.ItemID {
			return false
		}
	}
	return true
}
