package mcp

import (
	"fmt"
	"strings"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/index"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/record"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// FormatContentList formats listed records as markdown.
func FormatContentList(out ListContentOutput) string {
	if len(out.Records) == 0 {
		return fmt.Sprintf("No %s records indexed for locale \"%s\"", out.ContentType, out.Locale)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s records (%s)\n\n", out.ContentType, out.Locale)
	fmt.Fprintf(&sb, "Showing %d of %d record", len(out.Records), out.Total)
	if out.Total != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range out.Records {
		fmt.Fprintf(&sb, "### %d. %s\n\n", i+1, r.Title)
		fmt.Fprintf(&sb, "- **objectID:** `%s`\n", r.ObjectID)
		if r.URL != "" {
			fmt.Fprintf(&sb, "- **URL:** %s\n", r.URL)
		}
		if r.Excerpt != "" {
			fmt.Fprintf(&sb, "\n> %s\n", r.Excerpt)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatIndexStatus formats index status as markdown.
func FormatIndexStatus(out *IndexStatusOutput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Index status\n\n**Backend:** %s\n\n", out.Backend)

	sb.WriteString("| Content type | Indexes |\n|---|---|\n")
	for _, ct := range out.ContentTypes {
		fmt.Fprintf(&sb, "| %s | %s |\n", ct.Name, strings.Join(ct.Indexes, ", "))
	}

	if out.Items == nil {
		return sb.String()
	}
	sb.WriteString("\n")
	if !out.Items.Success {
		fmt.Fprintf(&sb, "Status check failed: `%s`\n", out.Items.Error)
		return sb.String()
	}
	fmt.Fprintf(&sb, "### %s items\n\n", out.Items.Data.Type)
	for _, item := range out.Items.Data.Items {
		mark := "missing"
		if item.RecordExist {
			mark = "indexed"
		}
		fmt.Fprintf(&sb, "- %d: %s\n", item.ID, mark)
	}
	return sb.String()
}

// toListContentOutput keeps the first limit hits of resp.
func toListContentOutput(contentType, locale string, resp *index.SearchResponse, limit int) ListContentOutput {
	out := ListContentOutput{
		ContentType: contentType,
		Locale:      locale,
		Records:     []RecordOutput{},
	}
	if resp == nil {
		return out
	}

	out.Total = resp.NbHits
	if out.Total < len(resp.Hits) {
		out.Total = len(resp.Hits)
	}
	for i, hit := range resp.Hits {
		if i >= limit {
			break
		}
		out.Records = append(out.Records, toRecordOutput(hit))
	}
	return out
}

func toRecordOutput(rec record.Record) RecordOutput {
	str := func(key string) string {
		s, _ := rec[key].(string)
		return s
	}
	return RecordOutput{
		ObjectID: rec.ObjectID(),
		Title:    str(record.AttrTitle),
		URL:      str(record.AttrURL),
		Locale:   rec.Locale(),
		Excerpt:  str(record.AttrExcerpt),
	}
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
