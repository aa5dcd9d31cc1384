// Package text cleans CMS markup into plain text suitable for index records.
package text

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Ellipsis is appended to truncated text.
const Ellipsis = "..."

var lineBreaks = regexp.MustCompile(`[\r\n]+`)

// Normalize cleans string values and returns anything else unchanged.
// See NormalizeString.
func Normalize(v any, maxLength int) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return NormalizeString(s, maxLength)
}

// NormalizeString strips markup tags, collapses each run of line breaks into
// a single space and, when maxLength > 0, keeps the first maxLength runes
// followed by Ellipsis if anything was cut.
func NormalizeString(s string, maxLength int) string {
	s = lineBreaks.ReplaceAllString(StripTags(s), " ")

	if maxLength > 0 {
		runes := []rune(s)
		if len(runes) > maxLength {
			return string(runes[:maxLength]) + Ellipsis
		}
	}
	return s
}

// StripTags removes markup tags and comments, keeping text content. Entities
// are left encoded, the way the CMS stores them. Content of script and style
// elements is dropped.
func StripTags(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return s
	}

	var (
		b    strings.Builder
		skip int
	)
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a malformed tail; keep what was read.
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Raw())
			}
		case html.StartTagToken:
			if isRawElement(z) {
				skip++
			}
		case html.EndTagToken:
			if isRawElement(z) && skip > 0 {
				skip--
			}
		}
	}
}

func isRawElement(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}
