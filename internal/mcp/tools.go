package mcp

import "github.com/Mill3/1ou2cocktails-algolia-sync/internal/synchronizer"

// ListContentInput defines the input schema for the list_content tool.
type ListContentInput struct {
	ContentType string `json:"content_type" jsonschema:"the content type to list, e.g. cocktail"`
	Locale      string `json:"locale,omitempty" jsonschema:"the locale to list, defaults to the configured default locale"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of records to return, default 20"`
}

// ListContentOutput defines the output schema for the list_content tool.
type ListContentOutput struct {
	ContentType string         `json:"content_type"`
	Locale      string         `json:"locale"`
	Total       int            `json:"total" jsonschema:"number of records in the index for this type and locale"`
	Records     []RecordOutput `json:"records"`
}

// RecordOutput is the summary of one indexed record.
type RecordOutput struct {
	ObjectID string `json:"object_id"`
	Title    string `json:"title"`
	URL      string `json:"url,omitempty"`
	Locale   string `json:"locale,omitempty"`
	Excerpt  string `json:"excerpt,omitempty"`
}

// IndexStatusInput defines the input schema for the index_status tool.
type IndexStatusInput struct {
	ContentType string  `json:"content_type,omitempty" jsonschema:"content type whose items to check; omit to only list content types"`
	IDs         []int64 `json:"ids,omitempty" jsonschema:"content item ids to check for a record"`
}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Backend      string                       `json:"backend"`
	ContentTypes []ContentTypeInfo            `json:"content_types"`
	Items        *synchronizer.StatusResponse `json:"items,omitempty"`
}

// ContentTypeInfo describes one registered content type.
type ContentTypeInfo struct {
	Name    string   `json:"name"`
	Indexes []string `json:"indexes"`
}
