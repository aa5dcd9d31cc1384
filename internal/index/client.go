// Package index talks to the search index service: the Client port
// implemented by concrete backends, and the cache-backed Gateway that owns
// one logical index.
package index

import (
	"context"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/record"
)

// Handle identifies an initialized remote index. It is cached between runs,
// so it must stay JSON serializable.
type Handle struct {
	Name string `json:"name"`
}

// Settings is the index configuration payload.
type Settings struct {
	SearchableAttributes  []string `json:"searchableAttributes,omitempty"`
	CustomRanking         []string `json:"customRanking,omitempty"`
	AttributesForFaceting []string `json:"attributesForFaceting,omitempty"`

	// ForwardToReplicas is sent as a query parameter, not in the body.
	ForwardToReplicas bool `json:"-"`
}

// SearchParams narrows a search.
type SearchParams struct {
	Filters     string
	HitsPerPage int
}

// SearchResponse is the full response of a search, cached verbatim.
type SearchResponse struct {
	Hits             []record.Record `json:"hits"`
	NbHits           int             `json:"nbHits"`
	Page             int             `json:"page"`
	NbPages          int             `json:"nbPages"`
	HitsPerPage      int             `json:"hitsPerPage"`
	Query            string          `json:"query"`
	Params           string          `json:"params,omitempty"`
	ProcessingTimeMS int             `json:"processingTimeMS"`
}

// Client is the capability set of an index service.
//
// DeleteObject and GetObject report a missing record with an error for which
// errors.GetCode returns ErrCodeObjectNotFound.
type Client interface {
	// InitIndex returns a handle for name, creating the index if needed.
	InitIndex(ctx context.Context, name string) (Handle, error)

	SetSettings(ctx context.Context, h Handle, s Settings) error

	// SaveObject fully replaces the record with the same objectID.
	SaveObject(ctx context.Context, h Handle, rec record.Record) error

	DeleteObject(ctx context.Context, h Handle, objectID string) error

	// GetObject fetches a record, limited to attrs when non-empty.
	GetObject(ctx context.Context, h Handle, objectID string, attrs []string) (record.Record, error)

	Search(ctx context.Context, h Handle, query string, p SearchParams) (*SearchResponse, error)

	Close() error
}
