package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/synchronizer"
)

// contentTypeURIPrefix prefixes the URI of every content type resource.
const contentTypeURIPrefix = "algoliasync://content-types/"

// ContentTypeResource is the JSON body of a content type resource.
type ContentTypeResource struct {
	Name                  string   `json:"name"`
	Indexes               []string `json:"indexes"`
	Fields                []string `json:"fields"`
	Taxonomies            []string `json:"taxonomies"`
	InclusionField        string   `json:"inclusion_field,omitempty"`
	SearchableAttributes  []string `json:"searchable_attributes"`
	CustomRanking         []string `json:"custom_ranking,omitempty"`
	AttributesForFaceting []string `json:"attributes_for_faceting,omitempty"`
}

// registerResources registers one resource per content type describing how
// it is indexed.
func (s *Server) registerResources() {
	for _, sync := range s.engine.Registry().All() {
		uri := contentTypeURIPrefix + sync.Name()
		s.mcp.AddResource(
			&mcp.Resource{
				Name:        sync.Name(),
				URI:         uri,
				Description: "Record fields and index settings of the " + sync.Name() + " content type",
				MIMEType:    "application/json",
			},
			s.makeContentTypeHandler(uri),
		)
	}
}

func (s *Server) makeContentTypeHandler(uri string) mcp.ResourceHandler {
	return func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		text, err := s.ReadResource(ctx, uri)
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     text,
				},
			},
		}, nil
	}
}

// ReadResource returns the JSON description of the content type named by uri.
func (s *Server) ReadResource(_ context.Context, uri string) (string, error) {
	name, ok := strings.CutPrefix(uri, contentTypeURIPrefix)
	if !ok || name == "" {
		return "", NewResourceNotFoundError(uri)
	}
	sync, found := s.engine.Registry().Get(name)
	if !found {
		return "", NewResourceNotFoundError(uri)
	}

	data, err := json.MarshalIndent(describeContentType(sync), "", "  ")
	if err != nil {
		return "", MapError(err)
	}
	return string(data), nil
}

func describeContentType(sync *synchronizer.Synchronizer) ContentTypeResource {
	cfg := sync.Type().RecordConfig()
	settings := sync.Type().Settings()
	return ContentTypeResource{
		Name:                  sync.Name(),
		Indexes:               sync.IndexNames(),
		Fields:                nonNil(cfg.FieldKeys()),
		Taxonomies:            nonNil(cfg.TaxonomyKeys()),
		InclusionField:        cfg.InclusionField,
		SearchableAttributes:  nonNil(settings.SearchableAttributes),
		CustomRanking:         settings.CustomRanking,
		AttributesForFaceting: settings.AttributesForFaceting,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
