// Package record builds the flat index records sent to the search service.
package record

import (
	"context"
	"strconv"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/content"
)

// Record attribute names shared with the front-end search UI.
const (
	AttrObjectID       = "objectID"
	AttrTitle          = "post_title"
	AttrThumbnail      = "post_thumbnail"
	AttrThumbnailSizes = "post_thumbnail_sizes"
	AttrDate           = "date"
	AttrTimestamp      = "timestamp"
	AttrExcerpt        = "excerpt"
	AttrContent        = "content"
	AttrURL            = "url"
	AttrType           = "post_type"
	AttrLocale         = "locale"
)

// ExcerptLength is the rune length of excerpts derived from the body.
const ExcerptLength = 125

// Record is the flat document stored in the index.
type Record map[string]any

// ObjectID returns the record's objectID, or "" when unset.
func (r Record) ObjectID() string {
	id, _ := r[AttrObjectID].(string)
	return id
}

// Locale returns the record's locale, or "" when unset.
func (r Record) Locale() string {
	l, _ := r[AttrLocale].(string)
	return l
}

// ObjectID derives the index identifier of a content item: {type}_{id}.
func ObjectID(contentType string, id int64) string {
	return contentType + "_" + strconv.FormatInt(id, 10)
}

// FieldSpec names a custom field to copy into the record. With no
// sub-fields the value is stored under Key. With one sub-field that
// sub-value is stored under Key; with several each is stored under
// Key_sub.
type FieldSpec struct {
	Key       string
	SubFields []string
}

// Field is shorthand for a FieldSpec.
func Field(key string, subFields ...string) FieldSpec {
	return FieldSpec{Key: key, SubFields: subFields}
}

// TaxonomySpec names a taxonomy whose terms are copied into the record.
// It is either Simple (term names only) or WithAttributes (one object per
// term holding the name plus the listed term custom fields).
type TaxonomySpec struct {
	Name       string
	Attributes []string
}

// Simple describes a taxonomy stored as a list of term names.
func Simple(name string) TaxonomySpec {
	return TaxonomySpec{Name: name}
}

// WithAttributes describes a taxonomy stored as a list of term objects.
func WithAttributes(name string, attributes ...string) TaxonomySpec {
	return TaxonomySpec{Name: name, Attributes: attributes}
}

// HasAttributes reports whether this is the WithAttributes variant.
func (t TaxonomySpec) HasAttributes() bool {
	return len(t.Attributes) > 0
}

// Config is the immutable per content type record layout.
type Config struct {
	ContentType string
	Fields      []FieldSpec
	Taxonomies  []TaxonomySpec

	// InclusionField is the boolean custom field gating inclusion.
	InclusionField string
}

// FieldKeys returns the record attributes produced by Fields, in order.
func (c Config) FieldKeys() []string {
	var keys []string
	for _, f := range c.Fields {
		if len(f.SubFields) > 1 {
			for _, sub := range f.SubFields {
				keys = append(keys, f.Key+"_"+sub)
			}
			continue
		}
		keys = append(keys, f.Key)
	}
	return keys
}

// TaxonomyKeys returns the taxonomy attribute names, in order.
func (c Config) TaxonomyKeys() []string {
	keys := make([]string, 0, len(c.Taxonomies))
	for _, t := range c.Taxonomies {
		keys = append(keys, t.Name)
	}
	return keys
}

// Extender customizes records of one content type after the base fields
// are set. It may add or overwrite any attribute.
type Extender interface {
	Extend(ctx context.Context, rec Record, item *content.Item)
}

// NopExtender leaves records unchanged.
type NopExtender struct{}

// Extend implements Extender.
func (NopExtender) Extend(context.Context, Record, *content.Item) {}

// ExtenderFunc adapts a function to Extender.
type ExtenderFunc func(ctx context.Context, rec Record, item *content.Item)

// Extend implements Extender.
func (f ExtenderFunc) Extend(ctx context.Context, rec Record, item *content.Item) {
	f(ctx, rec, item)
}
