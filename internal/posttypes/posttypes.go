// Package posttypes defines the content types synchronized out of the box
// and builds additional ones from configuration.
package posttypes

import (
	"fmt"
	"sort"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/config"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/index"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/record"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/synchronizer"
)

// HiddenFlagField is the inclusion field of the built-in types.
const HiddenFlagField = "search_hidden"

// baseSearchable are searchable on every type, ahead of custom fields and
// taxonomies.
var baseSearchable = []string{record.AttrTitle, record.AttrContent, record.AttrThumbnail}

// Base implements synchronizer.ContentType from static data. Types needing
// their own record handling embed it and override Extend.
type Base struct {
	record.NopExtender

	TypeName      string
	Fields        []record.FieldSpec
	Taxonomies    []record.TaxonomySpec
	Inclusion     string
	CustomRanking []string
}

var _ synchronizer.ContentType = Base{}

// Name implements synchronizer.ContentType.
func (b Base) Name() string { return b.TypeName }

// RecordConfig implements synchronizer.ContentType.
func (b Base) RecordConfig() record.Config {
	return record.Config{
		ContentType:    b.TypeName,
		Fields:         b.Fields,
		Taxonomies:     b.Taxonomies,
		InclusionField: b.Inclusion,
	}
}

// Settings implements synchronizer.ContentType. Searchable attributes are
// the base attributes, then field keys, then taxonomy names.
func (b Base) Settings() index.Settings {
	cfg := b.RecordConfig()
	searchable := append([]string{}, baseSearchable...)
	searchable = append(searchable, cfg.FieldKeys()...)
	searchable = append(searchable, cfg.TaxonomyKeys()...)

	return index.Settings{
		SearchableAttributes: searchable,
		CustomRanking:        b.CustomRanking,
		ForwardToReplicas:    true,
	}
}

var builtins = map[string]func() synchronizer.ContentType{
	"post":     func() synchronizer.ContentType { return Post() },
	"page":     func() synchronizer.ContentType { return Page() },
	"cocktail": func() synchronizer.ContentType { return Cocktail() },
	"eat":      func() synchronizer.ContentType { return Eat() },
	"video":    func() synchronizer.ContentType { return Video() },
}

// Builtin returns the built-in content type called name.
func Builtin(name string) (synchronizer.ContentType, bool) {
	ctor, ok := builtins[name]
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// BuiltinNames lists the built-in content types, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FromConfig returns the enabled built-in types followed by the custom ones,
// in configuration order.
func FromConfig(cfg config.ContentTypesConfig) ([]synchronizer.ContentType, error) {
	types := make([]synchronizer.ContentType, 0, len(cfg.Enabled)+len(cfg.Custom))
	for _, name := range cfg.Enabled {
		t, ok := Builtin(name)
		if !ok {
			return nil, fmt.Errorf("unknown content type %q (built-in: %v)", name, BuiltinNames())
		}
		types = append(types, t)
	}
	for _, c := range cfg.Custom {
		types = append(types, Custom(c))
	}
	return types, nil
}

// Custom builds a content type declared in configuration. Field descriptors
// with attributes become sub-fields; taxonomy descriptors with attributes
// become term objects.
func Custom(c config.ContentTypeConfig) Base {
	b := Base{
		TypeName:      c.Name,
		Inclusion:     c.InclusionField,
		CustomRanking: c.CustomRanking,
	}
	for _, d := range c.Fields {
		b.Fields = append(b.Fields, record.Field(d.Name, d.Attributes...))
	}
	for _, d := range c.Taxonomies {
		if len(d.Attributes) == 0 {
			b.Taxonomies = append(b.Taxonomies, record.Simple(d.Name))
		} else {
			b.Taxonomies = append(b.Taxonomies, record.WithAttributes(d.Name, d.Attributes...))
		}
	}
	if len(b.CustomRanking) == 0 {
		b.CustomRanking = []string{"asc(post_title)"}
	}
	return b
}
