package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ContentTypesConfig selects built-in content types and declares extra ones.
type ContentTypesConfig struct {
	// Enabled lists the built-in content types to register.
	Enabled []string `yaml:"enabled" json:"enabled"`

	// Custom declares additional content types without code.
	Custom []ContentTypeConfig `yaml:"custom" json:"custom,omitempty"`
}

// ContentTypeConfig declares a content type entirely in configuration.
type ContentTypeConfig struct {
	Name           string       `yaml:"name" json:"name"`
	InclusionField string       `yaml:"inclusion_field" json:"inclusion_field,omitempty"`
	Fields         []Descriptor `yaml:"fields" json:"fields,omitempty"`
	Taxonomies     []Descriptor `yaml:"taxonomies" json:"taxonomies,omitempty"`
	CustomRanking  []string     `yaml:"custom_ranking" json:"custom_ranking,omitempty"`
}

// Descriptor names a custom field or taxonomy with optional sub-attributes.
//
// In YAML a bare string is a plain descriptor and a single-key mapping carries
// attributes:
//
//	fields:
//	  - subtitle
//	  - video: [url, provider]
type Descriptor struct {
	Name       string   `json:"name"`
	Attributes []string `json:"attributes,omitempty"`
}

// UnmarshalYAML accepts the scalar and single-key mapping forms.
func (d *Descriptor) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		d.Name = node.Value
		d.Attributes = nil
		return nil

	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: descriptor mapping must have exactly one key", node.Line)
		}
		var attrs []string
		if err := node.Content[1].Decode(&attrs); err != nil {
			return fmt.Errorf("line %d: descriptor attributes: %w", node.Line, err)
		}
		d.Name = node.Content[0].Value
		d.Attributes = attrs
		return nil

	default:
		return fmt.Errorf("line %d: descriptor must be a string or a mapping", node.Line)
	}
}

// MarshalYAML writes the shortest form.
func (d Descriptor) MarshalYAML() (any, error) {
	if len(d.Attributes) == 0 {
		return d.Name, nil
	}
	return map[string][]string{d.Name: d.Attributes}, nil
}

func (c ContentTypesConfig) validate() error {
	seen := make(map[string]bool)
	for _, name := range c.Enabled {
		if seen[name] {
			return fmt.Errorf("content_types.enabled lists %q twice", name)
		}
		seen[name] = true
	}

	for i, ct := range c.Custom {
		if ct.Name == "" {
			return fmt.Errorf("content_types.custom[%d]: name is required", i)
		}
		if seen[ct.Name] {
			return fmt.Errorf("content_types.custom[%d]: %q is already registered", i, ct.Name)
		}
		seen[ct.Name] = true

		for _, d := range append(append([]Descriptor{}, ct.Fields...), ct.Taxonomies...) {
			if d.Name == "" {
				return fmt.Errorf("content_types.custom[%d]: empty field or taxonomy name", i)
			}
		}
	}
	return nil
}
