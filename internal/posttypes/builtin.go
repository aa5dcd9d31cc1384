package posttypes

import "github.com/Mill3/1ou2cocktails-algolia-sync/internal/record"

// Post is the blog post type.
func Post() Base {
	return Base{
		TypeName:      "post",
		Fields:        []record.FieldSpec{record.Field("subtitle")},
		Taxonomies:    []record.TaxonomySpec{record.Simple("category"), record.Simple("post_tag")},
		Inclusion:     HiddenFlagField,
		CustomRanking: []string{"desc(timestamp)"},
	}
}

// Page is the static page type.
func Page() Base {
	return Base{
		TypeName:      "page",
		Inclusion:     HiddenFlagField,
		CustomRanking: []string{"asc(post_title)"},
	}
}

// Cocktail is the recipe type.
func Cocktail() Base {
	return Base{
		TypeName: "cocktail",
		Fields: []record.FieldSpec{
			record.Field("subtitle"),
			record.Field("ingredients"),
			record.Field("steps"),
		},
		Taxonomies: []record.TaxonomySpec{
			record.Simple("spirit"),
			record.Simple("flavour"),
			record.Simple("cocktail-types"),
			record.Simple("appearance"),
			record.Simple("thematic"),
			record.Simple("taste"),
			record.Simple("occasion"),
			record.Simple("tool"),
		},
		Inclusion:     HiddenFlagField,
		CustomRanking: []string{"asc(post_title)"},
	}
}

// Eat is the food pairing type. Its restaurant field groups address parts.
func Eat() Base {
	return Base{
		TypeName: "eat",
		Fields: []record.FieldSpec{
			record.Field("subtitle"),
			record.Field("restaurant", "name", "city"),
		},
		Taxonomies: []record.TaxonomySpec{
			record.Simple("thematic"),
			record.WithAttributes("spirit", "color"),
		},
		Inclusion:     HiddenFlagField,
		CustomRanking: []string{"asc(post_title)"},
	}
}

// Video is the video type. Only the embed URL of the video field is kept.
func Video() Base {
	return Base{
		TypeName: "video",
		Fields: []record.FieldSpec{
			record.Field("subtitle"),
			record.Field("video", "url"),
		},
		Taxonomies:    []record.TaxonomySpec{record.Simple("thematic")},
		Inclusion:     HiddenFlagField,
		CustomRanking: []string{"desc(timestamp)"},
	}
}
