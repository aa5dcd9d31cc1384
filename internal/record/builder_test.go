package record

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/content"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/logging"
)

func newStore(t *testing.T) *content.SQLStore {
	t.Helper()
	ctx := context.Background()

	db, err := content.OpenSQLite(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := content.NewSQLStore(db, "en")
	require.NoError(t, err)

	require.NoError(t, store.Import(ctx, content.Snapshot{
		Items: []content.Item{{
			ID:          7,
			Type:        "cocktail",
			Status:      content.StatusPublish,
			Title:       "Negroni",
			Body:        "<p>Stir gin, vermouth\nand Campari over ice.</p>",
			Permalink:   "https://1ou2cocktails.com/negroni",
			PublishedAt: time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC),
			Locale:      "fr",
		}},
		Terms: []content.Term{
			{ID: 1, Taxonomy: "spirit", Name: "Gin"},
			{ID: 2, Taxonomy: "spirit", Name: "Campari"},
			{ID: 3, Taxonomy: "thematic", Name: "Apéritif"},
			{ID: 4, Taxonomy: "thematic", Name: "Classique"},
		},
		ItemTerms: map[int64][]int64{7: {2, 1, 4, 3}},
		ItemFields: map[int64]map[string]any{7: {
			"subtitle": "<em>Bitter</em>\nclassic",
			"chef":     map[string]any{"name": "Ada"},
			"video":    map[string]any{"url": "https://v/1", "provider": "vimeo"},
			"blank":    "",
		}},
		TermFields: map[int64]map[string]any{3: {"icon": "sun.svg"}},
		Thumbnails: map[int64]map[string]string{7: {
			content.SizeSmall:   "s.jpg",
			content.SizeLarge:   "l.jpg",
			content.SizeLargest: "xl.jpg",
			content.SizeFull:    "f.jpg",
		}},
	}))
	return store
}

func loadItem(t *testing.T, s *content.SQLStore, id int64) *content.Item {
	t.Helper()
	it, err := s.Item(context.Background(), id)
	require.NoError(t, err)
	return it
}

func cocktailConfig() Config {
	return Config{
		ContentType: "cocktail",
		Fields: []FieldSpec{
			Field("subtitle"),
			Field("chef", "name"),
			Field("video", "url", "provider"),
			Field("missing"),
			Field("blank"),
		},
		Taxonomies: []TaxonomySpec{
			Simple("spirit"),
			WithAttributes("thematic", "icon"),
			Simple("tool"),
		},
	}
}

func TestObjectID(t *testing.T) {
	assert.Equal(t, "cocktail_7", ObjectID("cocktail", 7))
	assert.NotEqual(t, ObjectID("post", 7), ObjectID("page", 7))
	assert.Equal(t, ObjectID("post", 42), ObjectID("post", 42))
}

func TestBuild_BaseFields(t *testing.T) {
	store := newStore(t)
	b := NewBuilder(store, store, store, logging.Discard())

	rec := b.Build(context.Background(), loadItem(t, store, 7), Config{ContentType: "cocktail"}, nil)

	assert.Equal(t, "cocktail_7", rec.ObjectID())
	assert.Equal(t, "Negroni", rec[AttrTitle])
	assert.Equal(t, "xl.jpg", rec[AttrThumbnail])
	assert.Equal(t, map[string]any{"small": "s.jpg", "large": "l.jpg", "largest": "xl.jpg", "full": "f.jpg"}, rec[AttrThumbnailSizes])
	assert.Equal(t, "2024-03-09T18:30:00Z", rec[AttrDate])
	assert.Equal(t, int64(1710009000), rec[AttrTimestamp])
	assert.Equal(t, "https://1ou2cocktails.com/negroni", rec[AttrURL])
	assert.Equal(t, "cocktail", rec[AttrType])
	assert.Equal(t, "Stir gin, vermouth and Campari over ice.", rec[AttrContent])
	assert.Equal(t, "fr", rec.Locale())
}

func TestBuild_ExcerptDerivedFromBody(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	long := "<p>" + strings.Repeat("a", 200) + "</p>"
	require.NoError(t, store.PutItem(ctx, content.Item{ID: 8, Type: "post", Status: content.StatusPublish, Body: long}))

	b := NewBuilder(store, store, nil, logging.Discard())
	rec := b.Build(ctx, loadItem(t, store, 8), Config{ContentType: "post"}, nil)

	assert.Equal(t, strings.Repeat("a", ExcerptLength)+"...", rec[AttrExcerpt])
	assert.Equal(t, strings.Repeat("a", 200), rec[AttrContent])
}

func TestBuild_ExplicitExcerptUntruncated(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutItem(ctx, content.Item{ID: 9, Type: "post", Status: content.StatusPublish,
		Body: "body", Excerpt: "<p>" + strings.Repeat("b", 300) + "</p>"}))

	b := NewBuilder(store, store, nil, logging.Discard())
	rec := b.Build(ctx, loadItem(t, store, 9), Config{ContentType: "post"}, nil)

	assert.Equal(t, strings.Repeat("b", 300), rec[AttrExcerpt])
}

func TestBuild_LocaleOmittedWithoutLocalizer(t *testing.T) {
	store := newStore(t)
	b := NewBuilder(store, store, nil, logging.Discard())

	rec := b.Build(context.Background(), loadItem(t, store, 7), Config{ContentType: "cocktail"}, nil)

	_, ok := rec[AttrLocale]
	assert.False(t, ok)
	assert.False(t, b.Localized())
}

func TestBuild_LocaleFallsBackToDefault(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutItem(ctx, content.Item{ID: 20, Type: "post", Status: content.StatusPublish}))

	b := NewBuilder(store, store, store, logging.Discard())
	rec := b.Build(ctx, loadItem(t, store, 20), Config{ContentType: "post"}, nil)

	assert.Equal(t, "en", rec.Locale())
}

func TestBuild_CustomFieldFlattening(t *testing.T) {
	store := newStore(t)
	b := NewBuilder(store, store, store, logging.Discard())

	rec := b.Build(context.Background(), loadItem(t, store, 7), cocktailConfig(), nil)

	// Plain field normalized
	assert.Equal(t, "Bitter classic", rec["subtitle"])

	// Single sub-field flattens to the parent key
	assert.Equal(t, "Ada", rec["chef"])
	_, nested := rec["chef_name"]
	assert.False(t, nested)

	// Several sub-fields are namespaced, never stored under the parent key
	assert.Equal(t, "https://v/1", rec["video_url"])
	assert.Equal(t, "vimeo", rec["video_provider"])
	_, parent := rec["video"]
	assert.False(t, parent)

	// Absent and empty fields are omitted
	_, ok := rec["missing"]
	assert.False(t, ok)
	_, ok = rec["blank"]
	assert.False(t, ok)
}

func TestBuild_MissingSubFieldIsNil(t *testing.T) {
	store := newStore(t)
	b := NewBuilder(store, store, store, logging.Discard())
	cfg := Config{ContentType: "cocktail", Fields: []FieldSpec{Field("video", "url", "duration")}}

	rec := b.Build(context.Background(), loadItem(t, store, 7), cfg, nil)

	assert.Equal(t, "https://v/1", rec["video_url"])
	v, ok := rec["video_duration"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestBuild_FalsyFieldsOmitted(t *testing.T) {
	// Given: custom fields holding every falsy kind next to truthy ones
	store := newStore(t)
	ctx := context.Background()
	owner := content.ItemOwner(7)
	fields := map[string]any{
		"featured":  false,
		"rating":    0,
		"zero":      "0",
		"tags":      []any{},
		"meta":      map[string]any{},
		"signature": true,
		"abv":       24,
	}
	cfg := Config{ContentType: "cocktail"}
	for key, v := range fields {
		require.NoError(t, store.PutField(ctx, owner, key, v))
		cfg.Fields = append(cfg.Fields, Field(key))
	}
	b := NewBuilder(store, store, store, logging.Discard())

	// When: building the record
	rec := b.Build(ctx, loadItem(t, store, 7), cfg, nil)

	// Then: falsy values are left out, truthy ones kept
	for _, key := range []string{"featured", "rating", "zero", "tags", "meta"} {
		_, ok := rec[key]
		assert.False(t, ok, key)
	}
	assert.Equal(t, true, rec["signature"])
	assert.EqualValues(t, 24, rec["abv"])
}

func TestBuild_Taxonomies(t *testing.T) {
	store := newStore(t)
	b := NewBuilder(store, store, store, logging.Discard())

	rec := b.Build(context.Background(), loadItem(t, store, 7), cocktailConfig(), nil)

	// Simple: names in source order
	assert.Equal(t, []string{"Campari", "Gin"}, rec["spirit"])

	// WithAttributes: objects index-aligned to term order, missing values nil
	assert.Equal(t, []map[string]any{
		{"name": "Classique", "icon": nil},
		{"name": "Apéritif", "icon": "sun.svg"},
	}, rec["thematic"])

	// No terms: key omitted
	_, ok := rec["tool"]
	assert.False(t, ok)
}

func TestBuild_ExtenderRunsBeforeCustomFields(t *testing.T) {
	store := newStore(t)
	b := NewBuilder(store, store, store, logging.Discard())

	ext := ExtenderFunc(func(_ context.Context, rec Record, item *content.Item) {
		rec["initial"] = item.Title[:1]
		rec["subtitle"] = "overwritten later"
		rec[AttrTitle] = "NEGRONI"
	})

	rec := b.Build(context.Background(), loadItem(t, store, 7), cocktailConfig(), ext)

	assert.Equal(t, "N", rec["initial"])
	assert.Equal(t, "NEGRONI", rec[AttrTitle])
	assert.Equal(t, "Bitter classic", rec["subtitle"])
}

func TestBuild_Deterministic(t *testing.T) {
	store := newStore(t)
	b := NewBuilder(store, store, store, logging.Discard())
	item := loadItem(t, store, 7)

	first, err := json.Marshal(b.Build(context.Background(), item, cocktailConfig(), NopExtender{}))
	require.NoError(t, err)
	second, err := json.Marshal(b.Build(context.Background(), item, cocktailConfig(), NopExtender{}))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

// failingSource breaks every lookup.
type failingSource struct{ content.Source }

func (failingSource) Thumbnail(context.Context, int64, string) (string, error) {
	return "", errors.New("media offline")
}

func (failingSource) Terms(context.Context, int64, string) ([]content.Term, error) {
	return nil, errors.New("terms offline")
}

type failingFields struct{}

func (failingFields) Field(context.Context, string, content.Owner) (any, bool, error) {
	return nil, false, errors.New("fields offline")
}

func TestBuild_BestEffortOnSourceFailures(t *testing.T) {
	b := NewBuilder(failingSource{}, failingFields{}, nil, logging.Discard())
	item := &content.Item{ID: 3, Type: "post", Title: "Still indexed", Body: "text"}

	rec := b.Build(context.Background(), item, cocktailConfig(), nil)

	assert.Equal(t, "post_3", rec.ObjectID())
	assert.Equal(t, "Still indexed", rec[AttrTitle])
	assert.Equal(t, "", rec[AttrThumbnail])
	_, ok := rec["subtitle"]
	assert.False(t, ok)
	_, ok = rec["spirit"]
	assert.False(t, ok)
}

func TestConfigKeys(t *testing.T) {
	cfg := cocktailConfig()
	assert.Equal(t, []string{"subtitle", "chef", "video_url", "video_provider", "missing", "blank"}, cfg.FieldKeys())
	assert.Equal(t, []string{"spirit", "thematic", "tool"}, cfg.TaxonomyKeys())
}
