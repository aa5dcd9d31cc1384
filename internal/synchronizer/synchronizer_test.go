package synchronizer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/cache"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/content"
	syncerr "github.com/Mill3/1ou2cocktails-algolia-sync/internal/errors"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/events"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/index"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/logging"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/record"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/store"
)

const (
	termGin   = 10
	termRound = 20
)

// testType indexes cocktails and tags every record it extends.
type testType struct{}

func (testType) Name() string { return "cocktail" }

func (testType) RecordConfig() record.Config {
	return record.Config{
		ContentType:    "cocktail",
		Fields:         []record.FieldSpec{record.Field("subtitle")},
		Taxonomies:     []record.TaxonomySpec{record.Simple("spirit")},
		InclusionField: "show_in_search",
	}
}

func (testType) Settings() index.Settings {
	return index.Settings{
		SearchableAttributes: []string{"post_title", "subtitle", "spirit"},
		CustomRanking:        []string{"asc(post_title)"},
		ForwardToReplicas:    true,
	}
}

func (testType) Extend(_ context.Context, rec record.Record, _ *content.Item) {
	rec["extended"] = true
}

// countingClient records the objectIDs written through it.
type countingClient struct {
	index.Client

	mu       sync.Mutex
	saved    []string
	deleted  []string
	searches int
	settings int
}

func (c *countingClient) SaveObject(ctx context.Context, h index.Handle, rec record.Record) error {
	c.mu.Lock()
	c.saved = append(c.saved, rec.ObjectID())
	c.mu.Unlock()
	return c.Client.SaveObject(ctx, h, rec)
}

func (c *countingClient) DeleteObject(ctx context.Context, h index.Handle, objectID string) error {
	c.mu.Lock()
	c.deleted = append(c.deleted, objectID)
	c.mu.Unlock()
	return c.Client.DeleteObject(ctx, h, objectID)
}

func (c *countingClient) Search(ctx context.Context, h index.Handle, q string, p index.SearchParams) (*index.SearchResponse, error) {
	c.mu.Lock()
	c.searches++
	c.mu.Unlock()
	return c.Client.Search(ctx, h, q, p)
}

func (c *countingClient) SetSettings(ctx context.Context, h index.Handle, s index.Settings) error {
	c.mu.Lock()
	c.settings++
	c.mu.Unlock()
	return c.Client.SetSettings(ctx, h, s)
}

func (c *countingClient) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved, c.deleted, c.searches, c.settings = nil, nil, 0, 0
}

type fixture struct {
	content *content.SQLStore
	client  *countingClient
	sync    *Synchronizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithIndexes(t, func(string) string { return "test_cocktail" })
}

// newFixtureWithIndexes builds the fixture with indexName resolving the index
// of each locale.
func newFixtureWithIndexes(t *testing.T, indexName func(string) string) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := content.OpenSQLite(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	src, err := content.NewSQLStore(db, "en")
	require.NoError(t, err)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, src.Import(ctx, content.Snapshot{
		Items: []content.Item{
			{ID: 1, Type: "cocktail", Status: content.StatusPublish, Title: "Negroni", Locale: "fr", PublishedAt: at},
			{ID: 2, Type: "cocktail", Status: content.StatusPublish, Title: "Hidden Sour", Locale: "fr", PublishedAt: at},
			{ID: 3, Type: "cocktail", Status: content.StatusDraft, Title: "Draft Fizz", Locale: "fr", PublishedAt: at},
			{ID: 4, Type: "post", Status: content.StatusPublish, Title: "Gin history", Locale: "fr", PublishedAt: at},
			{ID: 5, Type: "cocktail", Status: content.StatusPublish, Title: "Martini", PublishedAt: at},
			{ID: 6, Type: "cocktail", Status: content.StatusPublish, Title: "Autosaved", Autosave: true, PublishedAt: at},
		},
		Terms: []content.Term{
			{ID: termGin, Taxonomy: "spirit", Name: "Gin"},
			{ID: termRound, Taxonomy: "glass", Name: "Round"},
		},
		ItemTerms: map[int64][]int64{
			1: {termGin, termRound},
			2: {termGin},
			3: {termGin},
			4: {termGin},
			5: {termGin},
		},
		ItemFields: map[int64]map[string]any{
			1: {"subtitle": "<b>Bitter</b>", "show_in_search": true},
			2: {"show_in_search": false},
		},
	}))

	bleveClient, err := store.NewBleveClient("", logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bleveClient.Close() })
	client := &countingClient{Client: bleveClient}

	s, err := New(Config{
		Type:          testType{},
		Source:        src,
		Fields:        src,
		Builder:       record.NewBuilder(src, src, src, logging.Discard()),
		Client:        client,
		Cache:         cache.NewMemoryStore(128),
		IndexName:     indexName,
		Locales:       []string{"en", "fr"},
		DefaultLocale: "en",
		Logger:        logging.Discard(),
	})
	require.NoError(t, err)

	return &fixture{content: src, client: client, sync: s}
}

func (f *fixture) remote(t *testing.T, objectID string) record.Record {
	t.Helper()
	return f.remoteIn(t, "test_cocktail", objectID)
}

func (f *fixture) remoteIn(t *testing.T, indexName, objectID string) record.Record {
	t.Helper()
	rec, err := f.client.GetObject(context.Background(), index.Handle{Name: indexName}, objectID, nil)
	if syncerr.HasCode(err, syncerr.ErrCodeObjectNotFound) {
		return nil
	}
	require.NoError(t, err)
	return rec
}

// =============================================================================
// Item lifecycle
// =============================================================================

func TestHandleItemSaved_PublishedItemIsSaved(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.sync.HandleItemSaved(context.Background(), 1))

	assert.Equal(t, []string{"cocktail_1"}, f.client.saved)
	rec := f.remote(t, "cocktail_1")
	require.NotNil(t, rec)
	assert.Equal(t, true, rec["extended"])
	assert.Equal(t, "Bitter", rec["subtitle"])
	assert.Equal(t, "fr", rec["locale"])
	assert.Equal(t, []any{"Gin"}, rec["spirit"])
}

func TestHandleItemSaved_UnpublishDeletes(t *testing.T) {
	// Given: a published, indexed item
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sync.HandleItemSaved(ctx, 1))
	f.client.reset()

	// When: it transitions to draft
	item, err := f.content.Item(ctx, 1)
	require.NoError(t, err)
	item.Status = content.StatusDraft
	require.NoError(t, f.content.PutItem(ctx, *item))
	require.NoError(t, f.sync.HandleItemSaved(ctx, 1))

	// Then: a delete is issued, not a save
	assert.Empty(t, f.client.saved)
	assert.Equal(t, []string{"cocktail_1"}, f.client.deleted)
	assert.Nil(t, f.remote(t, "cocktail_1"))
}

func TestHandleItemSaved_LocaleChangeMovesRecord(t *testing.T) {
	// Given: one index per locale and an item indexed under fr
	f := newFixtureWithIndexes(t, func(locale string) string { return "test_cocktail_" + locale })
	ctx := context.Background()
	require.NoError(t, f.sync.HandleItemSaved(ctx, 1))
	require.NotNil(t, f.remoteIn(t, "test_cocktail_fr", "cocktail_1"))
	fr, err := f.sync.Query(ctx, "fr")
	require.NoError(t, err)
	require.Len(t, fr.Hits, 1)

	// When: its locale changes to en and it is saved again
	item, err := f.content.Item(ctx, 1)
	require.NoError(t, err)
	item.Locale = "en"
	require.NoError(t, f.content.PutItem(ctx, *item))
	require.NoError(t, f.sync.HandleItemSaved(ctx, 1))

	// Then: the record lives in the en index only and fr no longer lists it
	assert.Nil(t, f.remoteIn(t, "test_cocktail_fr", "cocktail_1"))
	rec := f.remoteIn(t, "test_cocktail_en", "cocktail_1")
	require.NotNil(t, rec)
	assert.Equal(t, "en", rec["locale"])

	fr, err = f.sync.Query(ctx, "fr")
	require.NoError(t, err)
	assert.Empty(t, fr.Hits)
}

func TestHandleItemSaved_SharedIndexSaveDoesNotDelete(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.sync.HandleItemSaved(context.Background(), 1))

	// en and fr share test_cocktail, which the save itself wrote
	assert.Empty(t, f.client.deleted)
	assert.NotNil(t, f.remote(t, "cocktail_1"))
}

func TestHandleItemSaved_InclusionPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Explicitly hidden: deleted even though published
	require.NoError(t, f.sync.HandleItemSaved(ctx, 2))
	assert.Empty(t, f.client.saved)
	assert.Equal(t, []string{"cocktail_2"}, f.client.deleted)

	// Field absent: included by default
	require.NoError(t, f.sync.HandleItemSaved(ctx, 5))
	assert.Equal(t, []string{"cocktail_5"}, f.client.saved)
	assert.Equal(t, "en", f.remote(t, "cocktail_5")["locale"])
}

func TestHandleItemSaved_Ignored(t *testing.T) {
	tests := []struct {
		name string
		id   int64
	}{
		{"autosave", 6},
		{"other content type", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			require.NoError(t, f.sync.HandleItemSaved(context.Background(), tt.id))

			assert.Empty(t, f.client.saved)
			assert.Empty(t, f.client.deleted)
		})
	}
}

func TestHandleItemSaved_UnknownItemIsRemoved(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.sync.HandleItemSaved(context.Background(), 999))

	// Both locales share one index, so it is hit once
	assert.Equal(t, []string{"cocktail_999"}, f.client.deleted)
}

func TestHandleItemDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sync.HandleItemSaved(ctx, 1))

	require.NoError(t, f.sync.HandleItemDeleted(ctx, 1))

	assert.Nil(t, f.remote(t, "cocktail_1"))
}

// =============================================================================
// Term cascade
// =============================================================================

func TestHandleTermChanged_ResavesAssociatedPublishedItems(t *testing.T) {
	f := newFixture(t)

	saved, err := f.sync.HandleTermChanged(context.Background(), termGin)

	require.NoError(t, err)
	assert.Equal(t, 2, saved)
	// Item 2 is published and carries the term but is hidden from search, so
	// the cascade skips it instead of re-saving it. Drafts, other types and
	// items without the term are never listed.
	assert.Equal(t, []string{"cocktail_1", "cocktail_5"}, f.client.saved)
	assert.Empty(t, f.client.deleted)
}

func TestHandleTermChanged_IgnoresOtherTaxonomiesAndUnknownTerms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.sync.HandleTermChanged(ctx, termRound)
	require.NoError(t, err)
	assert.Zero(t, saved)

	saved, err = f.sync.HandleTermChanged(ctx, 404)
	require.NoError(t, err)
	assert.Zero(t, saved)

	assert.Empty(t, f.client.saved)
}

func TestHandle_DispatchesEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sync.Handle(ctx, events.ItemSaved("cocktail", 1)))
	require.NoError(t, f.sync.Handle(ctx, events.ItemDeleted("post", 4)))
	require.NoError(t, f.sync.Handle(ctx, events.TermEdited(termGin)))
	require.NoError(t, f.sync.Handle(ctx, events.ItemDeleted("cocktail", 5)))

	assert.Equal(t, []string{"cocktail_1", "cocktail_1", "cocktail_5"}, f.client.saved)
	assert.Equal(t, []string{"cocktail_5"}, f.client.deleted)
}

// =============================================================================
// Inclusion policy
// =============================================================================

func TestShouldIndex_NoInclusionField(t *testing.T) {
	f := newFixture(t)
	f.sync.recordCfg.InclusionField = ""

	assert.True(t, f.sync.ShouldIndex(context.Background(), &content.Item{ID: 2}))
}

// =============================================================================
// Bulk
// =============================================================================

func TestBulk_Push(t *testing.T) {
	f := newFixture(t)

	results, err := f.sync.Bulk(context.Background(), ActionPush, []int64{1, 2, 4, 999})

	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, OutcomeSaved, results[0].Outcome)
	assert.Equal(t, OutcomeSkipped, results[1].Outcome)
	assert.Equal(t, "hidden from search", results[1].Reason)
	assert.Equal(t, OutcomeSkipped, results[2].Outcome)
	assert.Equal(t, OutcomeSkipped, results[3].Outcome)
	assert.Equal(t, []string{"cocktail_1"}, f.client.saved)
}

func TestBulk_Remove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sync.Bulk(ctx, ActionPush, []int64{1, 5})
	require.NoError(t, err)

	results, err := f.sync.Bulk(ctx, ActionRemove, []int64{1, 5})

	require.NoError(t, err)
	assert.Equal(t, OutcomeRemoved, results[0].Outcome)
	assert.Equal(t, OutcomeRemoved, results[1].Outcome)
	assert.Nil(t, f.remote(t, "cocktail_1"))
	assert.Nil(t, f.remote(t, "cocktail_5"))
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("push")
	require.NoError(t, err)
	assert.Equal(t, ActionPush, a)

	a, err = ParseAction("wpalgolia_index_delete")
	require.NoError(t, err)
	assert.Equal(t, ActionRemove, a)

	_, err = ParseAction("purge")
	assert.Error(t, err)

	_, err = newFixture(t).sync.Bulk(context.Background(), "purge", []int64{1})
	assert.Error(t, err)
}

// =============================================================================
// Reindex / settings
// =============================================================================

func TestReindex_SkipsHiddenAndContinues(t *testing.T) {
	f := newFixture(t)
	var seen []Progress

	res, err := f.sync.Reindex(context.Background(), func(p Progress) { seen = append(seen, p) })

	require.NoError(t, err)
	// Published cocktails: 1, 2 (hidden), 5, 6 (autosave flag is irrelevant here)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 3, res.Saved)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Failed)

	require.Len(t, seen, 4)
	assert.Equal(t, OutcomeSkipped, seen[1].Result.Outcome)
	assert.Equal(t, int64(5), seen[2].Result.ID)
	assert.Equal(t, OutcomeSaved, seen[2].Result.Outcome)
	assert.Equal(t, "test_cocktail", seen[2].IndexName)
	assert.Equal(t, 4, seen[3].Current)
}

func TestReindex_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.sync.Reindex(ctx, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.client.saved)
}

func TestSetSettings(t *testing.T) {
	f := newFixture(t)

	names, err := f.sync.SetSettings(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"test_cocktail"}, names)
	assert.Equal(t, 1, f.client.settings)

	names, err = f.sync.SetSettings(context.Background(), "fr")
	require.NoError(t, err)
	assert.Equal(t, []string{"test_cocktail"}, names)
	assert.Equal(t, 2, f.client.settings)
}

// =============================================================================
// Status / query
// =============================================================================

func TestCheckStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty := f.sync.CheckStatus(ctx, nil)
	assert.False(t, empty.Success)
	assert.Equal(t, StatusErrNoItems, empty.Error)

	require.NoError(t, f.sync.HandleItemSaved(ctx, 1))
	resp := f.sync.CheckStatus(ctx, []int64{1, 3})

	require.True(t, resp.Success)
	assert.Equal(t, "cocktail", resp.Data.Type)
	assert.Equal(t, []ItemStatus{{ID: 1, RecordExist: true}, {ID: 3, RecordExist: false}}, resp.Data.Items)
}

func TestQuery_ScopedByLocaleAndCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sync.Bulk(ctx, ActionPush, []int64{1, 5})
	require.NoError(t, err)
	f.client.reset()

	fr, err := f.sync.Query(ctx, "fr")
	require.NoError(t, err)
	require.Len(t, fr.Hits, 1)
	assert.Equal(t, "cocktail_1", fr.Hits[0].ObjectID())

	// Empty locale means the default locale
	en, err := f.sync.Query(ctx, "")
	require.NoError(t, err)
	require.Len(t, en.Hits, 1)
	assert.Equal(t, "cocktail_5", en.Hits[0].ObjectID())

	_, err = f.sync.Query(ctx, "fr")
	require.NoError(t, err)
	assert.Equal(t, 2, f.client.searches)

	// A save invalidates that locale's cached result
	require.NoError(t, f.sync.HandleItemSaved(ctx, 1))
	_, err = f.sync.Query(ctx, "fr")
	require.NoError(t, err)
	assert.Equal(t, 3, f.client.searches)
}

func TestHandleItemDeleted_InvalidatesEveryLocaleQuery(t *testing.T) {
	// Given: cached query results for both locales
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sync.Bulk(ctx, ActionPush, []int64{1, 5})
	require.NoError(t, err)
	for _, locale := range []string{"en", "fr"} {
		_, err := f.sync.Query(ctx, locale)
		require.NoError(t, err)
	}
	f.client.reset()

	// When: the fr item is deleted
	require.NoError(t, f.sync.HandleItemDeleted(ctx, 1))

	// Then: both locales query remotely again and fr is empty
	fr, err := f.sync.Query(ctx, "fr")
	require.NoError(t, err)
	assert.Empty(t, fr.Hits)
	en, err := f.sync.Query(ctx, "en")
	require.NoError(t, err)
	require.Len(t, en.Hits, 1)
	assert.Equal(t, 2, f.client.searches)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{Type: testType{}})
	assert.Error(t, err)
}
