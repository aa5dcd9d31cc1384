package content

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupStore runs the store on the cgo driver so the SQL stays portable
// across both sqlite drivers.
func setupStore(t *testing.T) *SQLStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "content.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, InitSchema(context.Background(), db))

	store, err := NewSQLStore(db, "en")
	require.NoError(t, err)
	return store
}

func seed(t *testing.T, s *SQLStore) {
	t.Helper()
	ctx := context.Background()
	published := time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC)

	snap := Snapshot{
		Items: []Item{
			{ID: 10, Type: "cocktail", Status: StatusPublish, Title: "Negroni", Body: "<p>Stir</p>", Permalink: "https://example.com/negroni", PublishedAt: published, Locale: "fr"},
			{ID: 11, Type: "cocktail", Status: StatusDraft, Title: "Draft"},
			{ID: 12, Type: "cocktail", Status: StatusPublish, Title: "Martini"},
			{ID: 13, Type: "post", Status: StatusPublish, Title: "News"},
		},
		Terms: []Term{
			{ID: 100, Taxonomy: "spirit", Name: "Gin", Slug: "gin"},
			{ID: 101, Taxonomy: "spirit", Name: "Campari", Slug: "campari"},
			{ID: 200, Taxonomy: "flavour", Name: "Bitter", Slug: "bitter"},
		},
		ItemTerms: map[int64][]int64{
			10: {101, 100, 200},
			11: {100},
			13: {100},
		},
		ItemFields: map[int64]map[string]any{
			10: {"subtitle": "Bitter classic", "video": map[string]any{"url": "https://v/1", "provider": "vimeo"}},
		},
		TermFields: map[int64]map[string]any{
			100: {"icon": "gin.svg"},
		},
		Thumbnails: map[int64]map[string]string{
			10: {SizeSmall: "s.jpg", SizeFull: "f.jpg"},
		},
	}
	require.NoError(t, s.Import(ctx, snap))
}

func TestSQLStore_Item(t *testing.T) {
	s := setupStore(t)
	seed(t, s)
	ctx := context.Background()

	it, err := s.Item(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Negroni", it.Title)
	assert.Equal(t, "cocktail", it.Type)
	assert.True(t, it.Published())
	assert.Equal(t, time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC), it.PublishedAt.UTC())

	_, err = s.Item(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_PublishedItems(t *testing.T) {
	s := setupStore(t)
	seed(t, s)

	items, err := s.PublishedItems(context.Background(), "cocktail")
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, int64(10), items[0].ID)
	assert.Equal(t, int64(12), items[1].ID)
}

func TestSQLStore_PublishedItemsByTerm(t *testing.T) {
	s := setupStore(t)
	seed(t, s)

	// Given: gin is attached to a published cocktail, a draft cocktail and a post
	items, err := s.PublishedItemsByTerm(context.Background(), "cocktail", 100)
	require.NoError(t, err)

	// Then: only the published cocktail is returned
	require.Len(t, items, 1)
	assert.Equal(t, int64(10), items[0].ID)
}

func TestSQLStore_TermsKeepSourceOrder(t *testing.T) {
	s := setupStore(t)
	seed(t, s)

	terms, err := s.Terms(context.Background(), 10, "spirit")
	require.NoError(t, err)

	require.Len(t, terms, 2)
	assert.Equal(t, "Campari", terms[0].Name)
	assert.Equal(t, "Gin", terms[1].Name)
}

func TestSQLStore_Term(t *testing.T) {
	s := setupStore(t)
	seed(t, s)

	term, err := s.Term(context.Background(), 200)
	require.NoError(t, err)
	assert.Equal(t, "flavour", term.Taxonomy)

	_, err = s.Term(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_Field(t *testing.T) {
	s := setupStore(t)
	seed(t, s)
	ctx := context.Background()

	v, ok, err := s.Field(ctx, "subtitle", ItemOwner(10))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Bitter classic", v)

	v, ok, err = s.Field(ctx, "video", ItemOwner(10))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"url": "https://v/1", "provider": "vimeo"}, v)

	v, ok, err = s.Field(ctx, "icon", TermOwner(100))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "gin.svg", v)

	_, ok, err = s.Field(ctx, "missing", ItemOwner(10))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLStore_FieldRawText(t *testing.T) {
	s := setupStore(t)
	_, err := s.db.Exec(`INSERT INTO content_fields (owner_kind, owner_id, key, value) VALUES ('item', 1, 'legacy', 'not json')`)
	require.NoError(t, err)

	v, ok, err := s.Field(context.Background(), "legacy", ItemOwner(1))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "not json", v)
}

func TestSQLStore_Thumbnail(t *testing.T) {
	s := setupStore(t)
	seed(t, s)
	ctx := context.Background()

	url, err := s.Thumbnail(ctx, 10, SizeFull)
	require.NoError(t, err)
	assert.Equal(t, "f.jpg", url)

	url, err = s.Thumbnail(ctx, 10, SizeLarge)
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestSQLStore_Localizer(t *testing.T) {
	s := setupStore(t)
	seed(t, s)
	ctx := context.Background()

	locale, ok, err := s.ItemLocale(ctx, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fr", locale)

	_, ok, err = s.ItemLocale(ctx, 12)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, "en", s.DefaultLocale())
}

func TestSQLStore_SetTermsReplaces(t *testing.T) {
	s := setupStore(t)
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.SetTerms(ctx, 10, 100))

	terms, err := s.Terms(ctx, 10, "spirit")
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "Gin", terms[0].Name)

	flavours, err := s.Terms(ctx, 10, "flavour")
	require.NoError(t, err)
	assert.Empty(t, flavours)
}

func TestOpenSQLite_InMemory(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, "")
	require.NoError(t, err)
	defer db.Close()

	s, err := NewSQLStore(db, "fr")
	require.NoError(t, err)

	require.NoError(t, s.PutItem(ctx, Item{ID: 1, Type: "page", Status: StatusPublish, Title: "About"}))
	require.NoError(t, s.PutThumbnail(ctx, 1, SizeLarge, "l.jpg"))
	require.NoError(t, s.PutField(ctx, ItemOwner(1), "show_in_search", false))

	it, err := s.Item(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "About", it.Title)
	assert.True(t, it.PublishedAt.IsZero())

	v, ok, err := s.Field(ctx, "show_in_search", ItemOwner(1))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, false, v)
}

func TestNewSQLStore_RequiresDB(t *testing.T) {
	_, err := NewSQLStore(nil, "en")
	assert.Error(t, err)
}
