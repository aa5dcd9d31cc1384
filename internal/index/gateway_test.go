package index

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/cache"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/content"
	syncerr "github.com/Mill3/1ou2cocktails-algolia-sync/internal/errors"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/logging"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/record"
)

// fakeClient is an in-memory Client that counts calls.
type fakeClient struct {
	mu       sync.Mutex
	objects  map[string]record.Record
	settings map[string]Settings

	inits, sets, saves, deletes, gets, searches atomic.Int32

	failGet    error
	failSearch error
	searchGate chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		objects:  make(map[string]record.Record),
		settings: make(map[string]Settings),
	}
}

func (f *fakeClient) InitIndex(_ context.Context, name string) (Handle, error) {
	f.inits.Add(1)
	return Handle{Name: name}, nil
}

func (f *fakeClient) SetSettings(_ context.Context, h Handle, s Settings) error {
	f.sets.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[h.Name] = s
	return nil
}

func (f *fakeClient) SaveObject(_ context.Context, _ Handle, rec record.Record) error {
	f.saves.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[rec.ObjectID()] = rec
	return nil
}

func (f *fakeClient) DeleteObject(_ context.Context, _ Handle, objectID string) error {
	f.deletes.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[objectID]; !ok {
		return syncerr.New(syncerr.ErrCodeObjectNotFound, "object does not exist", nil)
	}
	delete(f.objects, objectID)
	return nil
}

func (f *fakeClient) GetObject(_ context.Context, _ Handle, objectID string, _ []string) (record.Record, error) {
	f.gets.Add(1)
	if f.failGet != nil {
		return nil, f.failGet
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.objects[objectID]
	if !ok {
		return nil, syncerr.New(syncerr.ErrCodeObjectNotFound, "object does not exist", nil)
	}
	return rec, nil
}

func (f *fakeClient) Search(_ context.Context, _ Handle, query string, p SearchParams) (*SearchResponse, error) {
	f.searches.Add(1)
	if f.searchGate != nil {
		<-f.searchGate
	}
	if f.failSearch != nil {
		return nil, f.failSearch
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := &SearchResponse{Query: query, HitsPerPage: p.HitsPerPage, Params: p.Filters}
	for _, rec := range f.objects {
		resp.Hits = append(resp.Hits, rec)
	}
	resp.NbHits = len(resp.Hits)
	return resp, nil
}

func (f *fakeClient) Close() error { return nil }

type gatewayFixture struct {
	client  *fakeClient
	cache   *cache.MemoryStore
	content *content.SQLStore
	gw      *Gateway
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	ctx := context.Background()

	db, err := content.OpenSQLite(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := content.NewSQLStore(db, "en")
	require.NoError(t, err)
	require.NoError(t, store.Import(ctx, content.Snapshot{
		Items: []content.Item{
			{ID: 1, Type: "cocktail", Status: content.StatusPublish, Title: "Negroni", Body: "Bitter", PublishedAt: time.Unix(1700000000, 0), Locale: "en"},
			{ID: 2, Type: "cocktail", Status: content.StatusPublish, Title: "Spritz", Body: "Bubbly", PublishedAt: time.Unix(1700000100, 0), Locale: "fr"},
		},
	}))

	client := newFakeClient()
	mem := cache.NewMemoryStore(64)
	builder := record.NewBuilder(store, store, store, logging.Discard())
	gw := NewGateway(client, mem, builder, Options{
		ContentType: "cocktail",
		IndexName:   "production_cocktail",
		Locale:      "en",
		Record:      record.Config{ContentType: "cocktail"},
		Settings: Settings{
			SearchableAttributes: []string{"post_title"},
			CustomRanking:        []string{"asc(post_title)"},
			ForwardToReplicas:    true,
		},
	}, nil, logging.Discard())

	return &gatewayFixture{client: client, cache: mem, content: store, gw: gw}
}

func (f *gatewayFixture) item(t *testing.T, id int64) *content.Item {
	t.Helper()
	it, err := f.content.Item(context.Background(), id)
	require.NoError(t, err)
	return it
}

// =============================================================================
// EnsureIndex
// =============================================================================

func TestGateway_EnsureIndex_CachesHandle(t *testing.T) {
	// Given: a fresh gateway
	f := newGatewayFixture(t)
	ctx := context.Background()

	// When: the index is ensured twice
	h1, err := f.gw.EnsureIndex(ctx, false)
	require.NoError(t, err)
	h2, err := f.gw.EnsureIndex(ctx, false)
	require.NoError(t, err)

	// Then: the remote index is initialized once
	assert.Equal(t, "production_cocktail", h1.Name)
	assert.Equal(t, h1, h2)
	assert.Equal(t, int32(1), f.client.inits.Load())
	assert.Equal(t, int32(0), f.client.sets.Load())
}

func TestGateway_EnsureIndex_AppliesSettingsOnRequest(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	_, err := f.gw.EnsureIndex(ctx, false)
	require.NoError(t, err)

	// Settings are pushed even when the handle comes from cache
	_, err = f.gw.EnsureIndex(ctx, true)
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.client.inits.Load())
	assert.Equal(t, int32(1), f.client.sets.Load())
	assert.Equal(t, []string{"asc(post_title)"}, f.client.settings["production_cocktail"].CustomRanking)
}

// =============================================================================
// Save / Delete
// =============================================================================

func TestGateway_Save_InvalidatesCaches(t *testing.T) {
	// Given: cached existence and query entries for the item's locale
	f := newGatewayFixture(t)
	ctx := context.Background()
	require.NoError(t, cache.SetJSON(ctx, f.cache, cache.ExistenceKey("cocktail", 1), true, cache.ExistenceTTL))
	require.NoError(t, cache.SetJSON(ctx, f.cache, cache.QueryKey("production_cocktail", "en"), SearchResponse{}, cache.QueryTTL))

	// When: the item is saved
	rec, err := f.gw.Save(ctx, f.item(t, 1))
	require.NoError(t, err)

	// Then: the record is written and both entries are gone
	assert.Equal(t, "cocktail_1", rec.ObjectID())
	assert.Equal(t, "en", rec.Locale())
	assert.Contains(t, f.client.objects, "cocktail_1")

	_, ok, _ := f.cache.Get(ctx, cache.ExistenceKey("cocktail", 1))
	assert.False(t, ok)
	_, ok, _ = f.cache.Get(ctx, cache.QueryKey("production_cocktail", "en"))
	assert.False(t, ok)
}

func TestGateway_Save_InvalidatesRecordLocale(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	require.NoError(t, cache.SetJSON(ctx, f.cache, cache.QueryKey("production_cocktail", "fr"), SearchResponse{}, cache.QueryTTL))

	_, err := f.gw.Save(ctx, f.item(t, 2))
	require.NoError(t, err)

	_, ok, _ := f.cache.Get(ctx, cache.QueryKey("production_cocktail", "fr"))
	assert.False(t, ok)
}

func TestGateway_Delete(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	_, err := f.gw.Save(ctx, f.item(t, 1))
	require.NoError(t, err)
	require.True(t, f.gw.Exists(ctx, 1))

	require.NoError(t, f.gw.Delete(ctx, 1))
	assert.NotContains(t, f.client.objects, "cocktail_1")

	// Existence was invalidated, so the next check goes remote
	assert.False(t, f.gw.Exists(ctx, 1))
}

func TestGateway_Delete_MissingRecordIsNotAnError(t *testing.T) {
	f := newGatewayFixture(t)

	err := f.gw.Delete(context.Background(), 404)

	assert.NoError(t, err)
	assert.Equal(t, int32(1), f.client.deletes.Load())
}

func TestGateway_Save_ConcurrentSameObject(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	it := f.item(t, 1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.gw.Save(ctx, it)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(8), f.client.saves.Load())
	assert.Len(t, f.client.objects, 1)
	assert.Equal(t, 0, f.gw.locks.Len())
}

// =============================================================================
// Exists
// =============================================================================

func TestGateway_Exists_CachesPositiveOnly(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	// Absent: two remote lookups, nothing cached
	assert.False(t, f.gw.Exists(ctx, 1))
	assert.False(t, f.gw.Exists(ctx, 1))
	assert.Equal(t, int32(2), f.client.gets.Load())

	// Present: one remote lookup, then served from cache
	f.client.objects["cocktail_1"] = record.Record{record.AttrObjectID: "cocktail_1"}
	assert.True(t, f.gw.Exists(ctx, 1))
	assert.True(t, f.gw.Exists(ctx, 1))
	assert.Equal(t, int32(3), f.client.gets.Load())
}

func TestGateway_Exists_FailureReadsAsAbsent(t *testing.T) {
	f := newGatewayFixture(t)
	f.client.objects["cocktail_1"] = record.Record{record.AttrObjectID: "cocktail_1"}
	f.client.failGet = syncerr.RemoteError("service unavailable", nil)

	assert.False(t, f.gw.Exists(context.Background(), 1))

	_, ok, _ := f.cache.Get(context.Background(), cache.ExistenceKey("cocktail", 1))
	assert.False(t, ok)
}

// =============================================================================
// Query
// =============================================================================

func TestGateway_Query_CachesResponse(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	_, err := f.gw.Save(ctx, f.item(t, 1))
	require.NoError(t, err)

	filter := Filter("cocktail", "en")
	first, err := f.gw.Query(ctx, "en", filter)
	require.NoError(t, err)
	second, err := f.gw.Query(ctx, "en", filter)
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.client.searches.Load())
	assert.Equal(t, 1, first.NbHits)
	assert.Equal(t, DefaultHitsPerPage, first.HitsPerPage)
	assert.Equal(t, "", first.Query)
	assert.Equal(t, first.NbHits, second.NbHits)
	assert.Equal(t, "cocktail_1", second.Hits[0].ObjectID())
}

func TestGateway_Query_SaveInvalidates(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	_, err := f.gw.Query(ctx, "en", Filter("cocktail", "en"))
	require.NoError(t, err)
	_, err = f.gw.Save(ctx, f.item(t, 1))
	require.NoError(t, err)

	resp, err := f.gw.Query(ctx, "en", Filter("cocktail", "en"))
	require.NoError(t, err)

	assert.Equal(t, int32(2), f.client.searches.Load())
	assert.Equal(t, 1, resp.NbHits)
}

func TestGateway_Query_DeleteInvalidates(t *testing.T) {
	// Given: a cached query result listing one record
	f := newGatewayFixture(t)
	ctx := context.Background()
	_, err := f.gw.Save(ctx, f.item(t, 1))
	require.NoError(t, err)
	before, err := f.gw.Query(ctx, "en", Filter("cocktail", "en"))
	require.NoError(t, err)
	require.Equal(t, 1, before.NbHits)

	// When: the record is deleted
	require.NoError(t, f.gw.Delete(ctx, 1))

	// Then: the next query goes remote and no longer lists it
	after, err := f.gw.Query(ctx, "en", Filter("cocktail", "en"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.client.searches.Load())
	assert.Zero(t, after.NbHits)
	assert.Empty(t, after.Hits)
}

func TestGateway_Query_ErrorNotCached(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	f.client.failSearch = syncerr.RemoteError("timeout", nil)

	_, err := f.gw.Query(ctx, "en", Filter("cocktail", "en"))
	require.Error(t, err)

	_, ok, _ := f.cache.Get(ctx, cache.QueryKey("production_cocktail", "en"))
	assert.False(t, ok)
}

func TestGateway_Query_CoalescesConcurrentMisses(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	f.client.searchGate = make(chan struct{})

	// Prime the handle so every caller reaches the search
	_, err := f.gw.EnsureIndex(ctx, false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.gw.Query(ctx, "en", Filter("cocktail", "en"))
			assert.NoError(t, err)
		}()
	}

	// Let the callers pile up on the in-flight search before releasing it
	require.Eventually(t, func() bool { return f.client.searches.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(f.client.searchGate)
	wg.Wait()

	assert.Equal(t, int32(1), f.client.searches.Load())
}

// =============================================================================
// Helpers
// =============================================================================

func TestFilter(t *testing.T) {
	assert.Equal(t, "post_type:cocktail AND (locale:fr)", Filter("cocktail", "fr"))
	assert.Equal(t, "post_type:page", Filter("page", ""))
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := NewKeyedMutex()

	unlock := k.Lock("cocktail_1")
	acquired := make(chan struct{})
	go func() {
		u := k.Lock("cocktail_1")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(20 * time.Millisecond):
	}

	// Other keys are not blocked
	k.Lock("cocktail_2")()

	unlock()
	<-acquired
	assert.Eventually(t, func() bool { return k.Len() == 0 }, time.Second, time.Millisecond)
}
