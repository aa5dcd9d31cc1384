package index

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/cache"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/content"
	syncerr "github.com/Mill3/1ou2cocktails-algolia-sync/internal/errors"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/logging"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/record"
)

// DefaultHitsPerPage is large enough to return a whole index in one page.
const DefaultHitsPerPage = 9999

// Options describe the logical index a Gateway owns.
type Options struct {
	ContentType string
	IndexName   string

	// Locale is the locale served by this gateway, "" when content is not
	// localized.
	Locale string

	Record   record.Config
	Extender record.Extender
	Settings Settings

	HitsPerPage int
}

// Gateway owns one logical index (content type x locale) and fronts every
// remote call with the cache.
//
// Save and Delete hold a per-objectID lock so concurrent writes of the same
// item in this process are serialized. Writers in other processes still race
// and the last remote write wins.
type Gateway struct {
	client  Client
	cache   cache.Store
	builder *record.Builder
	opts    Options
	locks   *KeyedMutex
	group   singleflight.Group
	logger  *slog.Logger
}

// NewGateway creates a Gateway. locks may be shared between gateways of the
// same content type; nil allocates a private one.
func NewGateway(client Client, store cache.Store, builder *record.Builder, opts Options, locks *KeyedMutex, logger *slog.Logger) *Gateway {
	if opts.HitsPerPage <= 0 {
		opts.HitsPerPage = DefaultHitsPerPage
	}
	if opts.Extender == nil {
		opts.Extender = record.NopExtender{}
	}
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &Gateway{
		client:  client,
		cache:   store,
		builder: builder,
		opts:    opts,
		locks:   locks,
		logger: logging.OrDefault(logger).With(
			slog.String("content_type", opts.ContentType),
			slog.String("index", opts.IndexName)),
	}
}

// IndexName returns the remote index name.
func (g *Gateway) IndexName() string { return g.opts.IndexName }

// Locale returns the locale served by this gateway.
func (g *Gateway) Locale() string { return g.opts.Locale }

// EnsureIndex returns the index handle, reusing the cached one when present.
// Settings are pushed only when applySettings is set.
func (g *Gateway) EnsureIndex(ctx context.Context, applySettings bool) (Handle, error) {
	key := cache.HandleKey(g.opts.IndexName)

	var h Handle
	ok, err := cache.GetJSON(ctx, g.cache, key, &h)
	if err != nil {
		g.logger.Warn("handle_cache_read_failed", slog.String("error", err.Error()))
	}

	if !ok || h.Name == "" {
		h, err = g.client.InitIndex(ctx, g.opts.IndexName)
		if err != nil {
			return Handle{}, fmt.Errorf("init index %s: %w", g.opts.IndexName, err)
		}
		if err := cache.SetJSON(ctx, g.cache, key, h, cache.HandleTTL); err != nil {
			g.logger.Warn("handle_cache_write_failed", slog.String("error", err.Error()))
		}
	}

	if applySettings {
		if err := g.client.SetSettings(ctx, h, g.opts.Settings); err != nil {
			return Handle{}, fmt.Errorf("set settings on %s: %w", g.opts.IndexName, err)
		}
		g.logger.Info("index_settings_applied")
	}

	return h, nil
}

// Save builds the record for item and fully replaces the remote record.
// Cached existence and query results are invalidated before the write.
func (g *Gateway) Save(ctx context.Context, item *content.Item) (record.Record, error) {
	rec := g.builder.Build(ctx, item, g.opts.Record, g.opts.Extender)
	objectID := rec.ObjectID()

	unlock := g.locks.Lock(objectID)
	defer unlock()

	if err := g.invalidate(ctx, item.ID, rec.Locale()); err != nil {
		return nil, err
	}

	h, err := g.EnsureIndex(ctx, false)
	if err != nil {
		return nil, err
	}

	if err := g.client.SaveObject(ctx, h, rec); err != nil {
		return nil, fmt.Errorf("save %s: %w", objectID, err)
	}

	g.logger.Debug("record_saved", slog.String("object_id", objectID))
	return rec, nil
}

// Delete removes the remote record of contentID. A record that does not exist
// is not an error.
func (g *Gateway) Delete(ctx context.Context, contentID int64) error {
	objectID := record.ObjectID(g.opts.ContentType, contentID)

	unlock := g.locks.Lock(objectID)
	defer unlock()

	h, err := g.EnsureIndex(ctx, false)
	if err != nil {
		return err
	}

	err = g.client.DeleteObject(ctx, h, objectID)
	if syncerr.HasCode(err, syncerr.ErrCodeObjectNotFound) {
		err = nil
	}

	if cerr := g.invalidate(ctx, contentID, ""); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", objectID, err)
	}

	g.logger.Debug("record_deleted", slog.String("object_id", objectID))
	return nil
}

// Exists reports whether the remote record of contentID exists. Only positive
// answers are cached; any failure reads as "absent".
func (g *Gateway) Exists(ctx context.Context, contentID int64) bool {
	key := cache.ExistenceKey(g.opts.ContentType, contentID)

	var exists bool
	if ok, err := cache.GetJSON(ctx, g.cache, key, &exists); err == nil && ok && exists {
		return true
	}

	h, err := g.EnsureIndex(ctx, false)
	if err != nil {
		g.logger.Debug("exists_check_failed", slog.Int64("item_id", contentID), slog.String("error", err.Error()))
		return false
	}

	objectID := record.ObjectID(g.opts.ContentType, contentID)
	if _, err := g.client.GetObject(ctx, h, objectID, []string{record.AttrObjectID}); err != nil {
		g.logger.Debug("exists_check_failed", slog.String("object_id", objectID), slog.String("error", err.Error()))
		return false
	}

	if err := cache.SetJSON(ctx, g.cache, key, true, cache.ExistenceTTL); err != nil {
		g.logger.Warn("existence_cache_write_failed", slog.String("error", err.Error()))
	}
	return true
}

// Query returns every record matching filter, from cache when possible.
// Concurrent misses for the same locale share one remote search.
func (g *Gateway) Query(ctx context.Context, locale, filter string) (*SearchResponse, error) {
	key := cache.QueryKey(g.opts.IndexName, locale)

	var cached SearchResponse
	if ok, err := cache.GetJSON(ctx, g.cache, key, &cached); err != nil {
		g.logger.Warn("query_cache_read_failed", slog.String("error", err.Error()))
	} else if ok {
		return &cached, nil
	}

	v, err, _ := g.group.Do(key, func() (any, error) {
		h, err := g.EnsureIndex(ctx, false)
		if err != nil {
			return nil, err
		}
		resp, err := g.client.Search(ctx, h, "", SearchParams{
			Filters:     filter,
			HitsPerPage: g.opts.HitsPerPage,
		})
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", g.opts.IndexName, err)
		}
		if err := cache.SetJSON(ctx, g.cache, key, resp, cache.QueryTTL); err != nil {
			g.logger.Warn("query_cache_write_failed", slog.String("error", err.Error()))
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SearchResponse), nil
}

// Invalidate drops the cached existence of contentID and this gateway's
// query result without touching the remote index.
func (g *Gateway) Invalidate(ctx context.Context, contentID int64) error {
	return g.invalidate(ctx, contentID, "")
}

// invalidate drops the existence entry of contentID and the query entries of
// this gateway's locale and recordLocale.
func (g *Gateway) invalidate(ctx context.Context, contentID int64, recordLocale string) error {
	keys := []string{
		cache.ExistenceKey(g.opts.ContentType, contentID),
		cache.QueryKey(g.opts.IndexName, g.opts.Locale),
	}
	if recordLocale != "" && recordLocale != g.opts.Locale {
		keys = append(keys, cache.QueryKey(g.opts.IndexName, recordLocale))
	}

	for _, key := range keys {
		if err := g.cache.Delete(ctx, key); err != nil {
			return syncerr.New(syncerr.ErrCodeCacheFailed, "invalidate "+key, err)
		}
	}
	return nil
}

// Filter builds the query filter for a content type, scoped to locale when
// one is given.
func Filter(contentType, locale string) string {
	f := record.AttrType + ":" + contentType
	if locale != "" {
		f += " AND (" + record.AttrLocale + ":" + locale + ")"
	}
	return f
}
