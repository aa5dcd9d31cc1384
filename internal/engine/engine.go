// Package engine wires the synchronization engine from configuration: the
// content source, cache, index client, one synchronizer per content type,
// the registry and the event bus.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/cache"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/config"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/content"
	syncerr "github.com/Mill3/1ou2cocktails-algolia-sync/internal/errors"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/events"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/index"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/logging"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/posttypes"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/record"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/registry"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/store"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/synchronizer"
)

// Engine owns every long-lived component.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	db       *sql.DB
	content  *content.SQLStore
	cache    cache.Store
	client   index.Client
	registry *registry.Registry
	router   *registry.Router
	bus      *events.Bus

	closers []func() error
}

// Option customizes New.
type Option func(*options)

type options struct {
	client index.Client
	cache  cache.Store
}

// WithClient uses c instead of the client selected by the configuration.
// The engine takes ownership and closes it.
func WithClient(c index.Client) Option {
	return func(o *options) { o.client = c }
}

// WithCache uses s instead of the cache selected by the configuration.
// The engine takes ownership and closes it.
func WithCache(s cache.Store) Option {
	return func(o *options) { o.cache = s }
}

// New validates cfg and builds the engine. A configuration or credentials
// problem is reported before anything is opened or registered.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logging.OrDefault(logger),
		registry: registry.New(),
	}
	e.router = registry.NewRouter(e.registry)
	e.bus = events.NewBus(e.logger)

	if err := e.open(ctx, o); err != nil {
		_ = e.Close()
		return nil, err
	}
	if err := e.register(); err != nil {
		_ = e.Close()
		return nil, err
	}

	e.logger.Info("engine_started",
		slog.String("backend", cfg.Index.Backend),
		slog.String("cache", cfg.Cache.Backend),
		slog.Any("content_types", e.registry.Names()))
	return e, nil
}

func (e *Engine) open(ctx context.Context, o options) error {
	db, err := content.OpenSQLite(ctx, e.cfg.Content.DSN)
	if err != nil {
		return syncerr.SourceError("failed to open content database", err).
			WithDetail("dsn", e.cfg.Content.DSN)
	}
	e.db = db
	e.closers = append(e.closers, db.Close)

	e.content, err = content.NewSQLStore(db, e.cfg.Localization.DefaultLocale)
	if err != nil {
		return err
	}

	e.cache = o.cache
	if e.cache == nil {
		e.cache, err = cache.Open(ctx, e.cfg.Cache, e.logger)
		if err != nil {
			return syncerr.New(syncerr.ErrCodeCacheFailed, "failed to open cache", err)
		}
	}
	e.closers = append(e.closers, e.cache.Close)

	e.client = o.client
	if e.client == nil {
		e.client, err = store.Open(e.cfg, e.logger)
		if err != nil {
			return err
		}
	}
	e.closers = append(e.closers, e.client.Close)
	return nil
}

func (e *Engine) register() error {
	types, err := posttypes.FromConfig(e.cfg.ContentTypes)
	if err != nil {
		return syncerr.ConfigError("invalid content types", err)
	}

	var localizer content.Localizer
	if e.cfg.Localization.Enabled {
		localizer = e.content
	}
	builder := record.NewBuilder(e.content, e.content, localizer, e.logger)

	for _, ct := range types {
		name := ct.Name()
		s, err := synchronizer.New(synchronizer.Config{
			Type:    ct,
			Source:  e.content,
			Fields:  e.content,
			Builder: builder,
			Client:  e.client,
			Cache:   e.cache,
			IndexName: func(locale string) string {
				return e.cfg.IndexName(name, locale)
			},
			Locales:       e.cfg.Localization.Locales,
			DefaultLocale: e.cfg.Localization.DefaultLocale,
			HitsPerPage:   e.cfg.Index.HitsPerPage,
			Logger:        e.logger,
		})
		if err != nil {
			return err
		}
		if err := e.registry.Register(s); err != nil {
			return err
		}
		e.bus.Subscribe(name, s.Handle)
	}
	return nil
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config { return e.cfg }

// Registry returns the content type registry.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Router returns the query router.
func (e *Engine) Router() *registry.Router { return e.router }

// Content returns the content store.
func (e *Engine) Content() *content.SQLStore { return e.content }

// Publish dispatches ev to every synchronizer.
func (e *Engine) Publish(ctx context.Context, ev events.Event) error {
	return e.bus.Publish(ctx, ev)
}

// Reindex rebuilds the index of contentType while holding its reindex lock.
func (e *Engine) Reindex(ctx context.Context, contentType string, progress func(synchronizer.Progress)) (synchronizer.ReindexResult, error) {
	s, err := e.registry.MustGet(contentType)
	if err != nil {
		return synchronizer.ReindexResult{}, err
	}

	lock := NewFileLock(e.cfg.LocksDir(), "reindex-"+contentType)
	acquired, err := lock.TryLock()
	if err != nil {
		return synchronizer.ReindexResult{}, syncerr.New(syncerr.ErrCodeLockHeld, "failed to lock reindex", err)
	}
	if !acquired {
		return synchronizer.ReindexResult{}, syncerr.New(syncerr.ErrCodeLockHeld,
			fmt.Sprintf("a reindex of %q is already running", contentType), nil).
			WithDetail("lock", lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	return s.Reindex(ctx, progress)
}

// SetSettings pushes the settings of contentType. An empty locale targets
// every index of the type.
func (e *Engine) SetSettings(ctx context.Context, contentType, locale string) ([]string, error) {
	s, err := e.registry.MustGet(contentType)
	if err != nil {
		return nil, err
	}
	return s.SetSettings(ctx, locale)
}

// Close releases every resource in reverse opening order.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
