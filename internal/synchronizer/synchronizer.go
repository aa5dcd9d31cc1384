// Package synchronizer keeps the index of one content type consistent with
// the content source. It decides which items belong in the index, reacts to
// lifecycle events and drives bulk, reindex and status operations.
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/cache"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/content"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/events"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/index"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/logging"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/record"
)

// ContentType describes how one content type is indexed. Extend is the
// per-type record hook; types without special handling embed a no-op.
type ContentType interface {
	Name() string
	RecordConfig() record.Config
	Settings() index.Settings
	record.Extender
}

// Config wires a Synchronizer to its collaborators.
type Config struct {
	Type    ContentType
	Source  content.Source
	Fields  content.FieldSource
	Builder *record.Builder
	Client  index.Client
	Cache   cache.Store

	// IndexName maps a locale ("" when not localized) to an index name.
	IndexName func(locale string) string

	// Locales are the locales content is published in. Ignored when the
	// builder is not localized.
	Locales       []string
	DefaultLocale string

	HitsPerPage int
	Logger      *slog.Logger
}

// Synchronizer owns the gateways of one content type, one per locale.
type Synchronizer struct {
	typ       ContentType
	recordCfg record.Config
	source    content.Source
	fields    content.FieldSource
	builder   *record.Builder
	client    index.Client
	cache     cache.Store
	indexName func(string) string
	locks     *index.KeyedMutex
	logger    *slog.Logger

	localized     bool
	defaultLocale string
	hitsPerPage   int

	mu       sync.Mutex
	gateways map[string]*index.Gateway
	locales  []string
}

// New creates a Synchronizer and a gateway for every configured locale.
func New(cfg Config) (*Synchronizer, error) {
	if cfg.Type == nil || cfg.Source == nil || cfg.Builder == nil || cfg.Client == nil || cfg.Cache == nil {
		return nil, errors.New("synchronizer: type, source, builder, client and cache are required")
	}
	if cfg.IndexName == nil {
		return nil, errors.New("synchronizer: index name resolver is required")
	}

	s := &Synchronizer{
		typ:           cfg.Type,
		recordCfg:     cfg.Type.RecordConfig(),
		source:        cfg.Source,
		fields:        cfg.Fields,
		builder:       cfg.Builder,
		client:        cfg.Client,
		cache:         cfg.Cache,
		indexName:     cfg.IndexName,
		locks:         index.NewKeyedMutex(),
		logger:        logging.OrDefault(cfg.Logger).With(slog.String("content_type", cfg.Type.Name())),
		localized:     cfg.Builder.Localized(),
		defaultLocale: cfg.DefaultLocale,
		hitsPerPage:   cfg.HitsPerPage,
		gateways:      make(map[string]*index.Gateway),
	}
	if s.recordCfg.ContentType == "" {
		s.recordCfg.ContentType = cfg.Type.Name()
	}
	if s.localized && s.defaultLocale == "" {
		s.defaultLocale = "en"
	}

	locales := []string{""}
	if s.localized {
		locales = append([]string{s.defaultLocale}, cfg.Locales...)
	}
	for _, l := range locales {
		s.gateway(l)
	}
	return s, nil
}

// Name returns the content type name.
func (s *Synchronizer) Name() string { return s.typ.Name() }

// Type returns the content type definition.
func (s *Synchronizer) Type() ContentType { return s.typ }

// IndexNames returns the distinct index names of this content type.
func (s *Synchronizer) IndexNames() []string {
	var names []string
	for _, gw := range s.distinctGateways() {
		names = append(names, gw.IndexName())
	}
	return names
}

// Handle dispatches a lifecycle event. Events for other content types are
// ignored.
func (s *Synchronizer) Handle(ctx context.Context, ev events.Event) error {
	switch ev.Kind {
	case events.KindItemSaved:
		if ev.ContentType != "" && ev.ContentType != s.Name() {
			return nil
		}
		return s.HandleItemSaved(ctx, ev.ItemID)
	case events.KindItemDeleted:
		if ev.ContentType != "" && ev.ContentType != s.Name() {
			return nil
		}
		return s.HandleItemDeleted(ctx, ev.ItemID)
	case events.KindTermEdited, events.KindTermDeleted:
		_, err := s.HandleTermChanged(ctx, ev.TermID)
		return err
	default:
		return fmt.Errorf("unsupported event kind %s", ev.Kind)
	}
}

// HandleItemSaved saves or removes the record of itemID depending on its
// current state. Autosaves and items of other types are ignored.
func (s *Synchronizer) HandleItemSaved(ctx context.Context, itemID int64) error {
	item, err := s.source.Item(ctx, itemID)
	if errors.Is(err, content.ErrNotFound) {
		s.logger.Info("record_removed", slog.Int64("item_id", itemID), slog.String("reason", "item not found"))
		return s.remove(ctx, itemID)
	}
	if err != nil {
		return fmt.Errorf("load item %d: %w", itemID, err)
	}

	if item.Autosave || item.Type != s.Name() {
		return nil
	}

	if !item.Published() || !s.ShouldIndex(ctx, item) {
		s.logger.Info("record_removed", slog.Int64("item_id", itemID), slog.String("status", item.Status))
		return s.remove(ctx, itemID)
	}

	_, err = s.save(ctx, item)
	return err
}

// HandleItemDeleted removes the record of itemID unconditionally.
func (s *Synchronizer) HandleItemDeleted(ctx context.Context, itemID int64) error {
	s.logger.Info("record_removed", slog.Int64("item_id", itemID), slog.String("reason", "item deleted"))
	return s.remove(ctx, itemID)
}

// HandleTermChanged re-saves every published item of this type attached to
// termID, in source order, and returns how many were saved. Items hidden
// from search are skipped, their records left as they are. Terms of
// taxonomies this type does not index are ignored, as are unknown terms.
// A failing item does not stop the others.
func (s *Synchronizer) HandleTermChanged(ctx context.Context, termID int64) (int, error) {
	term, err := s.source.Term(ctx, termID)
	if errors.Is(err, content.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load term %d: %w", termID, err)
	}
	if !s.indexesTaxonomy(term.Taxonomy) {
		return 0, nil
	}

	items, err := s.source.PublishedItemsByTerm(ctx, s.Name(), termID)
	if err != nil {
		return 0, fmt.Errorf("list items of term %d: %w", termID, err)
	}

	var errs []error
	saved := 0
	for i := range items {
		item := &items[i]
		if !s.ShouldIndex(ctx, item) {
			continue
		}
		if _, err := s.save(ctx, item); err != nil {
			errs = append(errs, err)
			continue
		}
		saved++
	}

	s.logger.Info("term_cascade_done",
		slog.Int64("term_id", termID),
		slog.String("taxonomy", term.Taxonomy),
		slog.Int("items", len(items)),
		slog.Int("saved", saved))
	return saved, errors.Join(errs...)
}

// ShouldIndex reports whether item belongs in the index. Only an explicit
// falsy value of the inclusion field excludes an item; an absent field, an
// unsupported field source or a lookup failure includes it.
func (s *Synchronizer) ShouldIndex(ctx context.Context, item *content.Item) bool {
	field := s.recordCfg.InclusionField
	if field == "" || s.fields == nil {
		return true
	}

	v, ok, err := s.fields.Field(ctx, field, content.ItemOwner(item.ID))
	if err != nil {
		s.logger.Warn("inclusion_check_failed",
			slog.Int64("item_id", item.ID),
			slog.String("error", err.Error()))
		return true
	}
	if !ok {
		return true
	}
	return content.Truthy(v)
}

func (s *Synchronizer) indexesTaxonomy(taxonomy string) bool {
	for _, t := range s.recordCfg.Taxonomies {
		if t.Name == taxonomy {
			return true
		}
	}
	return false
}

// save writes item through the gateway of its locale and drops any record
// of it left in the indexes of other locales.
func (s *Synchronizer) save(ctx context.Context, item *content.Item) (record.Record, error) {
	locale := ""
	if s.localized {
		locale, _ = s.builder.Locale(ctx, item)
	}
	gw := s.gateway(locale)
	rec, err := gw.Save(ctx, item)
	if err != nil {
		s.logger.Error("record_save_failed",
			slog.Int64("item_id", item.ID),
			slog.String("error", err.Error()))
		return nil, err
	}
	if err := s.clear(ctx, item.ID, gw); err != nil {
		s.logger.Error("stale_record_delete_failed",
			slog.Int64("item_id", item.ID),
			slog.String("locale", locale),
			slog.String("error", err.Error()))
		return nil, err
	}
	s.logger.Debug("record_saved", slog.Int64("item_id", item.ID), slog.String("locale", locale))
	return rec, nil
}

// remove deletes the record of itemID from every index of this type.
func (s *Synchronizer) remove(ctx context.Context, itemID int64) error {
	if err := s.clear(ctx, itemID, nil); err != nil {
		s.logger.Error("record_delete_failed",
			slog.Int64("item_id", itemID),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

// clear deletes the record of itemID from every index except the one kept
// writes to. Each index is hit once; gateways sharing an index already hit,
// or kept's index, only drop their cache.
func (s *Synchronizer) clear(ctx context.Context, itemID int64, kept *index.Gateway) error {
	seen := make(map[string]bool)
	if kept != nil {
		seen[kept.IndexName()] = true
	}
	var errs []error
	for _, gw := range s.allGateways() {
		if gw == kept {
			continue
		}
		var err error
		if seen[gw.IndexName()] {
			err = gw.Invalidate(ctx, itemID)
		} else {
			seen[gw.IndexName()] = true
			err = gw.Delete(ctx, itemID)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// gateway returns the gateway of locale, creating it on first use.
func (s *Synchronizer) gateway(locale string) *index.Gateway {
	if !s.localized {
		locale = ""
	} else if locale == "" {
		locale = s.defaultLocale
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gw, ok := s.gateways[locale]; ok {
		return gw
	}
	gw := index.NewGateway(s.client, s.cache, s.builder, index.Options{
		ContentType: s.Name(),
		IndexName:   s.indexName(locale),
		Locale:      locale,
		Record:      s.recordCfg,
		Extender:    s.typ,
		Settings:    s.typ.Settings(),
		HitsPerPage: s.hitsPerPage,
	}, s.locks, s.logger)
	s.gateways[locale] = gw
	s.locales = append(s.locales, locale)
	return gw
}

// allGateways returns every gateway in creation order.
func (s *Synchronizer) allGateways() []*index.Gateway {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*index.Gateway, 0, len(s.locales))
	for _, l := range s.locales {
		out = append(out, s.gateways[l])
	}
	return out
}

// distinctGateways returns the first gateway of each index name.
func (s *Synchronizer) distinctGateways() []*index.Gateway {
	seen := make(map[string]bool)
	var out []*index.Gateway
	for _, gw := range s.allGateways() {
		if !seen[gw.IndexName()] {
			seen[gw.IndexName()] = true
			out = append(out, gw)
		}
	}
	return out
}
