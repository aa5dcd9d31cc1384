package record

import (
	"context"
	"log/slog"
	"time"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/content"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/logging"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/text"
)

// Builder turns content items into index records.
type Builder struct {
	source    content.Source
	fields    content.FieldSource
	localizer content.Localizer
	logger    *slog.Logger
}

// NewBuilder creates a Builder. localizer may be nil, in which case records
// carry no locale attribute.
func NewBuilder(source content.Source, fields content.FieldSource, localizer content.Localizer, logger *slog.Logger) *Builder {
	return &Builder{
		source:    source,
		fields:    fields,
		localizer: localizer,
		logger:    logging.OrDefault(logger),
	}
}

// Localized reports whether records carry a locale.
func (b *Builder) Localized() bool {
	return b.localizer != nil
}

// Build returns the full record for item. Lookups that fail are logged and
// the affected attribute is omitted; Build itself never fails.
func (b *Builder) Build(ctx context.Context, item *content.Item, cfg Config, ext Extender) Record {
	rec := Record{
		AttrObjectID:  ObjectID(item.Type, item.ID),
		AttrTitle:     item.Title,
		AttrDate:      item.PublishedAt.Format(time.RFC3339),
		AttrTimestamp: item.PublishedAt.Unix(),
		AttrURL:       item.Permalink,
		AttrType:      item.Type,
		AttrContent:   text.NormalizeString(item.Body, 0),
	}

	b.setThumbnails(ctx, rec, item)

	if item.Excerpt != "" {
		rec[AttrExcerpt] = text.NormalizeString(item.Excerpt, 0)
	} else {
		rec[AttrExcerpt] = text.NormalizeString(item.Body, ExcerptLength)
	}

	if locale, ok := b.locale(ctx, item); ok {
		rec[AttrLocale] = locale
	}

	if ext != nil {
		ext.Extend(ctx, rec, item)
	}

	for _, spec := range cfg.Fields {
		b.setField(ctx, rec, item.ID, spec)
	}
	for _, spec := range cfg.Taxonomies {
		b.setTaxonomy(ctx, rec, item.ID, spec)
	}

	return rec
}

// Locale returns the locale a record for item would carry.
func (b *Builder) Locale(ctx context.Context, item *content.Item) (string, bool) {
	return b.locale(ctx, item)
}

func (b *Builder) locale(ctx context.Context, item *content.Item) (string, bool) {
	if b.localizer == nil {
		return "", false
	}
	locale, ok, err := b.localizer.ItemLocale(ctx, item.ID)
	if err != nil {
		b.logger.Warn("item_locale_failed",
			slog.Int64("item_id", item.ID),
			slog.String("error", err.Error()))
	}
	if ok && locale != "" {
		return locale, true
	}
	return b.localizer.DefaultLocale(), true
}

func (b *Builder) setThumbnails(ctx context.Context, rec Record, item *content.Item) {
	sizes := make(map[string]any, len(content.ThumbnailSizes))
	for _, size := range content.ThumbnailSizes {
		url, err := b.source.Thumbnail(ctx, item.ID, size)
		if err != nil {
			b.logger.Warn("thumbnail_lookup_failed",
				slog.Int64("item_id", item.ID),
				slog.String("size", size),
				slog.String("error", err.Error()))
		}
		sizes[size] = url
	}
	rec[AttrThumbnail] = sizes[content.SizeLargest]
	rec[AttrThumbnailSizes] = sizes
}

func (b *Builder) setField(ctx context.Context, rec Record, itemID int64, spec FieldSpec) {
	v, ok, err := b.fields.Field(ctx, spec.Key, content.ItemOwner(itemID))
	if err != nil {
		b.logger.Warn("custom_field_failed",
			slog.Int64("item_id", itemID),
			slog.String("field", spec.Key),
			slog.String("error", err.Error()))
		return
	}
	if !ok || !content.Truthy(v) {
		return
	}

	switch len(spec.SubFields) {
	case 0:
		rec[spec.Key] = text.Normalize(v, 0)
	case 1:
		rec[spec.Key] = text.Normalize(subValue(v, spec.SubFields[0]), 0)
	default:
		for _, sub := range spec.SubFields {
			rec[spec.Key+"_"+sub] = text.Normalize(subValue(v, sub), 0)
		}
	}
}

func (b *Builder) setTaxonomy(ctx context.Context, rec Record, itemID int64, spec TaxonomySpec) {
	terms, err := b.source.Terms(ctx, itemID, spec.Name)
	if err != nil {
		b.logger.Warn("taxonomy_lookup_failed",
			slog.Int64("item_id", itemID),
			slog.String("taxonomy", spec.Name),
			slog.String("error", err.Error()))
		return
	}
	if len(terms) == 0 {
		return
	}

	if !spec.HasAttributes() {
		names := make([]string, 0, len(terms))
		for _, t := range terms {
			names = append(names, t.Name)
		}
		rec[spec.Name] = names
		return
	}

	objects := make([]map[string]any, 0, len(terms))
	for _, t := range terms {
		obj := map[string]any{"name": t.Name}
		for _, attr := range spec.Attributes {
			v, _, err := b.fields.Field(ctx, attr, content.TermOwner(t.ID))
			if err != nil {
				b.logger.Warn("term_field_failed",
					slog.Int64("term_id", t.ID),
					slog.String("field", attr),
					slog.String("error", err.Error()))
			}
			obj[attr] = v
		}
		objects = append(objects, obj)
	}
	rec[spec.Name] = objects
}

// subValue reads one sub-field of a grouped field; anything else yields nil.
func subValue(v any, sub string) any {
	if m, ok := v.(map[string]any); ok {
		return m[sub]
	}
	return nil
}
