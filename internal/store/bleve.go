// Package store provides the concrete index service backends: a REST client
// for the hosted search service and a local bleve implementation used for
// offline work and tests.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	syncerr "github.com/Mill3/1ou2cocktails-algolia-sync/internal/errors"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/index"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/logging"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/record"
)

const (
	recordKeyPrefix = "rec:"
	settingsKey     = "settings"

	defaultSearchSize = 20
)

// BleveClient implements index.Client on local bleve indexes, one per index
// name. With an empty dir every index lives in memory.
type BleveClient struct {
	mu      sync.Mutex
	dir     string
	indexes map[string]*bleveIndex
	closed  bool
	logger  *slog.Logger
}

type bleveIndex struct {
	idx bleve.Index

	mu       sync.RWMutex
	settings index.Settings
}

// NewBleveClient creates a client storing indexes under dir.
func NewBleveClient(dir string, logger *slog.Logger) (*BleveClient, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory %s: %w", dir, err)
		}
	}
	return &BleveClient{
		dir:     dir,
		indexes: make(map[string]*bleveIndex),
		logger:  logging.OrDefault(logger),
	}, nil
}

// InitIndex opens name, creating it on first use.
func (c *BleveClient) InitIndex(_ context.Context, name string) (index.Handle, error) {
	if _, err := c.index(name); err != nil {
		return index.Handle{}, err
	}
	return index.Handle{Name: name}, nil
}

// SetSettings stores the settings used by Search.
func (c *BleveClient) SetSettings(_ context.Context, h index.Handle, s index.Settings) error {
	bi, err := c.index(h.Name)
	if err != nil {
		return err
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := bi.idx.SetInternal([]byte(settingsKey), data); err != nil {
		return fmt.Errorf("failed to store settings: %w", err)
	}

	bi.mu.Lock()
	bi.settings = s
	bi.mu.Unlock()
	return nil
}

// SaveObject indexes rec and stores its source for retrieval.
func (c *BleveClient) SaveObject(_ context.Context, h index.Handle, rec record.Record) error {
	objectID := rec.ObjectID()
	if objectID == "" {
		return syncerr.ValidationError("record has no objectID", nil)
	}

	bi, err := c.index(h.Name)
	if err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", objectID, err)
	}
	// Index the JSON form so numbers and nested values are mapped the same
	// way on save and on reload.
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode record %s: %w", objectID, err)
	}

	batch := bi.idx.NewBatch()
	if err := batch.Index(objectID, doc); err != nil {
		return fmt.Errorf("failed to index record %s: %w", objectID, err)
	}
	batch.SetInternal([]byte(recordKeyPrefix+objectID), data)

	if err := bi.idx.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// DeleteObject removes a record.
func (c *BleveClient) DeleteObject(_ context.Context, h index.Handle, objectID string) error {
	bi, err := c.index(h.Name)
	if err != nil {
		return err
	}

	key := []byte(recordKeyPrefix + objectID)
	data, err := bi.idx.GetInternal(key)
	if err != nil {
		return fmt.Errorf("failed to read record %s: %w", objectID, err)
	}
	if data == nil {
		return objectNotFound(h.Name, objectID)
	}

	batch := bi.idx.NewBatch()
	batch.Delete(objectID)
	batch.DeleteInternal(key)
	if err := bi.idx.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", objectID, err)
	}
	return nil
}

// GetObject returns a stored record, restricted to attrs when given.
func (c *BleveClient) GetObject(_ context.Context, h index.Handle, objectID string, attrs []string) (record.Record, error) {
	bi, err := c.index(h.Name)
	if err != nil {
		return nil, err
	}

	rec, err := bi.load(objectID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, objectNotFound(h.Name, objectID)
	}
	return retrieve(rec, attrs), nil
}

// Search runs a query over the searchable attributes, narrowed by p.Filters
// and ordered by the custom ranking.
func (c *BleveClient) Search(ctx context.Context, h index.Handle, text string, p index.SearchParams) (*index.SearchResponse, error) {
	bi, err := c.index(h.Name)
	if err != nil {
		return nil, err
	}

	bi.mu.RLock()
	settings := bi.settings
	bi.mu.RUnlock()

	filterQuery, err := ParseFilter(p.Filters)
	if err != nil {
		return nil, err
	}
	q := filterQuery
	if strings.TrimSpace(text) != "" {
		q = bleve.NewConjunctionQuery(textQuery(text, settings.SearchableAttributes), filterQuery)
	}

	size := p.HitsPerPage
	if size <= 0 {
		size = defaultSearchSize
	}

	req := bleve.NewSearchRequestOptions(q, size, 0, false)
	req.SortBy(sortOrder(settings.CustomRanking))

	result, err := bi.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	resp := &index.SearchResponse{
		Hits:             make([]record.Record, 0, len(result.Hits)),
		NbHits:           int(result.Total),
		HitsPerPage:      size,
		NbPages:          (int(result.Total) + size - 1) / size,
		Query:            text,
		Params:           searchParams(text, p),
		ProcessingTimeMS: int(result.Took.Milliseconds()),
	}
	for _, hit := range result.Hits {
		rec, err := bi.load(hit.ID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			resp.Hits = append(resp.Hits, rec)
		}
	}
	return resp, nil
}

// Close closes every open index.
func (c *BleveClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var firstErr error
	for name, bi := range c.indexes {
		if err := bi.idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close index %s: %w", name, err)
		}
	}
	c.indexes = nil
	return firstErr
}

func (c *BleveClient) index(name string) (*bleveIndex, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, syncerr.ValidationError(fmt.Sprintf("invalid index name %q", name), nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("index client is closed")
	}
	if bi, ok := c.indexes[name]; ok {
		return bi, nil
	}

	idx, err := c.open(name)
	if err != nil {
		return nil, err
	}

	bi := &bleveIndex{idx: idx}
	data, err := idx.GetInternal([]byte(settingsKey))
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to read settings of %s: %w", name, err)
	}
	if data != nil {
		if err := json.Unmarshal(data, &bi.settings); err != nil {
			c.logger.Warn("index_settings_corrupt",
				slog.String("index", name),
				slog.String("error", err.Error()))
		}
	}

	c.indexes[name] = bi
	return bi, nil
}

func (c *BleveClient) open(name string) (bleve.Index, error) {
	m := newIndexMapping()
	if c.dir == "" {
		return bleve.NewMemOnly(m)
	}

	path := filepath.Join(c.dir, name+".bleve")

	if validErr := validateIndexIntegrity(path); validErr != nil {
		c.logger.Warn("index_corrupted",
			slog.String("path", path),
			slog.String("error", validErr.Error()))
		if err := os.RemoveAll(path); err != nil {
			return nil, syncerr.New(syncerr.ErrCodeCorruptStorage,
				fmt.Sprintf("index %s is corrupted and cannot be removed", name), err)
		}
		c.logger.Info("index_cleared",
			slog.String("path", path),
			slog.String("reason", "corruption detected, please reindex"))
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, m)
	} else if err != nil && isCorruptionError(err) {
		c.logger.Warn("index_open_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		if removeErr := os.RemoveAll(path); removeErr != nil {
			return nil, syncerr.New(syncerr.ErrCodeCorruptStorage,
				fmt.Sprintf("index %s is corrupted and cannot be cleared", name), removeErr)
		}
		idx, err = bleve.New(path, m)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index %s: %w", name, err)
	}
	return idx, nil
}

func (bi *bleveIndex) load(objectID string) (record.Record, error) {
	data, err := bi.idx.GetInternal([]byte(recordKeyPrefix + objectID))
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", objectID, err)
	}
	if data == nil {
		return nil, nil
	}
	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, syncerr.New(syncerr.ErrCodeCorruptStorage, "stored record "+objectID+" is corrupt", err)
	}
	return rec, nil
}

// newIndexMapping maps the identity attributes as exact keywords so filters
// on them never match partially.
func newIndexMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()

	keyword := bleve.NewKeywordFieldMapping()
	for _, attr := range []string{record.AttrObjectID, record.AttrType, record.AttrLocale} {
		m.DefaultMapping.AddFieldMappingsAt(attr, keyword)
	}

	m.DefaultMapping.AddSubDocumentMapping(record.AttrThumbnailSizes, bleve.NewDocumentDisabledMapping())
	m.DefaultMapping.AddFieldMappingsAt(record.AttrURL, disabledField())
	m.DefaultMapping.AddFieldMappingsAt(record.AttrThumbnail, disabledField())

	return m
}

func disabledField() *mapping.FieldMapping {
	f := bleve.NewTextFieldMapping()
	f.Index = false
	f.Store = false
	f.IncludeInAll = false
	return f
}

func textQuery(text string, searchable []string) query.Query {
	if len(searchable) == 0 {
		return bleve.NewMatchQuery(text)
	}
	clauses := make([]query.Query, 0, len(searchable))
	for _, attr := range searchable {
		q := bleve.NewMatchQuery(text)
		q.SetField(attributeName(attr))
		clauses = append(clauses, q)
	}
	return bleve.NewDisjunctionQuery(clauses...)
}

// sortOrder converts ranking expressions like desc(timestamp) into a bleve
// sort order. Matching documents are finally ordered by score then ID.
func sortOrder(ranking []string) []string {
	order := make([]string, 0, len(ranking)+2)
	for _, r := range ranking {
		switch {
		case strings.HasPrefix(r, "asc(") && strings.HasSuffix(r, ")"):
			order = append(order, r[len("asc("):len(r)-1])
		case strings.HasPrefix(r, "desc(") && strings.HasSuffix(r, ")"):
			order = append(order, "-"+r[len("desc("):len(r)-1])
		}
	}
	return append(order, "-_score", "_id")
}

// attributeName strips modifiers such as unordered(title).
func attributeName(attr string) string {
	if open := strings.IndexByte(attr, '('); open >= 0 && strings.HasSuffix(attr, ")") {
		return attr[open+1 : len(attr)-1]
	}
	return attr
}

func retrieve(rec record.Record, attrs []string) record.Record {
	if len(attrs) == 0 {
		return rec
	}
	out := record.Record{record.AttrObjectID: rec[record.AttrObjectID]}
	for _, a := range attrs {
		if v, ok := rec[a]; ok {
			out[a] = v
		}
	}
	return out
}

func objectNotFound(indexName, objectID string) error {
	return syncerr.New(syncerr.ErrCodeObjectNotFound, "object does not exist", nil).
		WithDetail("index", indexName).
		WithDetail("object_id", objectID)
}

// validateIndexIntegrity checks that an on-disk index looks complete before
// opening it. A missing index is valid.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

var _ index.Client = (*BleveClient)(nil)
