package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLStore reads content from a CMS export database. It implements Source,
// FieldSource and Localizer on top of database/sql.
type SQLStore struct {
	db            *sql.DB
	defaultLocale string
}

var (
	_ Source      = (*SQLStore)(nil)
	_ FieldSource = (*SQLStore)(nil)
	_ Localizer   = (*SQLStore)(nil)
)

// OpenSQLite opens (creating if needed) the content database at path with the
// pure Go sqlite driver and applies the schema. An empty path opens an
// in-memory database.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open content database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := InitSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// InitSchema creates the content tables if they don't exist.
func InitSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS content_items (
		id INTEGER PRIMARY KEY,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		excerpt TEXT NOT NULL DEFAULT '',
		slug TEXT NOT NULL DEFAULT '',
		permalink TEXT NOT NULL DEFAULT '',
		published_at TEXT NOT NULL DEFAULT '',
		locale TEXT NOT NULL DEFAULT '',
		autosave INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_content_items_type_status ON content_items(type, status);

	-- Custom fields; value holds JSON, or raw text for legacy rows
	CREATE TABLE IF NOT EXISTS content_fields (
		owner_kind TEXT NOT NULL,
		owner_id INTEGER NOT NULL,
		key TEXT NOT NULL,
		value TEXT,
		PRIMARY KEY (owner_kind, owner_id, key)
	);

	CREATE TABLE IF NOT EXISTS thumbnails (
		item_id INTEGER NOT NULL,
		size TEXT NOT NULL,
		url TEXT NOT NULL,
		PRIMARY KEY (item_id, size)
	);

	CREATE TABLE IF NOT EXISTS terms (
		id INTEGER PRIMARY KEY,
		taxonomy TEXT NOT NULL,
		name TEXT NOT NULL,
		slug TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS item_terms (
		item_id INTEGER NOT NULL,
		term_id INTEGER NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (item_id, term_id)
	);
	CREATE INDEX IF NOT EXISTS idx_item_terms_term ON item_terms(term_id);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create content schema: %w", err)
	}
	return nil
}

// NewSQLStore wraps an initialized database. defaultLocale is reported by
// DefaultLocale.
func NewSQLStore(db *sql.DB, defaultLocale string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &SQLStore{db: db, defaultLocale: defaultLocale}, nil
}

const itemColumns = `id, type, status, title, body, excerpt, slug, permalink, published_at, locale, autosave`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var (
		it        Item
		published string
		autosave  int
	)
	err := row.Scan(&it.ID, &it.Type, &it.Status, &it.Title, &it.Body, &it.Excerpt,
		&it.Slug, &it.Permalink, &published, &it.Locale, &autosave)
	if err != nil {
		return Item{}, err
	}
	it.Autosave = autosave != 0
	if published != "" {
		t, err := time.Parse(time.RFC3339, published)
		if err != nil {
			return Item{}, fmt.Errorf("item %d: published_at: %w", it.ID, err)
		}
		it.PublishedAt = t
	}
	return it, nil
}

// Item implements Source.
func (s *SQLStore) Item(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM content_items WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query item %d: %w", id, err)
	}
	return &it, nil
}

// PublishedItems implements Source.
func (s *SQLStore) PublishedItems(ctx context.Context, contentType string) ([]Item, error) {
	return s.queryItems(ctx, `
		SELECT `+itemColumns+` FROM content_items
		WHERE type = ? AND status = ?
		ORDER BY id`, contentType, StatusPublish)
}

// PublishedItemsByTerm implements Source.
func (s *SQLStore) PublishedItemsByTerm(ctx context.Context, contentType string, termID int64) ([]Item, error) {
	cols := "i." + strings.ReplaceAll(itemColumns, ", ", ", i.")
	return s.queryItems(ctx, `
		SELECT `+cols+` FROM content_items i
		JOIN item_terms it ON it.item_id = i.id
		WHERE i.type = ? AND i.status = ? AND it.term_id = ?
		ORDER BY i.id`, contentType, StatusPublish, termID)
}

func (s *SQLStore) queryItems(ctx context.Context, query string, args ...any) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Term implements Source.
func (s *SQLStore) Term(ctx context.Context, id int64) (*Term, error) {
	var t Term
	err := s.db.QueryRowContext(ctx,
		`SELECT id, taxonomy, name, slug FROM terms WHERE id = ?`, id).
		Scan(&t.ID, &t.Taxonomy, &t.Name, &t.Slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("term %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query term %d: %w", id, err)
	}
	return &t, nil
}

// Terms implements Source.
func (s *SQLStore) Terms(ctx context.Context, itemID int64, taxonomy string) ([]Term, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.taxonomy, t.name, t.slug
		FROM item_terms it JOIN terms t ON t.id = it.term_id
		WHERE it.item_id = ? AND t.taxonomy = ?
		ORDER BY it.position, t.id`, itemID, taxonomy)
	if err != nil {
		return nil, fmt.Errorf("query terms: %w", err)
	}
	defer rows.Close()

	var terms []Term
	for rows.Next() {
		var t Term
		if err := rows.Scan(&t.ID, &t.Taxonomy, &t.Name, &t.Slug); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// Thumbnail implements Source.
func (s *SQLStore) Thumbnail(ctx context.Context, itemID int64, size string) (string, error) {
	var url string
	err := s.db.QueryRowContext(ctx,
		`SELECT url FROM thumbnails WHERE item_id = ? AND size = ?`, itemID, size).Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query thumbnail: %w", err)
	}
	return url, nil
}

// Field implements FieldSource. Values that are not valid JSON are returned
// as raw strings.
func (s *SQLStore) Field(ctx context.Context, key string, owner Owner) (any, bool, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM content_fields WHERE owner_kind = ? AND owner_id = ? AND key = ?`,
		string(owner.Kind), owner.ID, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query field %s: %w", key, err)
	}
	if !raw.Valid {
		return nil, false, nil
	}

	var v any
	if err := json.Unmarshal([]byte(raw.String), &v); err != nil {
		return raw.String, true, nil
	}
	return v, true, nil
}

// ItemLocale implements Localizer.
func (s *SQLStore) ItemLocale(ctx context.Context, id int64) (string, bool, error) {
	var locale string
	err := s.db.QueryRowContext(ctx, `SELECT locale FROM content_items WHERE id = ?`, id).Scan(&locale)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query locale: %w", err)
	}
	return locale, locale != "", nil
}

// DefaultLocale implements Localizer.
func (s *SQLStore) DefaultLocale() string {
	return s.defaultLocale
}
