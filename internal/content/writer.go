package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is a CMS export: the JSON document accepted by `content import`.
type Snapshot struct {
	Items      []Item                      `json:"items"`
	Terms      []Term                      `json:"terms"`
	ItemTerms  map[int64][]int64           `json:"item_terms"`
	ItemFields map[int64]map[string]any    `json:"item_fields"`
	TermFields map[int64]map[string]any    `json:"term_fields"`
	Thumbnails map[int64]map[string]string `json:"thumbnails"`
}

// PutItem inserts or replaces an item.
func (s *SQLStore) PutItem(ctx context.Context, it Item) error {
	return putItem(ctx, s.db, it)
}

// PutTerm inserts or replaces a term.
func (s *SQLStore) PutTerm(ctx context.Context, t Term) error {
	return putTerm(ctx, s.db, t)
}

// SetTerms replaces the item's terms; order is kept as source order.
func (s *SQLStore) SetTerms(ctx context.Context, itemID int64, termIDs ...int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := setTerms(ctx, tx, itemID, termIDs); err != nil {
		return err
	}
	return tx.Commit()
}

// PutField stores a custom field value as JSON.
func (s *SQLStore) PutField(ctx context.Context, owner Owner, key string, value any) error {
	return putField(ctx, s.db, owner, key, value)
}

// PutThumbnail stores the image URL of an item at a named size.
func (s *SQLStore) PutThumbnail(ctx context.Context, itemID int64, size, url string) error {
	return putThumbnail(ctx, s.db, itemID, size, url)
}

// Import writes a snapshot in one transaction.
func (s *SQLStore) Import(ctx context.Context, snap Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, it := range snap.Items {
		if err := putItem(ctx, tx, it); err != nil {
			return err
		}
	}
	for _, t := range snap.Terms {
		if err := putTerm(ctx, tx, t); err != nil {
			return err
		}
	}
	for itemID, termIDs := range snap.ItemTerms {
		if err := setTerms(ctx, tx, itemID, termIDs); err != nil {
			return err
		}
	}
	for id, fields := range snap.ItemFields {
		for key, v := range fields {
			if err := putField(ctx, tx, ItemOwner(id), key, v); err != nil {
				return err
			}
		}
	}
	for id, fields := range snap.TermFields {
		for key, v := range fields {
			if err := putField(ctx, tx, TermOwner(id), key, v); err != nil {
				return err
			}
		}
	}
	for id, sizes := range snap.Thumbnails {
		for size, url := range sizes {
			if err := putThumbnail(ctx, tx, id, size, url); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putItem(ctx context.Context, db execer, it Item) error {
	var published string
	if !it.PublishedAt.IsZero() {
		published = it.PublishedAt.UTC().Format(time.RFC3339)
	}
	autosave := 0
	if it.Autosave {
		autosave = 1
	}
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO content_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.Type, it.Status, it.Title, it.Body, it.Excerpt, it.Slug,
		it.Permalink, published, it.Locale, autosave)
	if err != nil {
		return fmt.Errorf("put item %d: %w", it.ID, err)
	}
	return nil
}

func putTerm(ctx context.Context, db execer, t Term) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO terms (id, taxonomy, name, slug) VALUES (?, ?, ?, ?)`,
		t.ID, t.Taxonomy, t.Name, t.Slug)
	if err != nil {
		return fmt.Errorf("put term %d: %w", t.ID, err)
	}
	return nil
}

func setTerms(ctx context.Context, db execer, itemID int64, termIDs []int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM item_terms WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("clear terms of item %d: %w", itemID, err)
	}
	for pos, termID := range termIDs {
		_, err := db.ExecContext(ctx,
			`INSERT OR REPLACE INTO item_terms (item_id, term_id, position) VALUES (?, ?, ?)`,
			itemID, termID, pos)
		if err != nil {
			return fmt.Errorf("attach term %d to item %d: %w", termID, itemID, err)
		}
	}
	return nil
}

func putField(ctx context.Context, db execer, owner Owner, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode field %s: %w", key, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO content_fields (owner_kind, owner_id, key, value)
		VALUES (?, ?, ?, ?)`, string(owner.Kind), owner.ID, key, string(data))
	if err != nil {
		return fmt.Errorf("put field %s: %w", key, err)
	}
	return nil
}

func putThumbnail(ctx context.Context, db execer, itemID int64, size, url string) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO thumbnails (item_id, size, url) VALUES (?, ?, ?)`,
		itemID, size, url)
	if err != nil {
		return fmt.Errorf("put thumbnail %d/%s: %w", itemID, size, err)
	}
	return nil
}
