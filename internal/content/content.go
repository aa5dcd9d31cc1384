// Package content describes the CMS entities that get indexed and the
// read-only ports used to fetch them.
package content

import (
	"context"
	"errors"
	"time"
)

// Item statuses as stored by the CMS.
const (
	StatusPublish = "publish"
	StatusDraft   = "draft"
	StatusPrivate = "private"
	StatusTrash   = "trash"
)

// Thumbnail sizes copied into every record, smallest first.
const (
	SizeSmall   = "small"
	SizeLarge   = "large"
	SizeLargest = "largest"
	SizeFull    = "full"
)

// ThumbnailSizes lists the named sizes in record order.
var ThumbnailSizes = []string{SizeSmall, SizeLarge, SizeLargest, SizeFull}

// ErrNotFound is returned when an item or term does not exist.
var ErrNotFound = errors.New("content: not found")

// Item is a unit of editorial content owned by the CMS.
type Item struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Excerpt     string    `json:"excerpt,omitempty"`
	Slug        string    `json:"slug,omitempty"`
	Permalink   string    `json:"permalink"`
	PublishedAt time.Time `json:"published_at"`
	Locale      string    `json:"locale,omitempty"`
	Autosave    bool      `json:"autosave,omitempty"`
}

// Published reports whether the item is publicly visible.
func (i Item) Published() bool {
	return i.Status == StatusPublish
}

// Term is a taxonomy term attached to items.
type Term struct {
	ID       int64  `json:"id"`
	Taxonomy string `json:"taxonomy"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
}

// OwnerKind distinguishes what a custom field belongs to.
type OwnerKind string

const (
	OwnerItem OwnerKind = "item"
	OwnerTerm OwnerKind = "term"
)

// Owner references the entity a custom field is attached to.
type Owner struct {
	Kind OwnerKind
	ID   int64
}

// ItemOwner returns the owner reference of an item.
func ItemOwner(id int64) Owner { return Owner{Kind: OwnerItem, ID: id} }

// TermOwner returns the owner reference of a term.
func TermOwner(id int64) Owner { return Owner{Kind: OwnerTerm, ID: id} }

// Source reads items, terms and media from the CMS.
type Source interface {
	// Item returns ErrNotFound when id is unknown.
	Item(ctx context.Context, id int64) (*Item, error)

	// PublishedItems lists published items of contentType in ID order.
	PublishedItems(ctx context.Context, contentType string) ([]Item, error)

	// PublishedItemsByTerm lists published items of contentType attached to termID.
	PublishedItemsByTerm(ctx context.Context, contentType string, termID int64) ([]Item, error)

	// Term returns ErrNotFound when id is unknown.
	Term(ctx context.Context, id int64) (*Term, error)

	// Terms returns the item's terms of one taxonomy in source order.
	Terms(ctx context.Context, itemID int64, taxonomy string) ([]Term, error)

	// Thumbnail returns the URL of the item's image at size, or "" if none.
	Thumbnail(ctx context.Context, itemID int64, size string) (string, error)
}

// FieldSource reads custom fields of items and terms.
type FieldSource interface {
	// Field returns the decoded value and whether the field is set.
	Field(ctx context.Context, key string, owner Owner) (any, bool, error)
}

// Localizer is the optional localization capability of the CMS.
type Localizer interface {
	// ItemLocale returns the item's locale, or false when it has none.
	ItemLocale(ctx context.Context, id int64) (string, bool, error)
	DefaultLocale() string
}

// Truthy reports whether a stored field value counts as set the way the CMS
// evaluates it: nil, false, zero, "", "0" and empty arrays or objects do not.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != "" && x != "0"
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}
