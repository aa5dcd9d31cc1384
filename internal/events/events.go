// Package events carries content lifecycle notifications from the CMS to the
// synchronizers.
//
// Events are published on a Bus and delivered synchronously, one handler at a
// time, in subscription order:
//
//	bus := events.NewBus(logger)
//	bus.Subscribe("cocktail", sync.Handle)
//
//	err := bus.Publish(ctx, events.ItemSaved("cocktail", 42))
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the type of lifecycle change.
type Kind int

const (
	// KindItemSaved is emitted when an item is created or updated, including
	// status changes such as unpublishing.
	KindItemSaved Kind = iota
	// KindItemDeleted is emitted when an item is permanently deleted.
	KindItemDeleted
	// KindTermEdited is emitted when a taxonomy term is renamed or its custom
	// fields change.
	KindTermEdited
	// KindTermDeleted is emitted when a taxonomy term is deleted.
	KindTermDeleted
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindItemSaved:
		return "item.saved"
	case KindItemDeleted:
		return "item.deleted"
	case KindTermEdited:
		return "term.edited"
	case KindTermDeleted:
		return "term.deleted"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindItemSaved, KindItemDeleted, KindTermEdited, KindTermDeleted} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// Event is one lifecycle notification.
type Event struct {
	// ID correlates log lines of one event across handlers.
	ID string

	Kind Kind

	// ContentType is the type of the item. Term events leave it empty since
	// a term may be shared by several content types.
	ContentType string

	// ItemID is set for item events.
	ItemID int64

	// TermID is set for term events.
	TermID int64

	Timestamp time.Time
}

// ItemSaved builds a KindItemSaved event.
func ItemSaved(contentType string, itemID int64) Event {
	return newEvent(KindItemSaved, contentType, itemID, 0)
}

// ItemDeleted builds a KindItemDeleted event.
func ItemDeleted(contentType string, itemID int64) Event {
	return newEvent(KindItemDeleted, contentType, itemID, 0)
}

// TermEdited builds a KindTermEdited event.
func TermEdited(termID int64) Event {
	return newEvent(KindTermEdited, "", 0, termID)
}

// TermDeleted builds a KindTermDeleted event.
func TermDeleted(termID int64) Event {
	return newEvent(KindTermDeleted, "", 0, termID)
}

func newEvent(kind Kind, contentType string, itemID, termID int64) Event {
	return Event{
		ID:          uuid.NewString(),
		Kind:        kind,
		ContentType: contentType,
		ItemID:      itemID,
		TermID:      termID,
		Timestamp:   time.Now(),
	}
}

// IsItem reports whether the event concerns an item.
func (e Event) IsItem() bool {
	return e.Kind == KindItemSaved || e.Kind == KindItemDeleted
}
