package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/logging"
)

// Handler reacts to one event.
type Handler func(ctx context.Context, ev Event) error

type subscription struct {
	name    string
	handler Handler
}

// Bus dispatches events to its subscribers sequentially.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *slog.Logger
}

// NewBus creates an empty Bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logging.OrDefault(logger)}
}

// Subscribe registers h under name. Handlers run in subscription order.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{name: name, handler: h})
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers ev to every subscriber. A failing handler does not stop
// delivery to the others; all failures are returned joined.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	b.logger.Debug("event_published",
		slog.String("event_id", ev.ID),
		slog.String("kind", ev.Kind.String()),
		slog.String("content_type", ev.ContentType),
		slog.Int64("item_id", ev.ItemID),
		slog.Int64("term_id", ev.TermID))

	var errs []error
	for _, s := range subs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.handler(ctx, ev); err != nil {
			b.logger.Warn("event_handler_failed",
				slog.String("event_id", ev.ID),
				slog.String("subscriber", s.name),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
