// Package registry holds the synchronizers of every registered content type
// and routes read queries to them.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	syncerr "github.com/Mill3/1ou2cocktails-algolia-sync/internal/errors"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/index"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/synchronizer"
)

// Registry maps content type names to their synchronizer.
type Registry struct {
	mu      sync.RWMutex
	byType  map[string]*synchronizer.Synchronizer
	byIndex map[string]string
	order   []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byType:  make(map[string]*synchronizer.Synchronizer),
		byIndex: make(map[string]string),
	}
}

// Register adds s. A content type may be registered once, and two content
// types may not write to the same index: query results are cached per index
// and locale, so types sharing an index would be served each other's records.
func (r *Registry) Register(s *synchronizer.Synchronizer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, ok := r.byType[name]; ok {
		return syncerr.New(syncerr.ErrCodeDuplicateContentType,
			fmt.Sprintf("content type %q is already registered", name), nil)
	}

	names := s.IndexNames()
	for _, idx := range names {
		if owner, ok := r.byIndex[idx]; ok {
			return syncerr.New(syncerr.ErrCodeDuplicateContentType,
				fmt.Sprintf("content types %q and %q both resolve to index %q", owner, name, idx), nil).
				WithDetail("index", idx).
				WithDetail("reason", "query results are cached per index and locale").
				WithSuggestion("enable index.per_locale or give each content type its own prefix")
		}
	}

	r.byType[name] = s
	for _, idx := range names {
		r.byIndex[idx] = name
	}
	r.order = append(r.order, name)
	return nil
}

// Get returns the synchronizer of contentType.
func (r *Registry) Get(contentType string) (*synchronizer.Synchronizer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byType[contentType]
	return s, ok
}

// MustGet is Get returning an ErrCodeUnknownContentType error when absent.
func (r *Registry) MustGet(contentType string) (*synchronizer.Synchronizer, error) {
	s, ok := r.Get(contentType)
	if !ok {
		return nil, syncerr.New(syncerr.ErrCodeUnknownContentType,
			fmt.Sprintf("content type %q is not registered", contentType), nil).
			WithSuggestion(fmt.Sprintf("registered types: %v", r.Names()))
	}
	return s, nil
}

// Names returns the registered content types in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// All returns the synchronizers in registration order.
func (r *Registry) All() []*synchronizer.Synchronizer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*synchronizer.Synchronizer, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byType[name])
	}
	return out
}

// IndexNames returns every index written by a registered type, sorted.
func (r *Registry) IndexNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byIndex))
	for idx := range r.byIndex {
		names = append(names, idx)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered content types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType)
}

// Router resolves read queries by content type.
type Router struct {
	registry *Registry
}

// NewRouter creates a Router over r.
func NewRouter(r *Registry) *Router {
	return &Router{registry: r}
}

// Route returns every record of contentType for locale. An empty locale is
// the default locale of that content type. The boolean is false when no
// synchronizer is registered for contentType, in which case the response and
// error are nil.
func (rt *Router) Route(ctx context.Context, contentType, locale string) (*index.SearchResponse, bool, error) {
	s, ok := rt.registry.Get(contentType)
	if !ok {
		return nil, false, nil
	}
	resp, err := s.Query(ctx, locale)
	if err != nil {
		return nil, true, err
	}
	return resp, true, nil
}

// Locale returns the locale Route answers for. It is locale itself unless
// empty and contentType is registered.
func (rt *Router) Locale(contentType, locale string) string {
	if s, ok := rt.registry.Get(contentType); ok {
		return s.ResolveLocale(locale)
	}
	return locale
}
