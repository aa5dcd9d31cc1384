package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryEntries bounds the in-memory cache.
const DefaultMemoryEntries = 4096

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a process-local Store backed by an LRU.
// The least recently used entry is evicted once the size limit is reached.
type MemoryStore struct {
	cache *lru.Cache[string, memoryEntry]
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a memory store holding at most size entries.
func NewMemoryStore(size int) *MemoryStore {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	c, _ := lru.New[string, memoryEntry](size)
	return &MemoryStore{cache: c, now: time.Now}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.cache.Remove(key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.cache.Add(key, memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: expiry(m.now(), ttl),
	})
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.cache.Remove(key)
	return nil
}

// Len returns the number of entries, expired ones included.
func (m *MemoryStore) Len() int {
	return m.cache.Len()
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.cache.Purge()
	return nil
}
