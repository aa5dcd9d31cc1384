// Package cache stores short-lived sync state: index handles, record
// existence and query results. Entries are advisory; a hit means "likely
// still true", never a consistency guarantee.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Entry lifetimes.
const (
	HandleTTL    = 3600 * time.Second
	ExistenceTTL = 3600 * time.Second
	QueryTTL     = 600 * time.Second
)

// Store is a key/value store with per-entry expiry.
// There are no cross-key transactions.
type Store interface {
	// Get returns the value and true on a live hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value until ttl elapses. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// HandleKey is the index-handle cache key.
func HandleKey(indexName string) string {
	return "index-initialized-" + indexName
}

// ExistenceKey is the record existence cache key.
func ExistenceKey(contentType string, contentID int64) string {
	return "index-object-" + contentType + "-" + strconv.FormatInt(contentID, 10)
}

// QueryKey is the query-result cache key.
func QueryKey(indexName, locale string) string {
	return "query-" + indexName + "-" + locale
}

// GetJSON decodes a cached JSON value into dst. A value that fails to decode
// is treated as a miss.
func GetJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	data, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, nil
	}
	return true, nil
}

// SetJSON encodes v as JSON and stores it.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value %s: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
