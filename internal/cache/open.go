package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/config"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/logging"
)

// Open creates the Store selected by cfg.
func Open(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (Store, error) {
	logger = logging.OrDefault(logger)

	switch cfg.Backend {
	case config.CacheMemory, "":
		return NewMemoryStore(cfg.MaxEntries), nil

	case config.CacheSQLite:
		s, err := NewSQLiteStore(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		if n, err := s.Purge(ctx); err != nil {
			logger.Warn("cache_purge_failed", slog.String("error", err.Error()))
		} else if n > 0 {
			logger.Debug("cache_purged", slog.Int64("entries", n))
		}
		return s, nil

	case config.CacheBadger:
		return NewBadgerStore(cfg.Path)

	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
