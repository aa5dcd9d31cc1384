package store

import (
	"fmt"
	"log/slog"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/config"
	syncerr "github.com/Mill3/1ou2cocktails-algolia-sync/internal/errors"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/index"
)

// Open creates the index.Client selected by cfg.Index.Backend.
func Open(cfg *config.Config, logger *slog.Logger) (index.Client, error) {
	switch cfg.Index.Backend {
	case config.BackendAlgolia, "":
		return NewAlgoliaClient(AlgoliaConfig{
			ApplicationID: cfg.Index.ApplicationID,
			APIKey:        cfg.Index.AdminAPIKey,
			Host:          cfg.Index.Host,
			Timeout:       cfg.TimeoutDuration(),
			Retry:         syncerr.DefaultRetryConfig(),
		}, logger)

	case config.BackendBleve:
		return NewBleveClient(cfg.IndexesDir(), logger)

	default:
		return nil, fmt.Errorf("unknown index backend %q (valid options: algolia, bleve)", cfg.Index.Backend)
	}
}
