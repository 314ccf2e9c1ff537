package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/LeulTew/aura/internal/config"
	"github.com/LeulTew/aura/internal/extractor"
	"github.com/LeulTew/aura/internal/facestore"
	"github.com/LeulTew/aura/internal/facestore/postgres"
	"github.com/LeulTew/aura/internal/usage"
)

// backend bundles the storage layer selected by STORE_BACKEND.
type backend struct {
	store facestore.Store
	local *facestore.Local // non-nil for the embedded backend
	pool  *postgres.Pool   // non-nil for the PostgreSQL backend
	usage usage.Logger
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func newExtractorClient(cfg *config.Config) *extractor.Client {
	return extractor.NewClient(cfg.Extractor.URL, time.Duration(cfg.Extractor.TimeoutSeconds)*time.Second)
}

// openBackend initializes the store named by the configuration. The
// embedded backend loads its snapshot; PostgreSQL runs migrations.
func openBackend(cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Store.Backend {
	case "local":
		local := facestore.NewLocal(cfg.Store.IndexPath)
		if err := local.Load(); err != nil {
			return nil, fmt.Errorf("loading local index: %w", err)
		}
		logger.Info("using embedded store", "faces", local.Count(), "path", cfg.Store.IndexPath)
		return &backend{store: local, local: local, usage: usage.NopLogger{}}, nil

	case "postgres":
		pool, err := postgres.Initialize(&cfg.Database)
		if err != nil {
			return nil, err
		}
		logger.Info("using PostgreSQL backend")
		return &backend{
			store: postgres.NewPhotoRepository(pool, cfg.Store.Dim),
			pool:  pool,
			usage: postgres.NewUsageLogger(pool, logger),
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q (want postgres or local)", cfg.Store.Backend)
	}
}

// close flushes the embedded snapshot and releases the pool.
func (b *backend) close(logger *slog.Logger) {
	if b.local != nil {
		if err := b.local.Save(); err != nil {
			logger.Warn("failed to save local index", "error", err)
		}
	}
	if b.pool != nil {
		if err := b.pool.Close(); err != nil {
			logger.Warn("failed to close database pool", "error", err)
		}
	}
}
