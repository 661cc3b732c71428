package db

import (
	"context"
	"fmt"

	"github.com/influencer-marketplace/backend/internal/config"
	"github.com/influencer-marketplace/backend/internal/repositories"
	"github.com/influencer-marketplace/backend/internal/storage"
	"github.com/influencer-marketplace/backend/internal/storage/memory"
	"github.com/influencer-marketplace/backend/migrations"
	"go.uber.org/zap"
)

// OpenStore returns the store selected by STORAGE_DRIVER and a func that
// releases it. The postgres driver applies pending migrations when migrate is set.
func OpenStore(ctx context.Context, cfg *config.Config, migrate bool, log *zap.Logger) (storage.Store, func(), error) {
	if cfg.StorageDriver == "memory" {
		log.Info("using in-memory store")
		return memory.New(), func() {}, nil
	}

	pool, err := NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, log)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if migrate {
		if err := RunMigrations(pool, migrations.FS, log); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return repositories.NewStore(pool), pool.Close, nil
}
