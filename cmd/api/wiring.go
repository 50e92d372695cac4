package main

import (
	"context"
	"fmt"
	"time"

	"ipstudio/internal/adapter/memstore"
	"ipstudio/internal/adapter/repo"
	"ipstudio/internal/adapter/sqlitestore"
	"ipstudio/internal/domain"
	"ipstudio/internal/infra"
	"ipstudio/internal/poller"
	"ipstudio/internal/providers"
	"ipstudio/internal/providers/image"
	"ipstudio/internal/providers/model3d"
	"ipstudio/internal/storage"
)

const syntheticDelay = 2 * time.Second

type stores struct {
	tasks      domain.TaskStore
	characters domain.CharacterRepository
	close      func()
}

// openStores selects the task and character backends from TASK_STORE.
func openStores(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*stores, error) {
	switch cfg.TaskStore {
	case infra.StorePostgres:
		if err := infra.MigrateUp(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		runner := infra.NewSQLRunner(pool, logger)
		return &stores{
			tasks:      repo.NewTaskRepository(runner),
			characters: repo.NewCharacterRepository(runner),
			close:      pool.Close,
		}, nil
	case infra.StoreSQLite:
		db, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &stores{
			tasks:      db.Tasks(),
			characters: db.Characters(),
			close: func() {
				if err := db.Close(); err != nil {
					logger.Error().Err(err).Msg("close sqlite")
				}
			},
		}, nil
	case infra.StoreMemory:
		logger.Warn().Msg("using in-memory store; tasks are lost on restart")
		return &stores{
			tasks:      memstore.NewTaskStore(),
			characters: memstore.NewCharacterStore(),
			close:      func() {},
		}, nil
	}
	return nil, fmt.Errorf("unsupported store %q", cfg.TaskStore)
}

// newProducers builds vendor clients, falling back to synthetic producers
// when a vendor has no API key.
func newProducers(cfg *infra.Config, files *storage.FileStore, logger infra.Logger) (providers.ImageProducer, providers.ModelProducer, error) {
	var (
		images providers.ImageProducer
		models providers.ModelProducer
	)
	if cfg.ImageAPIKey == "" {
		logger.Warn().Msg("IMAGE_API_KEY not set; using synthetic image producer")
		images = image.NewSynthetic(cfg.StorageBaseURL+"/synthetic", syntheticDelay)
	} else {
		client, err := image.NewClient(image.Options{
			APIKey:        cfg.ImageAPIKey,
			BaseURL:       cfg.ImageBaseURL,
			Model:         cfg.ImageModel,
			Logger:        &logger,
			Store:         files,
			PublicBaseURL: cfg.StorageBaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		images = client
	}

	if cfg.Model3DAPIKey == "" {
		logger.Warn().Msg("MODEL3D_API_KEY not set; using synthetic 3D producer")
		models = model3d.NewSynthetic(cfg.StorageBaseURL+"/synthetic", syntheticDelay)
	} else {
		client, err := model3d.NewClient(model3d.Options{
			APIKey:  cfg.Model3DAPIKey,
			BaseURL: cfg.Model3DBaseURL,
			Logger:  &logger,
			Poll: poller.Options{
				Interval:    cfg.Model3DPollInterval,
				MaxAttempts: cfg.Model3DPollMaxAttempts,
			},
		})
		if err != nil {
			return nil, nil, err
		}
		models = client
	}
	return images, models, nil
}
