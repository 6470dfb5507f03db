package server

import (
	"context"
	"fmt"
	"log"

	"github.com/adfharrison1/go-securedocs/pkg/config"
	"github.com/adfharrison1/go-securedocs/pkg/domain"
	"github.com/adfharrison1/go-securedocs/pkg/storage"
	"github.com/adfharrison1/go-securedocs/pkg/storage/mongostore"
	"github.com/adfharrison1/go-securedocs/pkg/storage/pgstore"
	"github.com/adfharrison1/go-securedocs/pkg/storage/redisstore"
)

// openStore connects to the configured backend. Remote backends are pinged
// before this returns.
func openStore(ctx context.Context, cfg *config.Config) (domain.DocumentStore, func(context.Context) error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return openMemory(cfg)

	case config.BackendMongo:
		store, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("INFO: Connected to MongoDB database '%s'", cfg.Database)
		return store, store.Close, nil

	case config.BackendPostgres:
		store, err := pgstore.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("INFO: Connected to PostgreSQL")
		return store, func(context.Context) error { store.Close(); return nil }, nil

	case config.BackendRedis:
		store, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("INFO: Connected to Redis")
		return store, func(context.Context) error { return store.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func openMemory(cfg *config.Config) (domain.DocumentStore, func(context.Context) error, error) {
	var storageOptions []storage.StorageOption

	if cfg.DataDir != "" {
		storageOptions = append(storageOptions, storage.WithDataDir(cfg.DataDir))
		log.Printf("INFO: Using data directory: %s", cfg.DataDir)
	} else {
		log.Printf("WARN: No data directory - documents are kept in memory only")
	}

	if cfg.BackgroundSave > 0 {
		storageOptions = append(storageOptions, storage.WithBackgroundSave(cfg.BackgroundSave))
		log.Printf("INFO: Background save enabled: every %v", cfg.BackgroundSave)
	}

	engine := storage.NewStorageEngine(storageOptions...)
	if err := engine.Load(); err != nil {
		return nil, nil, fmt.Errorf("load data directory: %w", err)
	}
	engine.StartBackgroundWorkers()

	return engine, func(context.Context) error {
		engine.StopBackgroundWorkers()
		return nil
	}, nil
}
