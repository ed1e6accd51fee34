package core

import (
	"context"
	"fmt"
	"strings"

	"signout/internal/blob"
	"signout/internal/infra/persistence/blobkv"
	"signout/internal/infra/persistence/memory"
	"signout/internal/infra/persistence/mongo"
	"signout/internal/infra/persistence/postgres"
	"signout/internal/infra/persistence/redis"
	"signout/internal/infra/persistence/sqlite"
	"signout/pkg/domain"
)

// StorageDriver identifies a concrete key/value backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageRedis    StorageDriver = "redis"    // Redis server
	StorageMongo    StorageDriver = "mongo"    // MongoDB server
	StorageBlob     StorageDriver = "blob"     // one object per key in a blob store
)

// StorageConfig carries the settings of every backend; only the fields of the
// selected Driver are read.
type StorageConfig struct {
	Driver StorageDriver

	SQLitePath string

	PostgresDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	MongoURI      string
	MongoDatabase string

	// Blob is used by the blob driver. BlobPrefix namespaces record objects.
	Blob       blob.Config
	BlobPrefix string
}

// OpenKeyValueStore selects a backend from cfg. Defaults to sqlite when the
// driver is unset.
func OpenKeyValueStore(ctx context.Context, cfg StorageConfig) (domain.KeyValueStore, error) {
	driver := StorageDriver(strings.ToLower(strings.TrimSpace(string(cfg.Driver))))
	if driver == "" {
		driver = StorageSQLite
	}
	var (
		kv  domain.KeyValueStore
		err error
	)
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		kv, err = openSQLite(ctx, cfg.SQLitePath)
	case StoragePostgres:
		kv, err = openPostgres(ctx, cfg.PostgresDSN)
	case StorageRedis:
		kv, err = openRedis(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case StorageMongo:
		kv, err = openMongo(ctx, mongo.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase})
	case StorageBlob:
		blobs, berr := blob.Open(ctx, cfg.Blob)
		if berr != nil {
			return nil, fmt.Errorf("open blob store: %w", berr)
		}
		return blobkv.NewStore(blobs, cfg.BlobPrefix), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	return kv, nil
}

// The open helpers keep a failed constructor's nil pointer out of the
// returned interface.

func openSQLite(ctx context.Context, path string) (domain.KeyValueStore, error) {
	s, err := sqlite.NewStore(ctx, path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openPostgres(ctx context.Context, dsn string) (domain.KeyValueStore, error) {
	s, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openRedis(ctx context.Context, opts redis.Options) (domain.KeyValueStore, error) {
	s, err := redis.NewStore(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openMongo(ctx context.Context, cfg mongo.Config) (domain.KeyValueStore, error) {
	s, err := mongo.NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}
