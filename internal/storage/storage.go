// Package storage opens the persistence backend named by configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"transact/internal/blob"
	"transact/internal/config"
	"transact/internal/infra/persistence/memory"
	"transact/internal/infra/persistence/objectstore"
	"transact/internal/infra/persistence/postgres"
	"transact/internal/infra/persistence/redisstore"
	"transact/internal/infra/persistence/session"
	"transact/internal/infra/persistence/sqlite"
	"transact/pkg/domain"
)

// Backend is the surface shared by every persistence store.
type Backend interface {
	NewUnitOfWork(opts ...session.Option) *session.Session
	Load(ctx context.Context, typ domain.EntityType, key string, dst any) (bool, error)
	Close() error
}

var (
	_ Backend = (*sqlite.Store)(nil)
	_ Backend = (*postgres.Store)(nil)
	_ Backend = (*redisstore.Store)(nil)
)

// unclosable adapts stores that hold no external handle.
type unclosable struct {
	store interface {
		NewUnitOfWork(opts ...session.Option) *session.Session
		Load(ctx context.Context, typ domain.EntityType, key string, dst any) (bool, error)
	}
}

func (u unclosable) NewUnitOfWork(opts ...session.Option) *session.Session {
	return u.store.NewUnitOfWork(opts...)
}

func (u unclosable) Load(ctx context.Context, typ domain.EntityType, key string, dst any) (bool, error) {
	return u.store.Load(ctx, typ, key, dst)
}

func (unclosable) Close() error { return nil }

// Open selects a backend from cfg. opts apply to every unit of work the
// backend creates.
//
//	memory:   process-local maps
//	sqlite:   embedded file at SQLite.Path
//	postgres: server at Postgres.DSN
//	redis:    server at Redis.Addr
//	s3:       objects in S3.Bucket
//	fs:       objects under FS.Root
func Open(ctx context.Context, cfg config.StorageConfig, opts ...session.Option) (Backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return unclosable{memory.NewStore(opts...)}, nil
	case config.DriverSQLite, "":
		return sqlite.NewStore(cfg.SQLite.Path, opts...)
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.Postgres.DSN, opts...)
	case config.DriverRedis:
		return redisstore.Open(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
			redisstore.WithPrefix(cfg.Redis.Prefix),
			redisstore.WithMaxRetries(cfg.Redis.MaxRetries),
			redisstore.WithBackoff(cfg.Redis.Backoff),
			redisstore.WithSessionOptions(opts...),
		)
	case config.DriverS3, config.DriverFS:
		objects, err := blob.Open(ctx, blobConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("open object store: %w", err)
		}
		return unclosable{objectstore.NewStore(objects, opts...)}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

func blobConfig(cfg config.StorageConfig) blob.Config {
	if cfg.Driver == config.DriverFS {
		return blob.Config{Driver: blob.DriverFilesystem, FSRoot: cfg.FS.Root}
	}
	return blob.Config{
		Driver: blob.DriverS3,
		S3: blob.S3Config{
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PathStyle:       cfg.S3.PathStyle,
		},
	}
}
