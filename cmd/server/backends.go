package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/kfchess/identity/migrations"
	"github.com/kfchess/identity/pkg/config"
	"github.com/kfchess/identity/pkg/file"
	"github.com/kfchess/identity/pkg/httpserver"
	"github.com/kfchess/identity/pkg/logger"
	"github.com/kfchess/identity/pkg/mongo"
	"github.com/kfchess/identity/pkg/pg"
	"github.com/kfchess/identity/pkg/redis"
	"github.com/kfchess/identity/pkg/session"
	"github.com/kfchess/identity/svc/directory"
	"github.com/kfchess/identity/svc/history"
)

const (
	backendPostgres = "postgres"
	backendMongo    = "mongo"
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendS3       = "s3"
	backendLocal    = "local"
)

// backends opens infrastructure on demand and remembers how to close it.
type backends struct {
	log *slog.Logger

	pool  *pgxpool.Pool
	mongo *mongodriver.Database

	uploadsDir    string
	uploadsPrefix string

	checks  []httpserver.Check
	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func (b *backends) postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if b.pool != nil {
		return b.pool, nil
	}
	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, pool.Close)
	b.checks = append(b.checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})

	if cfg.AutoMigrate {
		if err := pg.Migrate(ctx, pool, migrations.FS, migrations.Dir, cfg, b.log); err != nil {
			return nil, err
		}
	}
	b.pool = pool
	return pool, nil
}

func (b *backends) directory(ctx context.Context, backend string) (directory.Directory, error) {
	if backend == backendMemory {
		b.log.WarnContext(ctx, "user directory is in memory; accounts are lost on restart", logger.Component("server"))
		return directory.NewMemoryDirectory(), nil
	}
	pool, err := b.postgres(ctx)
	if err != nil {
		return nil, err
	}
	return directory.NewPostgresDirectory(pool), nil
}

func (b *backends) history(ctx context.Context, backend string) (history.Store, error) {
	switch backend {
	case backendMemory:
		return history.NewMemoryStore(), nil
	case backendMongo:
		db, err := b.mongoDB(ctx)
		if err != nil {
			return nil, err
		}
		store := history.NewMongoStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}
	pool, err := b.postgres(ctx)
	if err != nil {
		return nil, err
	}
	return history.NewPostgresStore(pool), nil
}

func (b *backends) mongoDB(ctx context.Context) (*mongodriver.Database, error) {
	if b.mongo != nil {
		return b.mongo, nil
	}
	var cfg mongo.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	db, err := mongo.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, func() {
		_ = db.Client().Disconnect(context.Background())
	})
	b.checks = append(b.checks, httpserver.Check{Name: "mongo", Fn: mongo.Healthcheck(db.Client())})
	b.mongo = db
	return db, nil
}

func (b *backends) storage(ctx context.Context, backend string) (file.Storage, error) {
	if backend == backendS3 {
		var cfg file.S3Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		return file.NewS3Storage(ctx, cfg)
	}

	var cfg file.LocalConfig
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	local, err := file.NewLocalStorage(cfg.Dir, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	// Serve uploads ourselves only when the base URL is a local path.
	if strings.HasPrefix(cfg.BaseURL, "/") {
		b.uploadsDir = local.Dir()
		b.uploadsPrefix = strings.TrimSuffix(cfg.BaseURL, "/") + "/"
	}
	return local, nil
}

func (b *backends) sessionStore(ctx context.Context, cfg session.Config) (session.Store, error) {
	if cfg.Backend != backendRedis {
		store := session.NewMemoryStore(cfg.CleanupInterval)
		b.closers = append(b.closers, func() { _ = store.Close() })
		return store, nil
	}

	var rcfg redis.Config
	if err := config.Load(&rcfg); err != nil {
		return nil, err
	}
	client, err := redis.Connect(ctx, rcfg)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, func() { _ = client.Close() })
	b.checks = append(b.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
	return session.NewRedisStore(client, rcfg.SessionPrefix), nil
}
