package persistence

import (
	"context"
	"fmt"
	"io"

	"github.com/alem-hub/guild-leveling/config"
	"github.com/alem-hub/guild-leveling/internal/domain/guild"
	"github.com/alem-hub/guild-leveling/internal/infrastructure/persistence/badger"
	"github.com/alem-hub/guild-leveling/internal/infrastructure/persistence/jsonfile"
	"github.com/alem-hub/guild-leveling/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/guild-leveling/internal/infrastructure/persistence/mongo"
	"github.com/alem-hub/guild-leveling/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/guild-leveling/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/guild-leveling/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/guild-leveling/pkg/logger"
)

// Store is an opened record store. Close releases whatever the driver holds.
type Store struct {
	guild.Repository
	Driver string
	closer io.Closer
}

// Close closes the underlying store.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Ping forwards to the underlying store when it supports readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.Repository.(guild.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Open opens the store selected by cfg.Driver. Networked drivers are wrapped
// in Resilient.
func Open(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}

	repo, err := openDriver(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	s := &Store{Repository: repo, Driver: cfg.Driver}
	if c, ok := repo.(io.Closer); ok {
		s.closer = c
	}

	switch cfg.Driver {
	case config.DriverPostgres, config.DriverRedis, config.DriverMongo:
		r := NewResilient(cfg.Driver, repo, ResilienceConfig{
			MaxAttempts:      cfg.Retry.MaxAttempts,
			InitialDelay:     cfg.Retry.InitialDelay,
			BreakerThreshold: cfg.Retry.BreakerThreshold,
			BreakerTimeout:   cfg.Retry.BreakerTimeout,
			Timeout:          cfg.Timeout,
		}, log)
		s.Repository = r
		s.closer = r
	}

	log.Info("store opened", logger.String("driver", cfg.Driver))
	return s, nil
}

func openDriver(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (guild.Repository, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil

	case config.DriverJSON:
		return jsonfile.Open(jsonfile.Config{Dir: cfg.JSON.Dir, Name: cfg.JSON.Name}, log)

	case config.DriverBadger:
		bc := badger.DefaultConfig()
		bc.Path = cfg.Badger.Path
		bc.InMemory = cfg.Badger.InMemory
		bc.SyncWrites = cfg.Badger.SyncWrites
		bc.Logger = log
		return badger.Open(bc)

	case config.DriverSQLite:
		return sqlite.Open(cfg.SQLite.Path)

	case config.DriverPostgres:
		return postgres.Open(ctx, PostgresConfig(cfg.Postgres))

	case config.DriverRedis:
		rc := redis.DefaultConfig()
		rc.Addr = cfg.Redis.Addr
		rc.Password = cfg.Redis.Password
		rc.DB = cfg.Redis.DB
		if cfg.Redis.KeyPrefix != "" {
			rc.KeyPrefix = cfg.Redis.KeyPrefix
		}
		if cfg.Redis.PoolSize > 0 {
			rc.PoolSize = cfg.Redis.PoolSize
		}
		return redis.Open(rc)

	case config.DriverMongo:
		mc := mongo.DefaultConfig()
		mc.URI = cfg.Mongo.URI
		mc.Database = cfg.Mongo.Database
		mc.Collection = cfg.Mongo.Collection
		return mongo.Open(ctx, mc)

	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}

// PostgresConfig maps the store settings onto the pool config, keeping
// pool defaults for unset values.
func PostgresConfig(cfg config.PostgresStoreConfig) postgres.Config {
	pc := postgres.DefaultConfig()
	pc.URL = cfg.URL
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pc.Migrate = cfg.Migrate
	return pc
}
