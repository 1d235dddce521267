// Package badger implements the embedded key-value guild store on BadgerDB.
// Each guild is one JSON value under "guild/<id>".
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
	"github.com/alem-hub/guild-leveling/pkg/logger"
)

// Config configures the badger store.
type Config struct {
	// Path is the database directory. Required unless InMemory.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is passed to RunValueLogGC.
	GCDiscardRatio float64

	Logger *logger.Logger
}

// DefaultConfig returns the on-disk defaults.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

const keyPrefix = "guild/"

func guildKey(id string) []byte {
	return []byte(keyPrefix + id)
}

// badgerLogger routes badger's internal logging into the structured logger.
type badgerLogger struct {
	logger *logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store implements guild.Repository on a badger database.
type Store struct {
	db     *badger.DB
	logger *logger.Logger
	stopGC chan struct{}
	doneGC chan struct{}
}

// Open opens (or creates) the database.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("badger"))
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: log})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{db: db, logger: log}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.startGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// GetGuild implements guild.Repository.
func (s *Store) GetGuild(_ context.Context, guildID string) (*guild.Guild, error) {
	var g guild.Guild
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(guildKey(guildID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &g)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, guild.ErrGuildNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get guild %s: %w", guildID, err)
	}
	if g.Members == nil {
		g.Members = []guild.Member{}
	}
	return &g, nil
}

// PutGuild implements guild.Repository.
func (s *Store) PutGuild(_ context.Context, g *guild.Guild) (*guild.Guild, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("marshal guild %s: %w", g.ID, err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(guildKey(g.ID), data)
	}); err != nil {
		return nil, fmt.Errorf("put guild %s: %w", g.ID, err)
	}
	return g.Clone(), nil
}

// Ping implements guild.Pinger.
func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.doneGC
		s.stopGC = nil
	}
	return s.db.Close()
}

func (s *Store) startGC(interval time.Duration, ratio float64) {
	s.stopGC = make(chan struct{})
	s.doneGC = make(chan struct{})

	go func() {
		defer close(s.doneGC)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopGC:
				return
			case <-ticker.C:
				if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
					s.logger.Warn("badger value log GC error", logger.Err(err))
				}
			}
		}
	}()
}

var (
	_ guild.Repository = (*Store)(nil)
	_ guild.Pinger     = (*Store)(nil)
)
