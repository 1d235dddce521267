// Package sqlite implements the embedded SQL guild store. Guild documents
// are kept as JSON text in a single table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
)

const schema = `
CREATE TABLE IF NOT EXISTS guilds (
    id         TEXT PRIMARY KEY,
    doc        TEXT NOT NULL,
    updated_at INTEGER NOT NULL
)`

// Store persists guild documents in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the database file and creates the table if needed.
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer; also keeps ":memory:" on a single connection
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// GetGuild implements guild.Repository.
func (s *Store) GetGuild(ctx context.Context, guildID string) (*guild.Guild, error) {
	var doc string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT doc FROM guilds WHERE id = ?`, guildID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, guild.ErrGuildNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get guild %s: %w", guildID, err)
	}

	var g guild.Guild
	if err := json.Unmarshal([]byte(doc), &g); err != nil {
		return nil, fmt.Errorf("decode guild %s: %w", guildID, err)
	}
	if g.Members == nil {
		g.Members = []guild.Member{}
	}
	return &g, nil
}

// PutGuild implements guild.Repository.
func (s *Store) PutGuild(ctx context.Context, g *guild.Guild) (*guild.Guild, error) {
	doc, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode guild %s: %w", g.ID, err)
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO guilds (id, doc, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		g.ID, string(doc), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("put guild %s: %w", g.ID, err)
	}
	return g.Clone(), nil
}

// Ping implements guild.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

var (
	_ guild.Repository = (*Store)(nil)
	_ guild.Pinger     = (*Store)(nil)
)
