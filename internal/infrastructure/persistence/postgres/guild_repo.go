package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
)

// ══════════════════════════════════════════════════════════════════════════════
// GUILD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// GuildRepository implements guild.Repository for PostgreSQL.
type GuildRepository struct {
	db   Querier
	conn *Connection // nil when built over a bare Querier
}

// NewGuildRepository creates a repository over an open connection.
func NewGuildRepository(conn *Connection) *GuildRepository {
	return &GuildRepository{db: conn, conn: conn}
}

// NewGuildRepositoryWithQuerier creates a repository over any Querier,
// e.g. a pgx.Tx.
func NewGuildRepositoryWithQuerier(q Querier) *GuildRepository {
	return &GuildRepository{db: q}
}

// Open connects, applies migrations when configured and returns the
// repository. Close releases the pool.
func Open(ctx context.Context, cfg Config) (*GuildRepository, error) {
	conn, err := NewConnection(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Migrate {
		if err := NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return NewGuildRepository(conn), nil
}

// GetGuild implements guild.Repository.
func (r *GuildRepository) GetGuild(ctx context.Context, guildID string) (*guild.Guild, error) {
	query := `
		SELECT doc
		FROM leveling_guilds
		WHERE id = $1
	`

	var doc []byte
	if err := r.db.QueryRow(ctx, query, guildID).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, guild.ErrGuildNotFound
		}
		return nil, fmt.Errorf("postgres: get guild %s: %w", guildID, err)
	}

	var g guild.Guild
	if err := json.Unmarshal(doc, &g); err != nil {
		return nil, fmt.Errorf("postgres: decode guild %s: %w", guildID, err)
	}
	if g.ID == "" {
		g.ID = guildID
	}
	if g.Members == nil {
		g.Members = []guild.Member{}
	}

	return &g, nil
}

// PutGuild implements guild.Repository.
func (r *GuildRepository) PutGuild(ctx context.Context, g *guild.Guild) (*guild.Guild, error) {
	query := `
		INSERT INTO leveling_guilds (id, doc, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT(id) DO UPDATE SET
			doc = EXCLUDED.doc,
			updated_at = EXCLUDED.updated_at
	`

	doc, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode guild %s: %w", g.ID, err)
	}

	if _, err := r.db.Exec(ctx, query, g.ID, doc); err != nil {
		return nil, fmt.Errorf("postgres: put guild %s: %w", g.ID, err)
	}

	return g.Clone(), nil
}

// Ping implements guild.Pinger.
func (r *GuildRepository) Ping(ctx context.Context) error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Ping(ctx)
}

// Close releases the pool.
func (r *GuildRepository) Close() error {
	if r.conn != nil {
		r.conn.Close()
	}
	return nil
}

var (
	_ guild.Repository = (*GuildRepository)(nil)
	_ guild.Pinger     = (*GuildRepository)(nil)
)
