package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
)

// GuildStore implements guild.Repository on a Cache.
type GuildStore struct {
	cache  *Cache
	prefix string
	client *redis.Client
}

// Open connects to Redis and returns a guild store.
func Open(cfg Config) (*GuildStore, error) {
	cache, client, err := NewCache(cfg)
	if err != nil {
		return nil, err
	}
	s := NewGuildStore(cache, cfg.KeyPrefix)
	s.client = client
	return s, nil
}

// NewGuildStore wraps an existing cache.
func NewGuildStore(cache *Cache, prefix string) *GuildStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &GuildStore{cache: cache, prefix: prefix}
}

// Client returns the underlying go-redis client, or nil when the store was
// built over a custom KV. The event relay shares it.
func (s *GuildStore) Client() *redis.Client {
	return s.client
}

// Key returns the Redis key of a guild.
func (s *GuildStore) Key(guildID string) string {
	return s.prefix + guildID
}

// GetGuild implements guild.Repository.
func (s *GuildStore) GetGuild(ctx context.Context, guildID string) (*guild.Guild, error) {
	var g guild.Guild
	if err := s.cache.Get(ctx, s.Key(guildID), &g); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, guild.ErrGuildNotFound
		}
		return nil, fmt.Errorf("get guild %s: %w", guildID, err)
	}
	if g.Members == nil {
		g.Members = []guild.Member{}
	}
	return &g, nil
}

// PutGuild implements guild.Repository.
func (s *GuildStore) PutGuild(ctx context.Context, g *guild.Guild) (*guild.Guild, error) {
	if err := s.cache.Set(ctx, s.Key(g.ID), g); err != nil {
		return nil, fmt.Errorf("put guild %s: %w", g.ID, err)
	}
	return g.Clone(), nil
}

// Ping implements guild.Pinger.
func (s *GuildStore) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

// Close closes the connection.
func (s *GuildStore) Close() error {
	return s.cache.Close()
}

var (
	_ guild.Repository = (*GuildStore)(nil)
	_ guild.Pinger     = (*GuildStore)(nil)
)
