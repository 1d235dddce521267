// Package memory implements an in-process guild store. Data lives only as
// long as the process.
package memory

import (
	"context"
	"sync"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
)

// Store keeps guild documents in a map. It hands out deep copies so
// callers never share state with the store.
type Store struct {
	mu     sync.RWMutex
	guilds map[string]*guild.Guild
}

// New creates an empty store.
func New() *Store {
	return &Store{guilds: make(map[string]*guild.Guild)}
}

// GetGuild implements guild.Repository.
func (s *Store) GetGuild(_ context.Context, guildID string) (*guild.Guild, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.guilds[guildID]
	if !ok {
		return nil, guild.ErrGuildNotFound
	}
	return g.Clone(), nil
}

// PutGuild implements guild.Repository.
func (s *Store) PutGuild(_ context.Context, g *guild.Guild) (*guild.Guild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.guilds[g.ID] = g.Clone()
	return g.Clone(), nil
}

// Ping implements guild.Pinger.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored guilds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.guilds)
}

var (
	_ guild.Repository = (*Store)(nil)
	_ guild.Pinger     = (*Store)(nil)
)
