package guild

import (
	"context"

	"github.com/alem-hub/guild-leveling/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository is the record store contract consumed by the progression engine.
// Implementations live in the infrastructure layer (file, badger, sqlite,
// postgres, redis, mongo).
//
// Both methods must be safe to call with a key that does not exist yet.
type Repository interface {
	// GetGuild returns the guild document. A missing guild yields
	// ErrGuildNotFound rather than a store failure.
	GetGuild(ctx context.Context, guildID string) (*Guild, error)

	// PutGuild fully replaces (upserts) the guild document and returns the
	// stored version.
	PutGuild(ctx context.Context, g *Guild) (*Guild, error)
}

// Pinger is implemented by repositories that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ErrGuildNotFound is returned by repositories for absent guilds.
var ErrGuildNotFound = shared.NewDomainError("guild", "Get", shared.ErrNotFound, "guild not found")
