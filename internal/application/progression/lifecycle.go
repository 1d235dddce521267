package progression

import (
	"context"
	"errors"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
	"github.com/alem-hub/guild-leveling/internal/domain/shared"
	"github.com/alem-hub/guild-leveling/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// EnsureGuild returns the guild record, creating an empty one if it does
// not exist yet. An existing record is never overwritten.
func (e *Engine) EnsureGuild(ctx context.Context, guildID string) (g *guild.Guild, err error) {
	const op = "EnsureGuild"
	if err := validateGuild(op, guildID); err != nil {
		return nil, err
	}
	if err := e.checkReady(op); err != nil {
		return nil, err
	}

	ctx, finish := e.startOp(ctx, op, guildID, "")
	defer func() { finish(err) }()

	unlock := e.lockGuild(guildID)
	defer unlock()

	g, created, err := e.loadGuild(ctx, op, guildID)
	if err != nil || !created {
		return g, err
	}
	return e.save(ctx, op, g)
}

// EnsureMember returns the member record, creating {level 1, xp 0} on first
// reference. A call writes at most once: a missing guild and a missing
// member are created together.
func (e *Engine) EnsureMember(ctx context.Context, guildID, memberID string) (m guild.Member, err error) {
	const op = "EnsureMember"
	if err := validateMember(op, guildID, memberID); err != nil {
		return guild.Member{}, err
	}
	if err := e.checkReady(op); err != nil {
		return guild.Member{}, err
	}

	ctx, finish := e.startOp(ctx, op, guildID, memberID)
	defer func() { finish(err) }()

	unlock := e.lockGuild(guildID)
	defer unlock()

	_, m, err = e.ensureMember(ctx, op, guildID, memberID)
	return m, err
}

// loadGuild reads the guild. A missing guild comes back as a new, unsaved
// document with created set.
func (e *Engine) loadGuild(ctx context.Context, op, guildID string) (*guild.Guild, bool, error) {
	g, err := e.repo.GetGuild(ctx, guildID)
	switch {
	case errors.Is(err, shared.ErrNotFound) || (err == nil && g == nil):
		return guild.NewGuild(guildID), true, nil
	case err != nil:
		e.logger.Error("failed to read guild", logger.Operation(op), logger.GuildID(guildID), logger.Err(err))
		return nil, false, storeError(op, "read guild", err)
	}

	if g.Members == nil {
		g.Members = []guild.Member{}
	}
	return g, false, nil
}

// ensureMember loads the guild, adds the member if missing and persists the
// document when anything was created.
func (e *Engine) ensureMember(ctx context.Context, op, guildID, memberID string) (*guild.Guild, guild.Member, error) {
	g, created, err := e.loadGuild(ctx, op, guildID)
	if err != nil {
		return nil, guild.Member{}, err
	}

	m, added := g.AddMember(memberID)
	if !created && !added {
		return g, m, nil
	}

	g, err = e.save(ctx, op, g)
	if err != nil {
		return nil, guild.Member{}, err
	}

	e.logger.Debug("member record created",
		logger.Operation(op),
		logger.GuildID(guildID),
		logger.MemberID(memberID),
		logger.Bool("guild_created", created),
	)
	return g, m, nil
}

// save writes the document and returns the stored version.
func (e *Engine) save(ctx context.Context, op string, g *guild.Guild) (*guild.Guild, error) {
	saved, err := e.repo.PutGuild(ctx, g)
	if err != nil {
		e.logger.Error("failed to write guild", logger.Operation(op), logger.GuildID(g.ID), logger.Err(err))
		return nil, storeError(op, "write guild", err)
	}
	if saved == nil {
		saved = g
	}
	return saved, nil
}
