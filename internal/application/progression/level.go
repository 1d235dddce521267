package progression

import (
	"context"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
)

// AddLevel raises the member's level. XP is not touched.
func (e *Engine) AddLevel(ctx context.Context, guildID, memberID string, amount int) (guild.Member, error) {
	return e.Add(ctx, guildID, memberID, guild.PropertyLevel, amount)
}

// SubtractLevel lowers the member's level. It refuses to go below 1.
func (e *Engine) SubtractLevel(ctx context.Context, guildID, memberID string, amount int) (guild.Member, error) {
	return e.Subtract(ctx, guildID, memberID, guild.PropertyLevel, amount)
}

// SetLevel overwrites the member's level. amount must be at least 1.
func (e *Engine) SetLevel(ctx context.Context, guildID, memberID string, amount int) (guild.Member, error) {
	return e.Set(ctx, guildID, memberID, guild.PropertyLevel, amount)
}

// Get returns the member record, creating it on first reference.
func (e *Engine) Get(ctx context.Context, guildID, memberID string) (guild.Member, error) {
	return e.read(ctx, "Get", guildID, memberID)
}

func (e *Engine) read(ctx context.Context, op, guildID, memberID string) (m guild.Member, err error) {
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
