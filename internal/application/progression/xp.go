package progression

import (
	"context"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
)

// AddXP adds amount XP and applies the level-up check. A NewLevel event is
// published for every level gained.
func (e *Engine) AddXP(ctx context.Context, guildID, memberID string, amount int) (guild.Member, error) {
	return e.Add(ctx, guildID, memberID, guild.PropertyXP, amount)
}

// SubtractXP removes amount XP. It refuses to go below zero.
func (e *Engine) SubtractXP(ctx context.Context, guildID, memberID string, amount int) (guild.Member, error) {
	return e.Subtract(ctx, guildID, memberID, guild.PropertyXP, amount)
}

// SetXP overwrites the member's XP.
func (e *Engine) SetXP(ctx context.Context, guildID, memberID string, amount int) (guild.Member, error) {
	return e.Set(ctx, guildID, memberID, guild.PropertyXP, amount)
}

// XPForNextLevel returns the XP threshold of the member's next level.
func (e *Engine) XPForNextLevel(ctx context.Context, guildID, memberID string) (int, error) {
	m, err := e.read(ctx, "XPForNextLevel", guildID, memberID)
	if err != nil {
		return 0, err
	}
	return m.XPForNextLevel(), nil
}

// RemainingXP returns how much XP the member still needs for the next level.
func (e *Engine) RemainingXP(ctx context.Context, guildID, memberID string) (int, error) {
	m, err := e.read(ctx, "RemainingXP", guildID, memberID)
	if err != nil {
		return 0, err
	}
	return m.RemainingXP(), nil
}
