package progression

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
	"github.com/alem-hub/guild-leveling/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

// Leaderboard returns every member of the guild sorted by level, highest
// first. Members on the same level keep their insertion order. A guild
// without a record is reported as ErrNotFound; it is not created.
func (e *Engine) Leaderboard(ctx context.Context, guildID string) ([]guild.Member, error) {
	return e.leaderboard(ctx, "Leaderboard", guildID)
}

// Top returns the first n leaderboard entries.
func (e *Engine) Top(ctx context.Context, guildID string, n int) ([]guild.Member, error) {
	const op = "Top"
	if err := validateLimit(op, n); err != nil {
		return nil, err
	}

	members, err := e.leaderboard(ctx, op, guildID)
	if err != nil {
		return nil, err
	}
	if len(members) > n {
		members = members[:n]
	}
	return members, nil
}

// Rank returns the member's 1-based leaderboard position.
func (e *Engine) Rank(ctx context.Context, guildID, memberID string) (int, error) {
	const op = "Rank"
	if err := validateMember(op, guildID, memberID); err != nil {
		return 0, err
	}

	members, err := e.leaderboard(ctx, op, guildID)
	if err != nil {
		return 0, err
	}

	idx := slices.IndexFunc(members, func(m guild.Member) bool { return m.ID == memberID })
	if idx < 0 {
		return 0, shared.NewDomainError(domainName, op, shared.ErrNotFound,
			fmt.Sprintf("member %s has no record in guild %s", memberID, guildID))
	}
	return idx + 1, nil
}

func (e *Engine) leaderboard(ctx context.Context, op, guildID string) (members []guild.Member, err error) {
	if err := validateGuild(op, guildID); err != nil {
		return nil, err
	}
	if err := e.checkReady(op); err != nil {
		return nil, err
	}

	ctx, finish := e.startOp(ctx, op, guildID, "")
	defer func() { finish(err) }()

	g, err := e.repo.GetGuild(ctx, guildID)
	if errors.Is(err, shared.ErrNotFound) || (err == nil && g == nil) {
		return nil, shared.NewDomainError(domainName, op, shared.ErrNotFound,
			fmt.Sprintf("guild %s has no record", guildID))
	}
	if err != nil {
		return nil, storeError(op, "read guild", err)
	}

	return SortByLevel(g.Members), nil
}

// SortByLevel returns a copy of members ordered by level descending.
// The sort is stable.
func SortByLevel(members []guild.Member) []guild.Member {
	out := slices.Clone(members)
	if out == nil {
		out = []guild.Member{}
	}
	slices.SortStableFunc(out, func(a, b guild.Member) int {
		return cmp.Compare(b.Level, a.Level)
	})
	return out
}
