// Package guild contains the domain model of per-guild member progression:
// guild and member records, the XP threshold formula and the storage contract.
package guild

// ══════════════════════════════════════════════════════════════════════════════
// MEMBER
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultLevel is the level of a freshly created member.
	DefaultLevel = 1

	// DefaultXP is the XP of a freshly created member.
	DefaultXP = 0
)

// Member is the progression record of one member inside one guild.
// Level is always >= 1 and XP >= 0.
type Member struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
	XP    int    `json:"xp"`
}

// NewMember returns a member with default progression.
func NewMember(id string) Member {
	return Member{
		ID:    id,
		Level: DefaultLevel,
		XP:    DefaultXP,
	}
}

// XPForNextLevel returns the XP the member needs to reach Level+1.
func (m Member) XPForNextLevel() int {
	return XPForLevel(m.Level + 1)
}

// RemainingXP returns how much XP is still missing for the next level.
func (m Member) RemainingXP() int {
	remaining := m.XPForNextLevel() - m.XP
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ══════════════════════════════════════════════════════════════════════════════
// GUILD
// ══════════════════════════════════════════════════════════════════════════════

// Guild is the document stored per guild. Members keep insertion order.
type Guild struct {
	ID      string   `json:"id"`
	Members []Member `json:"members"`
}

// NewGuild returns an empty guild document.
func NewGuild(id string) *Guild {
	return &Guild{
		ID:      id,
		Members: []Member{},
	}
}

// FindMember returns the index of the member or -1.
func (g *Guild) FindMember(memberID string) int {
	for i := range g.Members {
		if g.Members[i].ID == memberID {
			return i
		}
	}
	return -1
}

// Member returns a copy of the member record.
func (g *Guild) Member(memberID string) (Member, bool) {
	idx := g.FindMember(memberID)
	if idx < 0 {
		return Member{}, false
	}
	return g.Members[idx], true
}

// AddMember appends a default member unless one with the same ID exists.
// It reports whether the guild was modified.
func (g *Guild) AddMember(memberID string) (Member, bool) {
	if m, ok := g.Member(memberID); ok {
		return m, false
	}
	m := NewMember(memberID)
	g.Members = append(g.Members, m)
	return m, true
}

// ReplaceMember overwrites the stored member with the same ID.
func (g *Guild) ReplaceMember(m Member) bool {
	idx := g.FindMember(m.ID)
	if idx < 0 {
		return false
	}
	g.Members[idx] = m
	return true
}

// Clone returns a deep copy of the guild.
func (g *Guild) Clone() *Guild {
	if g == nil {
		return nil
	}
	members := make([]Member, len(g.Members))
	copy(members, g.Members)
	return &Guild{ID: g.ID, Members: members}
}
