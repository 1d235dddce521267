package guild

import "fmt"

// Upper bounds for stored values. XPForLevel(MaxLevel+1) and the sum of two
// values up to MaxXP both fit in a 32-bit int.
const (
	MaxLevel = 10_000
	MaxXP    = 1_000_000_000
)

// XPForLevel returns the XP required to reach level L:
//
//	5*L² + 50*L + 100
//
// Levels above MaxLevel+1 are computed as MaxLevel+1.
func XPForLevel(level int) int {
	if level > MaxLevel+1 {
		level = MaxLevel + 1
	}
	return 5*level*level + 50*level + 100
}

// Property names a mutable member counter.
type Property string

const (
	PropertyXP    Property = "xp"
	PropertyLevel Property = "level"
)

// ParseProperty parses "xp" or "level".
func ParseProperty(s string) (Property, error) {
	switch Property(s) {
	case PropertyXP, PropertyLevel:
		return Property(s), nil
	default:
		return "", fmt.Errorf("unknown property %q", s)
	}
}

// Floor returns the lowest value the property may hold.
func (p Property) Floor() int {
	if p == PropertyLevel {
		return DefaultLevel
	}
	return 0
}

// Ceiling returns the highest value the property may hold.
func (p Property) Ceiling() int {
	if p == PropertyLevel {
		return MaxLevel
	}
	return MaxXP
}

// Value reads the property of a member.
func (p Property) Value(m Member) int {
	if p == PropertyLevel {
		return m.Level
	}
	return m.XP
}

// With returns a copy of m with the property set to v.
func (p Property) With(m Member, v int) Member {
	if p == PropertyLevel {
		m.Level = v
	} else {
		m.XP = v
	}
	return m
}

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL-UP POLICY
// ══════════════════════════════════════════════════════════════════════════════

// LevelUpPolicy controls how many levels a single XP addition may grant.
type LevelUpPolicy int

const (
	// PolicySingleStep (v1) grants at most one level per addition. Residual
	// XP above the next threshold stays until the next addition.
	PolicySingleStep LevelUpPolicy = iota + 1

	// PolicyCascade (v2) keeps leveling up until XP is below the threshold.
	PolicyCascade
)

// String returns the config name of the policy.
func (p LevelUpPolicy) String() string {
	switch p {
	case PolicySingleStep:
		return "single-step"
	case PolicyCascade:
		return "cascade"
	default:
		return "unknown"
	}
}

// ParseLevelUpPolicy parses "single-step" (or "v1") and "cascade" (or "v2").
func ParseLevelUpPolicy(s string) (LevelUpPolicy, error) {
	switch s {
	case "", "single-step", "v1":
		return PolicySingleStep, nil
	case "cascade", "v2":
		return PolicyCascade, nil
	default:
		return 0, fmt.Errorf("unknown level-up policy %q", s)
	}
}

// OverflowMode controls what happens to XP on level-up.
type OverflowMode int

const (
	// OverflowCarry subtracts the threshold and keeps the residual. Default.
	OverflowCarry OverflowMode = iota + 1

	// OverflowReset subtracts the whole post-add XP, leaving 0.
	OverflowReset
)

// String returns the config name of the mode.
func (o OverflowMode) String() string {
	switch o {
	case OverflowCarry:
		return "carry"
	case OverflowReset:
		return "reset"
	default:
		return "unknown"
	}
}

// ParseOverflowMode parses "carry" or "reset".
func ParseOverflowMode(s string) (OverflowMode, error) {
	switch s {
	case "", "carry":
		return OverflowCarry, nil
	case "reset":
		return OverflowReset, nil
	default:
		return 0, fmt.Errorf("unknown overflow mode %q", s)
	}
}

// LevelUp is one applied level transition.
type LevelUp struct {
	FromLevel int
	ToLevel   int
	Threshold int
}

// ApplyLevelUps evaluates the threshold for m after an XP addition and
// returns the updated member together with the transitions applied.
// A member at MaxLevel keeps its XP and gains no further levels.
func ApplyLevelUps(m Member, policy LevelUpPolicy, overflow OverflowMode) (Member, []LevelUp) {
	var ups []LevelUp
	for {
		threshold := m.XPForNextLevel()
		if m.XP < threshold || m.Level >= MaxLevel {
			return m, ups
		}
		if overflow == OverflowReset {
			m.XP -= m.XP
		} else {
			m.XP -= threshold
		}
		ups = append(ups, LevelUp{FromLevel: m.Level, ToLevel: m.Level + 1, Threshold: threshold})
		m.Level++
		if policy != PolicyCascade {
			return m, ups
		}
	}
}
