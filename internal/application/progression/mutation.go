package progression

import (
	"context"
	"fmt"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
	"github.com/alem-hub/guild-leveling/internal/domain/shared"
	"github.com/alem-hub/guild-leveling/pkg/logger"
)

type opKind int

const (
	opAdd opKind = iota + 1
	opSubtract
	opSet
)

// mutation describes one add/subtract/set operation on a property.
type mutation struct {
	name  string
	prop  guild.Property
	kind  opKind
	event shared.EventType
}

func mutationFor(prop guild.Property, kind opKind) mutation {
	mu := mutation{prop: prop, kind: kind}

	switch {
	case prop == guild.PropertyXP && kind == opAdd:
		mu.name, mu.event = "AddXP", shared.EventXPAdded
	case prop == guild.PropertyXP && kind == opSubtract:
		mu.name, mu.event = "SubtractXP", shared.EventXPSubtracted
	case prop == guild.PropertyXP && kind == opSet:
		mu.name, mu.event = "SetXP", shared.EventXPSet
	case prop == guild.PropertyLevel && kind == opAdd:
		mu.name, mu.event = "AddLevel", shared.EventLevelAdded
	case prop == guild.PropertyLevel && kind == opSubtract:
		mu.name, mu.event = "SubtractLevel", shared.EventLevelSubtracted
	case prop == guild.PropertyLevel && kind == opSet:
		mu.name, mu.event = "SetLevel", shared.EventLevelSet
	default:
		mu.name = "Mutate"
	}
	return mu
}

// Add increases prop by amount. Adding XP evaluates the level-up threshold.
func (e *Engine) Add(ctx context.Context, guildID, memberID string, prop guild.Property, amount int) (guild.Member, error) {
	return e.mutate(ctx, mutationFor(prop, opAdd), guildID, memberID, amount)
}

// Subtract decreases prop by amount. It fails with ErrInsufficientBalance,
// leaving the record unchanged, when the result would fall below the
// property floor (xp 0, level 1). The unchanged member is returned with the
// error.
func (e *Engine) Subtract(ctx context.Context, guildID, memberID string, prop guild.Property, amount int) (guild.Member, error) {
	return e.mutate(ctx, mutationFor(prop, opSubtract), guildID, memberID, amount)
}

// Set overwrites prop. No level-up check is made.
func (e *Engine) Set(ctx context.Context, guildID, memberID string, prop guild.Property, amount int) (guild.Member, error) {
	return e.mutate(ctx, mutationFor(prop, opSet), guildID, memberID, amount)
}

func (e *Engine) mutate(ctx context.Context, mu mutation, guildID, memberID string, amount int) (result guild.Member, err error) {
	op := mu.name
	if err := validateMutation(mu, guildID, memberID, amount); err != nil {
		return guild.Member{}, err
	}
	if err := e.checkReady(op); err != nil {
		return guild.Member{}, err
	}

	ctx, finish := e.startOp(ctx, op, guildID, memberID)
	defer func() { finish(err) }()

	log := e.logger.With(logger.Operation(op), logger.GuildID(guildID), logger.MemberID(memberID))

	unlock := e.lockGuild(guildID)
	before, after, ups, err := e.apply(ctx, mu, guildID, memberID, amount, log)
	unlock()
	if err != nil {
		if shared.IsInsufficientBalance(err) {
			return before, err
		}
		return guild.Member{}, err
	}

	// Outside the lock so handlers may call back into the engine.
	e.notify(mu, guildID, memberID, amount, mu.prop.Value(before), mu.prop.Value(after), ups, log)
	return after, nil
}

// apply performs the read-modify-write and returns the member before and
// after the write.
func (e *Engine) apply(ctx context.Context, mu mutation, guildID, memberID string, amount int, log *logger.Logger) (guild.Member, guild.Member, []guild.LevelUp, error) {
	g, before, err := e.ensureMember(ctx, mu.name, guildID, memberID)
	if err != nil {
		return guild.Member{}, guild.Member{}, nil, err
	}

	current := mu.prop.Value(before)
	var next int
	switch mu.kind {
	case opAdd:
		if amount > mu.prop.Ceiling()-current {
			return before, before, nil, shared.NewDomainError(domainName, mu.name, shared.ErrValidation,
				fmt.Sprintf("adding %d %s to %d exceeds the maximum of %d", amount, mu.prop, current, mu.prop.Ceiling()))
		}
		next = current + amount
	case opSubtract:
		next = current - amount
		if next < mu.prop.Floor() {
			log.Warn("insufficient balance, record left unchanged",
				logger.Amount(amount),
				logger.String("property", string(mu.prop)),
				logger.Int("current", current),
			)
			return before, before, nil, shared.NewDomainError(domainName, mu.name, shared.ErrInsufficientBalance,
				fmt.Sprintf("cannot subtract %d %s from %d", amount, mu.prop, current))
		}
	case opSet:
		next = amount
	}

	after := mu.prop.With(before, next)

	var ups []guild.LevelUp
	if mu.prop == guild.PropertyXP && mu.kind == opAdd {
		after, ups = guild.ApplyLevelUps(after, e.policy, e.overflow)
	}

	g.ReplaceMember(after)
	if _, err := e.save(ctx, mu.name, g); err != nil {
		return guild.Member{}, guild.Member{}, nil, err
	}

	log.Debug("member updated",
		logger.Amount(amount),
		logger.LevelValue(after.Level),
		logger.XP(after.XP),
	)
	return before, after, ups, nil
}

// notify publishes the mutation event followed by one NewLevel event per
// level gained.
func (e *Engine) notify(mu mutation, guildID, memberID string, amount, oldValue, newValue int, ups []guild.LevelUp, log *logger.Logger) {
	if e.mutationEvents {
		e.publish(shared.NewMutationEvent(mu.event, guildID, memberID, amount, oldValue, newValue), log)
	}

	for _, up := range ups {
		e.metrics.levelUp()
		log.Info("member leveled up",
			logger.LevelValue(up.ToLevel),
			logger.Int("threshold", up.Threshold),
		)
		e.publish(shared.NewNewLevelEvent(guildID, memberID, up.ToLevel), log)
	}
}

func (e *Engine) publish(event shared.Event, log *logger.Logger) {
	if err := e.bus.Publish(event); err != nil {
		log.Warn("event not delivered", logger.String("event_type", string(event.EventType())), logger.Err(err))
	}
}
