// Package progression implements the leveling engine: record lifecycle,
// XP and level mutations, the level-up transition and the leaderboard.
//
// Every operation is a fresh read-modify-write against the store:
//
//	validate -> ready check -> (guild lock) -> ensure records -> compute -> write -> notify
//
// The engine keeps no records between operations.
package progression

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
	"github.com/alem-hub/guild-leveling/internal/domain/shared"
	"github.com/alem-hub/guild-leveling/internal/infrastructure/messaging"
	"github.com/alem-hub/guild-leveling/pkg/keylock"
	"github.com/alem-hub/guild-leveling/pkg/logger"
)

const domainName = "leveling"

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Engine is the progression engine of one bot instance.
type Engine struct {
	repo     guild.Repository
	bus      *messaging.Bus
	ownsBus  bool
	logger   *logger.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	locks    *keylock.Locker
	policy   guild.LevelUpPolicy
	overflow guild.OverflowMode

	mutationEvents bool
	ready          atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithBus makes the engine publish on an existing bus. The caller keeps
// ownership and closes it.
func WithBus(b *messaging.Bus) Option {
	return func(e *Engine) {
		if b != nil {
			e.bus = b
			e.ownsBus = false
		}
	}
}

// WithPolicy selects single-step (default) or cascading level-ups.
func WithPolicy(p guild.LevelUpPolicy) Option {
	return func(e *Engine) {
		if p == guild.PolicySingleStep || p == guild.PolicyCascade {
			e.policy = p
		}
	}
}

// WithOverflow selects what happens to XP on level-up.
//
// The default is OverflowCarry: adding 300 XP at level 1 (threshold 220)
// leaves level 2 with 80 XP, and a single-step engine does not correct that
// residual until the next add. OverflowReset zeroes XP on every level-up by
// subtracting the post-add value instead. Carry is kept as the default
// because callers assert the residual; pass OverflowReset (or set
// engine.overflow to "reset") for the zeroing behaviour.
func WithOverflow(o guild.OverflowMode) Option {
	return func(e *Engine) {
		if o == guild.OverflowCarry || o == guild.OverflowReset {
			e.overflow = o
		}
	}
}

// WithGuildLocks serialises operations on the same guild inside this
// process. Without it, concurrent writes to one guild may lose updates.
func WithGuildLocks() Option {
	return func(e *Engine) {
		e.locks = keylock.New()
	}
}

// WithMutationEvents toggles the add/subtract/set events. NewLevel events
// are always published.
func WithMutationEvents(enabled bool) Option {
	return func(e *Engine) {
		e.mutationEvents = enabled
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// New creates an engine over repo. The engine rejects operations until
// Init succeeds.
func New(repo guild.Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:           repo,
		logger:         logger.Nop(),
		tracer:         otel.Tracer("guild-leveling/progression"),
		policy:         guild.PolicySingleStep,
		overflow:       guild.OverflowCarry,
		mutationEvents: true,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With(logger.Component("progression"))
	if e.bus == nil {
		e.bus = messaging.NewBus(messaging.WithBusLogger(e.logger))
		e.ownsBus = true
	}

	return e
}

// Init checks that the store is reachable and marks the engine ready.
func (e *Engine) Init(ctx context.Context) error {
	if e.repo == nil {
		return shared.NewDomainError(domainName, "Init", shared.ErrNotReady, "no store configured")
	}

	if p, ok := e.repo.(guild.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			e.logger.Error("store is not reachable", logger.Err(err))
			return shared.WrapError(domainName, "Init", shared.ErrStore, "ping store", err)
		}
	}

	e.ready.Store(true)
	e.logger.Info("engine ready",
		logger.String("policy", e.policy.String()),
		logger.String("overflow", e.overflow.String()),
		logger.Bool("guild_locks", e.locks != nil),
	)
	return nil
}

// Ready reports whether Init succeeded and Close has not been called.
func (e *Engine) Ready() bool {
	return e.ready.Load()
}

// Close marks the engine not ready and closes the bus it created.
// The store is closed by whoever opened it.
func (e *Engine) Close() error {
	e.ready.Store(false)
	if e.ownsBus {
		return e.bus.Close()
	}
	return nil
}

// Events returns the bus on which the engine publishes.
func (e *Engine) Events() *messaging.Bus {
	return e.bus
}

// Policy returns the configured level-up policy.
func (e *Engine) Policy() guild.LevelUpPolicy {
	return e.policy
}

// Overflow returns the configured overflow mode.
func (e *Engine) Overflow() guild.OverflowMode {
	return e.overflow
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (e *Engine) checkReady(op string) error {
	if !e.ready.Load() {
		return shared.NewDomainError(domainName, op, shared.ErrNotReady, "engine is not initialized")
	}
	return nil
}

// lockGuild returns a no-op unlock when guild locks are disabled.
func (e *Engine) lockGuild(guildID string) func() {
	if e.locks == nil {
		return func() {}
	}
	return e.locks.Lock(guildID)
}

// startOp opens a span and returns a finisher that records the outcome.
func (e *Engine) startOp(ctx context.Context, op, guildID, memberID string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "progression."+op,
		trace.WithAttributes(
			attribute.String("guild.id", guildID),
			attribute.String("member.id", memberID),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		e.metrics.observe(op, time.Since(start), err)
	}
}

func storeError(op, message string, err error) error {
	return shared.WrapError(domainName, op, shared.ErrStore, message, err)
}
