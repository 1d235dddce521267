// Package persistence selects and assembles the guild record store.
package persistence

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
	"github.com/alem-hub/guild-leveling/internal/domain/shared"
	"github.com/alem-hub/guild-leveling/pkg/circuitbreaker"
	"github.com/alem-hub/guild-leveling/pkg/logger"
	"github.com/alem-hub/guild-leveling/pkg/retry"
)

// ResilienceConfig tunes Resilient.
type ResilienceConfig struct {
	MaxAttempts      int
	InitialDelay     time.Duration
	BreakerThreshold int
	BreakerTimeout   time.Duration

	// Timeout bounds each attempt. Zero leaves the caller's deadline.
	Timeout time.Duration
}

// Resilient wraps a networked store with per-attempt timeouts, retries and a
// circuit breaker. A missing guild is an answer, not a failure: it is
// neither retried nor counted by the breaker.
type Resilient struct {
	next    guild.Repository
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
	logger  *logger.Logger
}

// NewResilient wraps next.
func NewResilient(name string, next guild.Repository, cfg ResilienceConfig, log *logger.Logger) *Resilient {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("store"), logger.String("driver", name))

	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BreakerThreshold < 1 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	return &Resilient{
		next:    next,
		retrier: retry.StoreRetrier(cfg.MaxAttempts, cfg.InitialDelay),
		breaker: circuitbreaker.StoreBreaker(name, cfg.BreakerThreshold, cfg.BreakerTimeout, isFailure,
			func(name string, from, to circuitbreaker.State) {
				log.Warn("store circuit breaker state changed",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()),
				)
			}),
		timeout: cfg.Timeout,
		logger:  log,
	}
}

func isFailure(err error) bool {
	return err != nil && !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, context.Canceled)
}

// call runs op through the breaker and the retrier.
func (r *Resilient) call(ctx context.Context, op func(ctx context.Context) error) error {
	return r.retrier.Do(ctx, func(ctx context.Context) error {
		err := r.breaker.Execute(ctx, func(ctx context.Context) error {
			if r.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, r.timeout)
				defer cancel()
			}
			return op(ctx)
		})
		switch {
		case err == nil:
			return nil
		case !isFailure(err), errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
			return retry.Permanent(err)
		default:
			return retry.Retryable(err)
		}
	})
}

// GetGuild implements guild.Repository.
func (r *Resilient) GetGuild(ctx context.Context, guildID string) (*guild.Guild, error) {
	var g *guild.Guild
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		g, err = r.next.GetGuild(ctx, guildID)
		return err
	})
	return g, err
}

// PutGuild implements guild.Repository. A put is a full replace, so
// repeating it is safe.
func (r *Resilient) PutGuild(ctx context.Context, g *guild.Guild) (*guild.Guild, error) {
	var stored *guild.Guild
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		stored, err = r.next.PutGuild(ctx, g)
		return err
	})
	return stored, err
}

// Ping implements guild.Pinger. It bypasses retries so readiness reflects
// the current state.
func (r *Resilient) Ping(ctx context.Context) error {
	p, ok := r.next.(guild.Pinger)
	if !ok {
		return nil
	}
	return r.breaker.Execute(ctx, p.Ping)
}

// Close closes the wrapped store if it can be closed.
func (r *Resilient) Close() error {
	if c, ok := r.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Breaker exposes the circuit breaker state.
func (r *Resilient) Breaker() *circuitbreaker.CircuitBreaker {
	return r.breaker
}

var (
	_ guild.Repository = (*Resilient)(nil)
	_ guild.Pinger     = (*Resilient)(nil)
)
