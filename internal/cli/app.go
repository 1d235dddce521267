// Package cli implements the leveling command tree.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/alem-hub/guild-leveling/config"
	"github.com/alem-hub/guild-leveling/internal/application/progression"
	"github.com/alem-hub/guild-leveling/internal/domain/shared"
	"github.com/alem-hub/guild-leveling/internal/infrastructure/persistence"
	"github.com/alem-hub/guild-leveling/pkg/logger"
)

// app is what every command runs against: loaded config, an open store and
// an initialised engine.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	store  *persistence.Store
	engine *progression.Engine
}

type appOptions struct {
	registry prometheus.Registerer
	logOut   io.Writer
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Observability.LogLevel = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer) *logger.Logger {
	if out == nil {
		out = os.Stderr
	}
	opts := logger.DefaultOptions()
	opts.Output = out
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = logger.ParseFormat(cfg.Observability.LogFormat)
	return logger.New(opts).With(logger.String("app", cfg.App.Name))
}

func openApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	log := newLogger(cfg, opts.logOut)

	store, err := persistence.Open(ctx, cfg.Store, log)
	if err != nil {
		return nil, err
	}

	engineOpts := []progression.Option{
		progression.WithLogger(log),
		progression.WithPolicy(cfg.Policy()),
		progression.WithOverflow(cfg.Overflow()),
		progression.WithMutationEvents(cfg.Engine.MutationEvents),
	}
	if cfg.Engine.GuildLocks {
		engineOpts = append(engineOpts, progression.WithGuildLocks())
	}
	if opts.registry != nil {
		engineOpts = append(engineOpts, progression.WithMetrics(progression.NewMetrics(opts.registry)))
	}

	engine := progression.New(store, engineOpts...)
	if err := engine.Init(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{cfg: cfg, log: log, store: store, engine: engine}, nil
}

func (a *app) Close() error {
	_ = a.engine.Close()
	return a.store.Close()
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openApp(ctx, cfg, appOptions{logOut: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer a.Close()

	announceLevelUps(a.engine, cmd.OutOrStdout())
	return fn(ctx, a)
}

// announceLevelUps prints every NewLevel event to out.
func announceLevelUps(engine *progression.Engine, out io.Writer) {
	highlight := color.New(color.FgHiGreen, color.Bold)
	_, _ = engine.Events().Subscribe(shared.EventNewLevel, func(ev shared.Event) error {
		p := ev.Payload()
		_, err := highlight.Fprintf(out, "level up! %v reached level %v in guild %v\n", p["member_id"], p["level"], p["guild_id"])
		return err
	})
}
