package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/guild-leveling/config"
	"github.com/alem-hub/guild-leveling/internal/infrastructure/messaging"
	httpserver "github.com/alem-hub/guild-leveling/internal/interface/http"
	"github.com/alem-hub/guild-leveling/internal/interface/http/handlers"
	"github.com/alem-hub/guild-leveling/pkg/logger"
)

// ServeCmd runs the HTTP API until SIGINT or SIGTERM.
func ServeCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the leveling API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if port, _ := cmd.Flags().GetInt("port"); port > 0 {
				cfg.HTTP.Port = port
			}
			if version != "" {
				cfg.App.Version = version
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().Int("port", 0, "override the configured HTTP port")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := openApp(ctx, cfg, appOptions{registry: reg})
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log

	health := handlers.NewHealthChecker(cfg.App.Version)
	health.AddCheck("store", handlers.NewPingCheck(a.store))
	health.AddCheck("engine", func(context.Context) error {
		if !a.engine.Ready() {
			return errors.New("engine is not initialized")
		}
		return nil
	})

	if cfg.Events.RedisRelay {
		relay, client, err := startRelay(ctx, cfg.Events, a, log)
		if err != nil {
			return err
		}
		defer func() {
			_ = relay.Stop()
			_ = client.Close()
		}()
		health.AddCheck("relay", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}

	var gatherer prometheus.Gatherer
	if cfg.Observability.MetricsEnabled {
		gatherer = reg
	}

	srvCfg := httpserver.DefaultConfig()
	srvCfg.Host = cfg.HTTP.Host
	srvCfg.Port = cfg.HTTP.Port
	srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	srvCfg.RateLimit = cfg.HTTP.RateLimit
	srvCfg.RateBurst = cfg.HTTP.RateBurst
	srvCfg.Version = cfg.App.Version

	server := httpserver.NewServer(srvCfg, httpserver.Dependencies{
		Engine:   a.engine,
		Health:   health,
		Gatherer: gatherer,
		Logger:   log,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", logger.Duration("timeout", cfg.App.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Info("leveling API running",
		logger.String("address", cfg.HTTP.Addr()),
		logger.String("driver", a.store.Driver),
		logger.String("policy", a.engine.Policy().String()),
	)

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", logger.Err(err))
		return err
	}
	log.Info("shutdown completed")
	return nil
}

func startRelay(ctx context.Context, cfg config.EventsConfig, a *app, log *logger.Logger) (*messaging.RedisRelay, *goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	relay, err := messaging.NewRedisRelay(a.engine.Events(), messaging.RedisRelayConfig{
		Client:     messaging.NewGoRedisClient(client),
		Channel:    cfg.Channel,
		InstanceID: cfg.InstanceID,
		Logger:     log,
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	if err := relay.Start(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return relay, client, nil
}
