package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"news-agent/internal/a2a"
	"news-agent/internal/cache"
	"news-agent/internal/config"
	httphandler "news-agent/internal/http"
	"news-agent/internal/services/retention"
)

func serveCMD(load loader) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (A2A JSON-RPC and plain JSON endpoints)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "port to listen on (overrides PORT)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var checks []httphandler.ReadinessCheck
	if a.db != nil {
		checks = append(checks, httphandler.ReadinessCheck{Name: "database", Check: a.db.PingContext})

		pruner := retention.NewPruner(a.runs, cfg.Database.Retention)
		pruner.Start(ctx, cfg.Database.PruneInterval)
		defer pruner.Stop()
	}

	tasks, err := newTaskStore(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer tasks.Close()
	if tasks.check != nil {
		checks = append(checks, *tasks.check)
	}

	publicURL := cfg.Server.PublicURL
	if publicURL == "" {
		publicURL = "http://localhost:" + cfg.Server.Port + "/news-agent"
	}

	router := httphandler.NewRouter(cfg.Server.RequestTimeout)
	router.RegisterAgentRoutes(httphandler.NewNewsAgentHandler(a.agent, tasks.store, a2a.NewsAgentCard(publicURL, version)))
	router.RegisterHealthRoutes(checks...)
	router.RegisterMetricsRoutes()

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}

type taskBackend struct {
	store a2a.TaskStore
	check *httphandler.ReadinessCheck
	redis *cache.RedisCache
}

// newTaskStore uses Redis when REDIS_ADDR is set and process memory otherwise.
func newTaskStore(ctx context.Context, cfg config.RedisConfig) (*taskBackend, error) {
	if cfg.Addr == "" {
		log.Info().Msg("REDIS_ADDR not set, keeping A2A tasks in memory")
		return &taskBackend{store: a2a.NewMemoryTaskStore(cfg.TaskTTL)}, nil
	}

	rc, err := cache.NewRedisCache(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, err
	}
	return &taskBackend{
		store: a2a.NewRedisTaskStore(rc, cfg.TaskTTL),
		check: &httphandler.ReadinessCheck{Name: "redis", Check: rc.Ping},
		redis: rc,
	}, nil
}

func (b *taskBackend) Close() {
	if b.redis == nil {
		return
	}
	if err := b.redis.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close Redis")
	}
}
