package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/abn-search/internal/cache"
	"github.com/kitbuilder587/abn-search/internal/cache/memory"
	"github.com/kitbuilder587/abn-search/internal/cache/redis"
	"github.com/kitbuilder587/abn-search/internal/config"
	"github.com/kitbuilder587/abn-search/internal/httpapi"
	"github.com/kitbuilder587/abn-search/internal/metrics"
	"github.com/kitbuilder587/abn-search/internal/query"
	"github.com/kitbuilder587/abn-search/internal/ratelimit"
	"github.com/kitbuilder587/abn-search/internal/repository/postgres"
	"github.com/kitbuilder587/abn-search/internal/search/abr"
	"github.com/kitbuilder587/abn-search/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Log, "abn-search-server")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	c, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	m := metrics.New(nil)

	svc := service.NewSearchService(service.SearchServiceDeps{
		Repo:    postgres.NewABNRepo(db),
		Cache:   c,
		Logger:  logger,
		Metrics: m,
		Config: service.SearchConfig{
			MaxResults:    cfg.Search.MaxResults,
			CacheTTL:      cfg.Cache.TTL,
			SearchTimeout: cfg.Search.Timeout,
		},
	})

	// веб-страница ходит в собственный JSON API, как любой другой клиент
	apiClient := abr.New(abr.Config{
		BaseURL:       cfg.API.BaseURL,
		Timeout:       cfg.API.Timeout,
		RatePerSecond: cfg.API.RatePerSecond,
	}, logger, m)
	web := query.New(apiClient, query.Options{
		StaleTime:  cfg.Query.StaleTime,
		CacheTime:  cfg.Query.CacheTime,
		RetryDelay: cfg.Query.RetryDelay,
		Logger:     logger,
		Metrics:    m,
	})

	limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: cfg.RateLimit.RequestsPerMinute})
	defer limiter.Stop()

	router := httpapi.NewRouter(httpapi.New(httpapi.Deps{
		Search:  svc,
		DB:      db,
		Web:     web,
		Limiter: limiter,
		Logger:  logger,
		Metrics: m,
	}))

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("cache", cfg.Cache.Type),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, func(), error) {
	switch cfg.Cache.Type {
	case config.CacheRedis:
		rc, err := redis.New(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		return rc, func() { rc.Close() }, nil
	case config.CacheNone:
		return cache.Nop{}, func() {}, nil
	default:
		mc := memory.NewWithContext(ctx, 0)
		return mc, mc.Stop, nil
	}
}
