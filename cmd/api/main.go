package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/steelburgerz/veloiq/internal/api"
	"github.com/steelburgerz/veloiq/internal/auth"
	"github.com/steelburgerz/veloiq/internal/cache"
	"github.com/steelburgerz/veloiq/internal/config"
	"github.com/steelburgerz/veloiq/internal/dashboard"
	"github.com/steelburgerz/veloiq/internal/logging"
	"github.com/steelburgerz/veloiq/internal/persistence"
	"github.com/steelburgerz/veloiq/internal/persistence/ndjson"
	"github.com/steelburgerz/veloiq/internal/strava"
	httptransport "github.com/steelburgerz/veloiq/internal/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "veloiq-api: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := persistence.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	views, closeCache, err := openCache(cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	service, err := dashboard.NewFromConfig(persistence.Instrument(store), cfg,
		dashboard.WithCache(views),
		dashboard.WithLogger(logger.Named("dashboard")),
	)
	if err != nil {
		return err
	}

	maps := strava.NewClient(cfg.Strava.Config, cfg.Strava.Timeout,
		strava.WithCache(views),
		strava.WithLogger(logger.Named("strava")),
	)
	handler := api.NewHandler(service, maps, logger.Named("api"))

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	middleware := []httptransport.Middleware{
		httptransport.RequestID(),
		httptransport.Logger(logger.Named("http")),
		httptransport.Metrics(api.RouteLabel),
		httptransport.CORS(cfg.HTTP.AllowOrigins),
	}
	if cfg.JWT.Disabled {
		logger.Warn("bearer-token authentication disabled")
	} else {
		authMiddleware := auth.NewMiddleware(auth.Config{
			Secret:          cfg.JWT.Secret,
			Issuer:          cfg.JWT.Issuer,
			AllowedSubjects: cfg.JWT.AllowedSubjects,
		}, auth.PublicPaths, logger.Named("auth"))
		middleware = append(middleware, authMiddleware.Wrap)
	}

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTP.Address,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}, httptransport.Chain(mux, middleware...))

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("veloiq api listening", zap.String("address", cfg.HTTP.Address), zap.String("store", cfg.Store.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if cfg.Store.Driver == config.DriverNDJSON {
		watcher := ndjson.NewWatcher(cfg.Wheelmate.MemoryDir(), func(ctx context.Context, file string) {
			if err := service.Invalidate(ctx, "file changed: "+file); err != nil {
				logger.Warn("cache invalidation failed", zap.String("file", file), zap.Error(err))
			}
		}, logger.Named("watcher"))
		group.Go(func() error {
			return watcher.Run(groupCtx)
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openCache picks Redis when an address is configured and falls back to an in-process cache.
func openCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, func(), error) {
	if cfg.Redis.Addr == "" {
		return cache.NewMemory(cfg.Redis.TTL), func() {}, nil
	}
	redisCache, err := cache.NewRedis(cfg.Redis, logger.Named("cache"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return redisCache, func() { _ = redisCache.Close() }, nil
}
