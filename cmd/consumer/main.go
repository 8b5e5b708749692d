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
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/steelburgerz/veloiq/internal/cache"
	"github.com/steelburgerz/veloiq/internal/config"
	"github.com/steelburgerz/veloiq/internal/consumer"
	"github.com/steelburgerz/veloiq/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "veloiq-consumer: %v\n", err)
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

	// The api binary shares view caches only through Redis; without it there is nothing to drop.
	var target consumer.Invalidator = cache.Noop{}
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedis(cfg.Redis, logger.Named("cache"))
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisCache.Close()
		target = redisCache
	} else {
		logger.Warn("redis not configured, events will be acknowledged without invalidating anything")
	}
	handler := consumer.NewInvalidationHandler(target, logger.Named("invalidation"))

	metricsSrv := &http.Server{Addr: cfg.Metrics.Address, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("consumer metrics listening", zap.String("address", cfg.Metrics.Address))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	for _, topic := range cfg.Consumer.Topics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.Kafka.Brokers,
			GroupID:         cfg.Consumer.GroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})
		topicLogger := logger.With(zap.String("topic", topic), zap.String("group", cfg.Consumer.GroupID))
		proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(topicLogger))

		group.Go(func() error {
			defer reader.Close()

			topicLogger.Info("consumer started")
			if err := proc.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				topicLogger.Error("consumer stopped with error", zap.Error(err))
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("consumer shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", zap.Error(err))
		}
		return nil
	})

	return group.Wait()
}
