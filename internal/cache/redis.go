package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/steelburgerz/veloiq/internal/config"
	"github.com/steelburgerz/veloiq/internal/observability"
)

const (
	viewPrefix    = "veloiq:view:"
	generationKey = "veloiq:view:generation"
)

// Redis shares cached views between api replicas. Keys are namespaced by a generation
// counter; Invalidate bumps the counter so stale views are never read again and expire on their own.
type Redis struct {
	rdb    *goredis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) (*Redis, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	logger.Info("redis cache connected", zap.String("addr", cfg.Addr))
	return &Redis{rdb: rdb, ttl: cfg.TTL, logger: logger}, nil
}

func (r *Redis) generation(ctx context.Context) (int64, error) {
	value, err := r.rdb.Get(ctx, generationKey).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(value, 10, 64)
}

func (r *Redis) key(ctx context.Context, key string) (string, error) {
	gen, err := r.generation(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d:%s", viewPrefix, gen, key), nil
}

// Get decodes the cached value for key into dst.
func (r *Redis) Get(ctx context.Context, key string, dst any) (bool, error) {
	full, err := r.key(ctx, key)
	if err != nil {
		return false, err
	}
	payload, err := r.rdb.Get(ctx, full).Bytes()
	if errors.Is(err, goredis.Nil) {
		observability.RecordCacheLookup(false)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	observability.RecordCacheLookup(true)
	return true, json.Unmarshal(payload, dst)
}

// Set stores value under key with the configured TTL.
func (r *Redis) Set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	full, err := r.key(ctx, key)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, full, payload, r.ttl).Err()
}

// Invalidate advances the generation counter.
func (r *Redis) Invalidate(ctx context.Context, reason string) error {
	gen, err := r.rdb.Incr(ctx, generationKey).Result()
	if err != nil {
		return err
	}
	r.logger.Debug("dashboard cache invalidated", zap.Int64("generation", gen), zap.String("reason", reason))
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
