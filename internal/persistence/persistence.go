// Package persistence selects and instruments the snapshot store configured for a binary.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/steelburgerz/veloiq/internal/config"
	"github.com/steelburgerz/veloiq/internal/domain"
	"github.com/steelburgerz/veloiq/internal/observability"
	"github.com/steelburgerz/veloiq/internal/persistence/ndjson"
	"github.com/steelburgerz/veloiq/internal/persistence/postgres"
	"github.com/steelburgerz/veloiq/internal/persistence/sqlite"
)

// Importer is implemented by stores that can be seeded from a full snapshot.
type Importer interface {
	Import(ctx context.Context, snap domain.Snapshot) error
}

// Open builds the store named by cfg.Store.Driver.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverNDJSON:
		dir := cfg.Wheelmate.MemoryDir()
		logger.Info("using ndjson store", zap.String("dir", dir))
		return ndjson.NewStore(dir), nil
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(pool, logger); err != nil {
				pool.Close()
				return nil, err
			}
		}
		logger.Info("using postgres store")
		return postgres.NewRepository(pool), nil
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("using sqlite store", zap.String("path", cfg.SQLite.Path))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Instrumented wraps a store so every read is timed and failures are counted.
type Instrumented struct {
	domain.Store
}

// Instrument wraps store with read metrics.
func Instrument(store domain.Store) *Instrumented {
	return &Instrumented{Store: store}
}

func observe(operation string, start time.Time, err error) {
	observability.ObserveStoreRead(operation, time.Since(start), err)
}

func (s *Instrumented) RecentRides(ctx context.Context, limit int) (rides []domain.Ride, err error) {
	defer func(start time.Time) { observe("recent_rides", start, err) }(time.Now())
	return s.Store.RecentRides(ctx, limit)
}

func (s *Instrumented) RidesSince(ctx context.Context, since time.Time) (rides []domain.Ride, err error) {
	defer func(start time.Time) { observe("rides_since", start, err) }(time.Now())
	return s.Store.RidesSince(ctx, since)
}

func (s *Instrumented) Ride(ctx context.Context, stravaID string) (ride *domain.Ride, err error) {
	defer func(start time.Time) { observe("ride", start, ignoreNotFound(err)) }(time.Now())
	return s.Store.Ride(ctx, stravaID)
}

func (s *Instrumented) ReadinessHistory(ctx context.Context, days int) (entries []domain.ReadinessEntry, err error) {
	defer func(start time.Time) { observe("readiness_history", start, err) }(time.Now())
	return s.Store.ReadinessHistory(ctx, days)
}

func (s *Instrumented) LatestReadiness(ctx context.Context) (entry *domain.ReadinessEntry, err error) {
	defer func(start time.Time) { observe("latest_readiness", start, err) }(time.Now())
	return s.Store.LatestReadiness(ctx)
}

func (s *Instrumented) PeakPower(ctx context.Context) (records []domain.PeakPowerRecord, err error) {
	defer func(start time.Time) { observe("peak_power", start, err) }(time.Now())
	return s.Store.PeakPower(ctx)
}

func (s *Instrumented) WkgCheckpoints(ctx context.Context) (checkpoints []domain.WkgCheckpoint, err error) {
	defer func(start time.Time) { observe("wkg_checkpoints", start, err) }(time.Now())
	return s.Store.WkgCheckpoints(ctx)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, domain.ErrRideNotFound) {
		return nil
	}
	return err
}
