// Package postgres serves dashboard reads from Postgres. Rides and readiness entries are
// kept as JSONB documents next to the indexed columns used for ordering and filtering.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/steelburgerz/veloiq/internal/domain"
)

// Repository provides Postgres-backed snapshot reads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// RecentRides implements domain.Store.
func (r *Repository) RecentRides(ctx context.Context, limit int) ([]domain.Ride, error) {
	const query = `SELECT payload FROM rides ORDER BY ride_date DESC, seq LIMIT $1`
	return queryDocuments[domain.Ride](ctx, r.pool, query, limit)
}

// RidesSince implements domain.Store.
func (r *Repository) RidesSince(ctx context.Context, since time.Time) ([]domain.Ride, error) {
	const query = `SELECT payload FROM rides WHERE ride_date >= $1::date ORDER BY ride_date DESC, seq`
	return queryDocuments[domain.Ride](ctx, r.pool, query, since.Format(domain.DateLayout))
}

// Ride implements domain.Store.
func (r *Repository) Ride(ctx context.Context, stravaID string) (*domain.Ride, error) {
	const query = `SELECT payload FROM rides WHERE strava_id = $1 ORDER BY seq DESC LIMIT 1`
	var payload []byte
	if err := r.pool.QueryRow(ctx, query, stravaID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRideNotFound
		}
		return nil, err
	}
	var ride domain.Ride
	if err := json.Unmarshal(payload, &ride); err != nil {
		return nil, fmt.Errorf("decode ride %s: %w", stravaID, err)
	}
	return &ride, nil
}

// ReadinessHistory implements domain.Store.
func (r *Repository) ReadinessHistory(ctx context.Context, days int) ([]domain.ReadinessEntry, error) {
	const query = `SELECT payload FROM (
            SELECT payload, entry_date FROM readiness ORDER BY entry_date DESC LIMIT $1
        ) recent ORDER BY entry_date`
	return queryDocuments[domain.ReadinessEntry](ctx, r.pool, query, days)
}

// LatestReadiness implements domain.Store.
func (r *Repository) LatestReadiness(ctx context.Context) (*domain.ReadinessEntry, error) {
	entries, err := queryDocuments[domain.ReadinessEntry](ctx, r.pool, `SELECT payload FROM readiness ORDER BY entry_date DESC LIMIT 1`)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

// PeakPower implements domain.Store.
func (r *Repository) PeakPower(ctx context.Context) ([]domain.PeakPowerRecord, error) {
	const query = `SELECT period, duration_sec, label, power_w, power_wkg, record_date, source, activity_label
        FROM peak_power_records ORDER BY id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.PeakPowerRecord{}
	for rows.Next() {
		var rec domain.PeakPowerRecord
		if err := rows.Scan(&rec.Period, &rec.DurationSec, &rec.Label, &rec.PowerW, &rec.PowerWkg, &rec.Date, &rec.Source, &rec.ActivityLabel); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// WkgCheckpoints implements domain.Store.
func (r *Repository) WkgCheckpoints(ctx context.Context) ([]domain.WkgCheckpoint, error) {
	const query = `SELECT checkpoint_date, weight_kg, ftp_w, ftp_wkg, notes FROM wkg_checkpoints ORDER BY checkpoint_date`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	checkpoints := []domain.WkgCheckpoint{}
	for rows.Next() {
		var (
			cp   domain.WkgCheckpoint
			date time.Time
		)
		if err := rows.Scan(&date, &cp.WeightKg, &cp.FTPW, &cp.FTPWkg, &cp.Notes); err != nil {
			return nil, err
		}
		cp.Date = date.Format(domain.DateLayout)
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, rows.Err()
}

// Import replaces every table's contents with snap inside one transaction.
func (r *Repository) Import(ctx context.Context, snap domain.Snapshot) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `TRUNCATE rides, readiness, peak_power_records, wkg_checkpoints RESTART IDENTITY`); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, ride := range snap.Rides {
		day, ok := ride.Day(time.UTC)
		if !ok {
			return fmt.Errorf("ride %d: invalid date %q", i, ride.Date)
		}
		payload, marshalErr := json.Marshal(ride)
		if marshalErr != nil {
			return fmt.Errorf("encode ride %d: %w", i, marshalErr)
		}
		batch.Queue(`INSERT INTO rides (strava_id, ride_date, payload) VALUES ($1, $2, $3)`,
			nullIfEmpty(ride.StravaID), day, payload)
	}
	for _, entry := range snap.Readiness {
		day, ok := domain.ParseDay(entry.Date, time.UTC)
		if !ok {
			return fmt.Errorf("readiness: invalid date %q", entry.Date)
		}
		payload, marshalErr := json.Marshal(entry)
		if marshalErr != nil {
			return fmt.Errorf("encode readiness %s: %w", entry.Date, marshalErr)
		}
		batch.Queue(`INSERT INTO readiness (entry_date, payload) VALUES ($1, $2)
            ON CONFLICT (entry_date) DO UPDATE SET payload = EXCLUDED.payload, loaded_at = now()`, day, payload)
	}
	for _, rec := range snap.PeakPower {
		batch.Queue(`INSERT INTO peak_power_records (period, duration_sec, label, power_w, power_wkg, record_date, source, activity_label)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			rec.Period, rec.DurationSec, rec.Label, rec.PowerW, rec.PowerWkg, rec.Date, rec.Source, rec.ActivityLabel)
	}
	for _, cp := range snap.Wkg {
		day, ok := domain.ParseDay(cp.Date, time.UTC)
		if !ok {
			return fmt.Errorf("wkg checkpoint: invalid date %q", cp.Date)
		}
		batch.Queue(`INSERT INTO wkg_checkpoints (checkpoint_date, weight_kg, ftp_w, ftp_wkg, notes) VALUES ($1,$2,$3,$4,$5)
            ON CONFLICT (checkpoint_date) DO UPDATE SET weight_kg = EXCLUDED.weight_kg, ftp_w = EXCLUDED.ftp_w,
            ftp_wkg = EXCLUDED.ftp_wkg, notes = EXCLUDED.notes`,
			day, cp.WeightKg, cp.FTPW, cp.FTPWkg, cp.Notes)
	}

	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Close implements domain.Store.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func queryDocuments[T any](ctx context.Context, pool *pgxpool.Pool, query string, args ...any) ([]T, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var doc T
		if err := json.Unmarshal(payload, &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
