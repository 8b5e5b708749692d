// Package sqlite serves dashboard reads from a single-file SQLite database, for
// deployments that want indexed reads without running Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/steelburgerz/veloiq/internal/domain"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open opens or creates the database at dbPath and ensures the schema exists.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS rides (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  strava_id TEXT,
  ride_date TEXT NOT NULL,
  payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rides_date ON rides(ride_date DESC, seq);
CREATE INDEX IF NOT EXISTS idx_rides_strava ON rides(strava_id, seq DESC);
CREATE TABLE IF NOT EXISTS readiness (
  entry_date TEXT PRIMARY KEY,
  payload TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS peak_power_records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  period TEXT NOT NULL DEFAULT '',
  duration_sec INTEGER NOT NULL,
  label TEXT NOT NULL DEFAULT '',
  power_w REAL NOT NULL,
  power_wkg REAL NOT NULL DEFAULT 0,
  record_date TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL DEFAULT '',
  activity_label TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS wkg_checkpoints (
  checkpoint_date TEXT PRIMARY KEY,
  weight_kg REAL NOT NULL,
  ftp_w REAL NOT NULL,
  ftp_wkg REAL NOT NULL,
  notes TEXT
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Store) RecentRides(ctx context.Context, limit int) ([]domain.Ride, error) {
	return queryDocuments[domain.Ride](ctx, s.db, `SELECT payload FROM rides ORDER BY ride_date DESC, seq LIMIT ?`, limit)
}

func (s *Store) RidesSince(ctx context.Context, since time.Time) ([]domain.Ride, error) {
	return queryDocuments[domain.Ride](ctx, s.db,
		`SELECT payload FROM rides WHERE ride_date >= ? ORDER BY ride_date DESC, seq`, since.Format(domain.DateLayout))
}

func (s *Store) Ride(ctx context.Context, stravaID string) (*domain.Ride, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM rides WHERE strava_id = ? ORDER BY seq DESC LIMIT 1`, stravaID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ride: %w", err)
	}
	var ride domain.Ride
	if err := json.Unmarshal([]byte(payload), &ride); err != nil {
		return nil, fmt.Errorf("decode ride %s: %w", stravaID, err)
	}
	return &ride, nil
}

func (s *Store) ReadinessHistory(ctx context.Context, days int) ([]domain.ReadinessEntry, error) {
	return queryDocuments[domain.ReadinessEntry](ctx, s.db, `
SELECT payload FROM (
  SELECT payload, entry_date FROM readiness ORDER BY entry_date DESC LIMIT ?
) ORDER BY entry_date`, days)
}

func (s *Store) LatestReadiness(ctx context.Context) (*domain.ReadinessEntry, error) {
	entries, err := queryDocuments[domain.ReadinessEntry](ctx, s.db, `SELECT payload FROM readiness ORDER BY entry_date DESC LIMIT 1`)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

func (s *Store) PeakPower(ctx context.Context) ([]domain.PeakPowerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT period, duration_sec, label, power_w, power_wkg, record_date, source, activity_label
FROM peak_power_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list peak power: %w", err)
	}
	defer rows.Close()

	out := []domain.PeakPowerRecord{}
	for rows.Next() {
		var rec domain.PeakPowerRecord
		if err := rows.Scan(&rec.Period, &rec.DurationSec, &rec.Label, &rec.PowerW, &rec.PowerWkg, &rec.Date, &rec.Source, &rec.ActivityLabel); err != nil {
			return nil, fmt.Errorf("scan peak power: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate peak power: %w", err)
	}
	return out, nil
}

func (s *Store) WkgCheckpoints(ctx context.Context) ([]domain.WkgCheckpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT checkpoint_date, weight_kg, ftp_w, ftp_wkg, notes FROM wkg_checkpoints ORDER BY checkpoint_date`)
	if err != nil {
		return nil, fmt.Errorf("list wkg checkpoints: %w", err)
	}
	defer rows.Close()

	out := []domain.WkgCheckpoint{}
	for rows.Next() {
		var (
			cp    domain.WkgCheckpoint
			notes sql.NullString
		)
		if err := rows.Scan(&cp.Date, &cp.WeightKg, &cp.FTPW, &cp.FTPWkg, &notes); err != nil {
			return nil, fmt.Errorf("scan wkg checkpoint: %w", err)
		}
		if notes.Valid {
			cp.Notes = &notes.String
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wkg checkpoints: %w", err)
	}
	return out, nil
}

// Import replaces every table's contents with snap inside one transaction.
func (s *Store) Import(ctx context.Context, snap domain.Snapshot) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"rides", "readiness", "peak_power_records", "wkg_checkpoints"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, ride := range snap.Rides {
		day, ok := ride.Day(time.UTC)
		if !ok {
			return fmt.Errorf("ride %d: invalid date %q", i, ride.Date)
		}
		payload, marshalErr := json.Marshal(ride)
		if marshalErr != nil {
			return fmt.Errorf("encode ride %d: %w", i, marshalErr)
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO rides (strava_id, ride_date, payload) VALUES (?, ?, ?)`,
			nullIfEmpty(ride.StravaID), day.Format(domain.DateLayout), string(payload)); err != nil {
			return fmt.Errorf("insert ride %d: %w", i, err)
		}
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
		if _, err = tx.ExecContext(ctx, `
INSERT INTO readiness (entry_date, payload) VALUES (?, ?)
ON CONFLICT(entry_date) DO UPDATE SET payload = excluded.payload`, day.Format(domain.DateLayout), string(payload)); err != nil {
			return fmt.Errorf("insert readiness %s: %w", entry.Date, err)
		}
	}
	for _, rec := range snap.PeakPower {
		if _, err = tx.ExecContext(ctx, `
INSERT INTO peak_power_records (period, duration_sec, label, power_w, power_wkg, record_date, source, activity_label)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Period, rec.DurationSec, rec.Label, rec.PowerW, rec.PowerWkg, rec.Date, rec.Source, rec.ActivityLabel); err != nil {
			return fmt.Errorf("insert peak power: %w", err)
		}
	}
	for _, cp := range snap.Wkg {
		if _, err = tx.ExecContext(ctx, `
INSERT INTO wkg_checkpoints (checkpoint_date, weight_kg, ftp_w, ftp_wkg, notes) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(checkpoint_date) DO UPDATE SET weight_kg = excluded.weight_kg, ftp_w = excluded.ftp_w,
  ftp_wkg = excluded.ftp_wkg, notes = excluded.notes`,
			cp.Date, cp.WeightKg, cp.FTPW, cp.FTPWkg, cp.Notes); err != nil {
			return fmt.Errorf("insert wkg checkpoint %s: %w", cp.Date, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func queryDocuments[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var doc T
		if err := json.Unmarshal([]byte(payload), &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
