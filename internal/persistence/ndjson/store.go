// Package ndjson serves dashboard reads from the newline-delimited JSON snapshots the
// ingestion pipeline writes into its workspace memory directory.
package ndjson

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/steelburgerz/veloiq/internal/domain"
)

// Snapshot file names inside the memory directory.
const (
	RidesFile     = "rides.ndjson"
	ReadinessFile = "readiness.ndjson"
	PeakPowerFile = "peak_power.ndjson"
	WkgFile       = "wkg_checkpoints.ndjson"
)

// Files lists every snapshot the store reads.
var Files = []string{RidesFile, ReadinessFile, PeakPowerFile, WkgFile}

const maxLineBytes = 4 << 20

// Store reads the snapshot files on every call so it always reflects the latest write.
type Store struct {
	dir string
}

// NewStore constructs a Store over dir. The directory need not exist yet.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory the store reads from.
func (s *Store) Dir() string {
	return s.dir
}

// RecentRides implements domain.Store.
func (s *Store) RecentRides(ctx context.Context, limit int) ([]domain.Ride, error) {
	rides, err := s.rides(ctx)
	if err != nil {
		return nil, err
	}
	if limit >= 0 && len(rides) > limit {
		rides = rides[:limit]
	}
	return rides, nil
}

// RidesSince implements domain.Store.
func (s *Store) RidesSince(ctx context.Context, since time.Time) ([]domain.Ride, error) {
	rides, err := s.rides(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := since.Format(domain.DateLayout)
	out := make([]domain.Ride, 0, len(rides))
	for _, ride := range rides {
		if dayKey(ride.Date) >= cutoff {
			out = append(out, ride)
		}
	}
	return out, nil
}

// Ride implements domain.Store. When a Strava id appears on several lines the last one wins.
func (s *Store) Ride(ctx context.Context, stravaID string) (*domain.Ride, error) {
	rides, err := readLines[domain.Ride](ctx, s.path(RidesFile))
	if err != nil {
		return nil, err
	}
	for i := len(rides) - 1; i >= 0; i-- {
		if rides[i].StravaID != "" && rides[i].StravaID == stravaID {
			ride := rides[i]
			return &ride, nil
		}
	}
	return nil, domain.ErrRideNotFound
}

// ReadinessHistory implements domain.Store.
func (s *Store) ReadinessHistory(ctx context.Context, days int) ([]domain.ReadinessEntry, error) {
	entries, err := s.readiness(ctx)
	if err != nil {
		return nil, err
	}
	if days >= 0 && len(entries) > days {
		entries = entries[len(entries)-days:]
	}
	return entries, nil
}

// LatestReadiness implements domain.Store.
func (s *Store) LatestReadiness(ctx context.Context) (*domain.ReadinessEntry, error) {
	entries, err := s.readiness(ctx)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	latest := entries[len(entries)-1]
	return &latest, nil
}

// PeakPower implements domain.Store.
func (s *Store) PeakPower(ctx context.Context) ([]domain.PeakPowerRecord, error) {
	records, err := readLines[domain.PeakPowerRecord](ctx, s.path(PeakPowerFile))
	if err != nil {
		return nil, err
	}
	return nonNil(records), nil
}

// WkgCheckpoints implements domain.Store.
func (s *Store) WkgCheckpoints(ctx context.Context) ([]domain.WkgCheckpoint, error) {
	checkpoints, err := readLines[domain.WkgCheckpoint](ctx, s.path(WkgFile))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(checkpoints, func(i, j int) bool { return checkpoints[i].Date < checkpoints[j].Date })
	return nonNil(checkpoints), nil
}

// Snapshot reads every collection at once, for copying into another store.
func (s *Store) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	var err error
	if snap.Rides, err = readLines[domain.Ride](ctx, s.path(RidesFile)); err != nil {
		return snap, err
	}
	if snap.Readiness, err = readLines[domain.ReadinessEntry](ctx, s.path(ReadinessFile)); err != nil {
		return snap, err
	}
	if snap.PeakPower, err = s.PeakPower(ctx); err != nil {
		return snap, err
	}
	if snap.Wkg, err = s.WkgCheckpoints(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

// Close implements domain.Store; there is nothing to release.
func (s *Store) Close() error { return nil }

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) rides(ctx context.Context) ([]domain.Ride, error) {
	rides, err := readLines[domain.Ride](ctx, s.path(RidesFile))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rides, func(i, j int) bool { return dayKey(rides[i].Date) > dayKey(rides[j].Date) })
	return nonNil(rides), nil
}

func (s *Store) readiness(ctx context.Context) ([]domain.ReadinessEntry, error) {
	entries, err := readLines[domain.ReadinessEntry](ctx, s.path(ReadinessFile))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
	return nonNil(entries), nil
}

// readLines decodes one JSON document per non-blank line. A missing file is an empty collection.
func readLines[T any](ctx context.Context, path string) ([]T, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []T
	line := 0
	for scanner.Scan() {
		line++
		if line%512 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, &LineError{File: filepath.Base(path), Line: line, Err: err}
		}
		out = append(out, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// LineError reports a snapshot line that is not valid JSON for its record type.
type LineError struct {
	File string
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

func dayKey(date string) string {
	if len(date) > len(domain.DateLayout) {
		return date[:len(domain.DateLayout)]
	}
	return date
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
