package ndjson

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/steelburgerz/veloiq/internal/domain"
)

func writeFile(t *testing.T, dir, name string, lines ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(strings.Join(lines, "\n")+"\n"), 0o600))
}

func seeded(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, RidesFile,
		`{"date":"2026-03-01","strava_id":"101","label":"Sunday long","session_type":"long_ride","duration_min":240,"distance_km":110}`,
		``,
		`{"date":"2026-03-04","strava_id":"103","label":"Threshold 3x10","np_w":251,"zones_power_sec":{"z2":1200,"Z4":1800}}`,
		`{"date":"2026-03-02","strava_id":"102","label":"Recovery spin","duration_min":40}`,
		`{"date":"2026-03-04","strava_id":"101","label":"Sunday long (edited)","session_type":"long_ride","duration_min":240}`,
	)
	writeFile(t, dir, ReadinessFile,
		`{"date":"2026-03-03","intervals":{"ctl":51.2,"atl":60.1,"tsb":-8.9},"wheelmate":{"status":"AMBER"}}`,
		`{"date":"2026-03-01","intervals":{"ctl":50,"atl":55,"tsb":-5}}`,
		`{"date":"2026-03-02","intervals":{"ctl":50.6,"atl":58,"tsb":-7.4}}`,
	)
	writeFile(t, dir, WkgFile,
		`{"date":"2026-03-01","weight_kg":70,"ftp_w":262,"ftp_wkg":3.74}`,
		`{"date":"2026-01-01","weight_kg":72,"ftp_w":255,"ftp_wkg":3.54,"notes":"base"}`,
	)
	return NewStore(dir)
}

func TestRecentRidesNewestFirst(t *testing.T) {
	store := seeded(t)
	rides, err := store.RecentRides(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, rides, 3)
	require.Equal(t, "2026-03-04", rides[0].Date)
	require.Equal(t, "2026-03-04", rides[1].Date)
	require.Equal(t, "2026-03-02", rides[2].Date)
	require.Equal(t, 1800.0, rides[0].ZonesPowerSec.Get(domain.ZoneZ4))
	require.Equal(t, 1200.0, rides[0].ZonesPowerSec.Get(domain.ZoneZ2))
}

func TestRidesSince(t *testing.T) {
	store := seeded(t)
	since := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	rides, err := store.RidesSince(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, rides, 3)
	for _, ride := range rides {
		require.GreaterOrEqual(t, ride.Date, "2026-03-02")
	}
}

func TestRideLookup(t *testing.T) {
	store := seeded(t)
	ride, err := store.Ride(context.Background(), "101")
	require.NoError(t, err)
	require.Equal(t, "Sunday long (edited)", ride.Label)

	_, err = store.Ride(context.Background(), "999")
	require.ErrorIs(t, err, domain.ErrRideNotFound)
}

func TestReadinessHistoryAndLatest(t *testing.T) {
	store := seeded(t)
	history, err := store.ReadinessHistory(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "2026-03-02", history[0].Date)
	require.Equal(t, "2026-03-03", history[1].Date)

	latest, err := store.LatestReadiness(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.ReadinessAmber, latest.Wheelmate.Status)
}

func TestMissingFilesAreEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent"))
	ctx := context.Background()

	rides, err := store.RecentRides(ctx, 20)
	require.NoError(t, err)
	require.Empty(t, rides)
	require.NotNil(t, rides)

	latest, err := store.LatestReadiness(ctx)
	require.NoError(t, err)
	require.Nil(t, latest)

	peaks, err := store.PeakPower(ctx)
	require.NoError(t, err)
	require.Empty(t, peaks)
}

func TestWkgCheckpointsOldestFirst(t *testing.T) {
	store := seeded(t)
	checkpoints, err := store.WkgCheckpoints(context.Background())
	require.NoError(t, err)
	require.Len(t, checkpoints, 2)
	require.Equal(t, "2026-01-01", checkpoints[0].Date)
	require.Equal(t, "base", *checkpoints[0].Notes)
	require.Nil(t, checkpoints[1].Notes)
}

func TestMalformedLineNamesFileAndLine(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ReadinessFile, `{"date":"2026-03-01"}`, `{"date":`)
	_, err := NewStore(dir).ReadinessHistory(context.Background(), 60)

	var lineErr *LineError
	require.True(t, errors.As(err, &lineErr))
	require.Equal(t, ReadinessFile, lineErr.File)
	require.Equal(t, 2, lineErr.Line)
	require.Contains(t, err.Error(), "readiness.ndjson:2")
}

func TestSnapshotReadsEverything(t *testing.T) {
	snap, err := seeded(t).Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Rides, 4)
	require.Len(t, snap.Readiness, 3)
	require.Empty(t, snap.PeakPower)
	require.Len(t, snap.Wkg, 2)
}
