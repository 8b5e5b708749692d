package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/steelburgerz/veloiq/internal/domain"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "veloiq.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func fixture() domain.Snapshot {
	notes := "after camp"
	return domain.Snapshot{
		Rides: []domain.Ride{
			{Date: "2026-03-01", StravaID: "101", Label: "Sunday long", DurationMin: 240},
			{Date: "2026-03-04", StravaID: "103", Label: "Threshold", IF: domain.Float(0.91), KeyBlocks: []domain.KeyBlock{{Count: 3, DurationSec: 600, Zone: domain.String("Z4")}}},
			{Date: "2026-03-02", Label: "Untracked spin"},
			{Date: "2026-03-04", StravaID: "101", Label: "Sunday long (edited)"},
		},
		Readiness: []domain.ReadinessEntry{
			{Date: "2026-03-03", Intervals: domain.IntervalsReadiness{TSB: -8.9}},
			{Date: "2026-03-01"},
			{Date: "2026-03-02"},
			{Date: "2026-03-03", Intervals: domain.IntervalsReadiness{TSB: -9.5}},
		},
		PeakPower: []domain.PeakPowerRecord{{DurationSec: 5, Label: "5s", PowerW: 850}},
		Wkg: []domain.WkgCheckpoint{
			{Date: "2026-03-01", WeightKg: 70, FTPW: 262, FTPWkg: 3.74, Notes: &notes},
			{Date: "2026-01-01", WeightKg: 72, FTPW: 255, FTPWkg: 3.54},
		},
	}
}

func TestImportAndRead(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	require.NoError(t, store.Import(ctx, fixture()))

	rides, err := store.RecentRides(ctx, 20)
	require.NoError(t, err)
	require.Len(t, rides, 4)
	require.Equal(t, "Threshold", rides[0].Label)
	require.Equal(t, 1800.0, rides[0].KeyBlocks[0].TotalSec())
	require.Equal(t, "Sunday long", rides[3].Label)

	since, err := store.RidesSince(ctx, time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, since, 3)

	ride, err := store.Ride(ctx, "101")
	require.NoError(t, err)
	require.Equal(t, "Sunday long (edited)", ride.Label)

	_, err = store.Ride(ctx, "")
	require.ErrorIs(t, err, domain.ErrRideNotFound)

	history, err := store.ReadinessHistory(ctx, 60)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, "2026-03-01", history[0].Date)
	require.Equal(t, -9.5, history[2].Intervals.TSB)

	latest, err := store.LatestReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "2026-03-03", latest.Date)

	peaks, err := store.PeakPower(ctx)
	require.NoError(t, err)
	require.Equal(t, 850.0, peaks[0].PowerW)

	wkg, err := store.WkgCheckpoints(ctx)
	require.NoError(t, err)
	require.Equal(t, "2026-01-01", wkg[0].Date)
	require.Nil(t, wkg[0].Notes)
	require.Equal(t, "after camp", *wkg[1].Notes)
}

func TestEmptyStore(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	rides, err := store.RecentRides(ctx, 20)
	require.NoError(t, err)
	require.NotNil(t, rides)
	require.Empty(t, rides)

	latest, err := store.LatestReadiness(ctx)
	require.NoError(t, err)
	require.Nil(t, latest)
}

func TestImportRejectsBadDates(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	require.NoError(t, store.Import(ctx, fixture()))

	err := store.Import(ctx, domain.Snapshot{Rides: []domain.Ride{{Date: "yesterday"}}})
	require.Error(t, err)

	// The failed import rolled back, so the previous contents remain.
	rides, err := store.RecentRides(ctx, 20)
	require.NoError(t, err)
	require.Len(t, rides, 4)
}
