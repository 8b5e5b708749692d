package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/steelburgerz/veloiq/internal/config"
	"github.com/steelburgerz/veloiq/internal/domain"
	"github.com/steelburgerz/veloiq/internal/persistence/ndjson"
	"github.com/steelburgerz/veloiq/internal/persistence/sqlite"
)

func TestOpenNDJSONReadsMemoryDir(t *testing.T) {
	workspace := t.TempDir()
	memory := filepath.Join(workspace, "memory")
	require.NoError(t, os.MkdirAll(memory, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(memory, ndjson.RidesFile), []byte(`{"date":"2026-03-04","strava_id":"1"}`+"\n"), 0o600))

	cfg := &config.Config{Store: config.StoreConfig{Driver: config.DriverNDJSON}, Wheelmate: config.WheelmateConfig{Workspace: workspace}}
	store, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	rides, err := Instrument(store).RecentRides(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, rides, 1)
}

func TestOpenSQLiteImplementsImporter(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: config.DriverSQLite}, SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "v.db")}}
	store, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*sqlite.Store)
	require.True(t, ok)
	importer, ok := store.(Importer)
	require.True(t, ok)
	require.NoError(t, importer.Import(context.Background(), domain.Snapshot{Rides: []domain.Ride{{Date: "2026-03-01", StravaID: "7"}}}))

	ride, err := Instrument(store).Ride(context.Background(), "7")
	require.NoError(t, err)
	require.Equal(t, "2026-03-01", ride.Date)

	_, err = Instrument(store).Ride(context.Background(), "8")
	require.ErrorIs(t, err, domain.ErrRideNotFound)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Store: config.StoreConfig{Driver: "csv"}}, zap.NewNop())
	require.Error(t, err)
}
