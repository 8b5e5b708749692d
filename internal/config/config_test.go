package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTP.Address)
	require.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
	require.Equal(t, DriverNDJSON, cfg.Store.Driver)
	require.Equal(t, "./workspace/memory", cfg.Wheelmate.MemoryDir())
	require.Equal(t, []string{"kafka:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, []string{"ride_events", "readiness_events"}, cfg.Consumer.Topics)
	require.Equal(t, 270.0, cfg.Athlete.ReferenceFTP)
	require.Equal(t, 70.0, cfg.Athlete.ReferenceWeightKg)
	require.Equal(t, 3.86, cfg.Athlete.TargetWkg)
	require.Equal(t, "2026-04-25", cfg.Athlete.RaceDate)
	require.Equal(t, 20, cfg.Dashboard.Rides)
	require.Equal(t, 60, cfg.Dashboard.Days)
	require.Equal(t, 6, cfg.Dashboard.Weeks)
	require.Empty(t, cfg.Redis.Addr)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", ":9090")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_URL", "postgres://x@db/veloiq")
	t.Setenv("ATHLETE_REFERENCE_FTP", "285")
	t.Setenv("JWT_ALLOWED_SUBJECTS", "rider@example.com,coach@example.com")
	t.Setenv("TIMEZONE", "Asia/Singapore")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTP.Address)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, DriverPostgres, cfg.Store.Driver)
	require.Equal(t, 285.0, cfg.Athlete.ReferenceFTP)
	require.Equal(t, []string{"rider@example.com", "coach@example.com"}, cfg.JWT.AllowedSubjects)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, "Asia/Singapore", loc.String())
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "veloiq.yaml")
	content := []byte("store:\n  driver: sqlite\nsqlite:\n  path: /tmp/rides.db\nathlete:\n  race_name: Tour\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DriverSQLite, cfg.Store.Driver)
	require.Equal(t, "/tmp/rides.db", cfg.SQLite.Path)
	require.Equal(t, "Tour", cfg.Athlete.RaceName)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"driver":     {"STORE_DRIVER": "mongo"},
		"secret":     {"JWT_SECRET": "short"},
		"ftp":        {"ATHLETE_REFERENCE_FTP": "0"},
		"race date":  {"ATHLETE_RACE_DATE": "25/04/2026"},
		"timezone":   {"TIMEZONE": "Mars/Olympus"},
		"dashboards": {"DASHBOARD_WEEKS": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for key, value := range env {
				t.Setenv(key, value)
			}
			_, err := Load("")
			require.Error(t, err)
		})
	}
}

func TestDisabledAuthSkipsSecretCheck(t *testing.T) {
	t.Setenv("JWT_DISABLED", "true")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.True(t, cfg.JWT.Disabled)
}
