package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steelburgerz/veloiq/internal/config"
	"github.com/steelburgerz/veloiq/internal/persistence"
	"github.com/steelburgerz/veloiq/internal/persistence/ndjson"
	"github.com/steelburgerz/veloiq/internal/persistence/postgres"
)

func newMigrateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(g)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			pool, err := postgres.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()
			return postgres.Migrate(pool, logger)
		},
	}
}

func newImportCmd(g *globals) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy the NDJSON snapshots into the Postgres or SQLite store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(g)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if to == "" {
				to = cfg.Store.Driver
			}
			if to != config.DriverPostgres && to != config.DriverSQLite {
				return fmt.Errorf("import target must be %s or %s, got %q", config.DriverPostgres, config.DriverSQLite, to)
			}
			if from == "" {
				from = cfg.Wheelmate.MemoryDir()
			}

			snap, err := ndjson.NewStore(from).Snapshot(cmd.Context())
			if err != nil {
				return fmt.Errorf("read snapshots: %w", err)
			}

			target := *cfg
			target.Store.Driver = to
			store, err := persistence.Open(cmd.Context(), &target, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			importer, ok := store.(persistence.Importer)
			if !ok {
				return errors.New("store does not support imports")
			}
			if err := importer.Import(cmd.Context(), snap); err != nil {
				return fmt.Errorf("import: %w", err)
			}
			logger.Info("snapshot imported",
				zap.String("from", from), zap.String("to", to),
				zap.Int("rides", len(snap.Rides)), zap.Int("readiness", len(snap.Readiness)),
				zap.Int("peak_power", len(snap.PeakPower)), zap.Int("wkg", len(snap.Wkg)))
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d rides and %d readiness entries into %s\n", len(snap.Rides), len(snap.Readiness), to)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "NDJSON memory directory (defaults to the configured workspace)")
	cmd.Flags().StringVar(&to, "to", "", "target store: postgres|sqlite (defaults to store.driver)")
	return cmd
}
