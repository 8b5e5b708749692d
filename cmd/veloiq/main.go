// Command veloiq classifies rides, prints dashboard reports, exports ride history and
// maintains the relational snapshot stores.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steelburgerz/veloiq/internal/config"
	"github.com/steelburgerz/veloiq/internal/dashboard"
	"github.com/steelburgerz/veloiq/internal/domain"
	"github.com/steelburgerz/veloiq/internal/logging"
	"github.com/steelburgerz/veloiq/internal/persistence"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	format     string
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "veloiq",
		Short:         "Cycling training dashboard tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVarP(&g.format, "format", "o", formatJSON, "output format: json|yaml")

	root.AddCommand(newClassifyCmd(g))
	root.AddCommand(newReportCmd(g))
	root.AddCommand(newExportCmd(g))
	root.AddCommand(newMigrateCmd(g))
	root.AddCommand(newImportCmd(g))
	return root
}

// app is the wiring a command needs to read the configured store.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   domain.Store
	service *dashboard.Service
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logger.Sync()
}

func loadConfig(g *globals) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func loadApp(ctx context.Context, g *globals) (*app, error) {
	cfg, logger, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	store, err := persistence.Open(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open store: %w", err)
	}
	service, err := dashboard.NewFromConfig(store, cfg, dashboard.WithLogger(logger.Named("dashboard")))
	if err != nil {
		_ = store.Close()
		_ = logger.Sync()
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, store: store, service: service}, nil
}
