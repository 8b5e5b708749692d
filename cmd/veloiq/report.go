package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steelburgerz/veloiq/internal/dashboard"
)

type reportFunc func(ctx context.Context, svc *dashboard.Service, opts dashboard.Options) (any, error)

var reports = map[string]reportFunc{
	"dashboard": func(ctx context.Context, svc *dashboard.Service, opts dashboard.Options) (any, error) {
		return svc.Dashboard(ctx, opts)
	},
	"rides": func(ctx context.Context, svc *dashboard.Service, opts dashboard.Options) (any, error) {
		return svc.Rides(ctx, opts.Rides)
	},
	"readiness": func(ctx context.Context, svc *dashboard.Service, opts dashboard.Options) (any, error) {
		return svc.Readiness(ctx, opts.Days)
	},
	"load": func(ctx context.Context, svc *dashboard.Service, opts dashboard.Options) (any, error) {
		return svc.LoadChart(ctx, opts.Days)
	},
	"weeks": func(ctx context.Context, svc *dashboard.Service, opts dashboard.Options) (any, error) {
		return svc.Weeks(ctx, opts.Weeks)
	},
	"efficiency": func(ctx context.Context, svc *dashboard.Service, opts dashboard.Options) (any, error) {
		return svc.EfTrend(ctx, opts.TrendDays)
	},
	"eftp": func(ctx context.Context, svc *dashboard.Service, opts dashboard.Options) (any, error) {
		return svc.EftpTrend(ctx, opts.TrendDays)
	},
	"athlete": func(ctx context.Context, svc *dashboard.Service, _ dashboard.Options) (any, error) {
		return svc.Athlete(ctx)
	},
	"peak-power": func(ctx context.Context, svc *dashboard.Service, _ dashboard.Options) (any, error) {
		return svc.PeakPower(ctx)
	},
	"wkg": func(ctx context.Context, svc *dashboard.Service, _ dashboard.Options) (any, error) {
		return svc.Wkg(ctx)
	},
}

func reportNames() []string {
	names := make([]string, 0, len(reports))
	for name := range reports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newReportCmd(g *globals) *cobra.Command {
	var opts dashboard.Options

	cmd := &cobra.Command{
		Use:       "report [" + strings.Join(reportNames(), "|") + "]",
		Short:     "Print a dashboard view from the configured store",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: reportNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "dashboard"
			if len(args) == 1 {
				name = args[0]
			}
			build, ok := reports[name]
			if !ok {
				return fmt.Errorf("unknown report %q (want one of %s)", name, strings.Join(reportNames(), ", "))
			}

			a, err := loadApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := build(cmd.Context(), a.service, opts)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), g.format, view)
		},
	}
	cmd.Flags().IntVar(&opts.Rides, "rides", 0, "number of recent rides (0 uses the configured default)")
	cmd.Flags().IntVar(&opts.Days, "days", 0, "readiness and load window in days")
	cmd.Flags().IntVar(&opts.Weeks, "weeks", 0, "number of calendar weeks")
	cmd.Flags().IntVar(&opts.TrendDays, "trend-days", 0, "efficiency and eFTP window in days")
	return cmd
}
