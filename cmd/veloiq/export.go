package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steelburgerz/veloiq/internal/export"
)

const defaultExportRides = 5000

func newExportCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "export", Short: "Export ride history for offline analysis"}

	var ridesOut string
	var limit int
	ridesCmd := &cobra.Command{
		Use:   "rides",
		Short: "Write classified rides to a Parquet file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			rides, err := a.service.Rides(cmd.Context(), limit)
			if err != nil {
				return err
			}
			raw, err := export.RidesParquet(rides)
			if err != nil {
				return fmt.Errorf("encode parquet: %w", err)
			}
			if err := writeFile(ridesOut, raw); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rides to %s\n", len(rides), ridesOut)
			return nil
		},
	}
	ridesCmd.Flags().StringVar(&ridesOut, "out", "rides.parquet", "output file")
	ridesCmd.Flags().IntVar(&limit, "limit", defaultExportRides, "maximum number of rides, newest first")

	var weeksOut string
	var weeks int
	weeksCmd := &cobra.Command{
		Use:   "weeks",
		Short: "Write weekly summaries to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			summaries, err := a.service.Weeks(cmd.Context(), weeks)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := export.WeeksXLSX(summaries, &buf); err != nil {
				return fmt.Errorf("encode workbook: %w", err)
			}
			if err := writeFile(weeksOut, buf.Bytes()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d weeks to %s\n", len(summaries), weeksOut)
			return nil
		},
	}
	weeksCmd.Flags().StringVar(&weeksOut, "out", "weeks.xlsx", "output file")
	weeksCmd.Flags().IntVar(&weeks, "weeks", 0, "number of calendar weeks (0 uses the configured default)")

	cmd.AddCommand(ridesCmd, weeksCmd)
	return cmd
}

func writeFile(path string, raw []byte) error {
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
