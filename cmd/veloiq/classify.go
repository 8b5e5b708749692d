package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/steelburgerz/veloiq/internal/classify"
	"github.com/steelburgerz/veloiq/internal/domain"
	"github.com/steelburgerz/veloiq/internal/fitimport"
)

type classifyResult struct {
	SessionType domain.SessionType `json:"session_type"`
	Label       string             `json:"label"`
	Rule        string             `json:"rule"`
	Ride        *domain.Ride       `json:"ride,omitempty"`
}

func newClassifyCmd(g *globals) *cobra.Command {
	var fitPath, rideID string
	var withRide bool

	cmd := &cobra.Command{
		Use:   "classify [ride.json|-]",
		Short: "Classify a ride from JSON, a FIT file or the configured store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := 0
			for _, set := range []bool{fitPath != "", rideID != "", len(args) == 1} {
				if set {
					sources++
				}
			}
			if sources != 1 {
				return errors.New("classify needs exactly one of: a JSON file argument, --fit or --ride")
			}

			if rideID != "" {
				a, err := loadApp(cmd.Context(), g)
				if err != nil {
					return err
				}
				defer a.Close()
				ride, err := a.store.Ride(cmd.Context(), rideID)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), g.format, result(a.service.Classify(*ride), ride, withRide))
			}

			cfg, logger, err := loadConfig(g)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			var ride *domain.Ride
			if fitPath != "" {
				loc, err := cfg.Location()
				if err != nil {
					return err
				}
				ride, err = fitimport.ReadFile(fitPath, fitimport.Options{ReferenceFTP: cfg.Athlete.ReferenceFTP, Location: loc})
				if err != nil {
					return err
				}
			} else {
				ride, err = readRide(cmd.InOrStdin(), args[0])
				if err != nil {
					return err
				}
			}

			classifier := classify.New(cfg.Athlete.ReferenceFTP)
			return render(cmd.OutOrStdout(), g.format, result(classifier.Explain(classifier.FromRide(*ride)), ride, withRide || fitPath != ""))
		},
	}
	cmd.Flags().StringVar(&fitPath, "fit", "", "classify a FIT activity file")
	cmd.Flags().StringVar(&rideID, "ride", "", "classify a stored ride by Strava id")
	cmd.Flags().BoolVar(&withRide, "with-ride", false, "include the ride record in the output")
	return cmd
}

func result(decision classify.Decision, ride *domain.Ride, withRide bool) classifyResult {
	out := classifyResult{SessionType: decision.Type, Label: classify.Label(decision.Type), Rule: decision.Rule}
	if withRide {
		ride.SessionType = decision.Type
		out.Ride = ride
	}
	return out
}

// readRide decodes a ride record from path, or from stdin when path is "-".
func readRide(stdin io.Reader, path string) (*domain.Ride, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open ride: %w", err)
		}
		defer f.Close()
		r = f
	}
	var ride domain.Ride
	if err := json.NewDecoder(r).Decode(&ride); err != nil {
		return nil, fmt.Errorf("decode ride: %w", err)
	}
	return &ride, nil
}
