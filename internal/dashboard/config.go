package dashboard

import (
	"github.com/steelburgerz/veloiq/internal/analytics"
	"github.com/steelburgerz/veloiq/internal/classify"
	"github.com/steelburgerz/veloiq/internal/config"
	"github.com/steelburgerz/veloiq/internal/domain"
)

// ProfileFromConfig maps the athlete settings onto an analytics profile.
func ProfileFromConfig(cfg config.AthleteConfig) analytics.Profile {
	return analytics.Profile{
		FTP:       cfg.ReferenceFTP,
		WeightKg:  cfg.ReferenceWeightKg,
		TargetWkg: cfg.TargetWkg,
		RaceName:  cfg.RaceName,
		RaceDate:  cfg.RaceDate,
	}
}

// NewFromConfig builds a Service whose classifier, profile, windows and timezone come from cfg.
// Extra options are applied last.
func NewFromConfig(store domain.Store, cfg *config.Config, opts ...Option) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	base := []Option{
		WithLocation(loc),
		WithDefaults(Options{
			Rides:     cfg.Dashboard.Rides,
			Days:      cfg.Dashboard.Days,
			Weeks:     cfg.Dashboard.Weeks,
			TrendDays: cfg.Dashboard.TrendDays,
		}),
	}
	classifier := classify.New(cfg.Athlete.ReferenceFTP)
	return NewService(store, classifier, ProfileFromConfig(cfg.Athlete), append(base, opts...)...), nil
}
