package dashboard

import (
	"context"
	"time"

	"github.com/steelburgerz/veloiq/internal/analytics"
	"github.com/steelburgerz/veloiq/internal/classify"
	"github.com/steelburgerz/veloiq/internal/domain"
	"github.com/steelburgerz/veloiq/internal/observability"
)

// Rides returns up to limit classified rides, newest first.
func (s *Service) Rides(ctx context.Context, limit int) ([]domain.Ride, error) {
	if limit <= 0 {
		limit = s.defaults.Rides
	}
	rides, err := s.store.RecentRides(ctx, limit)
	if err != nil {
		return nil, wrap("recent rides", err)
	}
	return s.classifyRides(nonNil(rides)), nil
}

// RideDetail is everything the single-ride page shows.
type RideDetail struct {
	Ride           domain.Ride               `json:"ride"`
	SessionLabel   string                    `json:"session_label"`
	Classification *classify.Decision        `json:"classification"`
	Duration       string                    `json:"duration"`
	Virtual        bool                      `json:"virtual"`
	PowerZones     []analytics.ZoneShare     `json:"power_zones"`
	HRZones        []analytics.ZoneShare     `json:"hr_zones"`
	Insights       []analytics.Insight       `json:"insights"`
	Day            *analytics.DayVerdict     `json:"day_verdict"`
	AerobicTE      *analytics.TrainingEffect `json:"aerobic_te"`
	AnaerobicTE    *analytics.TrainingEffect `json:"anaerobic_te"`
	PeakPower      []domain.PeakPowerRecord  `json:"peak_power"`
}

// RideDetail loads one ride and derives its analysis. Unknown ids yield domain.ErrRideNotFound.
func (s *Service) RideDetail(ctx context.Context, stravaID string) (*RideDetail, error) {
	ride, err := s.store.Ride(ctx, stravaID)
	if err != nil {
		return nil, err
	}

	detail := &RideDetail{
		Duration:   analytics.FormatDuration(ride.DurationMin),
		Virtual:    analytics.IsVirtual(ride.Label),
		PowerZones: analytics.ZoneBreakdown(ride.ZonesPowerSec, s.profile.FTP),
		HRZones:    analytics.ZoneBreakdown(ride.ZonesHRSec, 0),
		Day:        analytics.AssessDay(*ride),
		PeakPower:  analytics.PeakPowerRecords([]domain.Ride{*ride}, s.profile.WeightKg, "ride"),
	}
	if classify.NeedsClassification(ride.SessionType) {
		decision := s.classifier.Explain(s.classifier.FromRide(*ride))
		detail.Classification = &decision
	}
	classified := s.classifyRides([]domain.Ride{*ride})[0]
	detail.Ride = classified
	detail.SessionLabel = classify.Label(classified.SessionType)
	detail.Insights = analytics.Insights(classified, s.profile)

	if ride.AerobicTE != nil {
		te := analytics.GradeTrainingEffect(*ride.AerobicTE)
		detail.AerobicTE = &te
	}
	if ride.AnaerobicTE != nil {
		te := analytics.GradeTrainingEffect(*ride.AnaerobicTE)
		detail.AnaerobicTE = &te
	}
	return detail, nil
}

// ReadinessView is today's readiness with its recent history and chart series.
type ReadinessView struct {
	Today     *domain.ReadinessEntry     `json:"today"`
	History   []domain.ReadinessEntry    `json:"history"`
	ChartData []analytics.LoadChartPoint `json:"chart_data"`
}

// Readiness returns the latest entry and the trailing days of history.
func (s *Service) Readiness(ctx context.Context, days int) (*ReadinessView, error) {
	if days <= 0 {
		days = s.defaults.Days
	}
	history, err := s.store.ReadinessHistory(ctx, days)
	if err != nil {
		return nil, wrap("readiness history", err)
	}
	today, err := s.store.LatestReadiness(ctx)
	if err != nil {
		return nil, wrap("latest readiness", err)
	}
	return &ReadinessView{Today: today, History: nonNil(history), ChartData: analytics.LoadChart(history, days)}, nil
}

// LoadChart returns the CTL/ATL/TSB series for the trailing days.
func (s *Service) LoadChart(ctx context.Context, days int) ([]analytics.LoadChartPoint, error) {
	if days <= 0 {
		days = s.defaults.Days
	}
	history, err := s.store.ReadinessHistory(ctx, days)
	if err != nil {
		return nil, wrap("readiness history", err)
	}
	return analytics.LoadChart(history, days), nil
}

// Weeks returns the trailing weekly summaries, newest first.
func (s *Service) Weeks(ctx context.Context, weeks int) ([]analytics.WeekSummary, error) {
	if weeks <= 0 {
		weeks = s.defaults.Weeks
	}
	now := s.clock()
	rides, err := s.store.RidesSince(ctx, analytics.WeekStart(now).AddDate(0, 0, -7*(weeks-1)))
	if err != nil {
		return nil, wrap("ride window", err)
	}
	return analytics.WeekSummaries(s.classifyRides(rides), weeks, now), nil
}

// EfTrend returns efficiency factor points for the trailing days.
func (s *Service) EfTrend(ctx context.Context, days int) ([]analytics.EfPoint, error) {
	rides, now, days, err := s.trendWindow(ctx, days)
	if err != nil {
		return nil, err
	}
	return analytics.EfTrend(s.classifyRides(rides), days, now), nil
}

// EftpTrend returns estimated FTP points for the trailing days.
func (s *Service) EftpTrend(ctx context.Context, days int) ([]analytics.EftpPoint, error) {
	rides, now, days, err := s.trendWindow(ctx, days)
	if err != nil {
		return nil, err
	}
	return analytics.EftpTrend(rides, days, now), nil
}

// Athlete returns the latest athlete metrics from the trend window.
func (s *Service) Athlete(ctx context.Context) (*AthleteView, error) {
	rides, _, _, err := s.trendWindow(ctx, 0)
	if err != nil {
		return nil, err
	}
	view := newAthleteView(rides)
	return &view, nil
}

// PeakPower returns stored peak-power records, or bests derived from the trend window's curves.
func (s *Service) PeakPower(ctx context.Context) ([]domain.PeakPowerRecord, error) {
	stored, err := s.store.PeakPower(ctx)
	if err != nil {
		return nil, wrap("peak power", err)
	}
	if len(stored) > 0 {
		return stored, nil
	}
	rides, _, days, err := s.trendWindow(ctx, 0)
	if err != nil {
		return nil, err
	}
	return s.peakPower(nil, rides, days), nil
}

// Wkg returns power-to-weight progress toward the target.
func (s *Service) Wkg(ctx context.Context) (*analytics.WkgProgress, error) {
	checkpoints, err := s.store.WkgCheckpoints(ctx)
	if err != nil {
		return nil, wrap("wkg checkpoints", err)
	}
	progress := analytics.Wkg(checkpoints, s.profile.TargetWkg)
	return &progress, nil
}

// Classify explains the session type of an ad-hoc ride.
func (s *Service) Classify(ride domain.Ride) classify.Decision {
	decision := s.classifier.Explain(s.classifier.FromRide(ride))
	observability.RecordClassification(string(decision.Type))
	return decision
}

func (s *Service) trendWindow(ctx context.Context, days int) ([]domain.Ride, time.Time, int, error) {
	if days <= 0 {
		days = s.defaults.TrendDays
	}
	now := s.clock()
	rides, err := s.store.RidesSince(ctx, analytics.WindowStart(now, days))
	if err != nil {
		return nil, now, days, wrap("ride window", err)
	}
	return rides, now, days, nil
}
