// Package dashboard composes store reads, classification and derived metrics into the
// views served by the API and the CLI.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/steelburgerz/veloiq/internal/analytics"
	"github.com/steelburgerz/veloiq/internal/cache"
	"github.com/steelburgerz/veloiq/internal/classify"
	"github.com/steelburgerz/veloiq/internal/domain"
	"github.com/steelburgerz/veloiq/internal/observability"
)

// Options sizes the windows of a composed view. Zero fields fall back to the service defaults.
type Options struct {
	Rides     int `json:"rides"`
	Days      int `json:"days"`
	Weeks     int `json:"weeks"`
	TrendDays int `json:"trend_days"`
}

func (o Options) withDefaults(d Options) Options {
	if o.Rides <= 0 {
		o.Rides = d.Rides
	}
	if o.Days <= 0 {
		o.Days = d.Days
	}
	if o.Weeks <= 0 {
		o.Weeks = d.Weeks
	}
	if o.TrendDays <= 0 {
		o.TrendDays = d.TrendDays
	}
	return o
}

// DefaultOptions mirrors the windows the dashboard page has always used.
var DefaultOptions = Options{Rides: 20, Days: 60, Weeks: 6, TrendDays: 90}

// Service builds dashboard views. It is safe for concurrent use.
type Service struct {
	store      domain.Store
	classifier *classify.Classifier
	profile    analytics.Profile
	defaults   Options
	cache      cache.Cache
	now        func() time.Time
	loc        *time.Location
	logger     *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache stores composed dashboards in c.
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the timezone used for calendar windows.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithLogger sets a custom logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithDefaults sets the window sizes used when a request leaves them unset.
func WithDefaults(o Options) Option {
	return func(s *Service) { s.defaults = o.withDefaults(DefaultOptions) }
}

// NewService constructs a Service.
func NewService(store domain.Store, classifier *classify.Classifier, profile analytics.Profile, opts ...Option) *Service {
	s := &Service{
		store:      store,
		classifier: classifier,
		profile:    profile,
		defaults:   DefaultOptions,
		cache:      cache.Noop{},
		now:        time.Now,
		loc:        time.Local,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Profile returns the athlete profile the metrics are computed against.
func (s *Service) Profile() analytics.Profile { return s.profile }

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

// classifyRides fills in missing session types and counts each one classified.
func (s *Service) classifyRides(rides []domain.Ride) []domain.Ride {
	for i, ride := range rides {
		if !classify.NeedsClassification(ride.SessionType) {
			continue
		}
		rides[i] = s.classifier.Apply(ride)
		observability.RecordClassification(string(rides[i].SessionType))
	}
	return rides
}

// RaceCountdown is the target event and the whole days left until it.
type RaceCountdown struct {
	Name          string `json:"name"`
	Date          string `json:"date"`
	DaysRemaining int    `json:"days_remaining"`
}

// AthleteView is the athlete snapshot with its ramp-rate alert.
type AthleteView struct {
	analytics.AthleteStats
	RampLabel string               `json:"rampLabel,omitempty"`
	RampAlert *analytics.RampAlert `json:"rampAlert"`
}

func newAthleteView(rides []domain.Ride) AthleteView {
	stats := analytics.Athlete(rides)
	return AthleteView{AthleteStats: stats, RampLabel: stats.RampLevel.Label(), RampAlert: analytics.CheckRamp(stats)}
}

// Dashboard is the composed home view.
type Dashboard struct {
	Today       *domain.ReadinessEntry     `json:"today"`
	Rides       []domain.Ride              `json:"rides"`
	PeakPower   []domain.PeakPowerRecord   `json:"peak_power"`
	LoadChart   []analytics.LoadChartPoint `json:"chart_data"`
	Weeks       []analytics.WeekSummary    `json:"weeks"`
	Wkg         analytics.WkgProgress      `json:"wkg"`
	EfTrend     []analytics.EfPoint        `json:"ef_trend"`
	EftpTrend   []analytics.EftpPoint      `json:"eftp_trend"`
	Athlete     AthleteView                `json:"athlete"`
	Race        *RaceCountdown             `json:"race"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// Dashboard fetches every input concurrently and composes the home view. Cached views are
// keyed by window sizes and calendar day.
func (s *Service) Dashboard(ctx context.Context, opts Options) (*Dashboard, error) {
	opts = opts.withDefaults(s.defaults)
	now := s.clock()
	key := fmt.Sprintf("dashboard:%s:%d:%d:%d:%d", now.Format(domain.DateLayout), opts.Rides, opts.Days, opts.Weeks, opts.TrendDays)

	var cached Dashboard
	if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.logger.Warn("dashboard cache read failed", zap.Error(err))
	} else if hit {
		return &cached, nil
	}

	weekStart := analytics.WeekStart(now).AddDate(0, 0, -7*(opts.Weeks-1))
	since := analytics.WindowStart(now, opts.TrendDays)
	if weekStart.Before(since) {
		since = weekStart
	}

	var (
		view     = Dashboard{GeneratedAt: now}
		history  []domain.ReadinessEntry
		window   []domain.Ride
		peaks    []domain.PeakPowerRecord
		progress []domain.WkgCheckpoint
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		view.Today, err = s.store.LatestReadiness(gctx)
		return wrap("latest readiness", err)
	})
	g.Go(func() (err error) {
		view.Rides, err = s.store.RecentRides(gctx, opts.Rides)
		return wrap("recent rides", err)
	})
	g.Go(func() (err error) {
		history, err = s.store.ReadinessHistory(gctx, opts.Days)
		return wrap("readiness history", err)
	})
	g.Go(func() (err error) {
		window, err = s.store.RidesSince(gctx, since)
		return wrap("ride window", err)
	})
	g.Go(func() (err error) {
		peaks, err = s.store.PeakPower(gctx)
		return wrap("peak power", err)
	})
	g.Go(func() (err error) {
		progress, err = s.store.WkgCheckpoints(gctx)
		return wrap("wkg checkpoints", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view.Rides = s.classifyRides(nonNil(view.Rides))
	window = s.classifyRides(window)

	view.LoadChart = analytics.LoadChart(history, opts.Days)
	view.Weeks = analytics.WeekSummaries(window, opts.Weeks, now)
	view.EfTrend = analytics.EfTrend(window, opts.TrendDays, now)
	view.EftpTrend = analytics.EftpTrend(window, opts.TrendDays, now)
	view.Athlete = newAthleteView(window)
	view.Wkg = analytics.Wkg(progress, s.profile.TargetWkg)
	view.PeakPower = s.peakPower(peaks, window, opts.TrendDays)
	view.Race = s.race(now)

	if err := s.cache.Set(ctx, key, view); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
	return &view, nil
}

// peakPower prefers stored records and otherwise derives bests from the window's power curves.
func (s *Service) peakPower(stored []domain.PeakPowerRecord, window []domain.Ride, days int) []domain.PeakPowerRecord {
	if len(stored) > 0 {
		return stored
	}
	return analytics.BestPeakPower(analytics.PeakPowerRecords(window, s.profile.WeightKg, fmt.Sprintf("%dd", days)))
}

func (s *Service) race(now time.Time) *RaceCountdown {
	if s.profile.RaceDate == "" {
		return nil
	}
	return &RaceCountdown{
		Name:          s.profile.RaceName,
		Date:          s.profile.RaceDate,
		DaysRemaining: analytics.DaysUntil(s.profile.RaceDate, now),
	}
}

// Invalidate drops cached views after a snapshot change.
func (s *Service) Invalidate(ctx context.Context, reason string) error {
	observability.RecordSnapshotChange(s.now())
	return s.cache.Invalidate(ctx, reason)
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("load %s: %w", what, err)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
