package dashboard

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/steelburgerz/veloiq/internal/analytics"
	"github.com/steelburgerz/veloiq/internal/cache"
	"github.com/steelburgerz/veloiq/internal/classify"
	"github.com/steelburgerz/veloiq/internal/config"
	"github.com/steelburgerz/veloiq/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)

type mockStore struct {
	mu        sync.Mutex
	rides     []domain.Ride
	readiness []domain.ReadinessEntry
	peaks     []domain.PeakPowerRecord
	wkg       []domain.WkgCheckpoint
	err       error
	calls     atomic.Int32
}

func (m *mockStore) sortedRides() []domain.Ride {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.Ride(nil), m.rides...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

func (m *mockStore) RecentRides(_ context.Context, limit int) ([]domain.Ride, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	rides := m.sortedRides()
	if len(rides) > limit {
		rides = rides[:limit]
	}
	return rides, nil
}

func (m *mockStore) RidesSince(_ context.Context, since time.Time) ([]domain.Ride, error) {
	m.calls.Add(1)
	out := []domain.Ride{}
	for _, ride := range m.sortedRides() {
		if ride.Date >= since.Format(domain.DateLayout) {
			out = append(out, ride)
		}
	}
	return out, nil
}

func (m *mockStore) Ride(_ context.Context, id string) (*domain.Ride, error) {
	for _, ride := range m.sortedRides() {
		if ride.StravaID == id {
			return &ride, nil
		}
	}
	return nil, domain.ErrRideNotFound
}

func (m *mockStore) ReadinessHistory(_ context.Context, days int) ([]domain.ReadinessEntry, error) {
	m.calls.Add(1)
	out := append([]domain.ReadinessEntry(nil), m.readiness...)
	if len(out) > days {
		out = out[len(out)-days:]
	}
	return out, nil
}

func (m *mockStore) LatestReadiness(context.Context) (*domain.ReadinessEntry, error) {
	m.calls.Add(1)
	if len(m.readiness) == 0 {
		return nil, nil
	}
	latest := m.readiness[len(m.readiness)-1]
	return &latest, nil
}

func (m *mockStore) PeakPower(context.Context) ([]domain.PeakPowerRecord, error) {
	m.calls.Add(1)
	return m.peaks, nil
}

func (m *mockStore) WkgCheckpoints(context.Context) ([]domain.WkgCheckpoint, error) {
	m.calls.Add(1)
	return m.wkg, nil
}

func (m *mockStore) Close() error { return nil }

func fixtureStore() *mockStore {
	return &mockStore{
		rides: []domain.Ride{
			{Date: "2026-03-04", StravaID: "3", Label: "Recovery spin", DurationMin: 40},
			{Date: "2026-03-03", StravaID: "2", Label: "Morning Ride", DurationMin: 75, NPW: domain.Float(250),
				ZonesPowerSec: domain.ZoneTimes{"Z2": 1500, "Z4": 1800}, EF: domain.Float(1.42),
				DayEFTPW: domain.Float(264), DayWeightKg: domain.Float(70), DayRampRate: domain.Float(4.1),
				AerobicTE: domain.Float(3.4), PeakPowerCurve: domain.PowerCurve{"5": 800, "300": 320}},
			{Date: "2026-03-01", StravaID: "1", Label: "Sunday long", SessionType: domain.SessionLongRide, DurationMin: 240, DistanceKm: 110},
		},
		readiness: []domain.ReadinessEntry{
			{Date: "2026-03-03", Intervals: domain.IntervalsReadiness{CTL: 52.04, ATL: 60.06, TSB: -8.02}},
			{Date: "2026-03-04", Intervals: domain.IntervalsReadiness{CTL: 52.5, ATL: 58, TSB: -5.5}, Wheelmate: domain.Verdict{Status: domain.ReadinessGreen}},
		},
		wkg: []domain.WkgCheckpoint{{Date: "2026-03-01", WeightKg: 70, FTPW: 262, FTPWkg: 3.74}},
	}
}

func newTestService(store domain.Store, opts ...Option) *Service {
	profile := analytics.Profile{FTP: 270, WeightKg: 70, TargetWkg: 3.86, RaceName: "TiTi", RaceDate: "2026-04-25"}
	base := []Option{WithClock(func() time.Time { return testNow }), WithLocation(time.UTC)}
	return NewService(store, classify.New(270), profile, append(base, opts...)...)
}

func TestDashboardComposesEveryView(t *testing.T) {
	svc := newTestService(fixtureStore())

	view, err := svc.Dashboard(context.Background(), Options{})
	require.NoError(t, err)

	require.Equal(t, "2026-03-04", view.Today.Date)
	require.Len(t, view.Rides, 3)
	require.Equal(t, domain.SessionRecovery, view.Rides[0].SessionType)
	require.Equal(t, domain.SessionThreshold, view.Rides[1].SessionType)
	require.Equal(t, domain.SessionLongRide, view.Rides[2].SessionType)

	require.Len(t, view.LoadChart, 2)
	require.Equal(t, 52.0, view.LoadChart[0].CTL)

	require.Len(t, view.Weeks, DefaultOptions.Weeks)
	require.Equal(t, "This week", view.Weeks[0].WeekLabel)
	require.Len(t, view.Weeks[0].Rides, 2)
	require.Len(t, view.Weeks[1].Rides, 1)

	require.Len(t, view.EfTrend, 1)
	require.Equal(t, domain.SessionThreshold, view.EfTrend[0].SessionType)
	require.Len(t, view.EftpTrend, 1)

	require.Equal(t, 264.0, *view.Athlete.EFTP)
	require.Equal(t, 3.77, *view.Athlete.Wkg)
	require.Equal(t, analytics.RampOptimal, view.Athlete.RampLevel)
	require.Nil(t, view.Athlete.RampAlert)

	require.Equal(t, 0.12, *view.Wkg.GapWkg)
	require.Len(t, view.PeakPower, 2)
	require.Equal(t, "5s", view.PeakPower[0].Label)

	require.Equal(t, 52, view.Race.DaysRemaining)
	require.Equal(t, "TiTi", view.Race.Name)
}

func TestDashboardPropagatesStoreErrors(t *testing.T) {
	store := fixtureStore()
	store.err = errors.New("disk on fire")
	_, err := newTestService(store).Dashboard(context.Background(), Options{})
	require.ErrorIs(t, err, store.err)
	require.Contains(t, err.Error(), "recent rides")
}

func TestDashboardUsesCacheUntilInvalidated(t *testing.T) {
	store := fixtureStore()
	svc := newTestService(store, WithCache(cache.NewMemory(time.Minute)))
	ctx := context.Background()

	_, err := svc.Dashboard(ctx, Options{})
	require.NoError(t, err)
	first := store.calls.Load()

	view, err := svc.Dashboard(ctx, Options{})
	require.NoError(t, err)
	require.Equal(t, first, store.calls.Load())
	require.Len(t, view.Rides, 3)

	_, err = svc.Dashboard(ctx, Options{Rides: 1})
	require.NoError(t, err)
	require.Greater(t, store.calls.Load(), first)

	afterMiss := store.calls.Load()
	require.NoError(t, svc.Invalidate(ctx, "test"))
	_, err = svc.Dashboard(ctx, Options{})
	require.NoError(t, err)
	require.Greater(t, store.calls.Load(), afterMiss)
}

func TestRideDetail(t *testing.T) {
	svc := newTestService(fixtureStore())

	detail, err := svc.RideDetail(context.Background(), "2")
	require.NoError(t, err)
	require.Equal(t, domain.SessionThreshold, detail.Ride.SessionType)
	require.Equal(t, "Threshold", detail.SessionLabel)
	require.NotNil(t, detail.Classification)
	require.Equal(t, "1h 15m", detail.Duration)
	require.False(t, detail.Virtual)
	require.Len(t, detail.PowerZones, 2)
	require.Equal(t, "Improving", detail.AerobicTE.Label)
	require.Nil(t, detail.AnaerobicTE)
	require.Len(t, detail.PeakPower, 2)
	require.NotEmpty(t, detail.Insights)

	stored, err := svc.RideDetail(context.Background(), "1")
	require.NoError(t, err)
	require.Nil(t, stored.Classification)

	_, err = svc.RideDetail(context.Background(), "404")
	require.ErrorIs(t, err, domain.ErrRideNotFound)
}

func TestSmallerViews(t *testing.T) {
	svc := newTestService(fixtureStore())
	ctx := context.Background()

	rides, err := svc.Rides(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rides, 2)

	readiness, err := svc.Readiness(ctx, 1)
	require.NoError(t, err)
	require.Len(t, readiness.History, 1)
	require.Len(t, readiness.ChartData, 1)
	require.Equal(t, domain.ReadinessGreen, readiness.Today.Wheelmate.Status)

	weeks, err := svc.Weeks(ctx, 2)
	require.NoError(t, err)
	require.Len(t, weeks, 2)

	athlete, err := svc.Athlete(ctx)
	require.NoError(t, err)
	require.Equal(t, "Optimal", athlete.RampLabel)

	peaks, err := svc.PeakPower(ctx)
	require.NoError(t, err)
	require.Len(t, peaks, 2)

	wkg, err := svc.Wkg(ctx)
	require.NoError(t, err)
	require.Equal(t, 8.0, *wkg.WattsToTarget)

	decision := svc.Classify(domain.Ride{Label: "Club race", DurationMin: 90})
	require.Equal(t, domain.SessionRace, decision.Type)
}

func TestNewFromConfigAppliesSettings(t *testing.T) {
	cfg := &config.Config{
		Athlete:   config.AthleteConfig{ReferenceFTP: 285, ReferenceWeightKg: 68, TargetWkg: 4.2, RaceName: "Tour", RaceDate: "2026-06-01"},
		Dashboard: config.DashboardConfig{Rides: 5, Days: 30, Weeks: 4, TrendDays: 45},
		Timezone:  "UTC",
	}
	svc, err := NewFromConfig(fixtureStore(), cfg, WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	require.Equal(t, 285.0, svc.Profile().FTP)
	require.Equal(t, "Tour", svc.Profile().RaceName)
	require.Equal(t, Options{Rides: 5, Days: 30, Weeks: 4, TrendDays: 45}, svc.defaults)

	rides, err := svc.Rides(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rides, 3)

	_, err = NewFromConfig(fixtureStore(), &config.Config{Timezone: "Nowhere/Atlantis"})
	require.Error(t, err)
}
