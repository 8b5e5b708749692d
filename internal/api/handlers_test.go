package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/steelburgerz/veloiq/internal/analytics"
	"github.com/steelburgerz/veloiq/internal/auth"
	"github.com/steelburgerz/veloiq/internal/classify"
	"github.com/steelburgerz/veloiq/internal/dashboard"
	"github.com/steelburgerz/veloiq/internal/domain"
	"github.com/steelburgerz/veloiq/internal/strava"
)

var now = time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)

type mockStore struct {
	rides     []domain.Ride
	readiness []domain.ReadinessEntry
	err       error
	lastLimit int
}

func (m *mockStore) RecentRides(_ context.Context, limit int) ([]domain.Ride, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	if len(m.rides) > limit {
		return m.rides[:limit], nil
	}
	return m.rides, nil
}

func (m *mockStore) RidesSince(_ context.Context, since time.Time) ([]domain.Ride, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rides, nil
}

func (m *mockStore) Ride(_ context.Context, id string) (*domain.Ride, error) {
	for _, ride := range m.rides {
		if ride.StravaID == id {
			return &ride, nil
		}
	}
	return nil, domain.ErrRideNotFound
}

func (m *mockStore) ReadinessHistory(_ context.Context, days int) ([]domain.ReadinessEntry, error) {
	return m.readiness, nil
}

func (m *mockStore) LatestReadiness(context.Context) (*domain.ReadinessEntry, error) {
	if len(m.readiness) == 0 {
		return nil, nil
	}
	latest := m.readiness[len(m.readiness)-1]
	return &latest, nil
}

func (m *mockStore) PeakPower(context.Context) ([]domain.PeakPowerRecord, error) { return nil, nil }
func (m *mockStore) WkgCheckpoints(context.Context) ([]domain.WkgCheckpoint, error) {
	return []domain.WkgCheckpoint{{Date: "2026-03-01", WeightKg: 70, FTPW: 262, FTPWkg: 3.74}}, nil
}
func (m *mockStore) Close() error { return nil }

type stubMaps struct {
	route *strava.ActivityMap
	err   error
}

func (s stubMaps) ActivityMap(context.Context, string) (*strava.ActivityMap, error) {
	return s.route, s.err
}

func fixture() *mockStore {
	return &mockStore{
		rides: []domain.Ride{
			{Date: "2026-03-03", StravaID: "2", Label: "Morning Ride", DurationMin: 75, NPW: domain.Float(250),
				ZonesPowerSec: domain.ZoneTimes{"Z2": 1500, "Z4": 1800}, PeakPowerCurve: domain.PowerCurve{"5": 800, "300": 320}},
			{Date: "2026-03-01", StravaID: "1", Label: "Zwift - Watopia", SessionType: domain.SessionLongRide, DurationMin: 200, DistanceKm: 95},
		},
		readiness: []domain.ReadinessEntry{
			{Date: "2026-03-04", Intervals: domain.IntervalsReadiness{CTL: 52.5, ATL: 58, TSB: -5.5}},
		},
	}
}

func newServer(store domain.Store, maps MapLookup) http.Handler {
	profile := analytics.Profile{FTP: 270, WeightKg: 70, TargetWkg: 3.86, RaceName: "TiTi", RaceDate: "2026-04-25"}
	service := dashboard.NewService(store, classify.New(270), profile,
		dashboard.WithClock(func() time.Time { return now }), dashboard.WithLocation(time.UTC))
	mux := http.NewServeMux()
	NewHandler(service, maps, nil).RegisterRoutes(mux)
	return mux
}

func do(t *testing.T, h http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var payload map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	return payload
}

func TestDashboardSuccess(t *testing.T) {
	rr := do(t, newServer(fixture(), nil), http.MethodGet, "/v1/dashboard?rides=5&weeks=2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp dashboard.Dashboard
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Rides) != 2 {
		t.Fatalf("expected 2 rides got %d", len(resp.Rides))
	}
	if resp.Rides[0].SessionType != domain.SessionThreshold {
		t.Fatalf("expected threshold got %s", resp.Rides[0].SessionType)
	}
	if len(resp.Weeks) != 2 {
		t.Fatalf("expected 2 weeks got %d", len(resp.Weeks))
	}
	if resp.Race == nil || resp.Race.DaysRemaining != 52 {
		t.Fatalf("unexpected race countdown %+v", resp.Race)
	}
}

func TestDashboardRejectsBadQuery(t *testing.T) {
	for _, target := range []string{"/v1/dashboard?rides=abc", "/v1/dashboard?days=-1", "/v1/dashboard?weeks=0"} {
		rr := do(t, newServer(fixture(), nil), http.MethodGet, target, "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", target, rr.Code)
		}
		if decodeError(t, rr)["type"] != "validation_failed" {
			t.Fatalf("%s: unexpected error body %s", target, rr.Body.String())
		}
	}
}

func TestRidesLimitIsCapped(t *testing.T) {
	store := fixture()
	rr := do(t, newServer(store, nil), http.MethodGet, "/v1/rides?limit=100000", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if store.lastLimit != maxRides {
		t.Fatalf("expected limit %d got %d", maxRides, store.lastLimit)
	}

	var resp RidesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Rides) != 2 {
		t.Fatalf("expected 2 rides got %d", len(resp.Rides))
	}
}

func TestRidesStoreFailure(t *testing.T) {
	store := fixture()
	store.err = errors.New("disk on fire")
	rr := do(t, newServer(store, nil), http.MethodGet, "/v1/rides", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rr.Code)
	}
	if decodeError(t, rr)["type"] != "server_error" {
		t.Fatalf("unexpected error body %s", rr.Body.String())
	}
}

func TestRideDetail(t *testing.T) {
	rr := do(t, newServer(fixture(), nil), http.MethodGet, "/v1/rides/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp dashboard.RideDetail
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Virtual {
		t.Fatal("expected zwift ride to be virtual")
	}
	if resp.SessionLabel != "Long Ride" {
		t.Fatalf("unexpected label %q", resp.SessionLabel)
	}
	if resp.Duration != "3h 20m" {
		t.Fatalf("unexpected duration %q", resp.Duration)
	}
}

func TestRideDetailNotFound(t *testing.T) {
	rr := do(t, newServer(fixture(), nil), http.MethodGet, "/v1/rides/404", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestRideMap(t *testing.T) {
	polyline := "abc~d"
	maps := stubMaps{route: &strava.ActivityMap{SummaryPolyline: &polyline, StartLatLng: []float64{1.29, 103.85}}}
	rr := do(t, newServer(fixture(), maps), http.MethodGet, "/v1/rides/2/map", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var resp strava.ActivityMap
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.SummaryPolyline == nil || *resp.SummaryPolyline != polyline {
		t.Fatalf("unexpected polyline %v", resp.SummaryPolyline)
	}
}

func TestRideMapUnavailable(t *testing.T) {
	cases := map[string]MapLookup{
		"not configured": nil,
		"lookup error":   stubMaps{err: errors.New("timeout")},
		"unknown":        stubMaps{},
		"no token file":  stubMaps{err: strava.ErrNotConfigured},
	}
	for name, maps := range cases {
		t.Run(name, func(t *testing.T) {
			rr := do(t, newServer(fixture(), maps), http.MethodGet, "/v1/rides/2/map", "")
			if rr.Code != http.StatusNotFound {
				t.Fatalf("expected 404 got %d", rr.Code)
			}
		})
	}
}

func TestReadinessShape(t *testing.T) {
	rr := do(t, newServer(fixture(), nil), http.MethodGet, "/v1/readiness", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, key := range []string{"today", "history", "chart_data"} {
		if _, ok := resp[key]; !ok {
			t.Fatalf("missing key %q in %s", key, rr.Body.String())
		}
	}
}

func TestSeriesEndpoints(t *testing.T) {
	h := newServer(fixture(), nil)
	for _, target := range []string{"/v1/load-chart?days=30", "/v1/weeks?weeks=4", "/v1/efficiency?days=60", "/v1/eftp", "/v1/peak-power"} {
		rr := do(t, h, http.MethodGet, target, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", target, rr.Code)
		}
		var resp struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil || len(resp.Data) == 0 || string(resp.Data) == "null" {
			t.Fatalf("%s: expected data array got %s", target, rr.Body.String())
		}
	}
}

func TestPeakPowerDerivedFromCurves(t *testing.T) {
	rr := do(t, newServer(fixture(), nil), http.MethodGet, "/v1/peak-power", "")
	var resp DataResponse[domain.PeakPowerRecord]
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Data) != 2 || resp.Data[0].Label != "5s" {
		t.Fatalf("unexpected records %+v", resp.Data)
	}
}

func TestAthleteAndWkg(t *testing.T) {
	h := newServer(fixture(), nil)
	if rr := do(t, h, http.MethodGet, "/v1/athlete", ""); rr.Code != http.StatusOK {
		t.Fatalf("athlete: expected 200 got %d", rr.Code)
	}

	rr := do(t, h, http.MethodGet, "/v1/wkg", "")
	var resp analytics.WkgProgress
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.GapWkg == nil || *resp.GapWkg != 0.12 {
		t.Fatalf("unexpected gap %v", resp.GapWkg)
	}
}

func TestClassify(t *testing.T) {
	h := newServer(fixture(), nil)
	rr := do(t, h, http.MethodPost, "/v1/classify", `{"label":"Club race","duration_min":90}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp ClassifyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.SessionType != domain.SessionRace {
		t.Fatalf("expected race got %s", resp.SessionType)
	}
}

func TestClassifyRejectsBadInput(t *testing.T) {
	h := newServer(fixture(), nil)
	if rr := do(t, h, http.MethodPost, "/v1/classify", "{not json"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/v1/classify", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodPost, "/v1/rides", "{}"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rr.Code)
	}
}

func TestRouteLabel(t *testing.T) {
	cases := map[string]string{
		"/v1/rides/123":     "/v1/rides/{id}",
		"/v1/rides/123/map": "/v1/rides/{id}/map",
		"/v1/dashboard":     "/v1/dashboard",
		"/wp-admin":         "other",
	}
	for path, want := range cases {
		if got := RouteLabel(httptest.NewRequest(http.MethodGet, path, nil)); got != want {
			t.Fatalf("%s: expected %s got %s", path, want, got)
		}
	}
}

func TestServerErrorLogsSubject(t *testing.T) {
	store := fixture()
	store.err = errors.New("disk on fire")
	core, logs := observer.New(zap.ErrorLevel)

	service := dashboard.NewService(store, classify.New(270), analytics.Profile{FTP: 270, WeightKg: 70},
		dashboard.WithClock(func() time.Time { return now }), dashboard.WithLocation(time.UTC))
	mux := http.NewServeMux()
	NewHandler(service, nil, zap.New(core)).RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/v1/rides", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{Subject: "rider-1"}))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rr.Code)
	}
	entries := logs.FilterField(zap.String("subject", "rider-1")).All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry with subject, got %d", len(entries))
	}
}
