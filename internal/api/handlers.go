// Package api exposes HTTP handlers for the training dashboard.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/steelburgerz/veloiq/internal/analytics"
	"github.com/steelburgerz/veloiq/internal/auth"
	"github.com/steelburgerz/veloiq/internal/classify"
	"github.com/steelburgerz/veloiq/internal/dashboard"
	"github.com/steelburgerz/veloiq/internal/domain"
	"github.com/steelburgerz/veloiq/internal/strava"
)

// Query parameter ceilings.
const (
	maxRides = 500
	maxDays  = 730
	maxWeeks = 104

	maxClassifyBody = 1 << 20
)

// MapLookup resolves the route of a ride.
type MapLookup interface {
	ActivityMap(ctx context.Context, stravaID string) (*strava.ActivityMap, error)
}

// Handler coordinates HTTP requests with the dashboard service.
type Handler struct {
	service *dashboard.Service
	maps    MapLookup
	logger  *zap.Logger
}

// NewHandler builds a Handler. maps may be nil, in which case route lookups always 404.
func NewHandler(service *dashboard.Service, maps MapLookup, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, maps: maps, logger: logger}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/dashboard", h.get(h.dashboard))
	mux.HandleFunc("/v1/rides", h.get(h.rides))
	mux.HandleFunc("/v1/rides/", h.get(h.rideByID))
	mux.HandleFunc("/v1/readiness", h.get(h.readiness))
	mux.HandleFunc("/v1/load-chart", h.get(h.loadChart))
	mux.HandleFunc("/v1/weeks", h.get(h.weeks))
	mux.HandleFunc("/v1/efficiency", h.get(h.efficiency))
	mux.HandleFunc("/v1/eftp", h.get(h.eftp))
	mux.HandleFunc("/v1/athlete", h.get(h.athlete))
	mux.HandleFunc("/v1/peak-power", h.get(h.peakPower))
	mux.HandleFunc("/v1/wkg", h.get(h.wkg))
	mux.HandleFunc("/v1/classify", h.classify)
	mux.HandleFunc("/healthz", healthz)
}

// RouteLabel maps a request path onto its registered route so ride ids stay out of metric labels.
func RouteLabel(r *http.Request) string {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/v1/rides/") && strings.HasSuffix(path, "/map"):
		return "/v1/rides/{id}/map"
	case strings.HasPrefix(path, "/v1/rides/"):
		return "/v1/rides/{id}"
	}
	switch path {
	case "/v1/dashboard", "/v1/rides", "/v1/readiness", "/v1/load-chart", "/v1/weeks",
		"/v1/efficiency", "/v1/eftp", "/v1/athlete", "/v1/peak-power", "/v1/wkg",
		"/v1/classify", "/healthz", "/metrics":
		return path
	}
	return "other"
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) get(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		next(w, r)
	}
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	var opts dashboard.Options
	var err error
	if opts.Rides, err = intParam(r, "rides", maxRides); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	if opts.Days, err = intParam(r, "days", maxDays); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	if opts.Weeks, err = intParam(r, "weeks", maxWeeks); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	if opts.TrendDays, err = intParam(r, "trend_days", maxDays); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	view, err := h.service.Dashboard(r.Context(), opts)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) rides(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", maxRides)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	rides, err := h.service.Rides(r.Context(), limit)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RidesResponse{Rides: rides})
}

func (h *Handler) rideByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/rides/"), "/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing ride id")
		return
	}

	switch sub {
	case "":
		h.rideDetail(w, r, id)
	case "map":
		h.rideMap(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown ride resource")
	}
}

func (h *Handler) rideDetail(w http.ResponseWriter, r *http.Request, id string) {
	detail, err := h.service.RideDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRideNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "ride not found")
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) rideMap(w http.ResponseWriter, r *http.Request, id string) {
	if h.maps == nil {
		writeError(w, http.StatusNotFound, "not_found", "route maps are not configured")
		return
	}
	route, err := h.maps.ActivityMap(r.Context(), id)
	if err != nil {
		if !errors.Is(err, strava.ErrNotConfigured) {
			h.logger.Warn("route lookup failed", zap.String("strava_id", id), zap.Error(err))
		}
		writeError(w, http.StatusNotFound, "not_found", "route unavailable")
		return
	}
	if route == nil {
		writeError(w, http.StatusNotFound, "not_found", "route unavailable")
		return
	}
	writeJSON(w, http.StatusOK, route)
}

func (h *Handler) readiness(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", maxDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	view, err := h.service.Readiness(r.Context(), days)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) loadChart(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", maxDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	points, err := h.service.LoadChart(r.Context(), days)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DataResponse[analytics.LoadChartPoint]{Data: points})
}

func (h *Handler) weeks(w http.ResponseWriter, r *http.Request) {
	weeks, err := intParam(r, "weeks", maxWeeks)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	summaries, err := h.service.Weeks(r.Context(), weeks)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DataResponse[analytics.WeekSummary]{Data: summaries})
}

func (h *Handler) efficiency(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", maxDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	points, err := h.service.EfTrend(r.Context(), days)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DataResponse[analytics.EfPoint]{Data: points})
}

func (h *Handler) eftp(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", maxDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	points, err := h.service.EftpTrend(r.Context(), days)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DataResponse[analytics.EftpPoint]{Data: points})
}

func (h *Handler) athlete(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Athlete(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) peakPower(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.PeakPower(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DataResponse[domain.PeakPowerRecord]{Data: records})
}

func (h *Handler) wkg(w http.ResponseWriter, r *http.Request) {
	progress, err := h.service.Wkg(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) classify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var ride domain.Ride
	if err := json.NewDecoder(io.LimitReader(r.Body, maxClassifyBody)).Decode(&ride); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	decision := h.service.Classify(ride)
	writeJSON(w, http.StatusOK, ClassifyResponse{
		SessionType: decision.Type,
		Label:       classify.Label(decision.Type),
		Rule:        decision.Rule,
	})
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	fields := []zap.Field{zap.String("path", r.URL.Path), zap.Error(err)}
	if claims, ok := auth.FromContext(r.Context()); ok {
		fields = append(fields, zap.String("subject", claims.Subject))
	}
	h.logger.Error("request failed", fields...)
	writeError(w, http.StatusInternalServerError, "server_error", err.Error())
}

// intParam reads a positive integer query parameter capped at ceiling. Absent values are zero,
// which the service replaces with its default window.
func intParam(r *http.Request, name string, ceiling int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	if parsed > ceiling {
		parsed = ceiling
	}
	return parsed, nil
}

// RidesResponse wraps the ride list.
type RidesResponse struct {
	Rides []domain.Ride `json:"rides"`
}

// DataResponse wraps a chart series.
type DataResponse[T any] struct {
	Data []T `json:"data"`
}

// ClassifyResponse describes an ad-hoc classification.
type ClassifyResponse struct {
	SessionType domain.SessionType `json:"session_type"`
	Label       string             `json:"label"`
	Rule        string             `json:"rule"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
