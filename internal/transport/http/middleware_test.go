package httptransport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(RequestIDFromContext(r.Context())))
	})
}

func TestRequestIDGeneratesWhenMissing(t *testing.T) {
	rr := httptest.NewRecorder()
	RequestID()(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/rides", nil))

	rid := rr.Header().Get(RequestIDHeader)
	require.Len(t, rid, 36)
	require.Equal(t, rid, rr.Body.String())
}

func TestRequestIDReusesCallerValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/rides", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	RequestID()(okHandler()).ServeHTTP(rr, req)
	require.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))
}

func TestRequestIDRejectsOversizedValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/rides", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", requestIDMaxLen+1))
	rr := httptest.NewRecorder()
	RequestID()(okHandler()).ServeHTTP(rr, req)
	require.Len(t, rr.Header().Get(RequestIDHeader), 36)
}

func TestLoggerLevelsByStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	statuses := []int{http.StatusOK, http.StatusNotFound, http.StatusInternalServerError}
	for _, status := range statuses {
		h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/weeks?weeks=4", nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, zap.InfoLevel, entries[0].Level)
	require.Equal(t, zap.WarnLevel, entries[1].Level)
	require.Equal(t, zap.ErrorLevel, entries[2].Level)

	fields := entries[0].ContextMap()
	require.Equal(t, "/v1/weeks", fields["path"])
	require.Equal(t, "weeks=4", fields["query"])
	require.EqualValues(t, 200, fields["status"])
}

func TestCORSPreflightAndOrigins(t *testing.T) {
	h := CORS([]string{"http://localhost:5173"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/v1/dashboard", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsUsesRouteLabel(t *testing.T) {
	var seen string
	h := Metrics(func(r *http.Request) string {
		seen = "/v1/rides/{id}"
		return seen
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/rides/123", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)
	require.Equal(t, "/v1/rides/{id}", seen)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(okHandler(), mark("outer"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner"}, order)
}

func TestNewServerAppliesConfig(t *testing.T) {
	srv := NewServer(ServerConfig{Address: ":0", ReadTimeout: time.Second, WriteTimeout: 2 * time.Second, IdleTimeout: 3 * time.Second}, okHandler())
	require.Equal(t, ":0", srv.Addr)
	require.Equal(t, 2*time.Second, srv.WriteTimeout)
	require.Equal(t, 3*time.Second, srv.IdleTimeout)
}
