// Package observability exposes the Prometheus collectors shared by the api and consumer binaries.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veloiq",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by route pattern, method and status code.",
	}, []string{"route", "method", "status"})

	httpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "veloiq",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	storeReadLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "veloiq",
		Subsystem: "store",
		Name:      "read_duration_seconds",
		Help:      "Snapshot store read latency by operation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	storeReadErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veloiq",
		Subsystem: "store",
		Name:      "read_errors_total",
		Help:      "Snapshot store reads that returned an error, by operation.",
	}, []string{"operation"})

	classifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veloiq",
		Subsystem: "classifier",
		Name:      "classifications_total",
		Help:      "Rides classified on read, by resulting session type.",
	}, []string{"session_type"})

	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veloiq",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Dashboard cache lookups by result (hit or miss).",
	}, []string{"result"})

	snapshotChangedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "veloiq",
		Subsystem: "store",
		Name:      "last_snapshot_change_timestamp_seconds",
		Help:      "Unix timestamp of the most recent observed snapshot change.",
	})
)

func init() {
	prometheus.MustRegister(httpRequests, httpLatency, storeReadLatency, storeReadErrors, classifications, cacheLookups, snapshotChangedGauge)
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(route, method, status string, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, method, status).Inc()
	httpLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveStoreRead records the latency of one store operation and whether it failed.
func ObserveStoreRead(operation string, elapsed time.Duration, err error) {
	storeReadLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
	if err != nil {
		storeReadErrors.WithLabelValues(operation).Inc()
	}
}

// RecordClassification counts a ride classified on read.
func RecordClassification(sessionType string) {
	classifications.WithLabelValues(sessionType).Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(result).Inc()
}

// RecordSnapshotChange updates the snapshot change watermark.
func RecordSnapshotChange(ts time.Time) {
	if ts.IsZero() {
		return
	}
	snapshotChangedGauge.Set(float64(ts.Unix()))
}
