package domain

import (
	"context"
	"time"
)

// Store captures the read operations the dashboard needs from whatever holds the ingested rows.
// Implementations never write rides or readiness entries.
type Store interface {
	// RecentRides returns up to limit rides, newest first.
	RecentRides(ctx context.Context, limit int) ([]Ride, error)
	// RidesSince returns every ride dated on or after since, newest first.
	RidesSince(ctx context.Context, since time.Time) ([]Ride, error)
	// Ride returns the ride with the given Strava identifier or ErrRideNotFound.
	Ride(ctx context.Context, stravaID string) (*Ride, error)
	// ReadinessHistory returns the trailing days entries, oldest first.
	ReadinessHistory(ctx context.Context, days int) ([]ReadinessEntry, error)
	// LatestReadiness returns the newest entry, nil when there is none.
	LatestReadiness(ctx context.Context) (*ReadinessEntry, error)
	// PeakPower returns stored peak-power records.
	PeakPower(ctx context.Context) ([]PeakPowerRecord, error)
	// WkgCheckpoints returns power-to-weight checkpoints, oldest first.
	WkgCheckpoints(ctx context.Context) ([]WkgCheckpoint, error)
	// Close releases any underlying resources.
	Close() error
}

// Snapshot is a full copy of every collection, used to seed the relational stores from NDJSON.
type Snapshot struct {
	Rides     []Ride
	Readiness []ReadinessEntry
	PeakPower []PeakPowerRecord
	Wkg       []WkgCheckpoint
}
