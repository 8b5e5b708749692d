// Package events defines the payloads the ingestion pipeline publishes when snapshots change.
package events

import "time"

// Event types carried in the event_type message header.
const (
	TypeRideIngested      = "ride.ingested"
	TypeReadinessIngested = "readiness.ingested"
	TypeSnapshotRebuilt   = "snapshot.rebuilt"
)

// RideIngested is emitted when a ride is appended to or replaced in the ride snapshot.
type RideIngested struct {
	StravaID   string    `json:"strava_id,omitempty"`
	Date       string    `json:"date"`
	Source     string    `json:"source"`
	IngestedAt time.Time `json:"ingested_at"`
}

// ReadinessIngested is emitted when a daily readiness entry is written.
type ReadinessIngested struct {
	Date       string    `json:"date"`
	Status     string    `json:"status,omitempty"`
	IngestedAt time.Time `json:"ingested_at"`
}

// SnapshotRebuilt is emitted after a full rewrite of one snapshot collection.
type SnapshotRebuilt struct {
	Collection string    `json:"collection"`
	RebuiltAt  time.Time `json:"rebuilt_at"`
}
