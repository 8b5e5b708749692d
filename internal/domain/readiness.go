package domain

// ReadinessStatus is the coaching verdict attached to a daily snapshot.
type ReadinessStatus string

const (
	ReadinessGreen ReadinessStatus = "GREEN"
	ReadinessAmber ReadinessStatus = "AMBER"
	ReadinessRed   ReadinessStatus = "RED"
)

// IntervalsReadiness holds the training-platform figures for a day.
type IntervalsReadiness struct {
	SleepSec   float64 `json:"sleep_sec"`
	SleepScore float64 `json:"sleep_score"`
	RHRBPM     float64 `json:"rhr_bpm"`
	HRVMs      float64 `json:"hrv_ms"`
	CTL        float64 `json:"ctl"`
	ATL        float64 `json:"atl"`
	TSB        float64 `json:"tsb"`
}

// GarminReadiness holds the wearable figures for a day.
type GarminReadiness struct {
	SleepSec           float64 `json:"sleep_sec"`
	SleepScore         float64 `json:"sleep_score"`
	HRVLastNightMs     float64 `json:"hrv_last_night_ms"`
	HRVWeeklyAvgMs     float64 `json:"hrv_weekly_avg_ms"`
	HRVStatus          string  `json:"hrv_status"`
	RHRBPM             float64 `json:"rhr_bpm"`
	BodyBatteryCharged float64 `json:"body_battery_charged"`
	BodyBatteryDrained float64 `json:"body_battery_drained"`
	BodyBatteryHigh    float64 `json:"body_battery_high"`
	BodyBatteryLow     float64 `json:"body_battery_low"`
}

// Verdict is the derived readiness status with its explanation.
type Verdict struct {
	Status         ReadinessStatus `json:"status"`
	Reason         string          `json:"reason"`
	Recommendation string          `json:"recommendation"`
}

// ReadinessEntry is one daily physiological snapshot.
type ReadinessEntry struct {
	Date      string             `json:"date"`
	Intervals IntervalsReadiness `json:"intervals"`
	Garmin    GarminReadiness    `json:"garmin"`
	Wheelmate Verdict            `json:"wheelmate"`
}

// PeakPowerRecord is a best effort for one duration, flattened from a ride's power curve.
type PeakPowerRecord struct {
	Period        string  `json:"period"`
	DurationSec   int     `json:"duration_sec"`
	Label         string  `json:"label"`
	PowerW        float64 `json:"power_w"`
	PowerWkg      float64 `json:"power_wkg"`
	Date          string  `json:"date"`
	Source        string  `json:"source"`
	ActivityLabel string  `json:"activity_label"`
}

// WkgCheckpoint records a dated power-to-weight measurement.
type WkgCheckpoint struct {
	Date     string  `json:"date"`
	WeightKg float64 `json:"weight_kg"`
	FTPW     float64 `json:"ftp_w"`
	FTPWkg   float64 `json:"ftp_wkg"`
	Notes    *string `json:"notes"`
}
