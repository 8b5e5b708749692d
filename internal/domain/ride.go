// Package domain defines the training records read by the dashboard and the store contract that serves them.
package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrRideNotFound is returned when a ride cannot be located.
	ErrRideNotFound = errors.New("ride not found")
)

// DateLayout is the calendar-day format used by every stored record.
const DateLayout = "2006-01-02"

// SessionType tags the intended training stimulus of a ride.
type SessionType string

const (
	SessionThreshold SessionType = "threshold"
	SessionTempo     SessionType = "tempo"
	SessionEndurance SessionType = "endurance"
	SessionVO2       SessionType = "vo2"
	SessionMixed     SessionType = "mixed"
	SessionLongRide  SessionType = "long_ride"
	SessionRecovery  SessionType = "recovery"
	SessionRace      SessionType = "race"
)

// SessionTypes lists every known tag in display order.
var SessionTypes = []SessionType{
	SessionThreshold, SessionTempo, SessionEndurance, SessionVO2,
	SessionMixed, SessionLongRide, SessionRecovery, SessionRace,
}

// Valid reports whether t is one of the known tags.
func (t SessionType) Valid() bool {
	for _, known := range SessionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Specific reports whether t names a concrete stimulus rather than the generic mixed tag.
func (t SessionType) Specific() bool {
	return t.Valid() && t != SessionMixed
}

// Zone identifiers used in zone-time maps.
const (
	ZoneZ1 = "Z1"
	ZoneZ2 = "Z2"
	ZoneZ3 = "Z3"
	ZoneZ4 = "Z4"
	ZoneZ5 = "Z5"
	ZoneZ6 = "Z6"
	ZoneZ7 = "Z7"
	ZoneSS = "SS"
)

// ZoneTimes maps a zone identifier to seconds spent in it. Gaps are allowed:
// the values need not add up to the elapsed time of the ride.
type ZoneTimes map[string]float64

// Get returns the seconds recorded for zone, zero when absent.
func (z ZoneTimes) Get(zone string) float64 {
	if z == nil {
		return 0
	}
	return z[zone]
}

// Total sums every present zone value.
func (z ZoneTimes) Total() float64 {
	total := 0.0
	for _, secs := range z {
		if secs > 0 {
			total += secs
		}
	}
	return total
}

// Fraction returns the share of the present total spent in the given zones.
func (z ZoneTimes) Fraction(zones ...string) float64 {
	total := z.Total()
	if total <= 0 {
		return 0
	}
	sum := 0.0
	for _, zone := range zones {
		sum += z.Get(zone)
	}
	return sum / total
}

// PowerZones lists the seven exclusive power bands. SS overlaps Z3 and Z4
// and is not one of them.
var PowerZones = []string{ZoneZ1, ZoneZ2, ZoneZ3, ZoneZ4, ZoneZ5, ZoneZ6, ZoneZ7}

// BandTotal sums Z1..Z7 only.
func (z ZoneTimes) BandTotal() float64 {
	total := 0.0
	for _, zone := range PowerZones {
		if secs := z.Get(zone); secs > 0 {
			total += secs
		}
	}
	return total
}

// BandFraction returns the share of the Z1..Z7 total spent in the given zones.
func (z ZoneTimes) BandFraction(zones ...string) float64 {
	total := z.BandTotal()
	if total <= 0 {
		return 0
	}
	sum := 0.0
	for _, zone := range zones {
		if secs := z.Get(zone); secs > 0 {
			sum += secs
		}
	}
	return sum / total
}

type zoneEntry struct {
	ID   string  `json:"id"`
	Secs float64 `json:"secs"`
}

// UnmarshalJSON accepts both {"Z1":120} and [{"id":"Z1","secs":120}] encodings.
func (z *ZoneTimes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*z = nil
		return nil
	}

	out := make(ZoneTimes)
	if data[0] == '[' {
		var entries []zoneEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("decode zone list: %w", err)
		}
		for _, entry := range entries {
			id := strings.ToUpper(strings.TrimSpace(entry.ID))
			if id == "" {
				continue
			}
			out[id] += entry.Secs
		}
		*z = out
		return nil
	}

	var raw map[string]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode zone map: %w", err)
	}
	for id, secs := range raw {
		if secs == nil {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(id))] = *secs
	}
	*z = out
	return nil
}

// KeyBlock is a repeated high-intensity interval detected within a ride.
type KeyBlock struct {
	Label         string   `json:"label"`
	Count         int      `json:"count"`
	DurationSec   float64  `json:"duration_sec"`
	AvgPowerW     *float64 `json:"avg_power_w"`
	PowerPctFTP   *float64 `json:"power_pct_ftp"`
	AvgHRBPM      *float64 `json:"avg_hr_bpm"`
	AvgCadenceRPM *float64 `json:"avg_cadence_rpm"`
	Zone          *string  `json:"zone"`
	Source        string   `json:"source"`
}

// TotalSec is the time spent across every repeat; a missing count means one repeat.
func (k KeyBlock) TotalSec() float64 {
	count := k.Count
	if count < 1 {
		count = 1
	}
	return float64(count) * k.DurationSec
}

// ZoneTag returns the normalised zone tag, empty when absent.
func (k KeyBlock) ZoneTag() string {
	if k.Zone == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(*k.Zone))
}

// Ride is one completed activity as written by the ingestion pipeline.
type Ride struct {
	Date          string      `json:"date"`
	Source        string      `json:"source"`
	StravaID      string      `json:"strava_id"`
	IntervalsID   *string     `json:"intervals_id"`
	Label         string      `json:"label"`
	SessionType   SessionType `json:"session_type"`
	DetailQuality string      `json:"detail_quality"`

	DurationMin float64  `json:"duration_min"`
	DistanceKm  float64  `json:"distance_km"`
	ElevM       float64  `json:"elev_m"`
	ElevHighM   *float64 `json:"elev_high_m"`
	ElevLowM    *float64 `json:"elev_low_m"`
	WorkKJ      float64  `json:"work_kj"`

	AvgPowerW         *float64 `json:"avg_power_w"`
	NPW               *float64 `json:"np_w"`
	MaxPowerW         *float64 `json:"max_power_w"`
	AvgHRBPM          *float64 `json:"avg_hr_bpm"`
	MaxHRBPM          *float64 `json:"max_hr_bpm"`
	AvgCadenceRPM     *float64 `json:"avg_cadence_rpm"`
	AvgRespirationRPM *float64 `json:"avg_respiration_rpm"`

	IntervalsLoad      *float64 `json:"intervals_load"`
	GarminTrainingLoad *float64 `json:"garmin_training_load"`
	CTL                *float64 `json:"ctl"`
	ATL                *float64 `json:"atl"`
	TSB                *float64 `json:"tsb"`
	IF                 *float64 `json:"if"`
	TSS                *float64 `json:"tss"`
	Calories           *float64 `json:"calories"`
	SufferScore        *float64 `json:"suffer_score"`
	ElapsedTimeSec     *float64 `json:"elapsed_time_sec"`
	GearID             *string  `json:"gear_id"`
	TrainingLoadPct    *float64 `json:"training_load_pct"`
	PowerHRRatio       *float64 `json:"power_hr_ratio"`

	PeakCPW        *float64   `json:"peak_cp_w"`
	PeakFTPW       *float64   `json:"peak_ftp_w"`
	PeakFTPSecs    *float64   `json:"peak_ftp_secs"`
	PeakPmaxW      *float64   `json:"peak_pmax_w"`
	RollingFTPW    *float64   `json:"rolling_ftp_w"`
	PeakPowerCurve PowerCurve `json:"peak_power_curve"`
	AerobicTE      *float64   `json:"aerobic_te"`
	AnaerobicTE    *float64   `json:"anaerobic_te"`
	DecouplingPct  *float64   `json:"decoupling_pct"`
	EF             *float64   `json:"efficiency_factor"`
	VI             *float64   `json:"variability_index"`
	Polarization   *float64   `json:"polarization_index"`
	LRBalance      *string    `json:"lr_balance"`
	AvgTempC       *float64   `json:"avg_temp_c"`
	MaxTempC       *float64   `json:"max_temp_c"`
	CarbsUsedG     *float64   `json:"carbs_used_g"`
	ZonesPowerSec  ZoneTimes  `json:"zones_power_sec"`
	ZonesHRSec     ZoneTimes  `json:"zones_hr_sec"`
	KeyBlocks      []KeyBlock `json:"key_blocks"`

	DayWeightKg   *float64 `json:"day_weight_kg"`
	DayRHRBPM     *float64 `json:"day_rhr_bpm"`
	DayHRVMs      *float64 `json:"day_hrv_ms"`
	DaySleepSecs  *float64 `json:"day_sleep_secs"`
	DaySleepScore *float64 `json:"day_sleep_score"`
	DayVO2Max     *float64 `json:"day_vo2max"`
	DayEFTPW      *float64 `json:"day_eftp_w"`
	DayWPrimeJ    *float64 `json:"day_w_prime_j"`
	DayRampRate   *float64 `json:"day_ramp_rate"`
}

// Day parses the ride date in loc. The second value is false when the date is malformed.
func (r Ride) Day(loc *time.Location) (time.Time, bool) {
	return ParseDay(r.Date, loc)
}

// Load returns the training-load figure used for weekly totals.
func (r Ride) Load() float64 {
	if r.IntervalsLoad != nil {
		return *r.IntervalsLoad
	}
	if r.TSS != nil {
		return *r.TSS
	}
	return 0
}

// PowerCurve maps an effort duration key (seconds, as text) to the best average power for it.
type PowerCurve map[string]float64

// ParseDay parses a stored calendar date, accepting a full RFC 3339 timestamp as well.
func ParseDay(value string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	value = strings.TrimSpace(value)
	if len(value) >= len(DateLayout) {
		if t, err := time.ParseInLocation(DateLayout, value[:len(DateLayout)], loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Float is a convenience for building optional values.
func Float(v float64) *float64 { return &v }

// String is a convenience for building optional strings.
func String(v string) *string { return &v }
