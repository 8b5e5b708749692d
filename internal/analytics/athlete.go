package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/steelburgerz/veloiq/internal/domain"
)

// Ramp-rate bands in CTL points per day.
const (
	RampOptimalMax = 5.0
	RampAlertAbove = 8.0
)

// RampLevel grades how aggressively CTL is changing.
type RampLevel string

const (
	RampOptimal    RampLevel = "optimal"
	RampHeavy      RampLevel = "heavy"
	RampAggressive RampLevel = "too_aggressive"
)

// Label is the display text for the level.
func (l RampLevel) Label() string {
	switch l {
	case RampOptimal:
		return "Optimal"
	case RampHeavy:
		return "Heavy load"
	case RampAggressive:
		return "Too aggressive"
	}
	return ""
}

// ClassifyRamp grades a ramp rate by its magnitude.
func ClassifyRamp(rate float64) RampLevel {
	abs := math.Abs(rate)
	switch {
	case abs > RampAlertAbove:
		return RampAggressive
	case abs > RampOptimalMax:
		return RampHeavy
	default:
		return RampOptimal
	}
}

// AthleteStats is the latest known value of each athlete metric, taken independently per field.
type AthleteStats struct {
	VO2Max     *float64  `json:"vo2max"`
	EFTP       *float64  `json:"eftp"`
	RollingFTP *float64  `json:"rollingFtp"`
	WPrime     *float64  `json:"wPrime"`
	Weight     *float64  `json:"weight"`
	RampRate   *float64  `json:"rampRate"`
	Wkg        *float64  `json:"wkg,omitempty"`
	RampLevel  RampLevel `json:"rampLevel,omitempty"`
}

// Athlete scans rides newest first and keeps the first non-null value of every field.
func Athlete(rides []domain.Ride) AthleteStats {
	sorted := make([]domain.Ride, len(rides))
	copy(sorted, rides)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date > sorted[j].Date })

	var stats AthleteStats
	pick := func(dst **float64, v *float64) {
		if *dst == nil && v != nil {
			val := *v
			*dst = &val
		}
	}
	for _, ride := range sorted {
		pick(&stats.VO2Max, ride.DayVO2Max)
		pick(&stats.EFTP, ride.DayEFTPW)
		pick(&stats.RollingFTP, ride.RollingFTPW)
		pick(&stats.WPrime, ride.DayWPrimeJ)
		pick(&stats.Weight, ride.DayWeightKg)
		pick(&stats.RampRate, ride.DayRampRate)
	}

	if stats.EFTP != nil && stats.Weight != nil && *stats.Weight > 0 {
		wkg := Round2(*stats.EFTP / *stats.Weight)
		stats.Wkg = &wkg
	}
	if stats.RampRate != nil {
		stats.RampLevel = ClassifyRamp(*stats.RampRate)
	}
	return stats
}

// RampAlert describes a ramp rate outside the safe band.
type RampAlert struct {
	Rate    float64 `json:"rate"`
	Message string  `json:"message"`
}

// CheckRamp returns an alert when the ramp rate magnitude exceeds the alert threshold.
func CheckRamp(stats AthleteStats) *RampAlert {
	if stats.RampRate == nil || math.Abs(*stats.RampRate) <= RampAlertAbove {
		return nil
	}
	rate := *stats.RampRate
	advice := "Loading up fast, watch for overtraining signs."
	if rate < 0 {
		advice = "Sharp fitness drop, consider easing up or reviewing recent load."
	}
	return &RampAlert{
		Rate:    Round1(rate),
		Message: fmt.Sprintf("CTL is changing at %+.1f/day. %s", rate, advice),
	}
}
