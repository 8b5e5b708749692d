package analytics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/steelburgerz/veloiq/internal/domain"
)

// DurationLabel renders an effort duration the way power tables show it: 5s, 5min, 1hr, 1.5hr.
func DurationLabel(seconds int) string {
	switch {
	case seconds <= 0:
		return ""
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds%3600 == 0:
		return fmt.Sprintf("%dhr", seconds/3600)
	case seconds > 3600 && seconds%1800 == 0:
		return strconv.FormatFloat(float64(seconds)/3600, 'f', 1, 64) + "hr"
	case seconds%60 == 0:
		return fmt.Sprintf("%dmin", seconds/60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// ParseDurationKey reads a power-curve key expressed in seconds ("300") or as a label ("5min", "1hr", "30s").
func ParseDurationKey(key string) (int, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(key); err == nil {
		return secs, secs > 0
	}

	units := []struct {
		suffix string
		factor float64
	}{
		{"min", 60}, {"hr", 3600}, {"h", 3600}, {"m", 60}, {"s", 1},
	}
	for _, unit := range units {
		if !strings.HasSuffix(key, unit.suffix) {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSuffix(key, unit.suffix), 64)
		if err != nil || value <= 0 {
			return 0, false
		}
		return int(value*unit.factor + 0.5), true
	}
	return 0, false
}

// PeakPowerRecords flattens each ride's power curve into one record per duration, shortest first
// within a ride. power_wkg is computed against the reference body weight.
func PeakPowerRecords(rides []domain.Ride, referenceWeightKg float64, period string) []domain.PeakPowerRecord {
	records := []domain.PeakPowerRecord{}
	for _, ride := range rides {
		if len(ride.PeakPowerCurve) == 0 {
			continue
		}
		start := len(records)
		for key, watts := range ride.PeakPowerCurve {
			secs, ok := ParseDurationKey(key)
			if !ok || watts <= 0 {
				continue
			}
			record := domain.PeakPowerRecord{
				Period:        period,
				DurationSec:   secs,
				Label:         DurationLabel(secs),
				PowerW:        watts,
				Date:          ride.Date,
				Source:        ride.Source,
				ActivityLabel: ride.Label,
			}
			if referenceWeightKg > 0 {
				record.PowerWkg = watts / referenceWeightKg
			}
			records = append(records, record)
		}
		chunk := records[start:]
		sort.Slice(chunk, func(i, j int) bool { return chunk[i].DurationSec < chunk[j].DurationSec })
	}
	return records
}

// BestPeakPower keeps the highest record for each duration, ordered by duration.
// Ties go to the earlier date.
func BestPeakPower(records []domain.PeakPowerRecord) []domain.PeakPowerRecord {
	best := make(map[int]domain.PeakPowerRecord)
	for _, record := range records {
		current, ok := best[record.DurationSec]
		if !ok || record.PowerW > current.PowerW || (record.PowerW == current.PowerW && record.Date < current.Date) {
			best[record.DurationSec] = record
		}
	}
	out := make([]domain.PeakPowerRecord, 0, len(best))
	for _, record := range best {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DurationSec < out[j].DurationSec })
	return out
}
