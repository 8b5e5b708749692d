// Package analytics computes read-only training aggregates from stored rides and readiness entries.
// Nothing here returns an error: missing data yields empty slices or nil fields.
package analytics

import (
	"math"
	"sort"

	"github.com/steelburgerz/veloiq/internal/domain"
)

// LoadChartPoint is one day of the fitness/fatigue/form series.
type LoadChartPoint struct {
	Date string  `json:"date"`
	CTL  float64 `json:"ctl"`
	ATL  float64 `json:"atl"`
	TSB  float64 `json:"tsb"`
}

// LoadChart maps readiness entries to at most days points, oldest first, one per date.
// When a date appears twice the later entry wins.
func LoadChart(entries []domain.ReadinessEntry, days int) []LoadChartPoint {
	if days <= 0 || len(entries) == 0 {
		return []LoadChartPoint{}
	}

	byDate := make(map[string]domain.ReadinessEntry, len(entries))
	for _, entry := range entries {
		if entry.Date == "" {
			continue
		}
		byDate[entry.Date] = entry
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	if len(dates) > days {
		dates = dates[len(dates)-days:]
	}

	points := make([]LoadChartPoint, 0, len(dates))
	for _, date := range dates {
		entry := byDate[date]
		points = append(points, LoadChartPoint{
			Date: date,
			CTL:  Round1(entry.Intervals.CTL),
			ATL:  Round1(entry.Intervals.ATL),
			TSB:  Round1(entry.Intervals.TSB),
		})
	}
	return points
}

// Round1 rounds half away from zero to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
