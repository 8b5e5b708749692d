package analytics

import (
	"sort"
	"time"

	"github.com/steelburgerz/veloiq/internal/domain"
)

// WeekSummary aggregates the rides of one Monday-to-Sunday window.
type WeekSummary struct {
	WeekLabel     string        `json:"weekLabel"`
	StartDate     string        `json:"startDate"`
	EndDate       string        `json:"endDate"`
	Rides         []domain.Ride `json:"rides"`
	TotalHours    float64       `json:"totalHours"`
	TotalDistance float64       `json:"totalDistance"`
	TotalLoad     float64       `json:"totalLoad"`
	TotalElev     float64       `json:"totalElev"`
	AvgTSB        *float64      `json:"avgTSB"`
}

// WeekStart returns midnight of the Monday starting the week that contains t, in t's location.
func WeekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// WeekSummaries builds weeks windows ending with the week containing now, newest first.
// Windows without rides are still returned with zeroed totals.
func WeekSummaries(rides []domain.Ride, weeks int, now time.Time) []WeekSummary {
	if weeks <= 0 {
		return []WeekSummary{}
	}
	loc := now.Location()
	current := WeekStart(now)

	sorted := make([]domain.Ride, len(rides))
	copy(sorted, rides)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date > sorted[j].Date })

	out := make([]WeekSummary, 0, weeks)
	for i := 0; i < weeks; i++ {
		start := current.AddDate(0, 0, -7*i)
		end := start.AddDate(0, 0, 6)
		summary := WeekSummary{
			WeekLabel: weekLabel(i, start),
			StartDate: start.Format(domain.DateLayout),
			EndDate:   end.Format(domain.DateLayout),
			Rides:     []domain.Ride{},
		}

		tsbSum, tsbCount := 0.0, 0
		minutes, load := 0.0, 0.0
		for _, ride := range sorted {
			day, ok := ride.Day(loc)
			if !ok || day.Before(start) || day.After(end) {
				continue
			}
			summary.Rides = append(summary.Rides, ride)
			minutes += ride.DurationMin
			summary.TotalDistance += ride.DistanceKm
			summary.TotalElev += ride.ElevM
			load += ride.Load()
			if ride.TSB != nil {
				tsbSum += *ride.TSB
				tsbCount++
			}
		}

		summary.TotalHours = Round1(minutes / 60)
		summary.TotalLoad = Round1(load)
		if tsbCount > 0 {
			avg := Round1(tsbSum / float64(tsbCount))
			summary.AvgTSB = &avg
		}
		out = append(out, summary)
	}
	return out
}

func weekLabel(index int, start time.Time) string {
	switch index {
	case 0:
		return "This week"
	case 1:
		return "Last week"
	default:
		return start.Format("2 Jan")
	}
}
