package analytics

import (
	"sort"
	"time"

	"github.com/steelburgerz/veloiq/internal/domain"
)

// EfPoint is one ride's efficiency factor.
type EfPoint struct {
	Date        string             `json:"date"`
	EF          float64            `json:"ef"`
	SessionType domain.SessionType `json:"sessionType"`
}

// EftpPoint is the estimated FTP carried by a ride, with anaerobic capacity and ramp rate.
type EftpPoint struct {
	Date     string   `json:"date"`
	EFTP     float64  `json:"eftp"`
	WPrime   float64  `json:"wPrime"`
	RampRate *float64 `json:"rampRate"`
}

// WindowStart returns midnight days days before now, in now's location.
func WindowStart(now time.Time, days int) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return day.AddDate(0, 0, -days)
}

func inWindow(ride domain.Ride, start time.Time) bool {
	day, ok := ride.Day(start.Location())
	return ok && !day.Before(start)
}

// EfTrend emits every ride in the trailing days window that carries an efficiency factor, oldest first.
func EfTrend(rides []domain.Ride, days int, now time.Time) []EfPoint {
	points := []EfPoint{}
	if days <= 0 {
		return points
	}
	start := WindowStart(now, days)
	for _, ride := range rides {
		if ride.EF == nil || !inWindow(ride, start) {
			continue
		}
		points = append(points, EfPoint{Date: ride.Date, EF: Round2(*ride.EF), SessionType: ride.SessionType})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}

// EftpTrend emits one point per date for rides carrying an eFTP in the trailing window, oldest first.
// Rides are expected newest first; the first ride seen for a date wins.
func EftpTrend(rides []domain.Ride, days int, now time.Time) []EftpPoint {
	points := []EftpPoint{}
	if days <= 0 {
		return points
	}
	start := WindowStart(now, days)
	seen := make(map[string]struct{})
	for _, ride := range rides {
		if ride.DayEFTPW == nil || !inWindow(ride, start) {
			continue
		}
		date := ride.Date[:len(domain.DateLayout)]
		if _, dup := seen[date]; dup {
			continue
		}
		seen[date] = struct{}{}

		point := EftpPoint{Date: date, EFTP: *ride.DayEFTPW}
		if ride.DayWPrimeJ != nil {
			point.WPrime = *ride.DayWPrimeJ
		}
		if ride.DayRampRate != nil {
			rate := Round1(*ride.DayRampRate)
			point.RampRate = &rate
		}
		points = append(points, point)
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}
