package analytics

import (
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/steelburgerz/veloiq/internal/domain"
)

// FormatDuration renders minutes as "1h 5m", or "45m" under an hour.
func FormatDuration(minutes float64) string {
	h := int(math.Floor(minutes / 60))
	m := int(math.Round(math.Mod(minutes, 60)))
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// FormatSleep renders seconds of sleep as "7h 32m".
func FormatSleep(seconds float64) string {
	h := int(math.Floor(seconds / 3600))
	m := int(math.Round(math.Mod(seconds, 3600) / 60))
	return fmt.Sprintf("%dh %dm", h, m)
}

var virtualPattern = regexp.MustCompile(`(?i)zwift|virtualride|virtual ride`)

// IsVirtual reports whether a ride label names an indoor virtual platform.
func IsVirtual(label string) bool {
	return virtualPattern.MatchString(label)
}

// DaysUntil counts whole days from today to the race date, never negative.
// A malformed date yields zero.
func DaysUntil(raceDate string, now time.Time) int {
	race, ok := domain.ParseDay(raceDate, now.Location())
	if !ok {
		return 0
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	days := int(math.Ceil(race.Sub(today).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

// WkgProgress compares the latest power-to-weight checkpoint with the target.
type WkgProgress struct {
	Checkpoints []domain.WkgCheckpoint `json:"checkpoints"`
	Latest      *domain.WkgCheckpoint  `json:"latest"`
	TargetWkg   float64                `json:"target_wkg"`
	GapWkg      *float64               `json:"gap_wkg"`
	// WattsToTarget is the FTP increase needed at the latest weight.
	WattsToTarget *float64 `json:"watts_to_target"`
}

// Wkg summarises checkpoints, expected oldest first, against target.
func Wkg(checkpoints []domain.WkgCheckpoint, target float64) WkgProgress {
	progress := WkgProgress{Checkpoints: checkpoints, TargetWkg: target}
	if progress.Checkpoints == nil {
		progress.Checkpoints = []domain.WkgCheckpoint{}
	}
	if len(checkpoints) == 0 {
		return progress
	}
	latest := checkpoints[len(checkpoints)-1]
	progress.Latest = &latest

	wkg := latest.FTPWkg
	if wkg == 0 && latest.WeightKg > 0 {
		wkg = latest.FTPW / latest.WeightKg
	}
	gap := Round2(target - wkg)
	progress.GapWkg = &gap
	if latest.WeightKg > 0 {
		watts := math.Max(0, math.Round(target*latest.WeightKg-latest.FTPW))
		progress.WattsToTarget = &watts
	}
	return progress
}
