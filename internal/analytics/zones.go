package analytics

import (
	"fmt"
	"math"

	"github.com/steelburgerz/veloiq/internal/domain"
)

type zoneBand struct {
	id     string
	name   string
	lowPct float64
	hiPct  float64 // zero means open-ended
}

// Power zones as %FTP in display order. Sweet spot overlaps Z3 and Z4.
var powerBands = []zoneBand{
	{domain.ZoneZ1, "Recovery", 0, 55},
	{domain.ZoneZ2, "Endurance", 56, 75},
	{domain.ZoneSS, "Sweet Spot", 88, 95},
	{domain.ZoneZ3, "Tempo", 76, 90},
	{domain.ZoneZ4, "Threshold", 91, 105},
	{domain.ZoneZ5, "VO2 Max", 106, 120},
	{domain.ZoneZ6, "Anaerobic", 121, 150},
	{domain.ZoneZ7, "Neuromuscular", 151, 0},
}

// ZoneShare is one row of a zone distribution.
type ZoneShare struct {
	Zone    string  `json:"zone"`
	Name    string  `json:"name"`
	Seconds float64 `json:"seconds"`
	Percent float64 `json:"percent"`
	LowW    int     `json:"low_w"`
	HighW   *int    `json:"high_w"`
	Range   string  `json:"range"`
}

// ZoneBreakdown lists the present zones in display order with their share of the present total and,
// when ftp is positive, the implied watt range.
func ZoneBreakdown(zones domain.ZoneTimes, ftp float64) []ZoneShare {
	total := zones.Total()
	out := []ZoneShare{}
	if total <= 0 {
		return out
	}
	for _, band := range powerBands {
		secs := zones.Get(band.id)
		if secs <= 0 {
			continue
		}
		share := ZoneShare{
			Zone:    band.id,
			Name:    band.name,
			Seconds: secs,
			Percent: Round1(secs / total * 100),
		}
		if ftp > 0 {
			share.LowW = int(math.Round(ftp * band.lowPct / 100))
			if band.hiPct > 0 {
				high := int(math.Round(ftp * band.hiPct / 100))
				share.HighW = &high
				share.Range = fmt.Sprintf("%d-%dW", share.LowW, high)
			} else {
				share.Range = fmt.Sprintf(">%dW", share.LowW)
			}
		}
		out = append(out, share)
	}
	return out
}
