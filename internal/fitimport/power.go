package fitimport

import (
	"fmt"
	"math"
	"strconv"

	"github.com/steelburgerz/veloiq/internal/domain"
)

// CurveDurations are the power-curve points recorded for imported rides, in seconds.
var CurveDurations = []int{5, 15, 30, 60, 300, 600, 1200, 3600}

// NormalizedPower is the fourth-root mean of the fourth power of the 30 s rolling average of a
// 1 Hz power stream. Streams shorter than the window fall back to the plain mean.
func NormalizedPower(power []float64) float64 {
	const window = 30
	if len(power) == 0 {
		return 0
	}
	if len(power) < window {
		return average(power)
	}
	sum := 0.0
	for i := 0; i < window; i++ {
		sum += power[i]
	}
	total := 0.0
	count := 0
	for i := window - 1; i < len(power); i++ {
		if i >= window {
			sum += power[i] - power[i-window]
		}
		total += math.Pow(sum/window, 4)
		count++
	}
	return math.Pow(total/float64(count), 0.25)
}

// BestRollingPower is the highest mean power over any window of seconds, zero when the stream
// is shorter than the window.
func BestRollingPower(power []float64, seconds int) float64 {
	if seconds <= 0 || len(power) < seconds {
		return 0
	}
	sum := 0.0
	for i := 0; i < seconds; i++ {
		sum += power[i]
	}
	best := sum
	for i := seconds; i < len(power); i++ {
		sum += power[i] - power[i-seconds]
		if sum > best {
			best = sum
		}
	}
	return best / float64(seconds)
}

// PowerCurve records the best rolling power for every curve duration the stream covers,
// keyed by seconds.
func PowerCurve(power []float64) domain.PowerCurve {
	curve := domain.PowerCurve{}
	for _, secs := range CurveDurations {
		if best := BestRollingPower(power, secs); best > 0 {
			curve[strconv.Itoa(secs)] = math.Round(best)
		}
	}
	return curve
}

type band struct {
	zone  string
	hiPct float64
}

// Upper bounds as a fraction of FTP; the last band is open.
var bands = []band{
	{domain.ZoneZ1, 0.55},
	{domain.ZoneZ2, 0.75},
	{domain.ZoneZ3, 0.90},
	{domain.ZoneZ4, 1.05},
	{domain.ZoneZ5, 1.20},
	{domain.ZoneZ6, 1.50},
	{domain.ZoneZ7, math.Inf(1)},
}

// PowerZones buckets a 1 Hz power stream into seconds per zone. Zones with no time are omitted.
func PowerZones(power []float64, ftp float64) domain.ZoneTimes {
	if ftp <= 0 || len(power) == 0 {
		return nil
	}
	zones := domain.ZoneTimes{}
	for _, p := range power {
		if p < 0 {
			continue
		}
		zones[zoneFor(p/ftp)]++
	}
	return zones
}

func zoneFor(pct float64) string {
	for _, b := range bands {
		if pct < b.hiPct {
			return b.zone
		}
	}
	return domain.ZoneZ7
}

// Laps shorter than this, or easier than tempo, are not key blocks.
const (
	minBlockSec = 120
	minBlockPct = 0.76
)

// KeyBlocks groups hard laps by zone into repeated-interval blocks, hardest zone first.
func KeyBlocks(laps []Lap, ftp float64) []domain.KeyBlock {
	if ftp <= 0 {
		return nil
	}
	type acc struct {
		count                    int
		secs, power, hr, cadence float64
		hrN, cadN                int
	}
	groups := map[string]*acc{}
	for _, lap := range laps {
		pct := lap.AvgPowerW / ftp
		if lap.DurationSec < minBlockSec || pct < minBlockPct {
			continue
		}
		zone := zoneFor(pct)
		g, ok := groups[zone]
		if !ok {
			g = &acc{}
			groups[zone] = g
		}
		g.count++
		g.secs += lap.DurationSec
		g.power += lap.AvgPowerW
		if lap.AvgHRBPM > 0 {
			g.hr += lap.AvgHRBPM
			g.hrN++
		}
		if lap.AvgCadence > 0 {
			g.cadence += lap.AvgCadence
			g.cadN++
		}
	}

	var blocks []domain.KeyBlock
	for i := len(bands) - 1; i >= 0; i-- {
		zone := bands[i].zone
		g, ok := groups[zone]
		if !ok {
			continue
		}
		n := float64(g.count)
		avgPower := math.Round(g.power / n)
		block := domain.KeyBlock{
			Label:       fmt.Sprintf("%dx%s %s", g.count, durationLabel(g.secs/n), zone),
			Count:       g.count,
			DurationSec: math.Round(g.secs / n),
			AvgPowerW:   domain.Float(avgPower),
			PowerPctFTP: domain.Float(round(avgPower/ftp, 2)),
			Zone:        domain.String(zone),
			Source:      "fit-laps",
		}
		if g.hrN > 0 {
			block.AvgHRBPM = domain.Float(math.Round(g.hr / float64(g.hrN)))
		}
		if g.cadN > 0 {
			block.AvgCadenceRPM = domain.Float(math.Round(g.cadence / float64(g.cadN)))
		}
		blocks = append(blocks, block)
	}
	return blocks
}

func durationLabel(secs float64) string {
	s := int(math.Round(secs))
	if s%60 == 0 {
		return fmt.Sprintf("%dmin", s/60)
	}
	return fmt.Sprintf("%ds", s)
}

// Decoupling compares the power:HR ratio of the second half of a ride with the first, in percent.
// Positive values mean HR drifted up relative to power.
func Decoupling(power, hr []float64) float64 {
	n := len(power)
	if n < 20 || n != len(hr) {
		return 0
	}
	mid := n / 2
	p1, h1 := average(power[:mid]), average(hr[:mid])
	p2, h2 := average(power[mid:]), average(hr[mid:])
	if p1 == 0 || p2 == 0 || h1 == 0 || h2 == 0 {
		return 0
	}
	return ((p1/h1)/(p2/h2) - 1) * 100
}
