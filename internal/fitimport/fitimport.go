// Package fitimport turns a Garmin FIT activity file into a ride record so it can be classified
// and analysed without the ingestion pipeline.
package fitimport

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tormoder/fit"

	"github.com/steelburgerz/veloiq/internal/domain"
)

// Options tunes the conversion.
type Options struct {
	// ReferenceFTP drives IF, TSS, zones and key-block detection. Zero skips them.
	ReferenceFTP float64
	// Label overrides the ride label, which otherwise comes from the file name.
	Label    string
	Location *time.Location
}

// ReadFile decodes the FIT activity at path.
func ReadFile(path string, opts Options) (*domain.Ride, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FIT file: %w", err)
	}
	defer f.Close()

	if opts.Label == "" {
		opts.Label = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Decode(f, opts)
}

// Decode reads a FIT activity stream.
func Decode(r io.Reader, opts Options) (*domain.Ride, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode FIT file: %w", err)
	}
	activity, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("activity FIT expected: %w", err)
	}
	if len(activity.Sessions) == 0 {
		return nil, fmt.Errorf("activity file has no session message")
	}

	session := activity.Sessions[0]
	summary := Summary{
		Start:      validTime(session.StartTime),
		TimerSec:   safePositive(session.GetTotalTimerTimeScaled()),
		DistanceM:  safePositive(session.GetTotalDistanceScaled()),
		AscentM:    float64(validUint16(session.TotalAscent)),
		AvgPowerW:  float64(validUint16(session.AvgPower)),
		MaxPowerW:  float64(validUint16(session.MaxPower)),
		NPW:        float64(validUint16(session.NormalizedPower)),
		AvgHRBPM:   float64(validUint8(session.AvgHeartRate)),
		MaxHRBPM:   float64(validUint8(session.MaxHeartRate)),
		AvgCadence: cadence(session.GetAvgCadence()),
		Calories:   float64(validUint16(session.TotalCalories)),
		WorkKJ:     float64(validUint32(session.TotalWork)) / 1000,
		Virtual:    strings.Contains(strings.ToLower(fmt.Sprint(session.SubSport)), "virtual"),
	}

	samples := make([]Sample, 0, len(activity.Records))
	for _, rec := range activity.Records {
		if rec == nil {
			continue
		}
		s := Sample{At: validTime(rec.Timestamp)}
		if rec.Power != math.MaxUint16 {
			s.PowerW, s.HasPower = float64(rec.Power), true
		}
		if rec.HeartRate != math.MaxUint8 && rec.HeartRate > 0 {
			s.HRBPM, s.HasHR = float64(rec.HeartRate), true
		}
		samples = append(samples, s)
	}

	laps := make([]Lap, 0, len(activity.Laps))
	for _, lap := range activity.Laps {
		if lap == nil {
			continue
		}
		laps = append(laps, Lap{
			DurationSec: safePositive(lap.GetTotalTimerTimeScaled()),
			AvgPowerW:   float64(validUint16(lap.AvgPower)),
			AvgHRBPM:    float64(validUint8(lap.AvgHeartRate)),
			AvgCadence:  cadence(lap.GetAvgCadence()),
		})
	}

	return BuildRide(summary, samples, laps, opts), nil
}

// Summary carries the session-level totals of an activity.
type Summary struct {
	Start      time.Time
	TimerSec   float64
	DistanceM  float64
	AscentM    float64
	AvgPowerW  float64
	MaxPowerW  float64
	NPW        float64
	AvgHRBPM   float64
	MaxHRBPM   float64
	AvgCadence float64
	Calories   float64
	WorkKJ     float64
	Virtual    bool
}

// Sample is one record message.
type Sample struct {
	At       time.Time
	PowerW   float64
	HasPower bool
	HRBPM    float64
	HasHR    bool
}

// Lap is one lap message.
type Lap struct {
	DurationSec float64
	AvgPowerW   float64
	AvgHRBPM    float64
	AvgCadence  float64
}

// BuildRide derives a ride from session totals, record samples and laps. Session values win
// where present; record streams fill the gaps.
func BuildRide(summary Summary, samples []Sample, laps []Lap, opts Options) *domain.Ride {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	series := buildSeries(samples)

	start := summary.Start
	if start.IsZero() {
		start = series.start
	}
	timer := summary.TimerSec
	if timer == 0 {
		timer = series.durationSec
	}

	ride := &domain.Ride{
		Source:        "fit",
		Label:         opts.Label,
		DetailQuality: "fit",
		DurationMin:   round(timer/60, 1),
		DistanceKm:    round(summary.DistanceM/1000, 2),
		ElevM:         summary.AscentM,
		WorkKJ:        round(summary.WorkKJ, 0),
	}
	if !start.IsZero() {
		ride.Date = start.In(loc).Format(domain.DateLayout)
	}
	if summary.Virtual && !strings.Contains(strings.ToLower(ride.Label), "virtual") {
		ride.Label = strings.TrimSpace(ride.Label + " (VirtualRide)")
	}
	if ride.WorkKJ == 0 {
		ride.WorkKJ = round(series.workKJ, 0)
	}

	avgPower := firstPositive(summary.AvgPowerW, average(series.power))
	np := firstPositive(summary.NPW, NormalizedPower(series.powerForNP), avgPower)
	avgHR := firstPositive(summary.AvgHRBPM, average(series.hr))

	ride.AvgPowerW = optional(round(avgPower, 0))
	ride.NPW = optional(round(np, 0))
	ride.MaxPowerW = optional(firstPositive(summary.MaxPowerW, maxValue(series.power)))
	ride.AvgHRBPM = optional(round(avgHR, 0))
	ride.MaxHRBPM = optional(firstPositive(summary.MaxHRBPM, maxValue(series.hr)))
	ride.AvgCadenceRPM = optional(summary.AvgCadence)
	ride.Calories = optional(summary.Calories)

	if np > 0 && avgHR > 0 {
		ride.EF = optional(round(np/avgHR, 2))
	}
	if np > 0 && avgPower > 0 {
		ride.VI = optional(round(np/avgPower, 2))
	}
	if d := Decoupling(series.pairedPower, series.pairedHR); d != 0 {
		ride.DecouplingPct = domain.Float(round(d, 1))
	}

	if curve := PowerCurve(series.powerForNP); len(curve) > 0 {
		ride.PeakPowerCurve = curve
	}

	if ftp := opts.ReferenceFTP; ftp > 0 {
		if np > 0 {
			intensity := np / ftp
			ride.IF = domain.Float(round(intensity, 2))
			if timer > 0 {
				ride.TSS = domain.Float(round(timer*np*intensity/(ftp*3600)*100, 0))
			}
		}
		if zones := PowerZones(series.powerForNP, ftp); len(zones) > 0 {
			ride.ZonesPowerSec = zones
		}
		ride.KeyBlocks = KeyBlocks(laps, ftp)
	}
	return ride
}

type series struct {
	start       time.Time
	durationSec float64
	power       []float64
	powerForNP  []float64
	hr          []float64
	pairedPower []float64
	pairedHR    []float64
	workKJ      float64
}

// buildSeries orders samples by time and resamples power to 1 Hz, carrying the last value across
// short dropouts.
func buildSeries(samples []Sample) series {
	var s series
	if len(samples) == 0 {
		return s
	}
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })

	var (
		end        time.Time
		lastTS     time.Time
		lastPower  float64
		havePower  bool
		workJoules float64
	)
	for _, sample := range sorted {
		ts := sample.At
		if !ts.IsZero() {
			if s.start.IsZero() {
				s.start = ts
			}
			end = ts
		}
		if sample.HasHR {
			s.hr = append(s.hr, sample.HRBPM)
		}
		if sample.HasPower {
			s.power = append(s.power, sample.PowerW)
			if sample.HasHR {
				s.pairedPower = append(s.pairedPower, sample.PowerW)
				s.pairedHR = append(s.pairedHR, sample.HRBPM)
			}
			if havePower && !ts.IsZero() && !lastTS.IsZero() && ts.After(lastTS) {
				delta := ts.Sub(lastTS).Seconds()
				if delta <= 5 {
					workJoules += lastPower * delta
				}
				if missing := int(math.Round(delta)) - 1; missing > 0 && missing <= 30 {
					for i := 0; i < missing; i++ {
						s.powerForNP = append(s.powerForNP, lastPower)
					}
				}
			}
			s.powerForNP = append(s.powerForNP, sample.PowerW)
			lastPower = sample.PowerW
			havePower = true
		}
		if !ts.IsZero() {
			lastTS = ts
		}
	}
	if !s.start.IsZero() && end.After(s.start) {
		s.durationSec = end.Sub(s.start).Seconds()
	}
	if workJoules == 0 {
		for _, p := range s.power {
			workJoules += p
		}
	}
	s.workKJ = workJoules / 1000
	return s
}
