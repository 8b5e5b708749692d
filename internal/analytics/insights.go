package analytics

import (
	"fmt"
	"math"

	"github.com/steelburgerz/veloiq/internal/domain"
)

// Profile carries the athlete-specific tuning values the metrics are computed against.
type Profile struct {
	FTP       float64
	WeightKg  float64
	TargetWkg float64
	RaceName  string
	RaceDate  string
}

// InsightKind grades a coaching note.
type InsightKind string

const (
	InsightGood InsightKind = "good"
	InsightBad  InsightKind = "bad"
	InsightNote InsightKind = "insight"
	InsightNext InsightKind = "next"
)

// Insight is one coaching note about a ride.
type Insight struct {
	Kind InsightKind `json:"type"`
	Text string      `json:"text"`
}

// Insights reviews pacing, heart rate, key blocks, zone distribution, load context and intensity of a
// classified ride, then adds a recommendation for the next session.
func Insights(ride domain.Ride, profile Profile) []Insight {
	out := []Insight{}
	add := func(kind InsightKind, format string, args ...any) {
		out = append(out, Insight{Kind: kind, Text: fmt.Sprintf(format, args...)})
	}
	ftp := profile.FTP
	st := ride.SessionType

	if ride.NPW != nil && ride.AvgPowerW != nil && *ride.AvgPowerW > 0 {
		np := *ride.NPW
		vi := np / *ride.AvgPowerW
		if st == domain.SessionThreshold && ftp > 0 && np >= ftp*0.9 {
			add(InsightGood, "Hit threshold target: NP %.0fW is %.0f%% of FTP.", np, math.Round(np/ftp*100))
		}
		switch {
		case vi > 1.12:
			add(InsightBad, "Variability Index %.2f is high, lots of surging. More even pacing would improve endurance adaptation.", vi)
		case vi <= 1.05:
			add(InsightGood, "Clean pacing, Variability Index %.2f. Consistent power delivery.", vi)
		}
	}

	if ride.AvgHRBPM != nil && ride.NPW != nil {
		hr := *ride.AvgHRBPM
		if st == domain.SessionEndurance && hr > 155 {
			add(InsightBad, "HR %.0fbpm is elevated for an endurance ride. Could indicate heat, fatigue or pacing too hard.", hr)
		}
		if st == domain.SessionLongRide && hr <= 150 {
			add(InsightGood, "HR %.0fbpm well controlled on a long ride, strong aerobic base showing.", hr)
		}
	}

	if len(ride.KeyBlocks) > 0 {
		aboveFTP, lowCadence := 0, 0
		peakHR := 0.0
		for _, block := range ride.KeyBlocks {
			if block.PowerPctFTP != nil && *block.PowerPctFTP >= 1.0 {
				aboveFTP++
			}
			if block.AvgHRBPM != nil && *block.AvgHRBPM > peakHR {
				peakHR = *block.AvgHRBPM
			}
			zone := block.ZoneTag()
			if block.AvgCadenceRPM != nil && *block.AvgCadenceRPM < 75 && (zone == "Z4" || zone == "Z5" || zone == "Z5-6") {
				lowCadence++
			}
		}
		if aboveFTP > 0 {
			add(InsightGood, "%d %s above FTP, neuromuscular and VO2 stimulus achieved.", aboveFTP, plural(aboveFTP, "block", "blocks"))
		}
		if peakHR >= 165 {
			add(InsightNote, "Peak HR reached %.0fbpm in hard blocks, cardiac stress in expected range for intensity.", peakHR)
		}
		if lowCadence > 0 {
			add(InsightNote, "Cadence dropped below 75rpm in %d hard %s. Aim for 80-90rpm in threshold+ efforts to spare legs on long rides.", lowCadence, plural(lowCadence, "block", "blocks"))
		}
	}

	if total := ride.ZonesPowerSec.BandTotal(); total > 0 && st == domain.SessionLongRide {
		z2 := ride.ZonesPowerSec.Get(domain.ZoneZ2) / total * 100
		high := ride.ZonesPowerSec.BandFraction(domain.ZoneZ5, domain.ZoneZ6, domain.ZoneZ7) * 100
		if z2 < 20 {
			add(InsightBad, "Only %.0f%% in Z2 for a long ride. More base time would improve fat oxidation%s.", z2, raceSuffix(profile, " and %s endurance"))
		}
		if high > 8 {
			add(InsightNote, "%.0f%% in Z5-Z7 on a long ride. Solid surging stimulus%s.", high, raceSuffix(profile, ", good %s preparation"))
		}
	}

	if ride.TSB != nil {
		tsb := *ride.TSB
		switch {
		case tsb < -20 && st != domain.SessionRecovery:
			add(InsightBad, "TSB was %.1f going in, a deep fatigue hole. Recovery priority after this.", tsb)
		case tsb > 15 && (st == domain.SessionThreshold || st == domain.SessionVO2):
			add(InsightGood, "Fresh legs (TSB %.1f) for a quality session, ideal conditions.", tsb)
		}
	}

	if ride.IF != nil && *ride.IF > 0 {
		intensity := *ride.IF
		if st == domain.SessionThreshold && intensity >= 0.9 {
			add(InsightGood, "IF %.2f, solid threshold execution.", intensity)
		}
		if st == domain.SessionLongRide && intensity > 0.8 {
			add(InsightNote, "IF %.2f for a long ride is quite high. Fine for race simulation, but watch recovery.", intensity)
		}
	}

	switch st {
	case domain.SessionLongRide:
		add(InsightNext, "Easy spin or rest tomorrow. Focus on nutrition and sleep to absorb the load.")
	case domain.SessionThreshold:
		add(InsightNext, "Allow 24-48h before next quality session. Endurance or recovery ride tomorrow is fine.")
	case domain.SessionEndurance:
		add(InsightNext, "Good base session. Can layer a quality session tomorrow if readiness is GREEN.")
	}
	return out
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func raceSuffix(profile Profile, format string) string {
	if profile.RaceName == "" {
		return ""
	}
	return fmt.Sprintf(format, profile.RaceName)
}

// DayVerdict describes the physiological conditions going into a ride.
type DayVerdict struct {
	Tone string `json:"tone"`
	Text string `json:"text"`
}

// AssessDay grades sleep and HRV on the day of the ride. It returns nil when nothing stands out.
func AssessDay(ride domain.Ride) *DayVerdict {
	badSleep := ride.DaySleepScore != nil && *ride.DaySleepScore > 0 && *ride.DaySleepScore < 60
	lowHRV := ride.DayHRVMs != nil && *ride.DayHRVMs > 0 && *ride.DayHRVMs < 40
	switch {
	case badSleep && lowHRV:
		return &DayVerdict{Tone: "bad", Text: "Tough conditions: low sleep and suppressed HRV going in. Respect this effort."}
	case badSleep:
		return &DayVerdict{Tone: "warn", Text: "Under-slept going into this session. Performance here is notable."}
	case ride.DaySleepScore != nil && *ride.DaySleepScore >= 75 && ride.DayHRVMs != nil && *ride.DayHRVMs >= 50:
		return &DayVerdict{Tone: "good", Text: "Well rested and recovered, ideal conditions for this session."}
	}
	return nil
}

var trainingEffectLabels = []string{"", "Recovery", "Maintaining", "Improving", "Highly Effective", "Overreaching"}

// TrainingEffect is a graded training-effect score.
type TrainingEffect struct {
	Value float64 `json:"value"`
	Level int     `json:"level"`
	Label string  `json:"label"`
}

// GradeTrainingEffect maps a score to levels 0..5; scores below 1 have no level.
func GradeTrainingEffect(value float64) TrainingEffect {
	level := 0
	if value >= 1 {
		level = int(math.Floor(value))
		if level > 5 {
			level = 5
		}
	}
	return TrainingEffect{Value: Round1(value), Level: level, Label: trainingEffectLabels[level]}
}
