package classify

import (
	"strings"

	"github.com/steelburgerz/veloiq/internal/domain"
)

// Duration and intensity thresholds, minutes and fractions of reference FTP.
const (
	longRideMin      = 180.0
	shortRideMin     = 60.0
	noDataShortMin   = 45.0
	ifVO2            = 0.95
	ifThreshold      = 0.85
	ifLongThreshold  = 0.90
	ifTempo          = 0.75
	ifEndurance      = 0.55
	ifShortRecovery  = 0.60
	ifLongEndurance  = 0.85
	z4LongThreshold  = 0.20
	z4StructuredVO2  = 0.25
	z4TempoEscalates = 0.15
)

// Zone and key-block fallback thresholds. Key-block values are seconds.
const (
	recoveryEasyFraction = 0.85
	longVO2BlockSec      = 600.0
	longVO2Fraction      = 0.15
	longThresholdBlock   = 900.0
	longThresholdFrac    = 0.30
	vo2BlockSec          = 240.0
	vo2Fraction          = 0.10
	thresholdBlockSec    = 600.0
	thresholdFraction    = 0.18
	tempoBlockSec        = 900.0
	tempoFraction        = 0.30
	enduranceFraction    = 0.60
	tiebreakThreshold    = 0.10
	tiebreakTempo        = 0.15
)

var (
	raceKeywords      = []string{"race", "competition", "event"}
	thresholdKeywords = []string{"sweet spot", "sweetspot", "over/under", "over-under", "over under", "threshold", "ftp"}
	vo2Keywords       = []string{"vo2"}
	tempoKeywords     = []string{"tempo"}
	recoveryKeywords  = []string{"recovery", "spin"}
)

// Facts are the ride attributes every rule reads, computed once per classification.
type Facts struct {
	Duration    float64
	HasDuration bool
	Label       string
	IF          float64
	Provisional domain.SessionType

	ZoneTotal float64
	Easy      float64 // Z1+Z2 fraction
	Tempo     float64 // Z3 fraction
	Threshold float64 // Z4+SS fraction
	VO2       float64 // Z5..Z7 fraction

	BlockTotal     float64
	BlockVO2       float64
	BlockThreshold float64
	BlockTempo     float64
}

// HasIF reports whether a usable intensity factor is present.
func (f Facts) HasIF() bool { return f.IF > 0 }

// NoPowerData reports whether the ride carries no Z1..Z7 time and no key blocks.
// An intensity factor alone does not count as power data.
func (f Facts) NoPowerData() bool {
	return f.ZoneTotal <= 0 && f.BlockTotal <= 0
}

func (f Facts) long() bool { return f.HasDuration && f.Duration > longRideMin }

func (f Facts) shorterThan(minutes float64) bool { return f.HasDuration && f.Duration < minutes }

func (f Facts) labelHas(keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(f.Label, kw) {
			return true
		}
	}
	return false
}

// Rule maps a predicate over Facts to a session type.
type Rule struct {
	Name string
	When func(Facts) bool
	Then func(Facts) domain.SessionType
}

func tag(t domain.SessionType) func(Facts) domain.SessionType {
	return func(Facts) domain.SessionType { return t }
}

func withIF(pred func(Facts) bool) func(Facts) bool {
	return func(f Facts) bool { return f.HasIF() && pred(f) }
}

func withoutIF(pred func(Facts) bool) func(Facts) bool {
	return func(f Facts) bool { return !f.HasIF() && pred(f) }
}

func keepProvisional(f Facts) domain.SessionType {
	if f.Provisional.Specific() {
		return f.Provisional
	}
	return domain.SessionEndurance
}

// DefaultRules is the ordered rule table; the first matching rule decides.
var DefaultRules = []Rule{
	{Name: "label-race", When: func(f Facts) bool { return f.labelHas(raceKeywords) }, Then: tag(domain.SessionRace)},
	{Name: "label-threshold", When: func(f Facts) bool { return f.labelHas(thresholdKeywords) }, Then: tag(domain.SessionThreshold)},
	{Name: "label-vo2", When: func(f Facts) bool { return f.labelHas(vo2Keywords) }, Then: tag(domain.SessionVO2)},
	{Name: "label-tempo", When: func(f Facts) bool { return f.labelHas(tempoKeywords) }, Then: tag(domain.SessionTempo)},
	{Name: "label-recovery", When: func(f Facts) bool { return f.labelHas(recoveryKeywords) }, Then: tag(domain.SessionRecovery)},

	{Name: "nodata-long", When: func(f Facts) bool { return f.NoPowerData() && f.long() }, Then: tag(domain.SessionLongRide)},
	{Name: "nodata-short", When: func(f Facts) bool { return f.NoPowerData() && f.shorterThan(noDataShortMin) }, Then: tag(domain.SessionRecovery)},
	{Name: "nodata-default", When: Facts.NoPowerData, Then: keepProvisional},

	{Name: "if-long-endurance", When: withIF(func(f Facts) bool { return f.long() && f.IF < ifLongEndurance }), Then: tag(domain.SessionLongRide)},
	{Name: "if-long-threshold", When: withIF(func(f Facts) bool {
		return f.long() && f.IF >= ifLongThreshold && f.Threshold > z4LongThreshold
	}), Then: tag(domain.SessionThreshold)},
	{Name: "if-long-vo2", When: withIF(func(f Facts) bool { return f.long() && f.IF >= ifVO2 }), Then: tag(domain.SessionVO2)},
	{Name: "if-long", When: withIF(Facts.long), Then: tag(domain.SessionLongRide)},
	{Name: "if-short-recovery", When: withIF(func(f Facts) bool {
		return f.shorterThan(shortRideMin) && f.IF < ifShortRecovery
	}), Then: tag(domain.SessionRecovery)},
	{Name: "if-vo2-structured", When: withIF(func(f Facts) bool {
		return f.IF >= ifVO2 && f.Threshold > z4StructuredVO2
	}), Then: tag(domain.SessionThreshold)},
	{Name: "if-vo2", When: withIF(func(f Facts) bool { return f.IF >= ifVO2 }), Then: tag(domain.SessionVO2)},
	{Name: "if-threshold", When: withIF(func(f Facts) bool { return f.IF >= ifThreshold }), Then: tag(domain.SessionThreshold)},
	{Name: "if-tempo-escalated", When: withIF(func(f Facts) bool {
		return f.IF >= ifTempo && f.Threshold > z4TempoEscalates
	}), Then: tag(domain.SessionThreshold)},
	{Name: "if-tempo", When: withIF(func(f Facts) bool { return f.IF >= ifTempo }), Then: tag(domain.SessionTempo)},
	{Name: "if-endurance", When: withIF(func(f Facts) bool { return f.IF >= ifEndurance }), Then: tag(domain.SessionEndurance)},
	{Name: "if-recovery", When: withIF(func(Facts) bool { return true }), Then: tag(domain.SessionRecovery)},

	{Name: "zone-recovery", When: withoutIF(func(f Facts) bool {
		return f.shorterThan(shortRideMin) && f.ZoneTotal > 0 && f.Easy >= recoveryEasyFraction
	}), Then: tag(domain.SessionRecovery)},
	{Name: "zone-long-vo2", When: withoutIF(func(f Facts) bool {
		return f.long() && (f.BlockVO2 > longVO2BlockSec || f.VO2 > longVO2Fraction)
	}), Then: tag(domain.SessionVO2)},
	{Name: "zone-long-threshold", When: withoutIF(func(f Facts) bool {
		return f.long() && (f.BlockThreshold > longThresholdBlock || f.Threshold > longThresholdFrac)
	}), Then: tag(domain.SessionThreshold)},
	{Name: "zone-long", When: withoutIF(Facts.long), Then: tag(domain.SessionLongRide)},
	{Name: "zone-vo2", When: withoutIF(func(f Facts) bool {
		return f.BlockVO2 > vo2BlockSec || f.VO2 > vo2Fraction
	}), Then: tag(domain.SessionVO2)},
	{Name: "zone-threshold", When: withoutIF(func(f Facts) bool {
		return f.BlockThreshold > thresholdBlockSec || f.Threshold > thresholdFraction
	}), Then: tag(domain.SessionThreshold)},
	{Name: "zone-tempo", When: withoutIF(func(f Facts) bool {
		return f.BlockTempo > tempoBlockSec || f.Tempo > tempoFraction
	}), Then: tag(domain.SessionTempo)},
	{Name: "zone-endurance", When: withoutIF(func(f Facts) bool { return f.Easy > enduranceFraction }), Then: tag(domain.SessionEndurance)},
	{Name: "zone-tiebreak-threshold", When: withoutIF(func(f Facts) bool { return f.Threshold > tiebreakThreshold }), Then: tag(domain.SessionThreshold)},
	{Name: "zone-tiebreak-tempo", When: withoutIF(func(f Facts) bool { return f.Tempo > tiebreakTempo }), Then: tag(domain.SessionTempo)},
	{Name: "zone-dominant-easy", When: withoutIF(func(f Facts) bool { return f.ZoneTotal > 0 }), Then: tag(domain.SessionEndurance)},
}
