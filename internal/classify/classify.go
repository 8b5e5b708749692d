// Package classify assigns a session type to rides that arrive without a specific one.
package classify

import (
	"strings"

	"github.com/steelburgerz/veloiq/internal/domain"
)

// Input is the ride-like record the classifier reads. Every field is optional.
type Input struct {
	DurationMin *float64
	Label       string
	Zones       domain.ZoneTimes
	KeyBlocks   []domain.KeyBlock
	IF          *float64
	Provisional domain.SessionType
}

// Decision is a classification result together with the rule that produced it.
type Decision struct {
	Type domain.SessionType `json:"session_type"`
	Rule string             `json:"rule"`
}

// Classifier evaluates an ordered rule table against ride facts.
type Classifier struct {
	referenceFTP float64
	rules        []Rule
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithRules replaces the default rule table.
func WithRules(rules []Rule) Option {
	return func(c *Classifier) {
		c.rules = rules
	}
}

// New builds a Classifier that derives IF against referenceFTP.
func New(referenceFTP float64, opts ...Option) *Classifier {
	c := &Classifier{referenceFTP: referenceFTP, rules: DefaultRules}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReferenceFTP returns the FTP used to derive intensity factors.
func (c *Classifier) ReferenceFTP() float64 { return c.referenceFTP }

// Classify returns the session type for in. It never fails; mixed is the terminal fallback.
func (c *Classifier) Classify(in Input) domain.SessionType {
	return c.Explain(in).Type
}

// Explain classifies in and reports which rule matched.
func (c *Classifier) Explain(in Input) Decision {
	facts := Derive(in)
	for _, rule := range c.rules {
		if rule.When(facts) {
			return Decision{Type: rule.Then(facts), Rule: rule.Name}
		}
	}
	return Decision{Type: domain.SessionMixed, Rule: "fallback"}
}

// FromRide builds classifier input from a stored ride. IF is NP over the
// reference FTP when NP is known, else the stored IF.
func (c *Classifier) FromRide(ride domain.Ride) Input {
	in := Input{
		Label:       ride.Label,
		Zones:       ride.ZonesPowerSec,
		KeyBlocks:   ride.KeyBlocks,
		Provisional: ride.SessionType,
	}
	if ride.DurationMin > 0 {
		in.DurationMin = domain.Float(ride.DurationMin)
	}
	switch {
	case ride.NPW != nil && *ride.NPW > 0 && c.referenceFTP > 0:
		in.IF = domain.Float(*ride.NPW / c.referenceFTP)
	case ride.IF != nil && *ride.IF > 0:
		in.IF = domain.Float(*ride.IF)
	}
	return in
}

// NeedsClassification reports whether a ride's stored type is absent or generic.
func NeedsClassification(t domain.SessionType) bool {
	return t == "" || t == domain.SessionMixed || !t.Valid()
}

// Apply fills in the session type of ride when it is missing or generic.
func (c *Classifier) Apply(ride domain.Ride) domain.Ride {
	if !NeedsClassification(ride.SessionType) {
		return ride
	}
	ride.SessionType = c.Classify(c.FromRide(ride))
	return ride
}

// ApplyAll classifies every ride in place and returns the slice.
func (c *Classifier) ApplyAll(rides []domain.Ride) []domain.Ride {
	for i := range rides {
		rides[i] = c.Apply(rides[i])
	}
	return rides
}

// Derive computes the facts the rules read.
func Derive(in Input) Facts {
	f := Facts{
		Label:       strings.ToLower(in.Label),
		Provisional: in.Provisional,
	}
	if in.DurationMin != nil && *in.DurationMin > 0 {
		f.Duration = *in.DurationMin
		f.HasDuration = true
	}
	if in.IF != nil && *in.IF > 0 {
		f.IF = *in.IF
	}

	zones := in.Zones
	// SS overlaps Z3 and Z4, so shares come from the Z1..Z7 bands alone.
	f.ZoneTotal = zones.BandTotal()
	f.Easy = zones.BandFraction(domain.ZoneZ1, domain.ZoneZ2)
	f.Tempo = zones.BandFraction(domain.ZoneZ3)
	f.Threshold = zones.BandFraction(domain.ZoneZ4)
	f.VO2 = zones.BandFraction(domain.ZoneZ5, domain.ZoneZ6, domain.ZoneZ7)

	for _, block := range in.KeyBlocks {
		secs := block.TotalSec()
		if secs <= 0 {
			continue
		}
		f.BlockTotal += secs
		switch blockBucket(block) {
		case domain.SessionVO2:
			f.BlockVO2 += secs
		case domain.SessionThreshold:
			f.BlockThreshold += secs
		case domain.SessionTempo:
			f.BlockTempo += secs
		}
	}
	return f
}

func blockBucket(block domain.KeyBlock) domain.SessionType {
	zone := block.ZoneTag()
	switch {
	case strings.HasPrefix(zone, "Z5"), strings.HasPrefix(zone, "Z6"), strings.HasPrefix(zone, "Z7"):
		return domain.SessionVO2
	case strings.HasPrefix(zone, "Z4"), strings.HasPrefix(zone, "SS"):
		return domain.SessionThreshold
	case strings.HasPrefix(zone, "Z3"):
		return domain.SessionTempo
	}
	return ""
}

var labels = map[domain.SessionType]string{
	domain.SessionThreshold: "Threshold",
	domain.SessionTempo:     "Tempo",
	domain.SessionEndurance: "Endurance",
	domain.SessionVO2:       "VO2max",
	domain.SessionMixed:     "Mixed",
	domain.SessionLongRide:  "Long Ride",
	domain.SessionRecovery:  "Recovery",
	domain.SessionRace:      "Race",
}

// Label returns the display name for t, falling back to the raw tag.
func Label(t domain.SessionType) string {
	if label, ok := labels[t]; ok {
		return label
	}
	return string(t)
}
