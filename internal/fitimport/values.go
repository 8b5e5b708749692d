package fitimport

import (
	"math"
	"time"

	"github.com/tormoder/fit"

	"github.com/steelburgerz/veloiq/internal/domain"
)

func validTime(t time.Time) time.Time {
	if t.IsZero() || fit.IsBaseTime(t) {
		return time.Time{}
	}
	return t
}

func validUint8(v uint8) uint8 {
	if v == math.MaxUint8 {
		return 0
	}
	return v
}

func validUint16(v uint16) uint16 {
	if v == math.MaxUint16 {
		return 0
	}
	return v
}

func validUint32(v uint32) uint32 {
	if v == math.MaxUint32 {
		return 0
	}
	return v
}

// cadence reads the dynamically typed cadence accessors.
func cadence(v any) float64 {
	switch x := v.(type) {
	case uint8:
		return float64(validUint8(x))
	case uint16:
		return float64(validUint16(x))
	case float64:
		return safePositive(x)
	}
	return 0
}

func average(values []float64) float64 {
	total, count := 0.0, 0
	for _, v := range values {
		if isFinite(v) {
			total += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func maxValue(values []float64) float64 {
	best := 0.0
	for _, v := range values {
		if isFinite(v) && v > best {
			best = v
		}
	}
	return best
}

func firstPositive(values ...float64) float64 {
	for _, v := range values {
		if v > 0 && isFinite(v) {
			return v
		}
	}
	return 0
}

func optional(v float64) *float64 {
	if v <= 0 || !isFinite(v) {
		return nil
	}
	return domain.Float(v)
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func safePositive(v float64) float64 {
	if !isFinite(v) || v <= 0 {
		return 0
	}
	return v
}
