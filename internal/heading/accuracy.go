package heading

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	magnitudeHistoryCap     = 60
	magnitudeSmoothingAlpha = 0.1
	accuracySmoothingAlpha  = 0.25

	// calibratedThreshold is the displayed accuracy above which the
	// estimate counts as calibrated.
	calibratedThreshold = 60
)

// accuracyScorer turns field-strength plausibility, short-term magnitude
// stability, and device tilt into a single 0..100 confidence value. The
// combined score is EMA-smoothed against its own previous output so the
// displayed number does not flicker.
type accuracyScorer struct {
	emaMag     float64
	haveEmaMag bool

	history []float64 // recent field magnitudes, oldest first

	display     float64
	haveDisplay bool
}

func (a *accuracyScorer) update(magnitude float64, tiltDeg float64, haveTilt bool) int {
	if a.haveEmaMag {
		a.emaMag = magnitudeSmoothingAlpha*magnitude + (1-magnitudeSmoothingAlpha)*a.emaMag
	} else {
		a.emaMag = magnitude
		a.haveEmaMag = true
	}

	a.history = append(a.history, magnitude)
	if len(a.history) > magnitudeHistoryCap {
		a.history = append(a.history[:0], a.history[1:]...)
	}

	field := fieldScore(a.emaMag)
	variance := varianceScore(a.history)
	tilt := tiltScore(tiltDeg, haveTilt)

	combined := 0.5*field + 0.3*variance + 0.2*tilt

	if a.haveDisplay {
		a.display = accuracySmoothingAlpha*combined + (1-accuracySmoothingAlpha)*a.display
	} else {
		a.display = combined
		a.haveDisplay = true
	}

	v := int(math.Round(a.display))
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return v
}

// fieldScore rates the EMA-smoothed field magnitude in µT. Earth's field is
// roughly 25-65 µT; values far outside that band mean interference or a
// sensor fault.
func fieldScore(m float64) float64 {
	switch {
	case m <= 15 || m >= 90:
		return 0
	case m < 30:
		return 100 * (m - 15) / 15
	case m <= 60:
		return 100
	default:
		return math.Max(0, 100-(m-60)/30*100)
	}
}

// varianceScore rates short-term field stability; a jumpy magnitude usually
// means the device is moving past ferrous metal or electronics.
func varianceScore(history []float64) float64 {
	if len(history) < 2 {
		return 100
	}
	sd := stat.StdDev(history, nil)
	return math.Max(0, 100-math.Min(100, sd*50))
}

func tiltScore(tiltDeg float64, haveTilt bool) float64 {
	if !haveTilt {
		return 100
	}
	return math.Max(0, 100-math.Max(0, tiltDeg-15)*3)
}
