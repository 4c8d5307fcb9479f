package heading

import "math"

// shortestDelta returns the signed shortest angular distance from one heading
// to another, in [-180,180).
func shortestDelta(from, to float64) float64 {
	return math.Mod(to-from+540, 360) - 180
}

// limitStep bounds the per-update change in smoothed heading. Near-level
// devices and weak signal both make the raw heading jumpy enough to look
// like spinning, so the allowed step shrinks in those regimes.
func limitStep(prev, next float64, accuracy int, level bool, tiltDeg float64, haveTilt bool) float64 {
	maxStep := 45.0
	if accuracy < 50 {
		maxStep = 20
	}
	if level {
		maxStep = math.Min(maxStep, 10)
	} else if haveTilt && tiltDeg < 25 {
		maxStep = math.Min(maxStep, 15)
	}

	d := shortestDelta(prev, next)
	if math.Abs(d) > maxStep {
		if d < 0 {
			maxStep = -maxStep
		}
		return normalizeDeg(prev + maxStep)
	}
	return normalizeDeg(next)
}
