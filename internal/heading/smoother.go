package heading

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// smootherWindow bounds the number of raw headings averaged together.
const smootherWindow = 8

// circularSmoother keeps the most recent raw headings and averages them with
// a circular mean, so the 0°/360° wrap does not produce the 180° artifact an
// arithmetic mean would.
type circularSmoother struct {
	window []float64 // degrees, oldest first
}

func (s *circularSmoother) push(h float64) float64 {
	s.window = append(s.window, h)
	if len(s.window) > smootherWindow {
		s.window = append(s.window[:0], s.window[1:]...)
	}
	return s.mean()
}

func (s *circularSmoother) mean() float64 {
	rad := make([]float64, len(s.window))
	for i, h := range s.window {
		rad[i] = h * math.Pi / 180
	}
	return normalizeDeg(stat.CircularMean(rad, nil) * 180 / math.Pi)
}
