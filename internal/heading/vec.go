package heading

import (
	"fmt"
	"math"
)

type vec3 [3]float64

func cross3(a, b vec3) vec3 {
	return vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func norm3(v vec3) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func unit3(v vec3) (vec3, error) {
	n := norm3(v)
	if n <= 0 {
		return vec3{}, fmt.Errorf("zero vector")
	}
	return vec3{v[0] / n, v[1] / n, v[2] / n}, nil
}

func finite3(v vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// normalizeDeg maps any angle into [0,360).
func normalizeDeg(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}
