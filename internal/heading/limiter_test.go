package heading

import "testing"

func TestShortestDelta(t *testing.T) {
	cases := []struct {
		from, to, want float64
	}{
		{0, 10, 10},
		{10, 0, -10},
		{350, 10, 20},
		{10, 350, -20},
		{0, 180, -180},
		{90, 270, -180},
	}
	for _, tc := range cases {
		if got := shortestDelta(tc.from, tc.to); !almostEqual(got, tc.want, 1e-9) {
			t.Errorf("shortestDelta(%v,%v)=%v want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestLimitStep(t *testing.T) {
	cases := []struct {
		name     string
		prev     float64
		next     float64
		accuracy int
		level    bool
		tiltDeg  float64
		haveTilt bool
		want     float64
	}{
		{"default max step", 0, 170, 70, false, 30, true, 45},
		{"level clamps to 10", 0, 170, 70, true, 0, true, 10},
		{"low accuracy clamps to 20", 0, 170, 40, false, 30, true, 20},
		{"near-level tilt clamps to 15", 0, 170, 70, false, 20, true, 15},
		{"small delta passes through", 10, 40, 70, false, 30, true, 40},
		{"negative delta clamps the short way", 0, 190, 70, false, 30, true, 315},
		{"level wins over low accuracy", 0, 170, 40, true, 0, true, 10},
		{"no tilt info keeps default", 0, 170, 70, false, 0, false, 45},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := limitStep(tc.prev, tc.next, tc.accuracy, tc.level, tc.tiltDeg, tc.haveTilt)
			if !almostEqual(got, tc.want, 1e-9) {
				t.Fatalf("limitStep=%v want %v", got, tc.want)
			}
		})
	}
}
