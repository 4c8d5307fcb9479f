package heading

import "testing"

func TestFieldScore(t *testing.T) {
	cases := []struct {
		m    float64
		want float64
	}{
		{0, 0},
		{15, 0},
		{22.5, 50},
		{30, 100},
		{45, 100},
		{60, 100},
		{75, 50},
		{90, 0},
		{120, 0},
	}
	for _, tc := range cases {
		if got := fieldScore(tc.m); !almostEqual(got, tc.want, 1e-9) {
			t.Errorf("fieldScore(%v)=%v want %v", tc.m, got, tc.want)
		}
	}
}

func TestVarianceScore(t *testing.T) {
	if got := varianceScore(nil); got != 100 {
		t.Fatalf("empty history score=%v want 100", got)
	}
	if got := varianceScore([]float64{45}); got != 100 {
		t.Fatalf("single sample score=%v want 100", got)
	}
	if got := varianceScore([]float64{45, 45, 45, 45}); !almostEqual(got, 100, 1e-9) {
		t.Fatalf("steady field score=%v want 100", got)
	}
	// Wildly jumping magnitudes should zero out.
	if got := varianceScore([]float64{10, 90, 10, 90, 10, 90}); got != 0 {
		t.Fatalf("noisy field score=%v want 0", got)
	}
}

func TestTiltScore(t *testing.T) {
	if got := tiltScore(0, false); got != 100 {
		t.Fatalf("no-tilt score=%v want 100", got)
	}
	if got := tiltScore(0, true); got != 100 {
		t.Fatalf("flat score=%v want 100", got)
	}
	if got := tiltScore(15, true); got != 100 {
		t.Fatalf("15° score=%v want 100", got)
	}
	if got := tiltScore(25, true); !almostEqual(got, 70, 1e-9) {
		t.Fatalf("25° score=%v want 70", got)
	}
	if got := tiltScore(90, true); got != 0 {
		t.Fatalf("90° score=%v want 0", got)
	}
}

func TestAccuracyScorer_IdealFieldSettlesHigh(t *testing.T) {
	var a accuracyScorer
	var got int
	for i := 0; i < 10; i++ {
		got = a.update(45, 0, true)
	}
	if got < 95 {
		t.Fatalf("accuracy=%d want >=95 for ideal steady field", got)
	}
}

func TestAccuracyScorer_WeakFieldScoresLow(t *testing.T) {
	var a accuracyScorer
	var got int
	for i := 0; i < 30; i++ {
		got = a.update(5, 0, true)
	}
	// Field score 0, variance 100, tilt 100: 0.3*100 + 0.2*100 = 50.
	if got > 55 {
		t.Fatalf("accuracy=%d want <=55 for implausible field", got)
	}
}

func TestAccuracyScorer_DisplaySmoothing(t *testing.T) {
	var a accuracyScorer
	for i := 0; i < 10; i++ {
		a.update(45, 0, true)
	}
	// A single bad sample must not crater the displayed value.
	got := a.update(45, 90, true)
	if got < 70 {
		t.Fatalf("accuracy=%d dropped too fast after one bad sample", got)
	}
}

func TestAccuracyScorer_HistoryBounded(t *testing.T) {
	var a accuracyScorer
	for i := 0; i < magnitudeHistoryCap*2; i++ {
		a.update(45, 0, true)
	}
	if len(a.history) != magnitudeHistoryCap {
		t.Fatalf("history len=%d want %d", len(a.history), magnitudeHistoryCap)
	}
}
