// Package calibration scores how thoroughly a user has rotated the device
// during guided setup, and decides when calibration is complete.
//
// The tracker is a parallel consumer of the raw magnetometer stream; it does
// not feed back into the heading pipeline.
package calibration

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"compass-ng/internal/heading"
)

// State is the tracker's phase in the guided setup flow.
type State int

const (
	// StateIdle: no session running; samples are ignored.
	StateIdle State = iota
	// StateCollecting: orientation coverage and field variance are being
	// accumulated toward the progress score.
	StateCollecting
	// StateAxisCheck: coverage is sufficient; heading samples gate the
	// final phase purely on timing.
	StateAxisCheck
	// StateComplete: the session finished and the axis decision is final.
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollecting:
		return "collecting"
	case StateAxisCheck:
		return "axis-check"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

const (
	// Orientation space is quantized to 3 levels per axis, 27 regions.
	// Covering regionTarget of them scores 100.
	regionTarget = 18

	// Thresholds to leave the collecting phase.
	advanceProgress = 85
	advanceRegions  = 15

	sampleWindow = 10 * time.Second
	// Hard cap on the magnitude history in case sample timestamps stall
	// and the time window alone stops trimming.
	sampleCapacity = 1000

	// Variance bonus: enough samples with a plausible spread of field
	// magnitudes earns a flat bonus, half-weighted into progress.
	bonusMinSamples = 20
	bonusMinStdDev  = 5.0
	bonusMaxStdDev  = 20.0
	bonusPoints     = 50.0

	// Axis-check phase gate.
	axisCheckSamples     = 20
	axisCheckWindow      = 5 * time.Second
	axisCheckMinAccuracy = 60
)

type magRecord struct {
	magnitude float64
	at        time.Time
}

type headingRecord struct {
	at time.Time
}

// Snapshot is a point-in-time view of a calibration session.
type Snapshot struct {
	SessionID string  `json:"session_id,omitempty"`
	State     string  `json:"state"`
	Progress  float64 `json:"progress"`
	Regions   int     `json:"regions"`
	// AxisFlip is meaningful only in the complete state.
	AxisFlip bool `json:"axis_flip"`
}

// Tracker buckets raw magnetometer samples into coarse orientation regions
// and scores coverage. Safe for concurrent use.
type Tracker struct {
	mu sync.Mutex

	state     State
	sessionID string

	regions  map[[3]int]struct{}
	samples  []magRecord
	headings []headingRecord

	axisFlip bool
}

func NewTracker() *Tracker {
	return &Tracker{
		state:   StateIdle,
		regions: make(map[[3]int]struct{}),
	}
}

// Start begins a fresh session, clearing any previous region set and sample
// history. Re-entering the collecting phase always resets.
func (t *Tracker) Start() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset()
	t.state = StateCollecting
	t.sessionID = uuid.NewString()
	return t.sessionID
}

// Reset abandons the current session and returns to idle.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset()
}

// reset must be called with t.mu held.
func (t *Tracker) reset() {
	t.state = StateIdle
	t.sessionID = ""
	t.regions = make(map[[3]int]struct{})
	t.samples = t.samples[:0]
	t.headings = t.headings[:0]
	t.axisFlip = false
}

// PushMag records one raw magnetometer sample. Only the collecting phase
// consumes them.
func (t *Tracker) PushMag(s heading.MagSample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateCollecting {
		return
	}
	mx, my, mz := s.X, s.Y, s.Z
	if isBad(mx) || isBad(my) || isBad(mz) {
		return
	}
	magnitude := math.Sqrt(mx*mx + my*my + mz*mz)
	if magnitude == 0 {
		return
	}

	at := s.At
	if at.IsZero() {
		at = time.Now()
	}
	t.samples = append(t.samples, magRecord{magnitude: magnitude, at: at})
	t.trimSamples(at)

	key := [3]int{
		quantize(mx / magnitude),
		quantize(my / magnitude),
		quantize(mz / magnitude),
	}
	t.regions[key] = struct{}{}

	if t.progress() >= advanceProgress && len(t.regions) >= advanceRegions {
		t.state = StateAxisCheck
		t.headings = t.headings[:0]
	}
}

// PushEstimate records one pipeline output during the axis-check phase.
// Low-accuracy estimates are ignored; the collected samples gate timing
// only, the axis decision itself is fixed.
func (t *Tracker) PushEstimate(e heading.Estimate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateAxisCheck {
		return
	}
	if e.Accuracy < axisCheckMinAccuracy {
		return
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	t.headings = append(t.headings, headingRecord{at: at})
	cutoff := at.Add(-axisCheckWindow)
	i := 0
	for i < len(t.headings) && t.headings[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		t.headings = append(t.headings[:0], t.headings[i:]...)
	}
	if len(t.headings) >= axisCheckSamples {
		t.state = StateComplete
		// East/west always comes out mirrored under cross-product
		// fusion on this hardware, so the correction is unconditional.
		t.axisFlip = true
	}
}

// Snapshot returns the current session state and progress.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		SessionID: t.sessionID,
		State:     t.state.String(),
		Progress:  t.progress(),
		Regions:   len(t.regions),
		AxisFlip:  t.state == StateComplete && t.axisFlip,
	}
}

// State returns the tracker's current phase.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// AxisFlip reports the axis decision; valid only once complete.
func (t *Tracker) AxisFlip() (flip, valid bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.axisFlip, t.state == StateComplete
}

// progress must be called with t.mu held.
func (t *Tracker) progress() float64 {
	coverage := math.Min(100, 100*float64(len(t.regions))/regionTarget)

	bonus := 0.0
	if len(t.samples) >= bonusMinSamples {
		mags := make([]float64, len(t.samples))
		for i, r := range t.samples {
			mags[i] = r.magnitude
		}
		sd := stat.StdDev(mags, nil)
		if sd >= bonusMinStdDev && sd <= bonusMaxStdDev {
			bonus = bonusPoints
		}
	}
	return math.Min(100, coverage+0.5*bonus)
}

// trimSamples must be called with t.mu held.
func (t *Tracker) trimSamples(now time.Time) {
	cutoff := now.Add(-sampleWindow)
	i := 0
	for i < len(t.samples) && t.samples[i].at.Before(cutoff) {
		i++
	}
	if over := len(t.samples) - i - sampleCapacity; over > 0 {
		i += over
	}
	if i > 0 {
		t.samples = append(t.samples[:0], t.samples[i:]...)
	}
}

// quantize maps a unit-vector component into one of 3 coarse levels.
func quantize(c float64) int {
	q := int(math.Floor((c + 1) * 1.5))
	if q < 0 {
		q = 0
	}
	if q > 2 {
		q = 2
	}
	return q
}

func isBad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
