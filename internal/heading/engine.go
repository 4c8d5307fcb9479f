package heading

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultUpdateInterval is the minimum spacing between processed samples when
// a subscription does not specify one.
const DefaultUpdateInterval = 100 * time.Millisecond

// Options configures one subscription. The zero value is usable: 100 ms
// interval, cross-product fusion, no axis flip, real samples.
type Options struct {
	// UpdateInterval is the minimum spacing between processed mag samples,
	// judged by sample timestamp. Samples without timestamps are never
	// throttled. Must not be negative; zero means DefaultUpdateInterval.
	UpdateInterval time.Duration

	// Fusion selects the heading computation used when gravity is known.
	Fusion FusionMode

	// AxisFlipEW mirrors the east/west sense of the computed heading, for
	// mountings where the fusion convention comes out mirrored.
	AxisFlipEW bool

	// SimulatedHeadingDeg, when set, bypasses the entire pipeline and
	// emits a fixed, fully calibrated estimate per pushed sample. Used
	// when no physical magnetometer is present.
	SimulatedHeadingDeg *float64
}

func (o Options) validate() (Options, error) {
	if o.UpdateInterval < 0 {
		return o, fmt.Errorf("heading: update interval must be positive, got %s", o.UpdateInterval)
	}
	if o.UpdateInterval == 0 {
		o.UpdateInterval = DefaultUpdateInterval
	}
	if o.Fusion != FusionCrossProduct && o.Fusion != FusionTiltCompensated {
		return o, fmt.Errorf("heading: unknown fusion mode %d", o.Fusion)
	}
	if o.SimulatedHeadingDeg != nil {
		v := *o.SimulatedHeadingDeg
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return o, fmt.Errorf("heading: simulated heading must be finite")
		}
	}
	return o, nil
}

// engineState is the per-subscription pipeline state. It is owned by exactly
// one Subscription and never shared; two concurrent consumers each carry
// independent smoothing windows and accumulators.
type engineState struct {
	accel    accelConditioner
	smoother circularSmoother
	scorer   accuracyScorer
	rotation rotationAccumulator

	haveHeading bool
	lastHeading float64 // last limited, smoothed heading

	lastSampleAt time.Time
}

// Engine fans raw sensor samples out to any number of independent
// subscriptions and runs the full heading pipeline for each.
//
// All processing happens synchronously inside PushMag/PushAccel; the engine
// never sleeps or schedules timers. Cadence belongs to the sample source.
type Engine struct {
	mu     sync.Mutex
	subs   map[int]*Subscription
	nextID int

	unavailable       bool
	unavailableReason string
}

func NewEngine() *Engine {
	return &Engine{subs: make(map[int]*Subscription)}
}

// Subscribe attaches a consumer. emit receives one Estimate per processed
// sample. unavailable (optional) is invoked at most once, with a reason, if
// the sample source reports no magnetometer capability; no estimates follow.
//
// The returned Subscription must be closed by its owner; Close synchronously
// detaches the callbacks and discards the pipeline state.
func (e *Engine) Subscribe(opts Options, emit func(Estimate), unavailable func(reason string)) (*Subscription, error) {
	opts, err := opts.validate()
	if err != nil {
		return nil, err
	}
	if emit == nil {
		return nil, fmt.Errorf("heading: emit callback is required")
	}

	sub := &Subscription{
		engine:      e,
		opts:        opts,
		emit:        emit,
		unavailable: unavailable,
	}

	e.mu.Lock()
	sub.id = e.nextID
	e.nextID++
	e.subs[sub.id] = sub
	down := e.unavailable
	reason := e.unavailableReason
	e.mu.Unlock()

	if down {
		sub.notifyUnavailable(reason)
	}
	return sub, nil
}

// SetUnavailable marks the sample source as lacking a magnetometer. Every
// current and future subscription is told once; their estimate streams end.
func (e *Engine) SetUnavailable(reason string) {
	e.mu.Lock()
	e.unavailable = true
	e.unavailableReason = reason
	subs := e.snapshotSubs()
	e.mu.Unlock()

	for _, s := range subs {
		s.notifyUnavailable(reason)
	}
}

// PushAccel feeds one raw accelerometer sample to all subscriptions.
func (e *Engine) PushAccel(s AccelSample) {
	e.mu.Lock()
	down := e.unavailable
	subs := e.snapshotSubs()
	e.mu.Unlock()
	if down {
		return
	}
	for _, sub := range subs {
		sub.pushAccel(s)
	}
}

// PushMag feeds one raw magnetometer sample to all subscriptions, emitting
// at most one estimate per subscription.
func (e *Engine) PushMag(s MagSample) {
	e.mu.Lock()
	down := e.unavailable
	subs := e.snapshotSubs()
	e.mu.Unlock()
	if down {
		return
	}
	for _, sub := range subs {
		sub.pushMag(s)
	}
}

// snapshotSubs must be called with e.mu held.
func (e *Engine) snapshotSubs() []*Subscription {
	out := make([]*Subscription, 0, len(e.subs))
	for _, s := range e.subs {
		out = append(out, s)
	}
	return out
}

func (e *Engine) remove(id int) {
	e.mu.Lock()
	delete(e.subs, id)
	e.mu.Unlock()
}

// Subscription is one consumer's scoped attachment to the engine. It owns
// its pipeline state exclusively.
type Subscription struct {
	engine      *Engine
	id          int
	opts        Options
	emit        func(Estimate)
	unavailable func(string)

	mu          sync.Mutex
	closed      bool
	notified    bool
	state       engineState
	current     Estimate
	haveCurrent bool
}

// Close detaches the subscription. Safe to call more than once; after Close
// no further callbacks fire.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.engine.remove(s.id)
}

// Current returns the most recent estimate, if any has been emitted.
func (s *Subscription) Current() (Estimate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.haveCurrent
}

// Options returns the resolved configuration this subscription runs with.
func (s *Subscription) Options() Options {
	return s.opts
}

func (s *Subscription) notifyUnavailable(reason string) {
	s.mu.Lock()
	if s.closed || s.notified {
		s.mu.Unlock()
		return
	}
	s.notified = true
	fn := s.unavailable
	s.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
}

func (s *Subscription) pushAccel(sample AccelSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.notified || s.opts.SimulatedHeadingDeg != nil {
		return
	}
	s.state.accel.update(sample)
}

func (s *Subscription) pushMag(sample MagSample) {
	s.mu.Lock()
	if s.closed || s.notified {
		s.mu.Unlock()
		return
	}

	if s.opts.SimulatedHeadingDeg != nil {
		est := s.simulatedEstimate(sample.At)
		s.current = est
		s.haveCurrent = true
		emit := s.emit
		s.mu.Unlock()
		emit(est)
		return
	}

	// Source cadence can outrun this subscription's configured interval;
	// drop samples that arrive too close together.
	if !sample.At.IsZero() && !s.state.lastSampleAt.IsZero() &&
		sample.At.Sub(s.state.lastSampleAt) < s.opts.UpdateInterval {
		s.mu.Unlock()
		return
	}

	mag := vec3{sample.X, sample.Y, sample.Z}
	if !finite3(mag) || norm3(mag) == 0 {
		// Transient sample fault: keep the previous estimate valid.
		s.mu.Unlock()
		return
	}
	if !sample.At.IsZero() {
		s.state.lastSampleAt = sample.At
	}

	gravity, haveGravity := s.state.accel.current()
	raw, att, haveAtt := resolveHeading(mag, gravity, haveGravity, s.opts.Fusion, s.opts.AxisFlipEW)

	smoothed := s.state.smoother.push(raw)
	accuracy := s.state.scorer.update(norm3(mag), att.tiltDeg, haveAtt)

	limited := smoothed
	if s.state.haveHeading {
		limited = limitStep(s.state.lastHeading, smoothed, accuracy, haveAtt && att.level, att.tiltDeg, haveAtt)
	}
	s.state.haveHeading = true
	s.state.lastHeading = limited

	rotation := s.state.rotation.update(limited)

	name, abbr := cardinal(limited)
	est := Estimate{
		HeadingDeg:    int(math.Round(limited)) % 360,
		RawHeadingDeg: raw,
		Accuracy:      accuracy,
		Calibrated:    accuracy > calibratedThreshold,
		Cardinal:      name,
		CardinalAbbr:  abbr,
		RotationDeg:   rotation,
		MagX:          ptr(sample.X),
		MagY:          ptr(sample.Y),
		MagZ:          ptr(sample.Z),
		At:            sample.At,
	}
	if haveAtt {
		est.RollDeg = ptr(att.rollDeg)
		est.PitchDeg = ptr(att.pitchDeg)
		est.TiltDeg = ptr(att.tiltDeg)
		level := att.level
		est.Level = &level
	}

	s.current = est
	s.haveCurrent = true
	emit := s.emit
	s.mu.Unlock()
	emit(est)
}

// simulatedEstimate must be called with s.mu held.
func (s *Subscription) simulatedEstimate(at time.Time) Estimate {
	h := normalizeDeg(*s.opts.SimulatedHeadingDeg)
	rotation := s.state.rotation.update(h)
	name, abbr := cardinal(h)
	level := true
	return Estimate{
		HeadingDeg:    int(math.Round(h)) % 360,
		RawHeadingDeg: h,
		Accuracy:      100,
		Calibrated:    true,
		Cardinal:      name,
		CardinalAbbr:  abbr,
		RotationDeg:   rotation,
		Level:         &level,
		At:            at,
	}
}

func ptr[T any](v T) *T {
	return &v
}
