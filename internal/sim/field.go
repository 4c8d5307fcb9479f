package sim

import (
	"context"
	"math"
	"time"

	"compass-ng/internal/heading"
)

// FieldSim generates a synthetic magnetic field that rotates through a full
// 360° sweep once per Period, as seen by a device lying flat. Everything is
// deterministic from the sample time, so runs reproduce exactly.
type FieldSim struct {
	// MagnitudeUT is the horizontal field strength in µT.
	MagnitudeUT float64
	// Period is the duration of one full heading sweep.
	Period time.Duration
	// TiltWobbleDeg slowly rocks the gravity vector around the X axis to
	// exercise tilt compensation. Zero keeps the device level.
	TiltWobbleDeg float64
	// NoiseUT adds a small deterministic high-frequency ripple to the
	// field components.
	NoiseUT float64
}

// HeadingAt returns the heading in degrees the simulated device reports at
// the given time.
func (s FieldSim) HeadingAt(now time.Time) float64 {
	period := s.Period
	if period <= 0 {
		period = 30 * time.Second
	}
	phase := float64(now.UnixNano()%period.Nanoseconds()) / float64(period.Nanoseconds())
	return math.Mod(phase*360, 360)
}

// Sample returns one paired magnetometer/accelerometer reading.
func (s FieldSim) Sample(now time.Time) (heading.MagSample, heading.AccelSample) {
	magnitude := s.MagnitudeUT
	if magnitude <= 0 {
		magnitude = 45
	}

	h := s.HeadingAt(now)

	// Invert the flat-device formula heading = 90 - atan2(y, x): a field
	// at angle (90 - h) in the XY plane resolves back to heading h.
	theta := (90 - h) * math.Pi / 180
	mx := magnitude * math.Cos(theta)
	my := magnitude * math.Sin(theta)
	mz := 0.0

	if s.NoiseUT > 0 {
		// Deterministic ripple well above the sweep frequency.
		t := float64(now.UnixNano()) / float64(time.Second)
		mx += s.NoiseUT * math.Sin(t*37)
		my += s.NoiseUT * math.Cos(t*41)
		mz += s.NoiseUT * math.Sin(t*43)
	}

	ax, ay, az := 0.0, 0.0, 1.0
	if s.TiltWobbleDeg > 0 {
		t := float64(now.UnixNano()) / float64(time.Second)
		tilt := s.TiltWobbleDeg * math.Sin(t*0.5) * math.Pi / 180
		ay = math.Sin(tilt)
		az = math.Cos(tilt)
	}

	mag := heading.MagSample{X: mx, Y: my, Z: mz, At: now}
	accel := heading.AccelSample{X: ax, Y: ay, Z: az, At: now}
	return mag, accel
}

// Run pushes paired samples at the given interval until the context ends.
func (s FieldSim) Run(ctx context.Context, interval time.Duration, push func(heading.MagSample, heading.AccelSample)) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-tick.C:
			mag, accel := s.Sample(now.UTC())
			push(mag, accel)
		}
	}
}
