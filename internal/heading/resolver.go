package heading

import "math"

// FusionMode selects how the magnetometer and gravity vectors are combined
// into a heading when accelerometer data is available.
type FusionMode int

const (
	// FusionCrossProduct derives local east/north unit vectors via vector
	// cross products of the field and gravity. Default.
	FusionCrossProduct FusionMode = iota
	// FusionTiltCompensated rotates the field into the horizontal plane
	// using explicit roll/pitch trigonometry.
	FusionTiltCompensated
)

func (m FusionMode) String() string {
	switch m {
	case FusionCrossProduct:
		return "cross-product"
	case FusionTiltCompensated:
		return "tilt-compensated"
	default:
		return "unknown"
	}
}

// levelTiltDeg is the tilt below which the device counts as lying level.
const levelTiltDeg = 7.0

// attitude is the tilt estimate derived from the conditioned gravity vector.
type attitude struct {
	rollDeg  float64
	pitchDeg float64
	tiltDeg  float64
	level    bool
}

// resolveHeading computes a raw (unfiltered) heading in degrees from a
// magnetometer vector and, if available, a unit gravity vector.
//
// Without gravity the device is assumed flat: heading = 90 - atan2(y, x),
// which puts the sample's +Y axis at magnetic north. With gravity the
// configured fusion mode applies. The result is always in [0,360).
func resolveHeading(mag vec3, gravity vec3, haveGravity bool, fusion FusionMode, flipEW bool) (float64, attitude, bool) {
	var h float64
	var att attitude
	haveAtt := false

	if haveGravity {
		att = attitudeFromGravity(gravity)
		haveAtt = true
		switch fusion {
		case FusionTiltCompensated:
			h = tiltCompensatedHeading(mag, gravity)
		default:
			h = crossProductHeading(mag, gravity)
		}
	} else {
		h = flatHeading(mag)
	}

	h = normalizeDeg(h)
	if flipEW {
		h = normalizeDeg(360 - h)
	}
	return h, att, haveAtt
}

func flatHeading(mag vec3) float64 {
	return 90 - math.Atan2(mag[1], mag[0])*180/math.Pi
}

func crossProductHeading(mag vec3, gravity vec3) float64 {
	east, err := unit3(cross3(mag, gravity))
	if err != nil {
		// Field parallel to gravity; the horizontal component is
		// undefined, so fall back to the flat formula.
		return flatHeading(mag)
	}
	north := cross3(gravity, east)
	return 90 - math.Atan2(north[1], north[0])*180/math.Pi
}

func tiltCompensatedHeading(mag vec3, gravity vec3) float64 {
	roll := math.Atan2(gravity[1], gravity[2])
	pitch := math.Atan2(-gravity[0], math.Sqrt(gravity[1]*gravity[1]+gravity[2]*gravity[2]))

	sr, cr := math.Sin(roll), math.Cos(roll)
	sp, cp := math.Sin(pitch), math.Cos(pitch)

	xh := mag[0]*cp + mag[2]*sp
	yh := mag[0]*sr*sp + mag[1]*cr - mag[2]*sr*cp
	return 90 - math.Atan2(yh, xh)*180/math.Pi
}

func attitudeFromGravity(g vec3) attitude {
	roll := math.Atan2(g[1], g[2])
	pitch := math.Atan2(-g[0], math.Sqrt(g[1]*g[1]+g[2]*g[2]))

	// Tilt is the angle between gravity and the device Z axis, folded so
	// face-up and face-down both count as level.
	cz := math.Abs(g[2])
	n := norm3(g)
	if n > 0 {
		cz /= n
	}
	if cz > 1 {
		cz = 1
	}
	tilt := math.Acos(cz) * 180 / math.Pi

	return attitude{
		rollDeg:  roll * 180 / math.Pi,
		pitchDeg: pitch * 180 / math.Pi,
		tiltDeg:  tilt,
		level:    tilt < levelTiltDeg,
	}
}
