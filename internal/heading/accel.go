package heading

// accelSmoothingAlpha is the EMA weight applied to incoming accelerometer
// samples before normalization. Heavier smoothing here would lag tilt
// compensation visibly during quick device movements.
const accelSmoothingAlpha = 0.15

// accelConditioner low-pass-filters raw accelerometer vectors and keeps a
// unit-length gravity estimate. The filter state is seeded from the first
// sample so there is no warm-up transient.
type accelConditioner struct {
	have     bool
	filtered vec3
	gravity  vec3
}

func (c *accelConditioner) update(s AccelSample) {
	in := vec3{s.X, s.Y, s.Z}
	if !finite3(in) {
		return
	}
	if !c.have {
		c.filtered = in
		c.have = true
	} else {
		for i := range in {
			c.filtered[i] = accelSmoothingAlpha*in[i] + (1-accelSmoothingAlpha)*c.filtered[i]
		}
	}
	n := norm3(c.filtered)
	if n == 0 {
		n = 1
	}
	c.gravity = vec3{c.filtered[0] / n, c.filtered[1] / n, c.filtered[2] / n}
}

// current returns the unit gravity estimate, and whether any sample has been
// conditioned yet.
func (c *accelConditioner) current() (vec3, bool) {
	return c.gravity, c.have
}
