package heading

// rotationAccumulator converts the wrap-safe heading into a continuous,
// unbounded angle by summing shortest signed deltas. The first heading seeds
// the accumulator directly so animation starts at the true angle rather than
// sweeping up from zero.
type rotationAccumulator struct {
	have  bool
	last  float64
	total float64
}

func (r *rotationAccumulator) update(h float64) float64 {
	if !r.have {
		r.have = true
		r.last = h
		r.total = h
		return r.total
	}
	r.total += shortestDelta(r.last, h)
	r.last = h
	return r.total
}
