package heading

// cardinal maps a heading to one of the eight compass point names.
//
// Convention for sector edges: a boundary heading belongs to the sector
// nearer north, so exactly 22.5° and exactly 337.5° are both "North",
// 67.5° is "Northeast", and South is the open interval (157.5°, 202.5°).
// This affects only the label, never the numeric heading.
func cardinal(h float64) (name, abbr string) {
	h = normalizeDeg(h)
	switch {
	case h <= 22.5 || h >= 337.5:
		return "North", "N"
	case h <= 67.5:
		return "Northeast", "NE"
	case h <= 112.5:
		return "East", "E"
	case h <= 157.5:
		return "Southeast", "SE"
	case h < 202.5:
		return "South", "S"
	case h < 247.5:
		return "Southwest", "SW"
	case h < 292.5:
		return "West", "W"
	default:
		return "Northwest", "NW"
	}
}
