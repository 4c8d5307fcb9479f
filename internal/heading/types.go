package heading

import "time"

// MagSample is one raw magnetometer reading in µT.
type MagSample struct {
	X  float64   `json:"x"`
	Y  float64   `json:"y"`
	Z  float64   `json:"z"`
	At time.Time `json:"at,omitempty"`
}

// AccelSample is one raw accelerometer reading in normalized gravity units.
// Only the direction matters for tilt estimation, not the physical scale.
type AccelSample struct {
	X  float64   `json:"x"`
	Y  float64   `json:"y"`
	Z  float64   `json:"z"`
	At time.Time `json:"at,omitempty"`
}

// Estimate is the externally visible output of the engine, one per processed
// sample. It is a plain value; consumers may retain it freely.
//
// Degrees are clockwise from magnetic north. RotationDeg is continuous and
// unbounded so an animated needle never takes the long way around.
type Estimate struct {
	HeadingDeg    int     `json:"heading_deg"`
	RawHeadingDeg float64 `json:"raw_heading_deg"`
	Accuracy      int     `json:"accuracy"`
	Calibrated    bool    `json:"calibrated"`
	Cardinal      string  `json:"cardinal"`
	CardinalAbbr  string  `json:"cardinal_abbr"`
	RotationDeg   float64 `json:"rotation_deg"`

	RollDeg  *float64 `json:"roll_deg,omitempty"`
	PitchDeg *float64 `json:"pitch_deg,omitempty"`
	TiltDeg  *float64 `json:"tilt_deg,omitempty"`
	Level    *bool    `json:"level,omitempty"`

	MagX *float64 `json:"mag_x,omitempty"`
	MagY *float64 `json:"mag_y,omitempty"`
	MagZ *float64 `json:"mag_z,omitempty"`

	At time.Time `json:"at,omitempty"`
}
