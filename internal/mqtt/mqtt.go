// Package mqtt bridges the heading engine to an MQTT broker: raw sensor
// samples arrive on sample topics, heading estimates go out on an estimate
// topic. The broker interface is abstracted for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"compass-ng/internal/heading"
)

// SamplePayload is the JSON schema for raw sensor samples on the mag and
// accel topics. Components are µT for the magnetometer and normalized
// gravity units for the accelerometer. Time is RFC3339.
type SamplePayload struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	Time string  `json:"time,omitempty"`
}

// Publisher publishes heading estimates to the broker.
type Publisher interface {
	// PublishEstimate sends one estimate. Failures must not crash the
	// pipeline; the caller logs and moves on.
	PublishEstimate(est heading.Estimate) error

	// Close disconnects from the broker.
	Close() error
}

// DecodeMag parses a magnetometer sample payload.
func DecodeMag(payload []byte) (heading.MagSample, error) {
	p, at, err := decodeSample(payload)
	if err != nil {
		return heading.MagSample{}, fmt.Errorf("mag payload: %w", err)
	}
	return heading.MagSample{X: p.X, Y: p.Y, Z: p.Z, At: at}, nil
}

// DecodeAccel parses an accelerometer sample payload.
func DecodeAccel(payload []byte) (heading.AccelSample, error) {
	p, at, err := decodeSample(payload)
	if err != nil {
		return heading.AccelSample{}, fmt.Errorf("accel payload: %w", err)
	}
	return heading.AccelSample{X: p.X, Y: p.Y, Z: p.Z, At: at}, nil
}

func decodeSample(payload []byte) (SamplePayload, time.Time, error) {
	var p SamplePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return SamplePayload{}, time.Time{}, err
	}
	var at time.Time
	if p.Time != "" {
		t, err := time.Parse(time.RFC3339Nano, p.Time)
		if err != nil {
			return SamplePayload{}, time.Time{}, fmt.Errorf("bad time %q: %w", p.Time, err)
		}
		at = t
	}
	return p, at, nil
}

// FormatEstimate creates the JSON payload for one heading estimate.
func FormatEstimate(est heading.Estimate) ([]byte, error) {
	return json.Marshal(est)
}
