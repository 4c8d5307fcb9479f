package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Source SourceConfig `yaml:"source"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	UDP    UDPConfig    `yaml:"udp"`
	Web    WebConfig    `yaml:"web"`
	Record RecordConfig `yaml:"record"`
}

type EngineConfig struct {
	UpdateInterval      time.Duration `yaml:"update_interval"`
	Fusion              string        `yaml:"fusion"`
	AxisFlipEW          bool          `yaml:"axis_flip_ew"`
	SimulatedHeadingDeg *float64      `yaml:"simulated_heading_deg"`
}

type SourceConfig struct {
	// Kind selects the sample source: "sim", "replay", or "mqtt".
	Kind string `yaml:"kind"`

	Sim    SimConfig    `yaml:"sim"`
	Replay ReplayConfig `yaml:"replay"`
}

type SimConfig struct {
	FieldMagnitudeUT float64       `yaml:"field_magnitude_ut"`
	RotationPeriod   time.Duration `yaml:"rotation_period"`
	TiltWobbleDeg    float64       `yaml:"tilt_wobble_deg"`
	NoiseUT          float64       `yaml:"noise_ut"`
}

type ReplayConfig struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
	Loop  bool    `yaml:"loop"`
}

type MQTTConfig struct {
	Broker       string `yaml:"broker"`
	ClientID     string `yaml:"client_id"`
	MagTopic     string `yaml:"mag_topic"`
	AccelTopic   string `yaml:"accel_topic"`
	HeadingTopic string `yaml:"heading_topic"`
	Publish      bool   `yaml:"publish"`
}

type UDPConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return Validate(cfg)
}

// Validate applies defaults and rejects contradictory settings. Bad explicit
// values error out rather than getting silently clamped.
func Validate(cfg Config) (Config, error) {
	if cfg.Engine.UpdateInterval < 0 {
		return Config{}, fmt.Errorf("engine.update_interval must be positive")
	}
	if cfg.Engine.UpdateInterval == 0 {
		cfg.Engine.UpdateInterval = 100 * time.Millisecond
	}
	switch cfg.Engine.Fusion {
	case "":
		cfg.Engine.Fusion = "cross-product"
	case "cross-product", "tilt-compensated":
	default:
		return Config{}, fmt.Errorf("engine.fusion must be cross-product or tilt-compensated, got %q", cfg.Engine.Fusion)
	}

	switch cfg.Source.Kind {
	case "":
		cfg.Source.Kind = "sim"
	case "sim", "replay", "mqtt":
	default:
		return Config{}, fmt.Errorf("source.kind must be sim, replay, or mqtt, got %q", cfg.Source.Kind)
	}

	if cfg.Source.Kind == "replay" {
		if cfg.Source.Replay.Path == "" {
			return Config{}, fmt.Errorf("source.replay.path is required when source.kind is replay")
		}
		if cfg.Source.Replay.Speed == 0 {
			cfg.Source.Replay.Speed = 1
		}
		if cfg.Source.Replay.Speed < 0 {
			return Config{}, fmt.Errorf("source.replay.speed must be > 0")
		}
	}

	if cfg.Record.Enable {
		if cfg.Record.Path == "" {
			return Config{}, fmt.Errorf("record.path is required when record.enable is true")
		}
		if cfg.Source.Kind == "replay" {
			return Config{}, fmt.Errorf("record cannot be enabled while replaying")
		}
	}

	if cfg.Source.Kind == "mqtt" || cfg.MQTT.Publish {
		if cfg.MQTT.Broker == "" {
			return Config{}, fmt.Errorf("mqtt.broker is required")
		}
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "compassd"
	}
	if cfg.MQTT.MagTopic == "" {
		cfg.MQTT.MagTopic = "compass/mag"
	}
	if cfg.MQTT.AccelTopic == "" {
		cfg.MQTT.AccelTopic = "compass/accel"
	}
	if cfg.MQTT.HeadingTopic == "" {
		cfg.MQTT.HeadingTopic = "compass/heading"
	}

	if cfg.UDP.Enable && cfg.UDP.Dest == "" {
		return Config{}, fmt.Errorf("udp.dest is required when udp.enable is true")
	}

	if cfg.Web.Enable && cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	// Sim defaults (safe even when another source is selected).
	if cfg.Source.Sim.FieldMagnitudeUT <= 0 {
		cfg.Source.Sim.FieldMagnitudeUT = 45
	}
	if cfg.Source.Sim.RotationPeriod <= 0 {
		cfg.Source.Sim.RotationPeriod = 30 * time.Second
	}

	return cfg, nil
}
