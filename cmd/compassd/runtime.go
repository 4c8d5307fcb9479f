package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"compass-ng/internal/calibration"
	"compass-ng/internal/config"
	"compass-ng/internal/heading"
	"compass-ng/internal/mqtt"
	"compass-ng/internal/replay"
	"compass-ng/internal/sim"
	"compass-ng/internal/udp"
	"compass-ng/internal/web"
)

// pipeline owns the wiring between the sample source, the engine, the
// calibration tracker, and the output sinks.
type pipeline struct {
	cfg config.Config

	engine      *heading.Engine
	tracker     *calibration.Tracker
	broadcaster *web.HeadingBroadcaster
	status      *web.Status

	sub *heading.Subscription

	udp       *udp.Broadcaster
	publisher mqtt.Publisher
	recorder  *replay.Writer
}

func engineOptions(cfg config.EngineConfig) (heading.Options, error) {
	opts := heading.Options{
		UpdateInterval:      cfg.UpdateInterval,
		AxisFlipEW:          cfg.AxisFlipEW,
		SimulatedHeadingDeg: cfg.SimulatedHeadingDeg,
	}
	switch cfg.Fusion {
	case "", "cross-product":
		opts.Fusion = heading.FusionCrossProduct
	case "tilt-compensated":
		opts.Fusion = heading.FusionTiltCompensated
	default:
		return heading.Options{}, fmt.Errorf("unknown fusion mode %q", cfg.Fusion)
	}
	return opts, nil
}

func newPipeline(cfg config.Config) (*pipeline, error) {
	p := &pipeline{
		cfg:         cfg,
		engine:      heading.NewEngine(),
		tracker:     calibration.NewTracker(),
		broadcaster: web.NewHeadingBroadcaster(),
		status:      web.NewStatus(),
	}

	opts, err := engineOptions(cfg.Engine)
	if err != nil {
		return nil, err
	}

	if cfg.UDP.Enable {
		b, err := udp.NewBroadcaster(cfg.UDP.Dest)
		if err != nil {
			return nil, fmt.Errorf("udp broadcaster: %w", err)
		}
		p.udp = b
	}

	if cfg.Record.Enable {
		w, err := replay.CreateWriter(cfg.Record.Path)
		if err != nil {
			return nil, fmt.Errorf("record writer: %w", err)
		}
		p.recorder = w
	}

	sub, err := p.engine.Subscribe(opts, p.onEstimate, p.onUnavailable)
	if err != nil {
		return nil, err
	}
	p.sub = sub

	// Report the options as the subscription resolved them, defaults included.
	resolved := sub.Options()
	p.status.SetStatic(cfg.Source.Kind, resolved.Fusion.String(), resolved.UpdateInterval.String())
	return p, nil
}

func (p *pipeline) onEstimate(est heading.Estimate) {
	p.status.MarkSample(est.At)
	p.broadcaster.Publish(est)
	p.tracker.PushEstimate(est)
	if p.udp != nil {
		if err := p.udp.SendEstimate(est); err != nil {
			log.Printf("udp send: %v", err)
		}
	}
	if p.publisher != nil {
		if err := p.publisher.PublishEstimate(est); err != nil {
			log.Printf("mqtt publish: %v", err)
		}
	}
}

func (p *pipeline) onUnavailable(reason string) {
	log.Printf("magnetometer unavailable: %s", reason)
	p.broadcaster.SetUnavailable(reason)
}

func (p *pipeline) pushMag(s heading.MagSample) {
	p.engine.PushMag(s)
	p.tracker.PushMag(s)
	if p.recorder != nil {
		if err := p.recorder.WriteSample(time.Now(), [3]float64{s.X, s.Y, s.Z}, nil); err != nil {
			log.Printf("record: %v", err)
		}
	}
}

func (p *pipeline) pushAccel(s heading.AccelSample) {
	p.engine.PushAccel(s)
}

func (p *pipeline) pushPair(mag heading.MagSample, accel heading.AccelSample) {
	p.engine.PushAccel(accel)
	p.engine.PushMag(mag)
	p.tracker.PushMag(mag)
	if p.recorder != nil {
		a := [3]float64{accel.X, accel.Y, accel.Z}
		if err := p.recorder.WriteSample(time.Now(), [3]float64{mag.X, mag.Y, mag.Z}, &a); err != nil {
			log.Printf("record: %v", err)
		}
	}
}

func (p *pipeline) close() {
	p.sub.Close()
	if p.udp != nil {
		_ = p.udp.Close()
	}
	if p.publisher != nil {
		_ = p.publisher.Close()
	}
	if p.recorder != nil {
		if err := p.recorder.Close(); err != nil {
			log.Printf("record close: %v", err)
		}
	}
}

// runSource blocks feeding the pipeline until ctx ends or the source fails.
func (p *pipeline) runSource(ctx context.Context) error {
	switch p.cfg.Source.Kind {
	case "sim":
		s := sim.FieldSim{
			MagnitudeUT:   p.cfg.Source.Sim.FieldMagnitudeUT,
			Period:        p.cfg.Source.Sim.RotationPeriod,
			TiltWobbleDeg: p.cfg.Source.Sim.TiltWobbleDeg,
			NoiseUT:       p.cfg.Source.Sim.NoiseUT,
		}
		return s.Run(ctx, p.cfg.Engine.UpdateInterval, p.pushPair)

	case "replay":
		return p.runReplay(ctx)

	case "mqtt":
		client, err := mqtt.Dial(p.cfg.MQTT.Broker, p.cfg.MQTT.ClientID, p.cfg.MQTT.HeadingTopic)
		if err != nil {
			return err
		}
		if p.cfg.MQTT.Publish {
			p.publisher = client
		}
		err = client.SubscribeSamples(p.cfg.MQTT.MagTopic, p.cfg.MQTT.AccelTopic, p.pushMag, p.pushAccel)
		if err != nil {
			_ = client.Close()
			return err
		}
		<-ctx.Done()
		if p.publisher == nil {
			_ = client.Close()
		}
		return ctx.Err()

	default:
		return fmt.Errorf("unknown source kind %q", p.cfg.Source.Kind)
	}
}

func (p *pipeline) runReplay(ctx context.Context) error {
	records, err := readReplayLog(p.cfg.Source.Replay.Path)
	if err != nil {
		return err
	}

	// Sample timestamps are synthesized from the recorded offsets. When the
	// log loops (or a mid-log START resets the offsets), the base advances
	// past the previous pass so timestamps stay strictly increasing and the
	// engine's interval throttle keeps admitting samples.
	base := time.Now().UTC()
	var prevAt time.Duration
	havePrev := false
	return replay.Play(records, p.cfg.Source.Replay.Speed, p.cfg.Source.Replay.Loop, ctxSleeper{ctx}, func(r replay.Record) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if havePrev && r.At <= prevAt {
			base = base.Add(prevAt + p.cfg.Engine.UpdateInterval)
		}
		havePrev = true
		prevAt = r.At
		at := base.Add(r.At)
		mag := heading.MagSample{X: r.Mag[0], Y: r.Mag[1], Z: r.Mag[2], At: at}
		if r.HasAccel {
			accel := heading.AccelSample{X: r.Accel[0], Y: r.Accel[1], Z: r.Accel[2], At: at}
			p.pushAccel(accel)
		}
		p.pushMag(mag)
		return nil
	})
}

// ctxSleeper aborts waits early when the context ends; the replay callback
// then surfaces ctx.Err.
type ctxSleeper struct {
	ctx context.Context
}

func (s ctxSleeper) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
	case <-t.C:
	}
}

func readReplayLog(path string) ([]replay.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return replay.NewReader(f).ReadAll()
}
