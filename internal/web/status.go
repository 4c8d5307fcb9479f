package web

import (
	"sync/atomic"
	"time"
)

// Status tracks daemon-level counters and static run parameters for the
// status API. All fields are safe for concurrent update from the pipeline.
type Status struct {
	startUnixNano    int64
	samplesProcessed uint64
	lastSampleNano   int64
	source           atomic.Value // string
	fusion           atomic.Value // string
	interval         atomic.Value // string
}

func NewStatus() *Status {
	s := &Status{}
	now := time.Now().UTC()
	atomic.StoreInt64(&s.startUnixNano, now.UnixNano())
	atomic.StoreInt64(&s.lastSampleNano, 0)
	s.source.Store("")
	s.fusion.Store("")
	s.interval.Store("")
	return s
}

func (s *Status) SetStatic(source, fusion, interval string) {
	if source != "" {
		s.source.Store(source)
	}
	if fusion != "" {
		s.fusion.Store(fusion)
	}
	if interval != "" {
		s.interval.Store(interval)
	}
}

func (s *Status) MarkSample(nowUTC time.Time) {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	atomic.StoreInt64(&s.lastSampleNano, nowUTC.UnixNano())
	atomic.AddUint64(&s.samplesProcessed, 1)
}

type StatusSnapshot struct {
	Service          string `json:"service"`
	NowUTC           string `json:"now_utc"`
	UptimeSec        int64  `json:"uptime_sec"`
	Source           string `json:"source"`
	Fusion           string `json:"fusion"`
	Interval         string `json:"interval"`
	SamplesProcessed uint64 `json:"samples_processed"`
	LastSampleUTC    string `json:"last_sample_utc,omitempty"`
	Available        bool   `json:"available"`
	Unavailable      string `json:"unavailable_reason,omitempty"`
}

func (s *Status) Snapshot(nowUTC time.Time, available bool, unavailableReason string) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()
	uptime := nowUTC.Sub(start)
	lastSample := atomic.LoadInt64(&s.lastSampleNano)

	snap := StatusSnapshot{
		Service:          "compassd",
		NowUTC:           nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:        int64(uptime.Seconds()),
		Source:           s.source.Load().(string),
		Fusion:           s.fusion.Load().(string),
		Interval:         s.interval.Load().(string),
		SamplesProcessed: atomic.LoadUint64(&s.samplesProcessed),
		Available:        available,
		Unavailable:      unavailableReason,
	}
	if lastSample != 0 {
		snap.LastSampleUTC = time.Unix(0, lastSample).UTC().Format(time.RFC3339Nano)
	}
	return snap
}
