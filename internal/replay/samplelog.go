package replay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Log format: line-oriented text.
//
// - Blank lines ignored.
// - Lines starting with '#' ignored.
// - Line "START" resets the origin (next record time is relative to 0 again).
// - Data lines are: <t_ns>,<mx>,<my>,<mz>[,<ax>,<ay>,<az>]
//   where t_ns is nanoseconds since START (monotonic), mag components are in
//   µT, and the optional accel components are in normalized gravity units.
//
// This is intentionally simple and stable for deterministic pipeline
// regression tests.

type Record struct {
	At    time.Duration
	Start bool

	Mag [3]float64

	HasAccel bool
	Accel    [3]float64
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)

	recs := make([]Record, 0, 1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{Start: true})
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) != 4 && len(fields) != 7 {
			return nil, fmt.Errorf("invalid replay line (want 4 or 7 fields): %q", line)
		}

		tsNs, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid replay timestamp %q: %w", fields[0], err)
		}
		if tsNs < 0 {
			return nil, fmt.Errorf("invalid replay timestamp (negative): %d", tsNs)
		}

		rec := Record{At: time.Duration(tsNs) * time.Nanosecond}
		vals := make([]float64, 0, 6)
		for _, f := range fields[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid replay component %q: %w", f, err)
			}
			vals = append(vals, v)
		}
		copy(rec.Mag[:], vals[:3])
		if len(vals) == 6 {
			rec.HasAccel = true
			copy(rec.Accel[:], vals[3:])
		}
		recs = append(recs, rec)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	return recs, nil
}

type Writer struct {
	f      *os.File
	w      *bufio.Writer
	start  time.Time
	closed bool
}

func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: time.Now()}, nil
}

// WriteSample appends one mag sample, optionally paired with accel.
func (ww *Writer) WriteSample(now time.Time, mag [3]float64, accel *[3]float64) error {
	if ww.closed {
		return errors.New("replay writer is closed")
	}

	// Use monotonic component of time when available.
	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	if accel != nil {
		_, err := fmt.Fprintf(ww.w, "%d,%g,%g,%g,%g,%g,%g\n",
			d.Nanoseconds(), mag[0], mag[1], mag[2], accel[0], accel[1], accel[2])
		return err
	}
	_, err := fmt.Fprintf(ww.w, "%d,%g,%g,%g\n", d.Nanoseconds(), mag[0], mag[1], mag[2])
	return err
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}

type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Play replays records with their relative timing.
//
// The callback is invoked for each data record; START markers are honored by
// resetting the origin.
//
// speedMultiplier: 1.0 = real time, 2.0 = 2x speed (half waits).
func Play(records []Record, speedMultiplier float64, loop bool, sleeper Sleeper, cb func(Record) error) error {
	if speedMultiplier <= 0 {
		return fmt.Errorf("speedMultiplier must be > 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if cb == nil {
		return errors.New("callback is nil")
	}
	if len(records) == 0 {
		return errors.New("no records")
	}

	for {
		var origin time.Duration
		var lastAt time.Duration
		var haveLast bool

		for _, r := range records {
			if r.Start {
				origin = r.At
				lastAt = 0
				haveLast = false
				continue
			}

			at := r.At - origin
			if at < 0 {
				at = 0
			}
			if haveLast {
				wait := at - lastAt
				if wait < 0 {
					wait = 0
				}
				sleeper.Sleep(time.Duration(float64(wait) / speedMultiplier))
			}
			lastAt = at
			haveLast = true

			if err := cb(r); err != nil {
				return err
			}
		}

		if !loop {
			return nil
		}
	}
}
