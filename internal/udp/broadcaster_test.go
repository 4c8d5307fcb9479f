package udp

import (
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"compass-ng/internal/heading"
)

type fakeConn struct {
	writes   [][]byte
	writeErr error
	closed   bool
}

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	c.writes = append(c.writes, buf)
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func newTestBroadcaster(t *testing.T, conn udpConn) *Broadcaster {
	t.Helper()
	b, err := newBroadcaster("127.0.0.1:4242",
		func(network, address string) (*net.UDPAddr, error) {
			return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4242}, nil
		},
		func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
			return conn, nil
		})
	if err != nil {
		t.Fatalf("newBroadcaster() error: %v", err)
	}
	return b
}

func TestSendEstimate_EncodesOneDatagram(t *testing.T) {
	conn := &fakeConn{}
	b := newTestBroadcaster(t, conn)

	est := heading.Estimate{
		HeadingDeg:   90,
		Accuracy:     95,
		Cardinal:     "East",
		CardinalAbbr: "E",
		RotationDeg:  450,
		Calibrated:   true,
		At:           time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := b.SendEstimate(est); err != nil {
		t.Fatalf("SendEstimate() error: %v", err)
	}
	if len(conn.writes) != 1 {
		t.Fatalf("writes=%d want 1", len(conn.writes))
	}

	var got heading.Estimate
	if err := json.Unmarshal(conn.writes[0], &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got.HeadingDeg != 90 || got.Accuracy != 95 || got.Cardinal != "East" || !got.Calibrated {
		t.Fatalf("got=%+v", got)
	}
}

func TestSend_SkipsEmptyPayload(t *testing.T) {
	conn := &fakeConn{}
	b := newTestBroadcaster(t, conn)
	if err := b.Send(nil); err != nil {
		t.Fatalf("Send(nil) error: %v", err)
	}
	if len(conn.writes) != 0 {
		t.Fatalf("writes=%d want 0", len(conn.writes))
	}
}

func TestSend_PropagatesWriteError(t *testing.T) {
	conn := &fakeConn{writeErr: errors.New("network unreachable")}
	b := newTestBroadcaster(t, conn)
	if err := b.Send([]byte("x")); err == nil {
		t.Fatalf("expected write error")
	}
}

func TestNewBroadcaster_ResolveError(t *testing.T) {
	_, err := newBroadcaster("bad dest",
		func(network, address string) (*net.UDPAddr, error) {
			return nil, errors.New("no such host")
		},
		func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
			t.Fatalf("dial should not be reached")
			return nil, nil
		})
	if err == nil {
		t.Fatalf("expected resolve error")
	}
}

func TestClose(t *testing.T) {
	conn := &fakeConn{}
	b := newTestBroadcaster(t, conn)
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if !conn.closed {
		t.Fatalf("expected underlying conn closed")
	}
	var nilConn Broadcaster
	if err := nilConn.Close(); err != nil {
		t.Fatalf("Close() on zero value error: %v", err)
	}
}
