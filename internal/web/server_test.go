package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"compass-ng/internal/calibration"
	"compass-ng/internal/heading"
)

type fakeCalController struct {
	started int
	resets  int
	snap    calibration.Snapshot
}

func (c *fakeCalController) Start() string {
	c.started++
	return "session-1"
}

func (c *fakeCalController) Reset() { c.resets++ }

func (c *fakeCalController) Snapshot() calibration.Snapshot { return c.snap }

func TestAPIStatus(t *testing.T) {
	st := NewStatus()
	st.SetStatic("sim", "cross-product", "100ms")
	st.MarkSample(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	b := NewHeadingBroadcaster()

	ts := httptest.NewServer(Handler(st, b, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}

	var snap StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if snap.Service != "compassd" {
		t.Fatalf("service=%q", snap.Service)
	}
	if snap.Source != "sim" || snap.Fusion != "cross-product" || snap.Interval != "100ms" {
		t.Fatalf("static fields=%q %q %q", snap.Source, snap.Fusion, snap.Interval)
	}
	if snap.SamplesProcessed != 1 || snap.LastSampleUTC == "" {
		t.Fatalf("sample counters=%d %q", snap.SamplesProcessed, snap.LastSampleUTC)
	}
	if !snap.Available {
		t.Fatalf("expected available")
	}
}

func TestAPIStatus_Unavailable(t *testing.T) {
	b := NewHeadingBroadcaster()
	b.SetUnavailable("magnetometer not present")

	ts := httptest.NewServer(Handler(NewStatus(), b, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	var snap StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if snap.Available || snap.Unavailable != "magnetometer not present" {
		t.Fatalf("snap=%+v", snap)
	}
}

func TestAPIEstimate(t *testing.T) {
	b := NewHeadingBroadcaster()
	ts := httptest.NewServer(Handler(NewStatus(), b, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/estimate")
	if err != nil {
		t.Fatalf("get estimate: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status code=%d want 404 before any estimate", resp.StatusCode)
	}

	b.Publish(heading.Estimate{HeadingDeg: 90, Cardinal: "East", CardinalAbbr: "E", Accuracy: 95})

	resp, err = http.Get(ts.URL + "/api/estimate")
	if err != nil {
		t.Fatalf("get estimate: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	var est heading.Estimate
	if err := json.NewDecoder(resp.Body).Decode(&est); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if est.HeadingDeg != 90 || est.Cardinal != "East" || est.Accuracy != 95 {
		t.Fatalf("est=%+v", est)
	}
}

func TestAPICalibration(t *testing.T) {
	cal := &fakeCalController{snap: calibration.Snapshot{State: "collecting", Progress: 50, Regions: 9}}
	ts := httptest.NewServer(Handler(NewStatus(), NewHeadingBroadcaster(), cal))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/calibration")
	if err != nil {
		t.Fatalf("get calibration: %v", err)
	}
	defer resp.Body.Close()
	var snap calibration.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if snap.State != "collecting" || snap.Progress != 50 || snap.Regions != 9 {
		t.Fatalf("snap=%+v", snap)
	}
}

func TestAPICalibrationStart(t *testing.T) {
	cal := &fakeCalController{}
	ts := httptest.NewServer(Handler(NewStatus(), NewHeadingBroadcaster(), cal))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/calibration/start", "application/json", nil)
	if err != nil {
		t.Fatalf("post start: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if body["session_id"] != "session-1" || cal.started != 1 {
		t.Fatalf("body=%v started=%d", body, cal.started)
	}
}

func TestAPICalibrationReset(t *testing.T) {
	cal := &fakeCalController{}
	ts := httptest.NewServer(Handler(NewStatus(), NewHeadingBroadcaster(), cal))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/calibration/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("post reset: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || cal.resets != 1 {
		t.Fatalf("status code=%d resets=%d", resp.StatusCode, cal.resets)
	}
}

func TestAPICalibration_NilController(t *testing.T) {
	ts := httptest.NewServer(Handler(NewStatus(), NewHeadingBroadcaster(), nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/calibration")
	if err != nil {
		t.Fatalf("get calibration: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status code=%d want 404", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	cal := &fakeCalController{}
	ts := httptest.NewServer(Handler(NewStatus(), NewHeadingBroadcaster(), cal))
	defer ts.Close()

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/status"},
		{http.MethodPost, "/api/estimate"},
		{http.MethodGet, "/api/calibration/start"},
		{http.MethodGet, "/api/calibration/reset"},
	}
	for _, tc := range cases {
		req, err := http.NewRequest(tc.method, ts.URL+tc.path, nil)
		if err != nil {
			t.Fatalf("NewRequest: %v", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.method, tc.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: status code=%d want 405", tc.method, tc.path, resp.StatusCode)
		}
	}
	if cal.started != 0 || cal.resets != 0 {
		t.Fatalf("calibration controller should not have been invoked")
	}
}

func TestWS_StreamsEstimates(t *testing.T) {
	b := NewHeadingBroadcaster()
	b.Publish(heading.Estimate{HeadingDeg: 45, CardinalAbbr: "NE"})

	ts := httptest.NewServer(Handler(NewStatus(), b, nil))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Last value replays immediately on subscribe.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var est heading.Estimate
	if err := conn.ReadJSON(&est); err != nil {
		t.Fatalf("read first estimate: %v", err)
	}
	if est.HeadingDeg != 45 || est.CardinalAbbr != "NE" {
		t.Fatalf("est=%+v", est)
	}

	b.Publish(heading.Estimate{HeadingDeg: 135, CardinalAbbr: "SE"})
	if err := conn.ReadJSON(&est); err != nil {
		t.Fatalf("read second estimate: %v", err)
	}
	if est.HeadingDeg != 135 || est.CardinalAbbr != "SE" {
		t.Fatalf("est=%+v", est)
	}
}
