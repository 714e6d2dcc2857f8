package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/furrow-data/fieldline/internal/agent"
	"github.com/furrow-data/fieldline/internal/boundary"
	"github.com/furrow-data/fieldline/internal/coverage"
	"github.com/furrow-data/fieldline/internal/field"
	"github.com/furrow-data/fieldline/internal/geo"
	"github.com/furrow-data/fieldline/internal/guidance"
	"github.com/furrow-data/fieldline/internal/testutil"
	"github.com/furrow-data/fieldline/internal/timeutil"
)

type nullSink struct{}

func (nullSink) Steer(guidance.Output) {}

// newTestAgent builds an engaged agent on a 100x100 m field with one AB
// track and processes one pose so the status snapshot is populated.
func newTestAgent(t *testing.T) *agent.Agent {
	t.Helper()

	f := field.New("north 40", coverage.DefaultConfig())
	tr, err := guidance.NewABTrack("ab 1", geo.Point{E: 0, N: 0}, geo.Point{E: 0, N: 100})
	if err != nil {
		t.Fatalf("NewABTrack failed: %v", err)
	}
	f.AddTrack(tr)

	outer := boundary.Ring{
		{E: 0, N: 0}, {E: 100, N: 0}, {E: 100, N: 100}, {E: 0, N: 100},
	}
	b, err := boundary.NewBoundary(outer)
	if err != nil {
		t.Fatalf("NewBoundary failed: %v", err)
	}
	f.Boundary = b

	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	a := agent.New(agent.DefaultConfig(), f, nil, nullSink{}, nil, clock)
	if err := a.SetTrack("ab 1"); err != nil {
		t.Fatalf("SetTrack failed: %v", err)
	}
	if err := a.Engage(true); err != nil {
		t.Fatalf("Engage failed: %v", err)
	}

	a.Tick(agent.PoseSample{
		Time:     time.Unix(1700000000, 0),
		Easting:  1,
		Northing: 10,
		Heading:  0,
		Speed:    2,
		Roll:     guidance.RollInvalid,
	})
	return a
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(newTestAgent(t), nil, "kmph", "ha", "UTC")
	ts := httptest.NewServer(LoggingMiddleware(s.ServeMux()))
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response from %s: %v", url, err)
		}
	}
	return resp
}

func TestShowStatus(t *testing.T) {
	_, ts := newTestServer(t)

	var got statusAPI
	resp := getJSON(t, ts.URL+"/status", &got)
	testutil.RequireStatus(t, resp, http.StatusOK)

	if !got.Engaged {
		t.Error("Expected engaged status")
	}
	if got.Track != "ab 1" {
		t.Errorf("Expected track 'ab 1', got %q", got.Track)
	}
	if got.SpeedUnits != "kmph" {
		t.Errorf("Expected kmph speed units, got %q", got.SpeedUnits)
	}
	// 2 m/s displays as 7.2 km/h
	if math.Abs(got.Speed-7.2) > 1e-9 {
		t.Errorf("Expected speed 7.2, got %v", got.Speed)
	}
	if got.Easting != 1 || got.Northing != 10 {
		t.Errorf("Unexpected position: %v, %v", got.Easting, got.Northing)
	}
	if !got.GuidanceOn {
		t.Error("Expected active guidance")
	}
	if math.Abs(got.CrossTrackM-1) > 1e-9 {
		t.Errorf("Expected cross track 1m, got %v", got.CrossTrackM)
	}
	if len(got.SectionsOn) != 4 {
		t.Errorf("Expected 4 sections, got %d", len(got.SectionsOn))
	}
}

func TestShowStatusMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/status", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /status failed: %v", err)
	}
	defer resp.Body.Close()
	testutil.AssertStatus(t, resp, http.StatusMethodNotAllowed)
}

func postCommand(t *testing.T, ts *httptest.Server, command string) *http.Response {
	t.Helper()
	resp, err := http.PostForm(ts.URL+"/command", url.Values{"command": {command}})
	if err != nil {
		t.Fatalf("POST /command failed: %v", err)
	}
	resp.Body.Close()
	return resp
}

func TestSendCommand(t *testing.T) {
	s, ts := newTestServer(t)

	if resp := postCommand(t, ts, "disengage"); resp.StatusCode != http.StatusOK {
		t.Errorf("disengage: expected 200, got %d", resp.StatusCode)
	}
	if s.agent.Engaged() {
		t.Error("Expected agent disengaged after command")
	}

	if resp := postCommand(t, ts, "engage"); resp.StatusCode != http.StatusOK {
		t.Errorf("engage: expected 200, got %d", resp.StatusCode)
	}
	if !s.agent.Engaged() {
		t.Error("Expected agent engaged after command")
	}

	if resp := postCommand(t, ts, "track:missing"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad track: expected 400, got %d", resp.StatusCode)
	}
	if resp := postCommand(t, ts, "launch"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown command: expected 400, got %d", resp.StatusCode)
	}

	if resp := postCommand(t, ts, "clear_track"); resp.StatusCode != http.StatusOK {
		t.Errorf("clear_track: expected 200, got %d", resp.StatusCode)
	}
	if s.agent.Engaged() {
		t.Error("Expected agent disengaged after clearing track")
	}

	// GET is not allowed
	resp, err := http.Get(ts.URL + "/command")
	if err != nil {
		t.Fatalf("GET /command failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET: expected 405, got %d", resp.StatusCode)
	}
}

func TestShowConfig(t *testing.T) {
	_, ts := newTestServer(t)

	var got map[string]string
	resp := getJSON(t, ts.URL+"/config", &got)
	testutil.RequireStatus(t, resp, http.StatusOK)
	if got["speed_units"] != "kmph" || got["area_units"] != "ha" || got["timezone"] != "UTC" {
		t.Errorf("Unexpected config: %v", got)
	}
	if got["version"] == "" {
		t.Error("Expected a version in config")
	}
}

func TestNewServerDefaultUnits(t *testing.T) {
	s := NewServer(newTestAgent(t), nil, "", "", "")
	if s.speedUnits != "mps" {
		t.Errorf("Expected mps default, got %q", s.speedUnits)
	}
	if s.areaUnits != "m2" {
		t.Errorf("Expected m2 default, got %q", s.areaUnits)
	}
}

func TestStatusCodeColor(t *testing.T) {
	if got := statusCodeColor(200); !strings.Contains(got, "200") {
		t.Errorf("Expected 200 in colored status, got %q", got)
	}
	if got := statusCodeColor(404); !strings.Contains(got, colorBoldRed) {
		t.Errorf("Expected red for 404, got %q", got)
	}
	if got := statusCodeColor(302); !strings.Contains(got, colorYellow) {
		t.Errorf("Expected yellow for 302, got %q", got)
	}
	if got := statusCodeColor(100); got != "100" {
		t.Errorf("Expected plain 100, got %q", got)
	}
}
