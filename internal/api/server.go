// Package api serves the guidance HTTP API: live status, field geometry,
// coverage, recorded sessions, and operator commands.
package api

import (
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/furrow-data/fieldline/internal/agent"
	"github.com/furrow-data/fieldline/internal/db"
	"github.com/furrow-data/fieldline/internal/httputil"
	"github.com/furrow-data/fieldline/internal/units"
	"github.com/furrow-data/fieldline/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	agent      *agent.Agent
	db         *db.DB
	speedUnits string
	areaUnits  string
	timezone   string
}

// NewServer builds the API over a running agent. database may be nil when
// session recording is disabled; the session endpoints then return 503.
// Units and timezone are display settings validated by the caller.
func NewServer(a *agent.Agent, database *db.DB, speedUnits, areaUnits, timezone string) *Server {
	if speedUnits == "" {
		speedUnits = units.MPS
	}
	if areaUnits == "" {
		areaUnits = units.SquareMeters
	}
	return &Server{
		agent:      a,
		db:         database,
		speedUnits: speedUnits,
		areaUnits:  areaUnits,
		timezone:   timezone,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.showStatus)
	mux.HandleFunc("/command", s.sendCommandHandler)
	mux.HandleFunc("/field", s.showField)
	mux.HandleFunc("/field/boundary", s.showBoundary)
	mux.HandleFunc("/field/coverage", s.showCoverage)
	mux.HandleFunc("/sessions", s.listSessions)
	mux.HandleFunc("/sessions/", s.sessionSubtree)
	mux.HandleFunc("/config", s.showConfig)
	return mux
}

// statusAPI is the wire shape of the live agent snapshot. Speeds and areas
// are converted to the configured display units; everything internal stays
// metric.
type statusAPI struct {
	Time          string  `json:"time"`
	Easting       float64 `json:"easting"`
	Northing      float64 `json:"northing"`
	HeadingDeg    float64 `json:"heading_deg"`
	Speed         float64 `json:"speed"`
	SpeedUnits    string  `json:"speed_units"`
	Reverse       bool    `json:"reverse"`
	Engaged       bool    `json:"engaged"`
	Track         string  `json:"track,omitempty"`
	GuidanceOn    bool    `json:"guidance_on"`
	CrossTrackM   float64 `json:"cross_track_m"`
	SteerAngleDeg float64 `json:"steer_angle_deg"`
	SectionsOn    []bool  `json:"sections_on"`
	WorkedArea    float64 `json:"worked_area"`
	AreaUnits     string  `json:"area_units"`
}

func (s *Server) statusToAPI(st agent.Status) statusAPI {
	when := st.Time.UTC()
	if s.timezone != "" {
		if local, err := units.ConvertTime(when, s.timezone); err == nil {
			when = local
		}
	}
	return statusAPI{
		Time:          when.Format(time.RFC3339Nano),
		Easting:       st.Easting,
		Northing:      st.Northing,
		HeadingDeg:    st.Heading * 180 / math.Pi,
		Speed:         units.ConvertSpeed(st.Speed, s.speedUnits),
		SpeedUnits:    s.speedUnits,
		Reverse:       st.Reverse,
		Engaged:       st.Engaged,
		Track:         st.TrackName,
		GuidanceOn:    st.Guidance.Active,
		CrossTrackM:   st.Guidance.CrossTrackErr,
		SteerAngleDeg: st.Guidance.SteerAngleDeg,
		SectionsOn:    st.SectionsOn,
		WorkedArea:    units.ConvertArea(st.WorkedAreaM2, s.areaUnits),
		AreaUnits:     s.areaUnits,
	}
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.statusToAPI(s.agent.Status()))
}

// sendCommandHandler applies an operator command to the agent: engage,
// disengage, clear_track, or track:<name>.
func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	command := r.FormValue("command")

	var err error
	switch {
	case command == "engage":
		err = s.agent.Engage(true)
	case command == "disengage":
		err = s.agent.Engage(false)
	case command == "clear_track":
		s.agent.ClearTrack()
	case strings.HasPrefix(command, "track:"):
		err = s.agent.SetTrack(strings.TrimPrefix(command, "track:"))
	default:
		httputil.BadRequest(w, fmt.Sprintf("unknown command %q", command))
		return
	}
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("command failed: %v", err))
		return
	}
	io.WriteString(w, "Command applied successfully")
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	config := map[string]interface{}{
		"version":     version.Version,
		"speed_units": s.speedUnits,
		"area_units":  s.areaUnits,
		"timezone":    s.timezone,
	}
	httputil.WriteJSONOK(w, config)
}
