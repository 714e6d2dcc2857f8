package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/furrow-data/fieldline/internal/httputil"
	"github.com/furrow-data/fieldline/internal/report"
)

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "session store not configured")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	sessions, err := s.db.ListSessions(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve sessions: %v", err))
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

// sessionSubtree dispatches /sessions/{id} and /sessions/{id}/report.
func (s *Server) sessionSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "session store not configured")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		s.showSessionSummary(w, r, parts[0])
	case len(parts) == 2 && parts[0] != "" && parts[1] == "report":
		s.showSessionReport(w, r, parts[0])
	default:
		httputil.NotFound(w, "unknown session path")
	}
}

func (s *Server) showSessionSummary(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := s.db.GetSession(sessionID)
	if err != nil {
		httputil.NotFound(w, fmt.Sprintf("%v", err))
		return
	}
	summary, err := s.db.SummarizeSession(r.Context(), sessionID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to summarize session: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"session": session,
		"summary": summary,
	})
}

// showSessionReport renders the session's echarts dashboard.
func (s *Server) showSessionReport(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := s.db.GetSession(sessionID)
	if err != nil {
		httputil.NotFound(w, fmt.Sprintf("%v", err))
		return
	}

	ticks, err := s.db.TickSeries(r.Context(), sessionID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve ticks: %v", err))
		return
	}
	coverage, err := s.db.CoverageSeries(r.Context(), sessionID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve coverage stats: %v", err))
		return
	}

	series := report.BuildSeries(ticks)
	stats := report.ComputeStats(ticks)

	var buf bytes.Buffer
	if err := report.ChartsHTML(&buf, session, series, stats, coverage, s.timezone); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to render report: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
