package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one continuous run of the guidance agent on a field.
type Session struct {
	SessionID   string   `json:"session_id"`
	FieldName   string   `json:"field_name"`
	Vehicle     string   `json:"vehicle,omitempty"`
	SteerLaw    string   `json:"steer_law"`
	StartedUnix float64  `json:"started_unix"`
	EndedUnix   *float64 `json:"ended_unix"`
	CreatedAt   float64  `json:"created_at"`
}

// CreateSession inserts a new session row. A missing SessionID is assigned a
// fresh uuid, an empty SteerLaw defaults to purepursuit, and a zero
// StartedUnix is set to the current time.
func (db *DB) CreateSession(s *Session) error {
	if s.SessionID == "" {
		s.SessionID = uuid.New().String()
	}
	if s.SteerLaw == "" {
		s.SteerLaw = "purepursuit"
	}
	if s.StartedUnix == 0 {
		s.StartedUnix = unixSeconds(time.Now())
	}

	_, err := db.Exec(
		`INSERT INTO sessions (session_id, field_name, vehicle, steer_law, started_unix)
		 VALUES (?, ?, ?, ?, ?)`,
		s.SessionID, s.FieldName, s.Vehicle, s.SteerLaw, s.StartedUnix,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// EndSession marks the session as ended at the given time.
func (db *DB) EndSession(sessionID string, endedAt time.Time) error {
	result, err := db.Exec(
		`UPDATE sessions SET ended_unix = ? WHERE session_id = ?`,
		unixSeconds(endedAt), sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session not found")
	}
	return nil
}

// GetSession retrieves a session by ID.
func (db *DB) GetSession(sessionID string) (*Session, error) {
	var s Session
	err := db.QueryRow(
		`SELECT session_id, field_name, vehicle, steer_law, started_unix, ended_unix, created_at
		 FROM sessions WHERE session_id = ?`,
		sessionID,
	).Scan(
		&s.SessionID,
		&s.FieldName,
		&s.Vehicle,
		&s.SteerLaw,
		&s.StartedUnix,
		&s.EndedUnix,
		&s.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &s, nil
}

// ListSessions returns up to limit sessions, newest first. A non-positive
// limit uses a default of 100.
func (db *DB) ListSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.Query(
		`SELECT session_id, field_name, vehicle, steer_law, started_unix, ended_unix, created_at
		 FROM sessions ORDER BY started_unix DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(
			&s.SessionID,
			&s.FieldName,
			&s.Vehicle,
			&s.SteerLaw,
			&s.StartedUnix,
			&s.EndedUnix,
			&s.CreatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// SessionSummary aggregates a session's recorded ticks and events. Cross
// track figures are taken over engaged ticks only; disengaged driving is not
// a steering error.
type SessionSummary struct {
	SessionID       string  `json:"session_id"`
	TickCount       int64   `json:"tick_count"`
	DurationSec     float64 `json:"duration_sec"`
	EngagedFraction float64 `json:"engaged_fraction"`
	MeanAbsXTEM     float64 `json:"mean_abs_xte_m"`
	MaxAbsXTEM      float64 `json:"max_abs_xte_m"`
	WorkedAreaM2    float64 `json:"worked_area_m2"`
	EventCount      int64   `json:"event_count"`
}

// SummarizeSession computes the aggregate summary for a session.
func (db *DB) SummarizeSession(ctx context.Context, sessionID string) (*SessionSummary, error) {
	if _, err := db.GetSession(sessionID); err != nil {
		return nil, err
	}

	summary := SessionSummary{SessionID: sessionID}

	err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(MAX(t_unix) - MIN(t_unix), 0),
			COALESCE(AVG(engaged), 0),
			COALESCE(AVG(CASE WHEN engaged = 1 THEN ABS(cross_track_m) END), 0),
			COALESCE(MAX(CASE WHEN engaged = 1 THEN ABS(cross_track_m) END), 0),
			COALESCE(MAX(worked_area_m2), 0)
		FROM ticks WHERE session_id = ?`,
		sessionID,
	).Scan(
		&summary.TickCount,
		&summary.DurationSec,
		&summary.EngagedFraction,
		&summary.MeanAbsXTEM,
		&summary.MaxAbsXTEM,
		&summary.WorkedAreaM2,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize ticks: %w", err)
	}

	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE session_id = ?`,
		sessionID,
	).Scan(&summary.EventCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	return &summary, nil
}
