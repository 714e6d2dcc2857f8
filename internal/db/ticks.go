package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// Tick is one recorded guidance loop iteration.
type Tick struct {
	SessionID     string  `json:"session_id"`
	TUnix         float64 `json:"t_unix"`
	Easting       float64 `json:"easting"`
	Northing      float64 `json:"northing"`
	Heading       float64 `json:"heading"`
	SpeedMPS      float64 `json:"speed_mps"`
	Reverse       bool    `json:"reverse"`
	Engaged       bool    `json:"engaged"`
	TrackName     string  `json:"track,omitempty"`
	CrossTrackM   float64 `json:"cross_track_m"`
	SteerAngleDeg float64 `json:"steer_angle_deg"`
	WorkedAreaM2  float64 `json:"worked_area_m2"`
}

// Event is a discrete occurrence within a session: engage, disengage, track
// selection, section transitions.
type Event struct {
	SessionID string  `json:"session_id"`
	TUnix     float64 `json:"t_unix"`
	Kind      string  `json:"kind"`
	Detail    string  `json:"detail,omitempty"`
}

// CoverageStat is a periodic snapshot of worked area, written once per
// recorder flush so coverage progress is queryable without scanning ticks.
type CoverageStat struct {
	SessionID       string   `json:"session_id"`
	TUnix           float64  `json:"t_unix"`
	WorkedAreaM2    float64  `json:"worked_area_m2"`
	CoveredFraction *float64 `json:"covered_fraction,omitempty"`
}

// InsertTicks writes a batch of ticks in one transaction.
func (db *DB) InsertTicks(ctx context.Context, ticks []Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("warning: failed to rollback transaction: %v", err)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ticks (
			session_id, t_unix, easting, northing, heading, speed_mps,
			reverse, engaged, track_name, cross_track_m, steer_angle_deg,
			worked_area_m2
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range ticks {
		if _, err := stmt.ExecContext(ctx,
			t.SessionID, t.TUnix, t.Easting, t.Northing, t.Heading, t.SpeedMPS,
			boolInt(t.Reverse), boolInt(t.Engaged), t.TrackName, t.CrossTrackM,
			t.SteerAngleDeg, t.WorkedAreaM2,
		); err != nil {
			return fmt.Errorf("failed to insert tick: %w", err)
		}
	}

	return tx.Commit()
}

// InsertEvents writes a batch of events in one transaction.
func (db *DB) InsertEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("warning: failed to rollback transaction: %v", err)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (session_id, t_unix, kind, detail)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, e.SessionID, e.TUnix, e.Kind, e.Detail); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}

	return tx.Commit()
}

// InsertCoverageStat writes one coverage snapshot row.
func (db *DB) InsertCoverageStat(ctx context.Context, stat CoverageStat) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO coverage_stats (session_id, t_unix, worked_area_m2, covered_fraction)
		VALUES (?, ?, ?, ?)`,
		stat.SessionID, stat.TUnix, stat.WorkedAreaM2, stat.CoveredFraction,
	)
	if err != nil {
		return fmt.Errorf("failed to insert coverage stat: %w", err)
	}
	return nil
}

// TickSeries returns a session's ticks in time order.
func (db *DB) TickSeries(ctx context.Context, sessionID string) ([]Tick, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, t_unix, easting, northing, heading, speed_mps,
			reverse, engaged, track_name, cross_track_m, steer_angle_deg,
			worked_area_m2
		FROM ticks WHERE session_id = ? ORDER BY t_unix`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticks: %w", err)
	}
	defer rows.Close()

	var ticks []Tick
	for rows.Next() {
		var t Tick
		var reverse, engaged int
		if err := rows.Scan(
			&t.SessionID, &t.TUnix, &t.Easting, &t.Northing, &t.Heading,
			&t.SpeedMPS, &reverse, &engaged, &t.TrackName, &t.CrossTrackM,
			&t.SteerAngleDeg, &t.WorkedAreaM2,
		); err != nil {
			return nil, err
		}
		t.Reverse = reverse != 0
		t.Engaged = engaged != 0
		ticks = append(ticks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ticks, nil
}

// EventsForSession returns a session's events in time order.
func (db *DB) EventsForSession(ctx context.Context, sessionID string) ([]Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, t_unix, kind, detail
		FROM events WHERE session_id = ? ORDER BY t_unix`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.SessionID, &e.TUnix, &e.Kind, &e.Detail); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// CoverageSeries returns a session's coverage snapshots in time order.
func (db *DB) CoverageSeries(ctx context.Context, sessionID string) ([]CoverageStat, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, t_unix, worked_area_m2, covered_fraction
		FROM coverage_stats WHERE session_id = ? ORDER BY t_unix`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query coverage stats: %w", err)
	}
	defer rows.Close()

	var stats []CoverageStat
	for rows.Next() {
		var s CoverageStat
		if err := rows.Scan(&s.SessionID, &s.TUnix, &s.WorkedAreaM2, &s.CoveredFraction); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
