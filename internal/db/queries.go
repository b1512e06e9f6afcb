package db

import (
	"database/sql"
	"time"

	"github.com/banshee-data/vision.nav/internal/telemetry"
)

type Session struct {
	ID      string
	Started time.Time
	Ended   time.Time // zero while recording
	Version string
	Config  string
}

// Sample is one recorded status row.
type Sample struct {
	Time    time.Time       `json:"time"`
	X       float64         `json:"x"`
	Y       float64         `json:"y"`
	Z       float64         `json:"z"`
	VX      float64         `json:"vx"`
	VY      float64         `json:"vy"`
	VZ      float64         `json:"vz"`
	Roll    float64         `json:"roll"`
	Pitch   float64         `json:"pitch"`
	Yaw     float64         `json:"yaw"`
	Quality int             `json:"quality"`
	FPS     float64         `json:"fps"`
	Errors  int             `json:"errors"`
	Flags   telemetry.Flags `json:"flags"`
	State   string          `json:"state"`
}

type Event struct {
	ID       int64
	Time     time.Time
	Severity telemetry.Severity
	Text     string
}

// Sessions lists sessions, newest first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query(`SELECT session_id, started_us, ended_us, version, config
		FROM sessions ORDER BY started_us DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var started int64
		var ended sql.NullInt64
		if err := rows.Scan(&s.ID, &started, &ended, &s.Version, &s.Config); err != nil {
			return nil, err
		}
		s.Started = time.UnixMicro(started).UTC()
		if ended.Valid {
			s.Ended = time.UnixMicro(ended.Int64).UTC()
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Trajectory returns the last limit samples of a session in time order.
// A limit of zero or less returns all of them.
func (db *DB) Trajectory(sessionID string, limit int) ([]Sample, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT ts_us, x, y, z, vx, vy, vz, roll, pitch, yaw, quality, fps, errors, flags, state
		FROM (
			SELECT * FROM status_samples WHERE session_id = ? ORDER BY ts_us DESC LIMIT ?
		) ORDER BY ts_us ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var ts int64
		var flags int
		if err := rows.Scan(&ts, &s.X, &s.Y, &s.Z, &s.VX, &s.VY, &s.VZ,
			&s.Roll, &s.Pitch, &s.Yaw, &s.Quality, &s.FPS, &s.Errors, &flags, &s.State); err != nil {
			return nil, err
		}
		s.Time = time.UnixMicro(ts).UTC()
		s.Flags = telemetry.Flags(flags)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Events returns up to limit notices of a session, newest first.
func (db *DB) Events(sessionID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.Query(`SELECT event_id, ts_us, severity, text FROM events
		WHERE session_id = ? ORDER BY ts_us DESC, event_id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		var sev int
		if err := rows.Scan(&e.ID, &ts, &sev, &e.Text); err != nil {
			return nil, err
		}
		e.Time = time.UnixMicro(ts).UTC()
		e.Severity = telemetry.Severity(sev)
		events = append(events, e)
	}
	return events, rows.Err()
}
