package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/banshee-data/vision.nav/internal/monitoring"
	"github.com/banshee-data/vision.nav/internal/telemetry"
	"github.com/banshee-data/vision.nav/internal/timeutil"
)

// ErrNoSession is returned when writing before StartSession.
var ErrNoSession = errors.New("no recording session")

// RecorderConfig tunes the flight recorder.
type RecorderConfig struct {
	RecordEvery int // keep one status sample in this many
	QueueSize   int
}

// DefaultRecorderConfig keeps three status samples a second at 30 fps.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{RecordEvery: 10, QueueSize: 256}
}

// Recorder is a telemetry.Sink that persists status samples and notices.
// Send never blocks; Run or Flush does the writing.
type Recorder struct {
	db    *DB
	clock timeutil.Clock
	cfg   RecorderConfig

	queue    chan telemetry.Message
	statuses atomic.Int64
	dropped  atomic.Int64

	writeMu sync.Mutex
	mu      sync.Mutex
	session string
}

// NewRecorder returns a recorder writing to db.
func NewRecorder(db *DB, clock timeutil.Clock, cfg RecorderConfig) *Recorder {
	if cfg.RecordEvery < 1 {
		cfg.RecordEvery = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = DefaultRecorderConfig().QueueSize
	}
	return &Recorder{
		db:    db,
		clock: clock,
		cfg:   cfg,
		queue: make(chan telemetry.Message, cfg.QueueSize),
	}
}

// StartSession opens a new session and makes it current.
func (r *Recorder) StartSession(version, config string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.Exec(
		`INSERT INTO sessions (session_id, started_us, version, config) VALUES (?, ?, ?, ?)`,
		id, r.clock.Now().UnixMicro(), version, config,
	)
	if err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	r.mu.Lock()
	r.session = id
	r.mu.Unlock()
	monitoring.Logf("[db] recording session %s", id)
	return id, nil
}

// EndSession stamps the end time on the current session.
func (r *Recorder) EndSession() error {
	id := r.Session()
	if id == "" {
		return ErrNoSession
	}
	r.Flush()
	if _, err := r.db.Exec(`UPDATE sessions SET ended_us = ? WHERE session_id = ?`, r.clock.Now().UnixMicro(), id); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	r.mu.Lock()
	r.session = ""
	r.mu.Unlock()
	return nil
}

// Session returns the current session id, or "" when none is open.
func (r *Recorder) Session() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Dropped returns how many messages were lost to a full queue.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Send implements telemetry.Sink. Only status and notice messages are kept.
func (r *Recorder) Send(m telemetry.Message) error {
	switch m.(type) {
	case telemetry.VisionStatus:
		if (r.statuses.Add(1)-1)%int64(r.cfg.RecordEvery) != 0 {
			return nil
		}
	case telemetry.LogNotice:
	default:
		return nil
	}
	select {
	case r.queue <- m:
		return nil
	default:
		r.dropped.Add(1)
		return fmt.Errorf("%w: recorder queue full", telemetry.ErrPublishFailure)
	}
}

// Run writes queued messages until ctx is done, then drains the queue.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.Flush()
			return ctx.Err()
		case m := <-r.queue:
			r.writeLogged(m)
		}
	}
}

// Flush writes everything currently queued.
func (r *Recorder) Flush() {
	for {
		select {
		case m := <-r.queue:
			r.writeLogged(m)
		default:
			return
		}
	}
}

func (r *Recorder) writeLogged(m telemetry.Message) {
	if err := r.write(m); err != nil {
		monitoring.Debugf("[db] record %s: %v", m.MessageType(), err)
	}
}

func (r *Recorder) write(m telemetry.Message) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	session := r.Session()
	if session == "" {
		return ErrNoSession
	}
	switch v := m.(type) {
	case telemetry.VisionStatus:
		_, err := r.db.Exec(`INSERT INTO status_samples
			(session_id, ts_us, x, y, z, vx, vy, vz, roll, pitch, yaw, quality, fps, errors, flags, state)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			session, r.stamp(v.TimestampUS), v.X, v.Y, v.Z, v.VX, v.VY, v.VZ,
			v.Roll, v.Pitch, v.Yaw, v.Quality, v.FPS, v.Errors, int(v.Flags), v.State,
		)
		return err
	case telemetry.LogNotice:
		_, err := r.db.Exec(`INSERT INTO events (session_id, ts_us, severity, text) VALUES (?, ?, ?, ?)`,
			session, r.stamp(v.TimestampUS), int(v.Severity), v.Text,
		)
		return err
	}
	return nil
}

func (r *Recorder) stamp(us int64) int64 {
	if us != 0 {
		return us
	}
	return r.clock.Now().UnixMicro()
}

// Trajectory flushes pending samples and returns the last limit samples of
// sessionID, or of the current session when sessionID is empty.
func (r *Recorder) Trajectory(sessionID string, limit int) ([]Sample, error) {
	if sessionID == "" {
		sessionID = r.Session()
	}
	if sessionID == "" {
		return nil, ErrNoSession
	}
	r.Flush()
	return r.db.Trajectory(sessionID, limit)
}
