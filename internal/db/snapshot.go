package db

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/vision.nav/internal/occupancy"
)

// ErrNoSnapshot is returned when a session has no stored grid.
var ErrNoSnapshot = errors.New("no grid snapshot")

// GridSnapshot is a stored copy of the occupied cells of a grid.
type GridSnapshot struct {
	ID         int64
	SessionID  string
	Taken      time.Time
	Resolution float64
	Extent     float64
	Cells      []occupancy.Cell
}

// SaveGridSnapshot stores the occupied cells of g against the current
// session.
func (r *Recorder) SaveGridSnapshot(g *occupancy.Grid) (int64, error) {
	session := r.Session()
	if session == "" {
		return 0, ErrNoSession
	}
	cells := g.Snapshot()
	blob, err := encodeCells(cells)
	if err != nil {
		return 0, err
	}
	res, err := r.db.Exec(`INSERT INTO grid_snapshots
		(session_id, taken_us, resolution, extent, cell_count, cells_blob)
		VALUES (?, ?, ?, ?, ?, ?)`,
		session, r.clock.Now().UnixMicro(), g.Resolution(), g.Extent(), len(cells), blob,
	)
	if err != nil {
		return 0, fmt.Errorf("save grid snapshot: %w", err)
	}
	return res.LastInsertId()
}

// LatestGridSnapshot returns the newest snapshot across all sessions.
func (db *DB) LatestGridSnapshot() (*GridSnapshot, error) {
	var s GridSnapshot
	var taken int64
	var blob []byte
	err := db.QueryRow(`SELECT snapshot_id, session_id, taken_us, resolution, extent, cells_blob
		FROM grid_snapshots ORDER BY taken_us DESC, snapshot_id DESC LIMIT 1`).
		Scan(&s.ID, &s.SessionID, &taken, &s.Resolution, &s.Extent, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	s.Taken = time.UnixMicro(taken).UTC()
	if s.Cells, err = decodeCells(blob); err != nil {
		return nil, err
	}
	return &s, nil
}

func encodeCells(cells []occupancy.Cell) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(gz).Encode(cells); err != nil {
		return nil, fmt.Errorf("failed to encode cells: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeCells(blob []byte) ([]occupancy.Cell, error) {
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()
	var cells []occupancy.Cell
	if err := gob.NewDecoder(gz).Decode(&cells); err != nil {
		return nil, fmt.Errorf("failed to decode cells: %w", err)
	}
	return cells, nil
}
