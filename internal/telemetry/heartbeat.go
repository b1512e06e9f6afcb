package telemetry

import (
	"context"
	"runtime"
	"time"

	"github.com/banshee-data/vision.nav/internal/monitoring"
	"github.com/banshee-data/vision.nav/internal/occupancy"
	"github.com/banshee-data/vision.nav/internal/timeutil"
)

// StatusSource exposes the last published estimator status without blocking
// the frame path.
type StatusSource interface {
	Status() VisionStatus
}

// GridSource hands out pending occupancy changes.
type GridSource interface {
	Transfer(max int) []occupancy.Cell
	Resolution() float64
	Extent() float64
}

// Heartbeat sends time-sync and system status on a fixed interval and
// streams occupancy changes on a faster one. It runs on its own goroutine.
type Heartbeat struct {
	Sink             Sink
	Clock            timeutil.Clock
	Status           StatusSource
	Grid             GridSource // optional
	Interval         time.Duration
	TransferInterval time.Duration
	MaxCells         int
	Version          string
	// LinkErrors reports the publisher failure count. Optional.
	LinkErrors func() int

	started time.Time
}

// Run beats until ctx is done.
func (h *Heartbeat) Run(ctx context.Context) error {
	h.started = h.Clock.Now()

	beat := h.Clock.NewTicker(h.Interval)
	defer beat.Stop()

	var transfer <-chan time.Time
	if h.Grid != nil && h.TransferInterval > 0 {
		t := h.Clock.NewTicker(h.TransferInterval)
		defer t.Stop()
		transfer = t.C()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-beat.C():
			h.Beat()
		case <-transfer:
			h.TransferGrid()
		}
	}
}

// Beat sends one time-sync and one system status message.
func (h *Heartbeat) Beat() {
	now := h.Clock.Now()
	if h.started.IsZero() {
		h.started = now
	}
	if err := h.Sink.Send(TimeSync{TC1: 0, TS1: now.UnixNano()}); err != nil {
		monitoring.Debugf("[link] timesync: %v", err)
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	st := SystemStatus{
		UptimeMS:   now.Sub(h.started).Milliseconds(),
		Goroutines: runtime.NumGoroutine(),
		HeapMB:     float64(mem.HeapAlloc) / (1 << 20),
		Version:    h.Version,
	}
	if h.LinkErrors != nil {
		st.LinkErrors = h.LinkErrors()
	}
	if h.Status != nil {
		st.VisionState = h.Status.Status().State
	}
	if err := h.Sink.Send(st); err != nil {
		monitoring.Debugf("[link] status: %v", err)
	}
}

// TransferGrid sends pending occupancy changes, if any, and returns how many
// cells went out.
func (h *Heartbeat) TransferGrid() int {
	if h.Grid == nil {
		return 0
	}
	cells := h.Grid.Transfer(h.MaxCells)
	if len(cells) == 0 {
		return 0
	}
	msg := GridTransfer{Resolution: h.Grid.Resolution(), Extent: h.Grid.Extent(), Cells: cells}
	if err := h.Sink.Send(msg); err != nil {
		monitoring.Debugf("[link] grid transfer: %v", err)
		return 0
	}
	return len(cells)
}
