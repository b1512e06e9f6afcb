package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vision.nav/internal/geometry"
	"github.com/banshee-data/vision.nav/internal/monitoring"
	"github.com/banshee-data/vision.nav/internal/timeutil"
)

// VehicleState is the autopilot's own estimate of the vehicle.
type VehicleState struct {
	Attitude geometry.Euler
	Rates    r3.Vec // roll, pitch and yaw rate, rad/s
	Position r3.Vec // local NED, metres
	Landed   bool
	Updated  time.Time
}

type attitudeLine struct {
	Roll       float64 `json:"roll"`
	Pitch      float64 `json:"pitch"`
	Yaw        float64 `json:"yaw"`
	RollSpeed  float64 `json:"rollspeed"`
	PitchSpeed float64 `json:"pitchspeed"`
	YawSpeed   float64 `json:"yawspeed"`
	Landed     *bool   `json:"landed"`
}

type localPositionLine struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// VehicleTracker keeps the latest VehicleState reported on the link. It is
// safe for concurrent use.
type VehicleTracker struct {
	clock timeutil.Clock

	mu    sync.RWMutex
	state VehicleState
}

// NewVehicleTracker returns a tracker with a zero state.
func NewVehicleTracker(clock timeutil.Clock) *VehicleTracker {
	return &VehicleTracker{clock: clock}
}

// Vehicle returns a copy of the latest state.
func (t *VehicleTracker) Vehicle() VehicleState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Set replaces the state, stamping it with the current time.
func (t *VehicleTracker) Set(s VehicleState) {
	s.Updated = t.clock.Now()
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// HandleLine applies one link line. It reports false for lines that are not
// vehicle messages.
func (t *VehicleTracker) HandleLine(line string) (bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return false, nil
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(line), &head); err != nil {
		return false, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	switch head.Type {
	case TypeAttitude:
		var a attitudeLine
		if err := json.Unmarshal([]byte(line), &a); err != nil {
			return true, fmt.Errorf("failed to parse attitude: %w", err)
		}
		t.mu.Lock()
		t.state.Attitude = geometry.Euler{Roll: a.Roll, Pitch: a.Pitch, Yaw: a.Yaw}
		t.state.Rates = r3.Vec{X: a.RollSpeed, Y: a.PitchSpeed, Z: a.YawSpeed}
		if a.Landed != nil {
			t.state.Landed = *a.Landed
		}
		t.state.Updated = t.clock.Now()
		t.mu.Unlock()
		return true, nil
	case TypeLocalPos:
		var p localPositionLine
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			return true, fmt.Errorf("failed to parse local position: %w", err)
		}
		t.mu.Lock()
		t.state.Position = r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
		t.state.Updated = t.clock.Now()
		t.mu.Unlock()
		return true, nil
	default:
		return false, nil
	}
}

// Run applies lines until ctx is done or lines is closed.
func (t *VehicleTracker) Run(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if _, err := t.HandleLine(line); err != nil {
				monitoring.Debugf("[link] vehicle line: %v", err)
			}
		}
	}
}
