package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vision.nav/internal/geometry"
	"github.com/banshee-data/vision.nav/internal/telemetry"
	"github.com/banshee-data/vision.nav/internal/timeutil"
)

func TestVehicleTrackerHandleLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		handled bool
		wantErr bool
	}{
		{"attitude", `{"type":"attitude","roll":0.1,"pitch":-0.2,"yaw":1.5,"yawspeed":0.3,"landed":true}`, true, false},
		{"local position", `{"type":"local_position","x":1,"y":2,"z":-3}`, true, false},
		{"other message", `{"type":"heartbeat"}`, false, false},
		{"plain text", `OK`, false, false},
		{"blank", "   ", false, false},
		{"broken json", `{"type":`, false, true},
		{"bad attitude field", `{"type":"attitude","roll":"x"}`, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := telemetry.NewVehicleTracker(timeutil.NewMockClock(epoch))
			handled, err := tr.HandleLine(tt.line)
			assert.Equal(t, tt.handled, handled)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVehicleTrackerState(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	tr := telemetry.NewVehicleTracker(clock)

	_, err := tr.HandleLine(`{"type":"attitude","roll":0.1,"pitch":-0.2,"yaw":1.5,"rollspeed":0.01,"pitchspeed":0.02,"yawspeed":0.3,"landed":true}`)
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = tr.HandleLine(`{"type":"local_position","x":1,"y":2,"z":-3}`)
	require.NoError(t, err)

	v := tr.Vehicle()
	assert.Equal(t, geometry.Euler{Roll: 0.1, Pitch: -0.2, Yaw: 1.5}, v.Attitude)
	assert.Equal(t, r3.Vec{X: 0.01, Y: 0.02, Z: 0.3}, v.Rates)
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: -3}, v.Position)
	assert.True(t, v.Landed)
	assert.Equal(t, epoch.Add(time.Second), v.Updated)

	// Landed is only changed when present.
	_, err = tr.HandleLine(`{"type":"attitude","yaw":0.2}`)
	require.NoError(t, err)
	assert.True(t, tr.Vehicle().Landed)
}

func TestVehicleTrackerSet(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	tr := telemetry.NewVehicleTracker(clock)
	tr.Set(telemetry.VehicleState{Position: r3.Vec{X: 4}})
	assert.Equal(t, 4.0, tr.Vehicle().Position.X)
	assert.Equal(t, epoch, tr.Vehicle().Updated)
}

func TestVehicleTrackerRun(t *testing.T) {
	tr := telemetry.NewVehicleTracker(timeutil.NewMockClock(epoch))
	lines := make(chan string, 3)
	lines <- `{"type":"local_position","x":5,"y":0,"z":0}`
	lines <- `garbage {`
	lines <- `{"type":`
	close(lines)

	require.NoError(t, tr.Run(context.Background(), lines))
	assert.Equal(t, 5.0, tr.Vehicle().Position.X)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tr.Run(ctx, make(chan string)), context.Canceled)
}
