package serialmux

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/banshee-data/vision.nav/internal/monitoring"
)

// VehicleHandler consumes vehicle state lines. telemetry.VehicleTracker
// implements it.
type VehicleHandler interface {
	HandleLine(line string) (bool, error)
}

// Router dispatches link lines to the vehicle tracker and command handler.
type Router struct {
	Vehicle   VehicleHandler
	OnCommand func(Command) error

	unknown atomic.Int64
}

// Handle routes one line.
func (r *Router) Handle(line string) error {
	switch Classify(line) {
	case LineVehicle:
		if r.Vehicle == nil {
			return nil
		}
		if _, err := r.Vehicle.HandleLine(line); err != nil {
			return fmt.Errorf("failed to handle vehicle line: %w", err)
		}
	case LineCommand:
		cmd, err := ParseCommand(line)
		if err != nil {
			return err
		}
		monitoring.Logf("[link] command %q", cmd)
		if r.OnCommand == nil {
			return nil
		}
		if err := r.OnCommand(cmd); err != nil {
			return fmt.Errorf("failed to apply %s: %w", cmd, err)
		}
	default:
		r.unknown.Add(1)
		monitoring.Debugf("[link] ignoring line: %s", line)
	}
	return nil
}

// Unknown returns how many lines were ignored.
func (r *Router) Unknown() int64 { return r.unknown.Load() }

// Run subscribes to m and handles lines until ctx is done or the mux closes
// the subscription.
func (r *Router) Run(ctx context.Context, m Mux) error {
	id, lines := m.Subscribe()
	defer m.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := r.Handle(line); err != nil {
				monitoring.Logf("[link] %v", err)
			}
		}
	}
}
