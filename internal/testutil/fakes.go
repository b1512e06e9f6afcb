package testutil

import (
	"errors"
	"image"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vision.nav/internal/geometry"
	"github.com/banshee-data/vision.nav/internal/odometry"
	"github.com/banshee-data/vision.nav/internal/telemetry"
)

// ErrFakeSend is returned by RecordingSink while it is failing.
var ErrFakeSend = errors.New("fake send failure")

// FakeEngine is a scripted odometry.Engine. Tests set the exported fields
// between frames.
type FakeEngine struct {
	mu sync.Mutex

	OK         bool
	Err        error
	Panic      any
	Pose       geometry.RigidTransform
	RawQuality int
	// PointFunc answers Point3DFromPixel. Nil means no depth anywhere.
	PointFunc func(x, y int) (r3.Vec, error)

	Processed int
	Resets    int
}

var _ odometry.Engine = (*FakeEngine)(nil)

// NewFakeEngine returns an engine that tracks perfectly at the identity pose.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{OK: true, Pose: geometry.IdentityTransform(), RawQuality: 160}
}

func (f *FakeEngine) Process(*image.Gray, *image.Gray16) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Processed++
	if f.Panic != nil {
		panic(f.Panic)
	}
	return f.OK, f.Err
}

func (f *FakeEngine) CameraToWorld() geometry.RigidTransform {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Pose
}

func (f *FakeEngine) Quality() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RawQuality
}

func (f *FakeEngine) Point3DFromPixel(x, y int) (r3.Vec, error) {
	f.mu.Lock()
	fn := f.PointFunc
	f.mu.Unlock()
	if fn == nil {
		return r3.Vec{}, odometry.ErrNoDepth
	}
	return fn(x, y)
}

func (f *FakeEngine) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Resets++
}

// ResetCount returns how many times Reset was called.
func (f *FakeEngine) ResetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Resets
}

// FakeVehicle returns a fixed vehicle state.
type FakeVehicle struct {
	mu    sync.Mutex
	State telemetry.VehicleState
}

func (v *FakeVehicle) Vehicle() telemetry.VehicleState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.State
}

// Set replaces the state.
func (v *FakeVehicle) Set(s telemetry.VehicleState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.State = s
}

// RecordingSink stores every message it is sent. While Fail is positive
// each Send fails and decrements it; FailAlways makes every Send fail.
type RecordingSink struct {
	mu         sync.Mutex
	Messages   []telemetry.Message
	Fail       int
	FailAlways bool
}

func (s *RecordingSink) Send(m telemetry.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAlways {
		return ErrFakeSend
	}
	if s.Fail > 0 {
		s.Fail--
		return ErrFakeSend
	}
	s.Messages = append(s.Messages, m)
	return nil
}

// OfType returns the recorded messages with the given type.
func (s *RecordingSink) OfType(typ string) []telemetry.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []telemetry.Message
	for _, m := range s.Messages {
		if m.MessageType() == typ {
			out = append(out, m)
		}
	}
	return out
}

// Count returns how many messages of the given type were recorded.
func (s *RecordingSink) Count(typ string) int {
	return len(s.OfType(typ))
}

// Clear drops all recorded messages.
func (s *RecordingSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = nil
}

// MapUpdate is one call recorded by FakeMap.
type MapUpdate struct {
	Vehicle, Point r3.Vec
}

// FakeMap records occupancy updates.
type FakeMap struct {
	mu         sync.Mutex
	Updates    []MapUpdate
	Resets     int
	LockedFlag bool
}

func (m *FakeMap) Update(vehicle, point r3.Vec) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates = append(m.Updates, MapUpdate{Vehicle: vehicle, Point: point})
	return true
}

func (m *FakeMap) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resets++
}

func (m *FakeMap) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LockedFlag
}
