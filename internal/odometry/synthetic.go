package odometry

import (
	"context"
	"image"
	"math"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vision.nav/internal/geometry"
)

// Synthetic is an Engine that flies a level circle at constant speed in
// front of a flat wall. It is used in dev mode and by the end-to-end tests.
type Synthetic struct {
	mu sync.Mutex

	// Configuration
	FrameRate   float64 // frames per second, advances the trajectory per Process call
	OrbitRadius float64 // metres
	OrbitSpeed  float64 // metres per second along the orbit
	WallRange   float64 // metres, forward distance to the synthetic wall
	FocalPixels float64 // pinhole focal length in pixels
	Tracks      int     // mean raw track count reported by Quality
	TrackNoise  int     // +/- jitter on the track count

	elapsed float64
	anchor  geometry.RigidTransform
	width   int
	height  int
	quality int
	rng     *rand.Rand
}

// NewSynthetic returns a synthetic engine with defaults matching a 320x240
// depth camera at 30 fps.
func NewSynthetic(seed int64) *Synthetic {
	return &Synthetic{
		FrameRate:   30,
		OrbitRadius: 5,
		OrbitSpeed:  0.5,
		WallRange:   2.5,
		FocalPixels: 300,
		Tracks:      120,
		TrackNoise:  10,
		anchor:      geometry.IdentityTransform(),
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// pose returns the vehicle pose on the orbit in the vision frame.
func (s *Synthetic) pose() geometry.RigidTransform {
	w := s.OrbitSpeed / s.OrbitRadius
	a := w * s.elapsed
	return geometry.NewTransform(
		geometry.Euler{Yaw: a},
		r3.Vec{X: s.OrbitRadius * (1 - math.Cos(a)), Z: s.OrbitRadius * math.Sin(a)},
	)
}

// Process implements Engine.
func (s *Synthetic) Process(gray *image.Gray, depth *image.Gray16) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if depth != nil {
		s.width, s.height = depth.Bounds().Dx(), depth.Bounds().Dy()
	}
	if s.FrameRate > 0 {
		s.elapsed += 1 / s.FrameRate
	}
	s.quality = s.Tracks
	if s.TrackNoise > 0 {
		s.quality += s.rng.Intn(2*s.TrackNoise+1) - s.TrackNoise
	}
	return true, nil
}

// CameraToWorld implements Engine. The world frame is the camera frame at
// the last Reset.
func (s *Synthetic) CameraToWorld() geometry.RigidTransform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pose().Compose(s.anchor.Inverse())
}

// Quality implements Engine.
func (s *Synthetic) Quality() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quality
}

// Point3DFromPixel implements Engine with a pinhole model looking at a wall
// WallRange metres ahead.
func (s *Synthetic) Point3DFromPixel(x, y int) (r3.Vec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if x < 0 || y < 0 || x >= s.width || y >= s.height {
		return r3.Vec{}, ErrNoDepth
	}
	z := s.WallRange
	return r3.Vec{
		X: (float64(x) - float64(s.width)/2) * z / s.FocalPixels,
		Y: (float64(y) - float64(s.height)/2) * z / s.FocalPixels,
		Z: z,
	}, nil
}

// Reset implements Engine.
func (s *Synthetic) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchor = s.pose()
}

// Heading returns the true yaw of the synthetic vehicle in radians.
func (s *Synthetic) Heading() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return geometry.WrapAngle(s.OrbitSpeed / s.OrbitRadius * s.elapsed)
}

// PositionNED returns the true local position of the synthetic vehicle.
func (s *Synthetic) PositionNED() r3.Vec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return geometry.ToNED(s.pose().T)
}

// FrameSource emits blank frames of a fixed size at a fixed rate.
type FrameSource struct {
	Width, Height int
	Interval      time.Duration
}

// Run sends frames until ctx is done. A frame is dropped when the consumer
// is still busy with the previous one.
func (f FrameSource) Run(ctx context.Context, out chan<- Frame) error {
	ticker := time.NewTicker(f.Interval)
	defer ticker.Stop()

	rect := image.Rect(0, 0, f.Width, f.Height)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			frame := Frame{
				Gray:     image.NewGray(rect),
				Depth:    image.NewGray16(rect),
				Captured: now,
			}
			select {
			case out <- frame:
			default:
			}
		}
	}
}
