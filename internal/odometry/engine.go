// Package odometry defines the contract with the visual-odometry engine and a
// synthetic engine for running without a depth camera.
package odometry

import (
	"errors"
	"image"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vision.nav/internal/geometry"
)

// ErrNoDepth is returned by Point3DFromPixel when the pixel has no usable
// depth sample.
var ErrNoDepth = errors.New("no depth at pixel")

// Engine is the capability the estimator needs from a visual-odometry
// backend. Any tracker satisfying it can be substituted.
type Engine interface {
	// Process feeds one gray/depth pair. A false return or an error both mean
	// tracking failed for this frame.
	Process(gray *image.Gray, depth *image.Gray16) (bool, error)
	// CameraToWorld returns the current camera pose in the vision frame.
	CameraToWorld() geometry.RigidTransform
	// Quality returns the raw inlier/track count of the last Process call.
	Quality() int
	// Point3DFromPixel back-projects a pixel of the last depth image into the
	// camera frame.
	Point3DFromPixel(x, y int) (r3.Vec, error)
	// Reset drops all tracks and re-anchors the world frame at the next frame.
	Reset()
}

// Frame is one synchronized capture from the depth camera.
type Frame struct {
	Gray  *image.Gray
	Depth *image.Gray16
	// Captured is the driver timestamp; the estimator uses its own clock for
	// dt so this is informational.
	Captured time.Time
}

// Width returns the image width, or 0 for an empty frame.
func (f Frame) Width() int {
	if f.Depth != nil {
		return f.Depth.Bounds().Dx()
	}
	if f.Gray != nil {
		return f.Gray.Bounds().Dx()
	}
	return 0
}

// Height returns the image height, or 0 for an empty frame.
func (f Frame) Height() int {
	if f.Depth != nil {
		return f.Depth.Bounds().Dy()
	}
	if f.Gray != nil {
		return f.Gray.Bounds().Dy()
	}
	return 0
}

// ErrNoCamera is returned by Unavailable for every frame.
var ErrNoCamera = errors.New("no camera driver linked")

// Unavailable is the engine used when no camera driver is linked. Every
// frame fails tracking, so the estimator never produces an estimate.
type Unavailable struct{}

func (Unavailable) Process(*image.Gray, *image.Gray16) (bool, error) { return false, ErrNoCamera }

func (Unavailable) CameraToWorld() geometry.RigidTransform { return geometry.IdentityTransform() }

func (Unavailable) Quality() int { return 0 }

func (Unavailable) Point3DFromPixel(int, int) (r3.Vec, error) { return r3.Vec{}, ErrNoDepth }

func (Unavailable) Reset() {}
