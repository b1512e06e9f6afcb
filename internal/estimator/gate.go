package estimator

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vision.nav/internal/geometry"
)

// Gate decides per frame whether a pose estimate is usable. All checks
// except the quality check are stateless.
type Gate struct {
	MinQuality       QualityScore
	RetryBudget      int
	MaxRotationSpeed float64 // rad/s
	MaxSpeed         float64 // m/s
	HeadingTolerance float64 // rad

	lowQuality int
}

// CheckRotation rejects frames taken while the vehicle turns faster than the
// tracker can follow.
func (g *Gate) CheckRotation(rates r3.Vec) error {
	if w := r3.Norm(rates); w > g.MaxRotationSpeed {
		return reject(ErrKinematicViolation, "rotation speed", w, g.MaxRotationSpeed)
	}
	return nil
}

// CheckQuality counts consecutive frames at or below the minimum quality.
// It returns skip=true for a tolerated low frame and an error once the
// count exceeds the retry budget, which also resets the count. A good frame
// resets the count and returns (false, nil).
func (g *Gate) CheckQuality(q QualityScore) (skip bool, err error) {
	if q > g.MinQuality {
		g.lowQuality = 0
		return false, nil
	}
	g.lowQuality++
	if g.lowQuality > g.RetryBudget {
		g.lowQuality = 0
		return false, reject(ErrQualityBelowThreshold, "quality", float64(q), float64(g.MinQuality))
	}
	return true, nil
}

// CheckSpeed rejects a raw camera speed that no real vehicle would reach.
func (g *Gate) CheckSpeed(v r3.Vec) error {
	if s := r3.Norm(v); s > g.MaxSpeed {
		return reject(ErrKinematicViolation, "odometry speed", s, g.MaxSpeed)
	}
	return nil
}

// CheckHeading rejects a fused yaw that disagrees with the autopilot heading.
func (g *Gate) CheckHeading(navYaw, vehicleYaw float64) error {
	if d := math.Abs(geometry.WrapAngle(navYaw - vehicleYaw)); d > g.HeadingTolerance {
		return reject(ErrHeadingDivergence, "heading", d, g.HeadingTolerance)
	}
	return nil
}

// LowQualityCount returns the current consecutive low-quality count.
func (g *Gate) LowQualityCount() int { return g.lowQuality }

// Reset clears the low-quality count.
func (g *Gate) Reset() { g.lowQuality = 0 }
