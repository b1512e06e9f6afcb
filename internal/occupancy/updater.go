package occupancy

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vision.nav/internal/geometry"
	"github.com/banshee-data/vision.nav/internal/monitoring"
)

var errProjection = errors.New("projection failed")

// PixelProjector back-projects a depth pixel into the camera frame. The
// odometry engine satisfies it.
type PixelProjector interface {
	Point3DFromPixel(x, y int) (r3.Vec, error)
}

// UpdaterConfig shapes the scan-line sampling.
type UpdaterConfig struct {
	HorizonRow  int     // nominal horizon row in pixels
	RowStep     int     // spacing between sampled rows
	RowSamples  int     // rows sampled per column, centred on HorizonRow
	MaxDistance float64 // metres, farther points are ignored
	MinAltitude float64 // metres above the NED origin a point must reach
}

// DefaultUpdaterConfig samples rows 165..195 on a 320x240 image.
func DefaultUpdaterConfig() UpdaterConfig {
	return UpdaterConfig{
		HorizonRow:  180,
		RowStep:     5,
		RowSamples:  7,
		MaxDistance: 3.0,
		MinAltitude: 0.3,
	}
}

// Updater turns one depth frame into obstacle points, one per image column.
type Updater struct {
	m   Map
	cfg UpdaterConfig
}

// NewUpdater returns an updater feeding m.
func NewUpdater(m Map, cfg UpdaterConfig) *Updater {
	if cfg.RowSamples < 1 {
		cfg.RowSamples = 1
	}
	return &Updater{m: m, cfg: cfg}
}

// rows returns the sampled row indices clamped to the image, without
// duplicates.
func (u *Updater) rows(height int) []int {
	half := u.cfg.RowSamples / 2
	out := make([]int, 0, u.cfg.RowSamples)
	for k := -half; k < u.cfg.RowSamples-half; k++ {
		y := u.cfg.HorizonRow + k*u.cfg.RowStep
		y = max(0, min(height-1, y))
		if n := len(out); n > 0 && out[n-1] == y {
			continue
		}
		out = append(out, y)
	}
	return out
}

// Update scans every column of a width x height depth frame and writes the
// nearest point per column into the map. navPose maps camera points onto
// vision axes in the navigation frame. It returns the number of accepted
// updates.
func (u *Updater) Update(proj PixelProjector, width, height int, navPose geometry.RigidTransform) int {
	if height <= 0 || width <= 0 {
		return 0
	}
	rows := u.rows(height)
	vehicle := geometry.ToNED(navPose.T)

	updates := 0
	for x := 0; x < width; x++ {
		nearest, ok := u.nearest(proj, x, rows)
		if !ok {
			continue
		}
		p := geometry.ToNED(navPose.Apply(nearest))
		if -p.Z <= u.cfg.MinAltitude {
			continue
		}
		if u.m.Locked() {
			continue
		}
		if u.m.Update(vehicle, p) {
			updates++
		}
	}
	return updates
}

func (u *Updater) nearest(proj PixelProjector, x int, rows []int) (r3.Vec, bool) {
	var best r3.Vec
	bestRange := u.cfg.MaxDistance
	found := false
	for _, y := range rows {
		p, err := project(proj, x, y)
		if err != nil {
			continue
		}
		if d := r3.Norm(p); d > 0 && d <= bestRange {
			best, bestRange, found = p, d, true
		}
	}
	return best, found
}

// project calls the engine and turns a panic into an error for that sample.
func project(proj PixelProjector, x, y int) (p r3.Vec, err error) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.Debugf("[col] projection panic at %d,%d: %v", x, y, r)
			err = errProjection
		}
	}()
	return proj.Point3DFromPixel(x, y)
}

// ResetOrigin clears the map when the vehicle's local position was zeroed,
// since obstacles keyed to the old origin are wrong. It reports whether the
// map was cleared.
func (u *Updater) ResetOrigin(localNED r3.Vec) bool {
	if localNED.X != 0 || localNED.Y != 0 {
		return false
	}
	u.m.Reset()
	monitoring.Debugf("[col] map reset at new origin")
	return true
}
