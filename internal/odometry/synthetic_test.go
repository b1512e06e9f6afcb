package odometry

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestSyntheticReanchorsOnReset(t *testing.T) {
	s := NewSynthetic(1)
	depth := image.NewGray16(image.Rect(0, 0, 320, 240))

	for i := 0; i < 30; i++ {
		ok, err := s.Process(nil, depth)
		require.NoError(t, err)
		require.True(t, ok)
	}
	moved := s.CameraToWorld()
	assert.Greater(t, r3.Norm(moved.T), 0.1)

	s.Reset()
	anchored := s.CameraToWorld()
	assert.InDelta(t, 0, r3.Norm(anchored.T), 1e-9)
	assert.InDelta(t, 0, anchored.R.Euler().Yaw, 1e-9)
}

func TestSyntheticQualityWithinNoise(t *testing.T) {
	s := NewSynthetic(7)
	for i := 0; i < 100; i++ {
		_, _ = s.Process(nil, nil)
		q := s.Quality()
		assert.GreaterOrEqual(t, q, s.Tracks-s.TrackNoise)
		assert.LessOrEqual(t, q, s.Tracks+s.TrackNoise)
	}
}

func TestSyntheticPointFromPixel(t *testing.T) {
	s := NewSynthetic(1)
	_, _ = s.Process(nil, image.NewGray16(image.Rect(0, 0, 320, 240)))

	p, err := s.Point3DFromPixel(160, 120)
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{Z: s.WallRange}, p)

	_, err = s.Point3DFromPixel(-1, 10)
	assert.True(t, errors.Is(err, ErrNoDepth))
	_, err = s.Point3DFromPixel(320, 10)
	assert.True(t, errors.Is(err, ErrNoDepth))
}

func TestSyntheticHeadingFollowsOrbit(t *testing.T) {
	s := NewSynthetic(1)
	s.FrameRate = 10
	for i := 0; i < 10; i++ {
		_, _ = s.Process(nil, nil)
	}
	// One second at 0.5 m/s on a 5 m orbit is 0.1 rad.
	assert.InDelta(t, 0.1, s.Heading(), 1e-9)
	ned := s.PositionNED()
	assert.InDelta(t, 5*math.Sin(0.1), ned.X, 1e-9)
	assert.InDelta(t, 5*(1-math.Cos(0.1)), ned.Y, 1e-9)
}

func TestFrameSourceStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Frame, 1)
	done := make(chan error, 1)
	go func() {
		done <- FrameSource{Width: 8, Height: 6, Interval: time.Millisecond}.Run(ctx, out)
	}()

	f := <-out
	assert.Equal(t, 8, f.Width())
	assert.Equal(t, 6, f.Height())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("frame source did not stop")
	}
}
