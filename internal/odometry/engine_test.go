package odometry

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnavailableNeverTracks(t *testing.T) {
	var e Engine = Unavailable{}
	ok, err := e.Process(nil, image.NewGray16(image.Rect(0, 0, 4, 4)))
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNoCamera)
	assert.Zero(t, e.Quality())

	_, err = e.Point3DFromPixel(1, 1)
	assert.ErrorIs(t, err, ErrNoDepth)
}

func TestFrameSize(t *testing.T) {
	assert.Zero(t, Frame{}.Width())
	f := Frame{Gray: image.NewGray(image.Rect(0, 0, 8, 6))}
	assert.Equal(t, 8, f.Width())
	assert.Equal(t, 6, f.Height())
}
