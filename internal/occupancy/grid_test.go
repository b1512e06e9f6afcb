package occupancy

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

var origin = r3.Vec{}

func TestNewGridSize(t *testing.T) {
	g := NewGrid(0.5, 10)
	assert.Equal(t, 20, g.Size())
	assert.Equal(t, 0.5, g.Resolution())
	assert.Equal(t, 10.0, g.Extent())
	assert.Empty(t, g.Snapshot())
}

func TestGridUpdateRecordsHitAndHeight(t *testing.T) {
	g := NewGrid(0.5, 10)
	require.True(t, g.Update(origin, r3.Vec{X: 1, Y: 0, Z: -0.5}))
	require.True(t, g.Update(origin, r3.Vec{X: 1.1, Y: 0.1, Z: -1.2}))

	c, ok := g.At(1, 0)
	require.True(t, ok)
	assert.Equal(t, 12, c.Row)
	assert.Equal(t, 10, c.Col)
	assert.Equal(t, 2, c.Hits)
	assert.InDelta(t, 1.2, c.Height, 1e-12)
	assert.InDelta(t, 1.25, c.North, 1e-12)
	assert.InDelta(t, 0.25, c.East, 1e-12)
}

func TestGridHitsSaturate(t *testing.T) {
	g := NewGrid(0.5, 10)
	for i := 0; i < MaxHits+5; i++ {
		g.Update(origin, r3.Vec{X: 2, Z: -1})
	}
	c, _ := g.At(2, 0)
	assert.Equal(t, MaxHits, c.Hits)
}

func TestGridRayClearsCellsInFront(t *testing.T) {
	g := NewGrid(0.5, 10)
	g.Update(origin, r3.Vec{X: 1, Z: -1})
	// The obstacle moved further away along the same bearing.
	g.Update(origin, r3.Vec{X: 2, Z: -1})

	near, _ := g.At(1, 0)
	far, _ := g.At(2, 0)
	assert.Equal(t, 0, near.Hits)
	assert.Equal(t, 1, far.Hits)
}

func TestGridIgnoresPointsOutside(t *testing.T) {
	g := NewGrid(0.5, 10)
	assert.False(t, g.Update(origin, r3.Vec{X: 100, Z: -1}))
	assert.Equal(t, 0, g.Pending())
	_, ok := g.At(-6, 0)
	assert.False(t, ok)
}

func TestGridLockRefusesWrites(t *testing.T) {
	g := NewGrid(0.5, 10)
	require.True(t, g.Lock())
	assert.False(t, g.Lock())
	assert.True(t, g.Locked())

	assert.False(t, g.Update(origin, r3.Vec{X: 1, Z: -1}))
	assert.Nil(t, g.Transfer(0), "transfer must not run while another holds the lock")

	g.Unlock()
	assert.False(t, g.Locked())
	assert.True(t, g.Update(origin, r3.Vec{X: 1, Z: -1}))
}

func TestGridTransfer(t *testing.T) {
	g := NewGrid(0.5, 10)
	g.Update(origin, r3.Vec{X: 1, Z: -1})
	g.Update(origin, r3.Vec{X: -1, Y: 2, Z: -1})
	g.Update(origin, r3.Vec{X: 3, Y: -3, Z: -1})
	require.Equal(t, 3, g.Pending())

	first := g.Transfer(1)
	require.Len(t, first, 1)
	assert.Equal(t, 8, first[0].Row, "lowest row goes first")
	assert.Equal(t, 2, g.Pending())

	rest := g.Transfer(0)
	require.Len(t, rest, 2)
	assert.Less(t, rest[0].Row, rest[1].Row)
	assert.Equal(t, 0, g.Pending())
	assert.False(t, g.Locked())
	assert.Empty(t, g.Transfer(0))
}

func TestGridTransferIncludesClearedCells(t *testing.T) {
	g := NewGrid(0.5, 10)
	g.Update(origin, r3.Vec{X: 1, Z: -1})
	g.Transfer(0)

	g.Update(origin, r3.Vec{X: 2, Z: -1})
	cells := g.Transfer(0)

	var cleared []Cell
	for _, c := range cells {
		if c.Hits == 0 {
			cleared = append(cleared, c)
		}
	}
	require.Len(t, cleared, 1)
	assert.Equal(t, 12, cleared[0].Row)
}

func TestGridInvalidateResendsOccupied(t *testing.T) {
	g := NewGrid(0.5, 10)
	g.Update(origin, r3.Vec{X: 1, Z: -1})
	g.Update(origin, r3.Vec{Y: 1, Z: -1})
	g.Transfer(0)
	require.Equal(t, 0, g.Pending())

	g.Invalidate()
	assert.Equal(t, 2, g.Pending())
}

func TestGridReset(t *testing.T) {
	g := NewGrid(0.5, 10)
	g.Update(origin, r3.Vec{X: 1, Z: -1})
	g.Reset()
	assert.Empty(t, g.Snapshot())
	assert.Equal(t, 0, g.Pending())
}

func TestGridSnapshotRestore(t *testing.T) {
	src := NewGrid(0.5, 10)
	src.Update(origin, r3.Vec{X: 1, Z: -0.7})
	src.Update(origin, r3.Vec{X: -2, Y: 1.5, Z: -2})
	src.Update(origin, r3.Vec{X: -2, Y: 1.5, Z: -2})

	dst := NewGrid(0.5, 10)
	dst.Restore(src.Snapshot())
	if diff := cmp.Diff(src.Snapshot(), dst.Snapshot()); diff != "" {
		t.Errorf("restored grid mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, dst.Pending())
}

func TestGridRestoreClampsInput(t *testing.T) {
	g := NewGrid(0.5, 10)
	g.Restore([]Cell{
		{Row: 1, Col: 1, Hits: 50, Height: 1},
		{Row: -1, Col: 0, Hits: 1},
		{Row: 0, Col: 20, Hits: 1},
	})
	cells := g.Snapshot()
	require.Len(t, cells, 1)
	assert.Equal(t, MaxHits, cells[0].Hits)
}

func TestWalkLine(t *testing.T) {
	tests := []struct {
		name           string
		r0, c0, r1, c1 int
		want           [][2]int
	}{
		{"same cell", 3, 3, 3, 3, nil},
		{"straight", 0, 0, 0, 3, [][2]int{{0, 0}, {0, 1}, {0, 2}}},
		{"diagonal", 0, 0, 2, 2, [][2]int{{0, 0}, {1, 1}}},
		{"backwards", 2, 0, 0, 0, [][2]int{{2, 0}, {1, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got [][2]int
			walkLine(tt.r0, tt.c0, tt.r1, tt.c1, func(r, c int) {
				got = append(got, [2]int{r, c})
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderPNG(t *testing.T) {
	cells := []Cell{
		{Row: 1, Col: 1, North: 1, East: 0, Hits: 3, Height: 0.5},
		{Row: 2, Col: 1, North: 2, East: 0, Hits: 1, Height: 1.5},
	}
	var buf bytes.Buffer
	require.NoError(t, RenderPNG(&buf, cells, 10))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	buf.Reset()
	require.NoError(t, RenderPNG(&buf, nil, 10))
	assert.NotZero(t, buf.Len())
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, []Cell{{North: 1, East: 2, Hits: 1, Height: 2}}, 10))
	assert.Contains(t, buf.String(), "Occupancy Grid")
	assert.Contains(t, buf.String(), "echarts")
}
