// Package occupancy maintains the obstacle grid fed from depth scan-lines
// and renders it for the debug surface.
package occupancy

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"
)

// Map is the grid as seen by the updater.
type Map interface {
	// Update records an obstacle at point seen from vehicle, both NED.
	Update(vehicle, point r3.Vec) bool
	// Reset discards every cell.
	Reset()
	// Locked reports whether a bulk transfer holds the grid.
	Locked() bool
}

// MaxHits caps the hit count of a cell so that a long-seen obstacle decays
// within a few passes once it is gone.
const MaxHits = 10

// MaxSize is the largest number of cells per side a grid may have.
const MaxSize = 2000

// Cell is one occupied grid cell.
type Cell struct {
	Row    int     `json:"row"`
	Col    int     `json:"col"`
	North  float64 `json:"n"`
	East   float64 `json:"e"`
	Hits   int     `json:"hits"`
	Height float64 `json:"h"`
}

// Grid is a square 2-D occupancy grid centred on the NED origin. Each cell
// keeps a hit count and the highest obstacle seen in it. Writes are refused
// while the grid is locked for transfer.
type Grid struct {
	resolution float64
	extent     float64
	size       int

	locked atomic.Bool

	mu      sync.Mutex
	hits    []uint8
	height  []float64
	changed map[int]struct{}
}

// NewGrid returns an empty grid with the given cell size and side length in
// metres.
func NewGrid(resolution, extent float64) *Grid {
	size := int(math.Ceil(extent / resolution))
	return &Grid{
		resolution: resolution,
		extent:     extent,
		size:       size,
		hits:       make([]uint8, size*size),
		height:     make([]float64, size*size),
		changed:    make(map[int]struct{}),
	}
}

// Resolution returns the cell size in metres.
func (g *Grid) Resolution() float64 { return g.resolution }

// Extent returns the side length in metres.
func (g *Grid) Extent() float64 { return g.extent }

// Size returns the number of cells per side.
func (g *Grid) Size() int { return g.size }

// Locked implements Map.
func (g *Grid) Locked() bool { return g.locked.Load() }

// Lock marks the grid as held by a bulk transfer. It reports false if the
// grid was already locked.
func (g *Grid) Lock() bool { return g.locked.CompareAndSwap(false, true) }

// Unlock releases the transfer lock.
func (g *Grid) Unlock() { g.locked.Store(false) }

func (g *Grid) cellOf(n, e float64) (row, col int, ok bool) {
	half := g.extent / 2
	row = int(math.Floor((n + half) / g.resolution))
	col = int(math.Floor((e + half) / g.resolution))
	ok = row >= 0 && col >= 0 && row < g.size && col < g.size
	return row, col, ok
}

func (g *Grid) centre(row, col int) (n, e float64) {
	half := g.extent / 2
	return (float64(row)+0.5)*g.resolution - half, (float64(col)+0.5)*g.resolution - half
}

// Update implements Map. Cells on the ray between vehicle and point lose one
// hit, the cell holding point gains one. Points outside the grid are ignored.
func (g *Grid) Update(vehicle, point r3.Vec) bool {
	if g.locked.Load() {
		return false
	}
	pr, pc, ok := g.cellOf(point.X, point.Y)
	if !ok {
		return false
	}
	vr, vc, vok := g.cellOf(vehicle.X, vehicle.Y)

	g.mu.Lock()
	defer g.mu.Unlock()

	if vok {
		walkLine(vr, vc, pr, pc, func(r, c int) {
			i := r*g.size + c
			if g.hits[i] > 0 {
				g.hits[i]--
				g.changed[i] = struct{}{}
			}
		})
	}

	i := pr*g.size + pc
	if g.hits[i] < MaxHits {
		g.hits[i]++
	}
	if h := -point.Z; h > g.height[i] {
		g.height[i] = h
	}
	g.changed[i] = struct{}{}
	return true
}

// walkLine visits the cells from (r0,c0) towards (r1,c1), excluding the end
// cell, using Bresenham's algorithm.
func walkLine(r0, c0, r1, c1 int, visit func(r, c int)) {
	dr, dc := abs(r1-r0), -abs(c1-c0)
	sr, sc := sign(r1-r0), sign(c1-c0)
	err := dr + dc
	for r0 != r1 || c0 != c1 {
		visit(r0, c0)
		e2 := 2 * err
		if e2 >= dc {
			err += dc
			r0 += sr
		}
		if e2 <= dr {
			err += dr
			c0 += sc
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// Reset implements Map.
func (g *Grid) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.hits {
		g.hits[i] = 0
		g.height[i] = 0
	}
	g.changed = make(map[int]struct{})
}

// Invalidate marks every occupied cell as changed so the next transfers
// resend the whole grid.
func (g *Grid) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, h := range g.hits {
		if h > 0 {
			g.changed[i] = struct{}{}
		}
	}
}

// Pending returns the number of changed cells not yet transferred.
func (g *Grid) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.changed)
}

// Transfer takes up to max pending changes (all if max <= 0) in row-major
// order while holding the transfer lock. Cells that were cleared come back
// with zero hits. It returns nil if another transfer holds the lock.
func (g *Grid) Transfer(max int) []Cell {
	if !g.Lock() {
		return nil
	}
	defer g.Unlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	idx := make([]int, 0, len(g.changed))
	for i := range g.changed {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	if max > 0 && len(idx) > max {
		idx = idx[:max]
	}

	cells := make([]Cell, 0, len(idx))
	for _, i := range idx {
		cells = append(cells, g.cellAt(i))
		delete(g.changed, i)
	}
	return cells
}

// Snapshot returns every occupied cell in row-major order.
func (g *Grid) Snapshot() []Cell {
	g.mu.Lock()
	defer g.mu.Unlock()

	var cells []Cell
	for i, h := range g.hits {
		if h > 0 {
			cells = append(cells, g.cellAt(i))
		}
	}
	return cells
}

// Restore loads cells, typically from a stored snapshot, replacing the
// current contents.
func (g *Grid) Restore(cells []Cell) {
	g.Reset()
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range cells {
		if c.Row < 0 || c.Col < 0 || c.Row >= g.size || c.Col >= g.size {
			continue
		}
		i := c.Row*g.size + c.Col
		g.hits[i] = uint8(min(c.Hits, MaxHits))
		g.height[i] = c.Height
		g.changed[i] = struct{}{}
	}
}

// At returns the cell containing the NED point (n, e).
func (g *Grid) At(n, e float64) (Cell, bool) {
	r, c, ok := g.cellOf(n, e)
	if !ok {
		return Cell{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cellAt(r*g.size + c), true
}

func (g *Grid) cellAt(i int) Cell {
	row, col := i/g.size, i%g.size
	n, e := g.centre(row, col)
	return Cell{Row: row, Col: col, North: n, East: e, Hits: int(g.hits[i]), Height: g.height[i]}
}
