// Package systems holds the per-tick simulation rules shared by both engine backends.
package systems

import (
	"github.com/pthm-cable/evosim/components"
)

// Neighbor holds a nearby entity with precomputed spatial data.
// Index refers to the slot in the snapshot slice the grid was built from.
type Neighbor struct {
	Index  int
	DX, DY float64 // Toroidal delta from query origin
	DistSq float64
}

// SpatialGrid provides bucketed neighbor lookups on a toroidal world.
// It is rebuilt once per tick and only read while workers run.
type SpatialGrid struct {
	cellW  float64
	cellH  float64
	cols   int
	rows   int
	width  float64
	height float64
	cells  [][]int // flat grid of slot lists
}

// NewSpatialGrid creates a spatial grid covering the given world size.
// Cells are stretched so they tile the world exactly, which keeps wrapped
// neighbor columns aligned with the world edge.
func NewSpatialGrid(width, height, cellSize float64) *SpatialGrid {
	cols := max(1, int(width/cellSize))
	rows := max(1, int(height/cellSize))

	cells := make([][]int, cols*rows)
	for i := range cells {
		cells[i] = make([]int, 0, 8)
	}

	return &SpatialGrid{
		cellW:  width / float64(cols),
		cellH:  height / float64(rows),
		cols:   cols,
		rows:   rows,
		width:  width,
		height: height,
		cells:  cells,
	}
}

// Clear removes all entries from the grid.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds a slot to the grid at the given position.
func (g *SpatialGrid) Insert(slot int, x, y float64) {
	idx := g.cellIndex(x, y)
	g.cells[idx] = append(g.cells[idx], slot)
}

// Rebuild clears the grid and inserts every position by slot.
func (g *SpatialGrid) Rebuild(positions []components.Position) {
	g.Clear()
	for i, p := range positions {
		g.Insert(i, p.X, p.Y)
	}
}

// QueryRadiusInto appends every slot within radius to dst.
// positions must be the slice the grid was built from. exclude < 0 excludes nothing.
// Results come back in cell order then insertion order, which is stable for a given build.
func (g *SpatialGrid) QueryRadiusInto(dst []Neighbor, x, y, radius float64, exclude int, positions []components.Position) []Neighbor {
	// A radius wider than the world would visit wrapped cells twice
	colSpan := min(2*(int(radius/g.cellW)+1)+1, g.cols)
	rowSpan := min(2*(int(radius/g.cellH)+1)+1, g.rows)

	centerCol := int(x / g.cellW)
	centerRow := int(y / g.cellH)
	startCol := centerCol - colSpan/2
	startRow := centerRow - rowSpan/2

	radiusSq := radius * radius

	for dc := 0; dc < colSpan; dc++ {
		for dr := 0; dr < rowSpan; dr++ {
			col := mod(startCol+dc, g.cols)
			row := mod(startRow+dr, g.rows)
			idx := row*g.cols + col

			for _, slot := range g.cells[idx] {
				if slot == exclude {
					continue
				}
				p := positions[slot]
				dx, dy := ToroidalDelta(x, y, p.X, p.Y, g.width, g.height)
				distSq := dx*dx + dy*dy

				if distSq <= radiusSq {
					dst = append(dst, Neighbor{Index: slot, DX: dx, DY: dy, DistSq: distSq})
				}
			}
		}
	}

	return dst
}

// cellIndex returns the flat index for a world position.
func (g *SpatialGrid) cellIndex(x, y float64) int {
	col := int(x / g.cellW)
	row := int(y / g.cellH)

	// Clamp to valid range
	if col < 0 {
		col = 0
	} else if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= g.rows {
		row = g.rows - 1
	}

	return row*g.cols + col
}

// ToroidalDelta returns the shortest path delta from (x1,y1) to (x2,y2).
func ToroidalDelta(x1, y1, x2, y2, w, h float64) (dx, dy float64) {
	dx = x2 - x1
	dy = y2 - y1

	if dx > w/2 {
		dx -= w
	} else if dx < -w/2 {
		dx += w
	}
	if dy > h/2 {
		dy -= h
	} else if dy < -h/2 {
		dy += h
	}

	return dx, dy
}
