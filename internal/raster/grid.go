// Package raster provides the in-memory grid value type shared by every
// stage of the erosion pipeline.
//
// A Grid is immutable once constructed: pipeline stages build new grids
// rather than mutating inputs, so concurrent readers need no locking.
package raster

import (
	"fmt"
	"math"
)

// DefaultNoData is the sentinel used for pixels with no valid measurement.
// It matches the value used across the upstream factor preparation outputs.
const DefaultNoData = -9999.0

// Transform is a six-element affine pixel-to-coordinate transform in the
// conventional order: x-origin, x-pixel-size, row-rotation, y-origin,
// column-rotation, y-pixel-size (negative for north-up grids).
type Transform [6]float64

// Equal reports whether two transforms match to within a small tolerance.
// Exact float comparison is too strict for transforms that round-tripped
// through text formats.
func (t Transform) Equal(o Transform) bool {
	const eps = 1e-9
	for i := range t {
		if math.Abs(t[i]-o[i]) > eps {
			return false
		}
	}
	return true
}

// Grid is a two-dimensional raster of float64 values plus the metadata
// needed to co-register it against other grids. Cells are stored row-major,
// indexed row*Width+col.
type Grid struct {
	Width     int
	Height    int
	Transform Transform
	CRS       string
	NoData    float64

	cells []float64
}

// New constructs a Grid taking ownership of cells. The buffer length must
// equal width*height.
func New(width, height int, transform Transform, crs string, nodata float64, cells []float64) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("raster: invalid dimensions %dx%d", width, height)
	}
	if len(cells) != width*height {
		return nil, fmt.Errorf("raster: cell buffer length %d does not match %dx%d grid", len(cells), width, height)
	}
	return &Grid{
		Width:     width,
		Height:    height,
		Transform: transform,
		CRS:       crs,
		NoData:    nodata,
		cells:     cells,
	}, nil
}

// NewFilled constructs a Grid with every cell set to value.
func NewFilled(width, height int, transform Transform, crs string, nodata, value float64) (*Grid, error) {
	cells := make([]float64, width*height)
	for i := range cells {
		cells[i] = value
	}
	return New(width, height, transform, crs, nodata, cells)
}

// Like constructs a Grid with the same geometry as g and the given cells.
func Like(g *Grid, cells []float64) (*Grid, error) {
	return New(g.Width, g.Height, g.Transform, g.CRS, g.NoData, cells)
}

// Size returns the number of cells.
func (g *Grid) Size() int { return g.Width * g.Height }

// Idx returns the flat index for (row, col). No bounds checking; callers
// iterate within [0,Height)x[0,Width).
func (g *Grid) Idx(row, col int) int { return row*g.Width + col }

// At returns the value at (row, col).
func (g *Grid) At(row, col int) float64 { return g.cells[row*g.Width+col] }

// Cell returns the value at flat index i.
func (g *Grid) Cell(i int) float64 { return g.cells[i] }

// Cells returns a copy of the cell buffer. The internal buffer is never
// exposed so a constructed Grid stays immutable.
func (g *Grid) Cells() []float64 {
	out := make([]float64, len(g.cells))
	copy(out, g.cells)
	return out
}

// IsNoData reports whether v is the grid's nodata sentinel or non-finite.
func (g *Grid) IsNoData(v float64) bool {
	return v == g.NoData || math.IsNaN(v) || math.IsInf(v, 0)
}

// ValidCount returns the number of finite, non-nodata cells.
func (g *Grid) ValidCount() int {
	n := 0
	for _, v := range g.cells {
		if !g.IsNoData(v) {
			n++
		}
	}
	return n
}

// ValidValues returns the finite, non-nodata cell values in row-major order.
func (g *Grid) ValidValues() []float64 {
	out := make([]float64, 0, len(g.cells))
	for _, v := range g.cells {
		if !g.IsNoData(v) {
			out = append(out, v)
		}
	}
	return out
}

// SameShape reports whether g and o have identical dimensions.
func (g *Grid) SameShape(o *Grid) bool {
	return g.Width == o.Width && g.Height == o.Height
}

// CoRegistered reports whether g and o share identical width, height,
// transform and CRS. Grids that are not co-registered must never be
// combined cell-by-cell.
func (g *Grid) CoRegistered(o *Grid) bool {
	return g.SameShape(o) && g.Transform.Equal(o.Transform) && g.CRS == o.CRS
}

// CellAreaHectares derives the per-pixel area in hectares from the affine
// transform. Zero if the transform carries no pixel size (degenerate).
func (g *Grid) CellAreaHectares() float64 {
	w := math.Abs(g.Transform[1])
	h := math.Abs(g.Transform[5])
	return w * h / 10000.0
}
