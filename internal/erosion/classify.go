package erosion

import (
	"fmt"

	"github.com/basin-data/erosion.report/internal/raster"
)

// NoClass is the class sentinel for nodata pixels. It is distinct from
// every severity class: valid classes are 1..NumClasses.
const NoClass = 0

// DefaultBreakpoints are the severity band boundaries in t/ha/yr.
// Four boundaries produce five bands: [0,5) [5,10) [10,20) [20,40) [40,inf).
var DefaultBreakpoints = []float64{5, 10, 20, 40}

// ClassLabels maps severity class (1..5) to its display label.
var ClassLabels = map[int]string{
	1: "Very Low Degradation",
	2: "Low Degradation",
	3: "Moderate Degradation",
	4: "High Degradation",
	5: "Very High Degradation",
}

// ClassColors maps severity class (1..5) to its report color.
var ClassColors = map[int]string{
	1: "#006837",
	2: "#7CB342",
	3: "#FFEB3B",
	4: "#FF9800",
	5: "#D32F2F",
}

// ClassRaster is an ordinal severity-class raster sharing geometry with the
// soil-loss grid it was derived from. Classes are stored per cell as
// 1..NumClasses, or NoClass for nodata pixels. Immutable once built.
type ClassRaster struct {
	Width     int
	Height    int
	Transform raster.Transform
	CRS       string

	classes []uint8
}

// NumClasses for k breakpoints is k+1.
func NumClasses(breakpoints []float64) int { return len(breakpoints) + 1 }

// At returns the class at (row, col).
func (c *ClassRaster) At(row, col int) int { return int(c.classes[row*c.Width+col]) }

// Class returns the class at flat index i.
func (c *ClassRaster) Class(i int) int { return int(c.classes[i]) }

// Size returns the number of cells.
func (c *ClassRaster) Size() int { return c.Width * c.Height }

// Classes returns a copy of the class buffer.
func (c *ClassRaster) Classes() []uint8 {
	out := make([]uint8, len(c.classes))
	copy(out, c.classes)
	return out
}

// Grid renders the class raster as a float grid (classes as values, NoClass
// cells as nodata) for export through the raster writers.
func (c *ClassRaster) Grid(nodata float64) (*raster.Grid, error) {
	cells := make([]float64, len(c.classes))
	for i, cl := range c.classes {
		if cl == NoClass {
			cells[i] = nodata
		} else {
			cells[i] = float64(cl)
		}
	}
	return raster.New(c.Width, c.Height, c.Transform, c.CRS, nodata, cells)
}

// Classifier maps a continuous soil-loss grid to severity classes using
// fixed ascending breakpoints. Band boundaries are lower-inclusive and
// upper-exclusive throughout; the top band is open-ended.
type Classifier struct {
	breakpoints []float64
}

// NewClassifier validates the breakpoints (non-empty, strictly ascending)
// and returns a Classifier. A malformed list is a *PreconditionError.
func NewClassifier(breakpoints []float64) (*Classifier, error) {
	if len(breakpoints) == 0 {
		return nil, preconditionf(0, "", "breakpoints must be non-empty")
	}
	for i := 1; i < len(breakpoints); i++ {
		if breakpoints[i] <= breakpoints[i-1] {
			return nil, preconditionf(0, "", "breakpoints must be strictly ascending, got %g after %g",
				breakpoints[i], breakpoints[i-1])
		}
	}
	bp := make([]float64, len(breakpoints))
	copy(bp, breakpoints)
	return &Classifier{breakpoints: bp}, nil
}

// Breakpoints returns a copy of the configured boundaries.
func (c *Classifier) Breakpoints() []float64 {
	out := make([]float64, len(c.breakpoints))
	copy(out, c.breakpoints)
	return out
}

// NumClasses returns the number of severity bands.
func (c *Classifier) NumClasses() int { return len(c.breakpoints) + 1 }

// ClassOf maps a single finite value to its severity class: the smallest
// band whose upper bound exceeds v, with values at or above the last
// breakpoint in the open-ended top band. Monotonic in v.
func (c *Classifier) ClassOf(v float64) int {
	for i, b := range c.breakpoints {
		if v < b {
			return i + 1
		}
	}
	return len(c.breakpoints) + 1
}

// Classify maps every pixel of the soil-loss grid to its severity class.
// Nodata and non-finite pixels map to NoClass, never to a valid band.
func (c *Classifier) Classify(g *raster.Grid) (*ClassRaster, error) {
	if c.NumClasses() > 255 {
		return nil, fmt.Errorf("erosion: too many classes (%d) for class raster", c.NumClasses())
	}
	classes := make([]uint8, g.Size())
	for i := range classes {
		v := g.Cell(i)
		if g.IsNoData(v) {
			classes[i] = NoClass
			continue
		}
		classes[i] = uint8(c.ClassOf(v))
	}
	return &ClassRaster{
		Width:     g.Width,
		Height:    g.Height,
		Transform: g.Transform,
		CRS:       g.CRS,
		classes:   classes,
	}, nil
}
