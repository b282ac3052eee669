package erosion

import (
	"sort"

	"github.com/basin-data/erosion.report/internal/raster"
)

// AnnualOutput is the complete per-year product: the fused soil-loss grid,
// its severity-class raster and its statistics. Immutable once built;
// re-processing a year means discarding and recreating its AnnualOutput.
type AnnualOutput struct {
	Year     int
	SoilLoss *raster.Grid
	Classes  *ClassRaster
	Stats    Stats
}

// Series is the ordered collection of AnnualOutput indexed by year.
// Years are strictly increasing; gaps are permitted but explicit, and the
// series never interpolates missing years.
type Series struct {
	outputs []AnnualOutput
}

// NewSeries builds a Series from outputs in any order. Outputs are sorted
// by year; sorting an already-sorted input is a no-op. A duplicate year is
// a *PreconditionError.
func NewSeries(outputs []AnnualOutput) (*Series, error) {
	sorted := make([]AnnualOutput, len(outputs))
	copy(sorted, outputs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Year == sorted[i-1].Year {
			return nil, preconditionf(sorted[i].Year, "", "duplicate year in series")
		}
	}
	return &Series{outputs: sorted}, nil
}

// Len returns the number of years in the series.
func (s *Series) Len() int { return len(s.outputs) }

// Years returns the years in ascending order.
func (s *Series) Years() []int {
	years := make([]int, len(s.outputs))
	for i, o := range s.outputs {
		years[i] = o.Year
	}
	return years
}

// Outputs returns the outputs in year order.
func (s *Series) Outputs() []AnnualOutput {
	out := make([]AnnualOutput, len(s.outputs))
	copy(out, s.outputs)
	return out
}

// At returns the i-th output in year order.
func (s *Series) At(i int) AnnualOutput { return s.outputs[i] }

// First returns the earliest year's output.
func (s *Series) First() AnnualOutput { return s.outputs[0] }

// Last returns the latest year's output.
func (s *Series) Last() AnnualOutput { return s.outputs[len(s.outputs)-1] }

// ByYear returns the output for the given year, if present.
func (s *Series) ByYear(year int) (AnnualOutput, bool) {
	i := sort.Search(len(s.outputs), func(i int) bool { return s.outputs[i].Year >= year })
	if i < len(s.outputs) && s.outputs[i].Year == year {
		return s.outputs[i], true
	}
	return AnnualOutput{}, false
}
