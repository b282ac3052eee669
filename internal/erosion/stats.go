package erosion

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/basin-data/erosion.report/internal/raster"
)

// Stats summarises the distribution of one year's soil-loss grid over its
// finite pixels, plus the fraction of those pixels in each severity class.
//
// Degenerate marks a year with zero finite pixels. A degenerate Stats
// carries no meaningful scalar values and must be excluded from scalar
// trend arithmetic; it is an explicit state, never NaN propagation.
type Stats struct {
	Year       int     `json:"year"`
	Degenerate bool    `json:"degenerate"`
	Count      int     `json:"count"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Mean       float64 `json:"mean"`
	Median     float64 `json:"median"`
	StdDev     float64 `json:"std_dev"`
	P25        float64 `json:"p25"`
	P75        float64 `json:"p75"`
	P90        float64 `json:"p90"`
	P95        float64 `json:"p95"`

	// ClassFractions maps severity class to its share of finite pixels.
	// Fractions sum to 1 within floating-point tolerance for any
	// non-degenerate year.
	ClassFractions map[int]float64 `json:"class_fractions"`
}

// ComputeStats summarises the fused grid and its class raster for one year.
// The two rasters must share geometry (they are produced from the same
// fusion output); a mismatch is a *PreconditionError.
func ComputeStats(year int, g *raster.Grid, classes *ClassRaster, numClasses int) (Stats, error) {
	if g.Width != classes.Width || g.Height != classes.Height {
		return Stats{}, preconditionf(year, "",
			"class raster %dx%d does not match soil-loss grid %dx%d",
			classes.Width, classes.Height, g.Width, g.Height)
	}

	values := g.ValidValues()
	if len(values) == 0 {
		return Stats{Year: year, Degenerate: true, ClassFractions: map[int]float64{}}, nil
	}

	sort.Float64s(values)
	s := Stats{
		Year:   year,
		Count:  len(values),
		Min:    values[0],
		Max:    values[len(values)-1],
		Mean:   stat.Mean(values, nil),
		Median: stat.Quantile(0.5, stat.Empirical, values, nil),
		P25:    stat.Quantile(0.25, stat.Empirical, values, nil),
		P75:    stat.Quantile(0.75, stat.Empirical, values, nil),
		P90:    stat.Quantile(0.90, stat.Empirical, values, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, values, nil),
	}
	if len(values) > 1 {
		s.StdDev = stat.StdDev(values, nil)
	}

	counts := make(map[int]int, numClasses)
	finite := 0
	for i := 0; i < classes.Size(); i++ {
		cl := classes.Class(i)
		if cl == NoClass {
			continue
		}
		counts[cl]++
		finite++
	}
	s.ClassFractions = make(map[int]float64, numClasses)
	for cl := 1; cl <= numClasses; cl++ {
		if finite > 0 {
			s.ClassFractions[cl] = float64(counts[cl]) / float64(finite)
		} else {
			s.ClassFractions[cl] = 0
		}
	}

	return s, nil
}

func (s Stats) String() string {
	if s.Degenerate {
		return fmt.Sprintf("year %d: no data", s.Year)
	}
	return fmt.Sprintf("year %d: n=%d mean=%.2f median=%.2f p95=%.2f", s.Year, s.Count, s.Mean, s.Median, s.P95)
}
