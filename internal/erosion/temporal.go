package erosion

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/basin-data/erosion.report/internal/raster"
)

// YearDelta is the difference raster between two consecutive years in the
// sorted series (not necessarily consecutive calendar years when the series
// has gaps). Diff = ToYear - FromYear, nodata where either side is nodata.
type YearDelta struct {
	FromYear int
	ToYear   int
	Diff     *raster.Grid
}

// TrendSummary holds the scalar multi-year trend results.
type TrendSummary struct {
	FirstYear int `json:"first_year"`
	LastYear  int `json:"last_year"`
	// Years used for the scalar computations; degenerate years are listed
	// in ExcludedYears instead and take no part in the regression or the
	// percent change.
	UsedYears     []int `json:"used_years"`
	ExcludedYears []int `json:"excluded_years,omitempty"`

	// Linear regression of annual mean soil loss against year.
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`

	// Percent change of the mean between the first and last usable years.
	PercentChange float64 `json:"percent_change"`

	// Pixel-wise comparison between the first and last year's grids, over
	// pixels finite in both.
	ComparedPixels    int     `json:"compared_pixels"`
	IncreasedPixels   int     `json:"increased_pixels"`
	DecreasedPixels   int     `json:"decreased_pixels"`
	UnchangedPixels   int     `json:"unchanged_pixels"`
	IncreasedFraction float64 `json:"increased_fraction"`
	DecreasedFraction float64 `json:"decreased_fraction"`

	// Year-to-year consistency of the annual means.
	MeanAbsYearChange float64 `json:"mean_abs_year_change"`
	MaxAbsYearChange  float64 `json:"max_abs_year_change"`
}

// Mask is a boolean raster sharing geometry with the series grids.
// Read-only once computed.
type Mask struct {
	Width     int
	Height    int
	Transform raster.Transform
	CRS       string

	bits []bool
}

// At returns the mask value at (row, col).
func (m *Mask) At(row, col int) bool { return m.bits[row*m.Width+col] }

// Bit returns the mask value at flat index i.
func (m *Mask) Bit(i int) bool { return m.bits[i] }

// Size returns the number of cells.
func (m *Mask) Size() int { return m.Width * m.Height }

// TrueCount returns the number of set cells.
func (m *Mask) TrueCount() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

// Grid renders the mask as a 0/1 float grid for export.
func (m *Mask) Grid(nodata float64) (*raster.Grid, error) {
	cells := make([]float64, len(m.bits))
	for i, b := range m.bits {
		if b {
			cells[i] = 1
		}
	}
	return raster.New(m.Width, m.Height, m.Transform, m.CRS, nodata, cells)
}

// TemporalResult bundles everything the analyzer derives from a series.
type TemporalResult struct {
	Deltas  []YearDelta
	Trend   TrendSummary
	Hotspot *Mask
}

// Analyzer computes inter-year products over a completed series. It is a
// single-pass, non-parallel consumer of the per-year outputs.
type Analyzer struct {
	// MinYears is the minimum number of usable (non-degenerate) years for
	// the scalar trend. At least 2; fewer usable years is a precondition
	// failure.
	MinYears int
	// TopClass is the severity class whose persistence defines a hotspot.
	TopClass int
}

// NewAnalyzer builds an Analyzer for the given classifier configuration.
func NewAnalyzer(minYears, numClasses int) *Analyzer {
	if minYears < 2 {
		minYears = 2
	}
	return &Analyzer{MinYears: minYears, TopClass: numClasses}
}

// Analyze runs delta, trend and hotspot computations over the series.
// The series must hold at least two years and its grids must co-register;
// violations are *PreconditionError.
func (a *Analyzer) Analyze(series *Series) (*TemporalResult, error) {
	if series.Len() < 2 {
		return nil, preconditionf(0, "", "temporal analysis needs at least 2 years, got %d", series.Len())
	}
	ref := series.First().SoilLoss
	for _, o := range series.Outputs() {
		if !ref.CoRegistered(o.SoilLoss) {
			return nil, preconditionf(o.Year, "", "soil-loss grid not co-registered with first year")
		}
	}

	deltas, err := a.deltas(series)
	if err != nil {
		return nil, err
	}
	trend, err := a.trend(series)
	if err != nil {
		return nil, err
	}
	hotspot := a.hotspot(series)

	return &TemporalResult{Deltas: deltas, Trend: trend, Hotspot: hotspot}, nil
}

// deltas builds the difference raster for each consecutive pair of years in
// the sorted series.
func (a *Analyzer) deltas(series *Series) ([]YearDelta, error) {
	outputs := series.Outputs()
	deltas := make([]YearDelta, 0, len(outputs)-1)
	for i := 1; i < len(outputs); i++ {
		earlier, later := outputs[i-1], outputs[i]
		diff, err := diffGrids(later.SoilLoss, earlier.SoilLoss)
		if err != nil {
			return nil, err
		}
		deltas = append(deltas, YearDelta{
			FromYear: earlier.Year,
			ToYear:   later.Year,
			Diff:     diff,
		})
	}
	return deltas, nil
}

// diffGrids returns a-b, nodata where either input is nodata.
func diffGrids(a, b *raster.Grid) (*raster.Grid, error) {
	cells := make([]float64, a.Size())
	for i := range cells {
		av, bv := a.Cell(i), b.Cell(i)
		if a.IsNoData(av) || b.IsNoData(bv) {
			cells[i] = a.NoData
		} else {
			cells[i] = av - bv
		}
	}
	return raster.Like(a, cells)
}

func (a *Analyzer) trend(series *Series) (TrendSummary, error) {
	var usable []AnnualOutput
	var excluded []int
	for _, o := range series.Outputs() {
		if o.Stats.Degenerate {
			excluded = append(excluded, o.Year)
			continue
		}
		usable = append(usable, o)
	}
	if len(usable) < a.MinYears {
		return TrendSummary{}, preconditionf(0, "",
			"trend needs at least %d usable years, got %d (%d degenerate)",
			a.MinYears, len(usable), len(excluded))
	}

	summary := TrendSummary{
		FirstYear:     series.First().Year,
		LastYear:      series.Last().Year,
		ExcludedYears: excluded,
	}

	xs := make([]float64, len(usable))
	ys := make([]float64, len(usable))
	for i, o := range usable {
		xs[i] = float64(o.Year)
		ys[i] = o.Stats.Mean
		summary.UsedYears = append(summary.UsedYears, o.Year)
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	summary.Intercept = alpha
	summary.Slope = beta
	summary.RSquared = stat.RSquared(xs, ys, nil, alpha, beta)

	firstMean := usable[0].Stats.Mean
	lastMean := usable[len(usable)-1].Stats.Mean
	if firstMean != 0 {
		summary.PercentChange = (lastMean - firstMean) / firstMean * 100
	}

	// Year-over-year consistency of the usable means.
	for i := 1; i < len(usable); i++ {
		d := math.Abs(usable[i].Stats.Mean - usable[i-1].Stats.Mean)
		summary.MeanAbsYearChange += d
		if d > summary.MaxAbsYearChange {
			summary.MaxAbsYearChange = d
		}
	}
	if len(usable) > 1 {
		summary.MeanAbsYearChange /= float64(len(usable) - 1)
	}

	// Endpoint pixel comparison over the full series endpoints, degenerate
	// or not: nodata pixels simply never compare.
	first, last := series.First().SoilLoss, series.Last().SoilLoss
	for i := 0; i < first.Size(); i++ {
		fv, lv := first.Cell(i), last.Cell(i)
		if first.IsNoData(fv) || last.IsNoData(lv) {
			continue
		}
		summary.ComparedPixels++
		switch {
		case lv > fv:
			summary.IncreasedPixels++
		case lv < fv:
			summary.DecreasedPixels++
		default:
			summary.UnchangedPixels++
		}
	}
	if summary.ComparedPixels > 0 {
		summary.IncreasedFraction = float64(summary.IncreasedPixels) / float64(summary.ComparedPixels)
		summary.DecreasedFraction = float64(summary.DecreasedPixels) / float64(summary.ComparedPixels)
	}

	return summary, nil
}

// hotspot marks pixels that sit in the top severity class in every year of
// the series. Strict conjunction: one year away from the top class, or
// nodata, clears the pixel.
func (a *Analyzer) hotspot(series *Series) *Mask {
	ref := series.First().Classes
	bits := make([]bool, ref.Size())
	for i := range bits {
		bits[i] = true
	}
	for _, o := range series.Outputs() {
		for i := range bits {
			if o.Classes.Class(i) != a.TopClass {
				bits[i] = false
			}
		}
	}
	return &Mask{
		Width:     ref.Width,
		Height:    ref.Height,
		Transform: ref.Transform,
		CRS:       ref.CRS,
		bits:      bits,
	}
}
