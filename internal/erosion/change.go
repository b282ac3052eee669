package erosion

import (
	"github.com/basin-data/erosion.report/internal/raster"
)

// ChangeSummary describes how the study area shifted between the first and
// last year of the series.
type ChangeSummary struct {
	FromYear int `json:"from_year"`
	ToYear   int `json:"to_year"`

	// Class transitions over pixels classified in both years. Improved
	// means a lower severity class in the last year.
	ComparedPixels   int     `json:"compared_pixels"`
	ImprovedPixels   int     `json:"improved_pixels"`
	WorsenedPixels   int     `json:"worsened_pixels"`
	UnchangedPixels  int     `json:"unchanged_pixels"`
	ImprovedPercent  float64 `json:"improved_percent"`
	WorsenedPercent  float64 `json:"worsened_percent"`
	UnchangedPercent float64 `json:"unchanged_percent"`

	// Raw-value breakdown with a stable band: a pixel counts as increased
	// or decreased only when the difference leaves ±StableBand.
	StableBand      float64 `json:"stable_band"`
	IncreasedPixels int     `json:"increased_pixels"`
	DecreasedPixels int     `json:"decreased_pixels"`
	StablePixels    int     `json:"stable_pixels"`
}

// ChangeResult is the endpoint difference raster plus its summary.
type ChangeResult struct {
	Diff    *raster.Grid
	Summary ChangeSummary
}

// MapChange computes the bounded-endpoint change product: the difference
// raster lastYear - firstYear (by year order) and the class-transition
// summary. Pure and stateless; intermediate years play no part.
// stableBand widens the "stable" category of the raw-value breakdown; 0
// counts any nonzero difference.
func MapChange(series *Series, stableBand float64) (*ChangeResult, error) {
	if series.Len() < 2 {
		return nil, preconditionf(0, "", "change mapping needs at least 2 years, got %d", series.Len())
	}
	first, last := series.First(), series.Last()
	if !first.SoilLoss.CoRegistered(last.SoilLoss) {
		return nil, preconditionf(last.Year, "", "endpoint grids not co-registered")
	}

	diff, err := diffGrids(last.SoilLoss, first.SoilLoss)
	if err != nil {
		return nil, err
	}

	summary := ChangeSummary{
		FromYear:   first.Year,
		ToYear:     last.Year,
		StableBand: stableBand,
	}

	for i := 0; i < first.SoilLoss.Size(); i++ {
		fromClass := first.Classes.Class(i)
		toClass := last.Classes.Class(i)
		if fromClass != NoClass && toClass != NoClass {
			summary.ComparedPixels++
			switch {
			case toClass < fromClass:
				summary.ImprovedPixels++
			case toClass > fromClass:
				summary.WorsenedPixels++
			default:
				summary.UnchangedPixels++
			}
		}

		d := diff.Cell(i)
		if diff.IsNoData(d) {
			continue
		}
		switch {
		case d > stableBand:
			summary.IncreasedPixels++
		case d < -stableBand:
			summary.DecreasedPixels++
		default:
			summary.StablePixels++
		}
	}

	if summary.ComparedPixels > 0 {
		n := float64(summary.ComparedPixels)
		summary.ImprovedPercent = float64(summary.ImprovedPixels) / n * 100
		summary.WorsenedPercent = float64(summary.WorsenedPixels) / n * 100
		summary.UnchangedPercent = float64(summary.UnchangedPixels) / n * 100
	}

	return &ChangeResult{Diff: diff, Summary: summary}, nil
}
