package erosion

import (
	"testing"

	"github.com/basin-data/erosion.report/internal/raster"
)

const testCRS = "EPSG:32643"

var testTransform = raster.Transform{500000, 90, 0, 2060180, 0, -90}

// mustGrid builds a width x height grid with the shared test geometry.
func mustGrid(t *testing.T, width, height int, cells []float64) *raster.Grid {
	t.Helper()
	g, err := raster.New(width, height, testTransform, testCRS, raster.DefaultNoData, cells)
	if err != nil {
		t.Fatalf("building test grid: %v", err)
	}
	return g
}

// mustFilled builds a grid with every cell set to value.
func mustFilled(t *testing.T, width, height int, value float64) *raster.Grid {
	t.Helper()
	g, err := raster.NewFilled(width, height, testTransform, testCRS, raster.DefaultNoData, value)
	if err != nil {
		t.Fatalf("building test grid: %v", err)
	}
	return g
}

// unitLayers builds five co-registered factor layers for a year, all cells
// fixed at 1.0 except the rainfall grid which is supplied by the caller.
func unitLayers(t *testing.T, year int, rainfall *raster.Grid) []FactorLayer {
	t.Helper()
	w, h := rainfall.Width, rainfall.Height
	return []FactorLayer{
		NewFactorLayer(FactorRainfall, year, rainfall),
		NewFactorLayer(FactorSoil, year, mustFilled(t, w, h, 1)),
		NewFactorLayer(FactorTopographic, year, mustFilled(t, w, h, 1)),
		NewFactorLayer(FactorCover, year, mustFilled(t, w, h, 1)),
		NewFactorLayer(FactorPractice, year, mustFilled(t, w, h, 1)),
	}
}

// mustOutput fuses, classifies and summarises one year with the default
// breakpoints.
func mustOutput(t *testing.T, year int, rainfall *raster.Grid) AnnualOutput {
	t.Helper()
	fused, err := Fuse(year, unitLayers(t, year, rainfall))
	if err != nil {
		t.Fatalf("fuse year %d: %v", year, err)
	}
	cls, err := NewClassifier(DefaultBreakpoints)
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	classes, err := cls.Classify(fused)
	if err != nil {
		t.Fatalf("classify year %d: %v", year, err)
	}
	stats, err := ComputeStats(year, fused, classes, cls.NumClasses())
	if err != nil {
		t.Fatalf("stats year %d: %v", year, err)
	}
	return AnnualOutput{Year: year, SoilLoss: fused, Classes: classes, Stats: stats}
}
