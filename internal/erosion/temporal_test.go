package erosion

import (
	"errors"
	"math"
	"testing"

	"github.com/basin-data/erosion.report/internal/raster"
)

func mustSeries(t *testing.T, outputs ...AnnualOutput) *Series {
	t.Helper()
	s, err := NewSeries(outputs)
	if err != nil {
		t.Fatalf("building series: %v", err)
	}
	return s
}

func TestAnalyzer_RequiresTwoYears(t *testing.T) {
	a := NewAnalyzer(2, 5)
	one := mustOutput(t, 2016, mustFilled(t, 2, 2, 10))
	_, err := a.Analyze(mustSeries(t, one))
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PreconditionError for single-year series, got %v", err)
	}
}

func TestAnalyzer_DeltasAndTrend(t *testing.T) {
	// Means 10, 20, 30 across 2016-2018: slope 10/yr, +200% change.
	s := mustSeries(t,
		mustOutput(t, 2016, mustFilled(t, 2, 2, 10)),
		mustOutput(t, 2017, mustFilled(t, 2, 2, 20)),
		mustOutput(t, 2018, mustFilled(t, 2, 2, 30)),
	)
	res, err := NewAnalyzer(2, 5).Analyze(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Deltas) != 2 {
		t.Fatalf("got %d deltas, want 2", len(res.Deltas))
	}
	if res.Deltas[0].FromYear != 2016 || res.Deltas[0].ToYear != 2017 {
		t.Errorf("first delta spans %d-%d, want 2016-2017", res.Deltas[0].FromYear, res.Deltas[0].ToYear)
	}
	for i := 0; i < res.Deltas[0].Diff.Size(); i++ {
		if got := res.Deltas[0].Diff.Cell(i); got != 10 {
			t.Errorf("delta cell %d = %v, want 10", i, got)
		}
	}

	if math.Abs(res.Trend.Slope-10) > 1e-9 {
		t.Errorf("Slope = %v, want 10", res.Trend.Slope)
	}
	if math.Abs(res.Trend.RSquared-1) > 1e-9 {
		t.Errorf("RSquared = %v, want 1", res.Trend.RSquared)
	}
	if math.Abs(res.Trend.PercentChange-200) > 1e-9 {
		t.Errorf("PercentChange = %v, want 200", res.Trend.PercentChange)
	}
	if res.Trend.IncreasedPixels != 4 || res.Trend.DecreasedPixels != 0 {
		t.Errorf("increased/decreased = %d/%d, want 4/0",
			res.Trend.IncreasedPixels, res.Trend.DecreasedPixels)
	}
}

func TestAnalyzer_DeltaNoDataWhereEitherSideMissing(t *testing.T) {
	a := mustOutput(t, 2016, mustGrid(t, 2, 1, []float64{10, raster.DefaultNoData}))
	b := mustOutput(t, 2017, mustGrid(t, 2, 1, []float64{15, 20}))
	res, err := NewAnalyzer(2, 5).Analyze(mustSeries(t, a, b))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	diff := res.Deltas[0].Diff
	if got := diff.Cell(0); got != 5 {
		t.Errorf("cell 0 = %v, want 5", got)
	}
	if got := diff.Cell(1); got != diff.NoData {
		t.Errorf("cell 1 = %v, want nodata", got)
	}
}

func TestAnalyzer_HotspotConjunction(t *testing.T) {
	// Pixel 0 stays >= 40 (class 5) in every year: hotspot.
	// Pixel 1 drops below 40 in 2017: not a hotspot.
	a := mustOutput(t, 2016, mustGrid(t, 2, 1, []float64{50, 45}))
	b := mustOutput(t, 2017, mustGrid(t, 2, 1, []float64{60, 30}))
	c := mustOutput(t, 2018, mustGrid(t, 2, 1, []float64{41, 70}))
	res, err := NewAnalyzer(2, 5).Analyze(mustSeries(t, a, b, c))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Hotspot.Bit(0) {
		t.Error("pixel 0 is class 5 every year; hotspot must be true")
	}
	if res.Hotspot.Bit(1) {
		t.Error("pixel 1 left class 5 in one year; hotspot must be false")
	}
	if got := res.Hotspot.TrueCount(); got != 1 {
		t.Errorf("TrueCount = %d, want 1", got)
	}
}

func TestAnalyzer_HotspotFlipsOnSingleYear(t *testing.T) {
	// Conjunction law: flipping any single year's pixel away from the top
	// class must clear the mask pixel.
	base := []AnnualOutput{
		mustOutput(t, 2016, mustFilled(t, 1, 1, 50)),
		mustOutput(t, 2017, mustFilled(t, 1, 1, 50)),
		mustOutput(t, 2018, mustFilled(t, 1, 1, 50)),
	}
	res, err := NewAnalyzer(2, 5).Analyze(mustSeries(t, base...))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Hotspot.Bit(0) {
		t.Fatal("all-years class 5 pixel must be a hotspot")
	}

	for flip := 0; flip < len(base); flip++ {
		outputs := make([]AnnualOutput, len(base))
		copy(outputs, base)
		outputs[flip] = mustOutput(t, 2016+flip, mustFilled(t, 1, 1, 10))
		res, err := NewAnalyzer(2, 5).Analyze(mustSeries(t, outputs...))
		if err != nil {
			t.Fatalf("year %d flipped: %v", 2016+flip, err)
		}
		if res.Hotspot.Bit(0) {
			t.Errorf("flipping year %d away from class 5 must clear the hotspot", 2016+flip)
		}
	}
}

func TestAnalyzer_DegenerateYearExcludedFromTrend(t *testing.T) {
	s := mustSeries(t,
		mustOutput(t, 2016, mustFilled(t, 2, 2, 10)),
		mustOutput(t, 2017, mustFilled(t, 2, 2, raster.DefaultNoData)),
		mustOutput(t, 2018, mustFilled(t, 2, 2, 30)),
	)
	res, err := NewAnalyzer(2, 5).Analyze(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Trend.ExcludedYears) != 1 || res.Trend.ExcludedYears[0] != 2017 {
		t.Errorf("ExcludedYears = %v, want [2017]", res.Trend.ExcludedYears)
	}
	if len(res.Trend.UsedYears) != 2 {
		t.Errorf("UsedYears = %v, want two years", res.Trend.UsedYears)
	}
	// Percent change uses the usable endpoints: 10 -> 30.
	if math.Abs(res.Trend.PercentChange-200) > 1e-9 {
		t.Errorf("PercentChange = %v, want 200", res.Trend.PercentChange)
	}
	// The degenerate year still participates in deltas, as all-nodata.
	if len(res.Deltas) != 2 {
		t.Fatalf("got %d deltas, want 2", len(res.Deltas))
	}
	for i := 0; i < res.Deltas[0].Diff.Size(); i++ {
		if got := res.Deltas[0].Diff.Cell(i); got != res.Deltas[0].Diff.NoData {
			t.Errorf("delta into degenerate year: cell %d = %v, want nodata", i, got)
		}
	}
	// And it clears the hotspot everywhere.
	if got := res.Hotspot.TrueCount(); got != 0 {
		t.Errorf("hotspot TrueCount = %d, want 0 with a degenerate year present", got)
	}
}

func TestAnalyzer_AllDegenerateFailsTrend(t *testing.T) {
	s := mustSeries(t,
		mustOutput(t, 2016, mustFilled(t, 2, 2, raster.DefaultNoData)),
		mustOutput(t, 2017, mustFilled(t, 2, 2, raster.DefaultNoData)),
	)
	_, err := NewAnalyzer(2, 5).Analyze(s)
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PreconditionError when no usable years remain, got %v", err)
	}
}
