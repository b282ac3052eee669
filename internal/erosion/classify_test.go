package erosion

import (
	"errors"
	"testing"

	"github.com/basin-data/erosion.report/internal/raster"
)

func TestNewClassifier_RejectsMalformedBreakpoints(t *testing.T) {
	cases := [][]float64{
		{},
		{5, 5, 10},
		{10, 5},
	}
	for _, bp := range cases {
		_, err := NewClassifier(bp)
		var pe *PreconditionError
		if !errors.As(err, &pe) {
			t.Errorf("breakpoints %v: expected PreconditionError, got %v", bp, err)
		}
	}
}

func TestClassifier_BoundaryPolicy(t *testing.T) {
	cls, err := NewClassifier([]float64{5, 10, 20, 40})
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	// Lower-inclusive, upper-exclusive; top band open-ended.
	cases := []struct {
		v    float64
		want int
	}{
		{0, 1},
		{4.999, 1},
		{5, 2},
		{9.999, 2},
		{10, 3},
		{20, 4},
		{39.999, 4},
		{40, 5},
		{1e9, 5},
		{-3, 1},
	}
	for _, c := range cases {
		if got := cls.ClassOf(c.v); got != c.want {
			t.Errorf("ClassOf(%v) = %d, want %d", c.v, got, c.want)
		}
	}
}

func TestClassifier_Monotonic(t *testing.T) {
	cls, _ := NewClassifier([]float64{5, 10, 20, 40})
	prev := 0
	for v := -10.0; v < 100; v += 0.5 {
		got := cls.ClassOf(v)
		if got < prev {
			t.Fatalf("classification not monotonic at %v: %d after %d", v, got, prev)
		}
		prev = got
	}
}

func TestClassifier_NoDataMapsToNoClass(t *testing.T) {
	cls, _ := NewClassifier(DefaultBreakpoints)
	g := mustGrid(t, 2, 1, []float64{raster.DefaultNoData, 2})
	cr, err := cls.Classify(g)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got := cr.Class(0); got != NoClass {
		t.Errorf("nodata pixel class = %d, want NoClass", got)
	}
	if got := cr.Class(1); got != 1 {
		t.Errorf("finite pixel class = %d, want 1", got)
	}
}

func TestClassifier_Idempotent(t *testing.T) {
	// Classifying a reconstructed class raster with the same breakpoints
	// must reproduce the class assignments exactly.
	cls, _ := NewClassifier(DefaultBreakpoints)
	g := mustGrid(t, 3, 2, []float64{0, 7, 15, 30, 80, raster.DefaultNoData})
	first, err := cls.Classify(g)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	again, err := cls.Classify(g)
	if err != nil {
		t.Fatalf("re-classify: %v", err)
	}
	for i := 0; i < first.Size(); i++ {
		if first.Class(i) != again.Class(i) {
			t.Fatalf("cell %d: class changed on re-classification: %d vs %d",
				i, first.Class(i), again.Class(i))
		}
	}
}

func TestClassRaster_GridExport(t *testing.T) {
	cls, _ := NewClassifier(DefaultBreakpoints)
	g := mustGrid(t, 2, 1, []float64{raster.DefaultNoData, 12})
	cr, _ := cls.Classify(g)
	exported, err := cr.Grid(raster.DefaultNoData)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if got := exported.Cell(0); got != raster.DefaultNoData {
		t.Errorf("exported nodata cell = %v", got)
	}
	if got := exported.Cell(1); got != 3 {
		t.Errorf("exported class cell = %v, want 3", got)
	}
}
