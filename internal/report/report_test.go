package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/basin-data/erosion.report/internal/erosion"
	"github.com/basin-data/erosion.report/internal/raster"
	"github.com/basin-data/erosion.report/internal/units"
)

var testTransform = raster.Transform{500000, 90, 0, 2060180, 0, -90}

// buildSeries assembles a series from uniform per-year soil loss values.
func buildSeries(t *testing.T, byYear map[int]float64) *erosion.Series {
	t.Helper()

	classifier, err := erosion.NewClassifier(erosion.DefaultBreakpoints)
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}

	var outputs []erosion.AnnualOutput
	for year, value := range byYear {
		g, err := raster.NewFilled(2, 2, testTransform, "EPSG:32643", raster.DefaultNoData, value)
		if err != nil {
			t.Fatalf("grid for %d: %v", year, err)
		}
		classes, err := classifier.Classify(g)
		if err != nil {
			t.Fatalf("classify %d: %v", year, err)
		}
		stats, err := erosion.ComputeStats(year, g, classes, classifier.NumClasses())
		if err != nil {
			t.Fatalf("stats %d: %v", year, err)
		}
		outputs = append(outputs, erosion.AnnualOutput{Year: year, SoilLoss: g, Classes: classes, Stats: stats})
	}

	series, err := erosion.NewSeries(outputs)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	return series
}

func buildData(t *testing.T) Data {
	t.Helper()

	series := buildSeries(t, map[int]float64{2016: 8, 2017: 12, 2018: 22})
	analyzer := erosion.NewAnalyzer(2, len(erosion.ClassLabels))
	temporal, err := analyzer.Analyze(series)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	change, err := erosion.MapChange(series, 5)
	if err != nil {
		t.Fatalf("change: %v", err)
	}
	lit := erosion.ReviewAgainstLiterature(series, erosion.DefaultLiteratureBand())

	return Data{
		Label:      "test catchment",
		Series:     series,
		Trend:      &temporal.Trend,
		Change:     &change.Summary,
		Literature: &lit,
	}
}

func TestRenderHTML(t *testing.T) {
	d := buildData(t)

	var buf bytes.Buffer
	if err := RenderHTML(&buf, d); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}

	html := buf.String()
	for _, want := range []string{
		"Annual Mean Soil Loss",
		"Severity Class Composition",
		"Class Transitions 2016 to 2018",
		erosion.ClassLabels[3],
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered page missing %q", want)
		}
	}
}

func TestRenderHTML_WithoutSummaries(t *testing.T) {
	d := Data{Series: buildSeries(t, map[int]float64{2016: 8, 2017: 12})}

	var buf bytes.Buffer
	if err := RenderHTML(&buf, d); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if strings.Contains(buf.String(), "Class Transitions") {
		t.Error("change chart should be omitted without a change summary")
	}
}

func TestRenderHTML_EmptySeries(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, Data{}); err == nil {
		t.Fatal("expected error for empty series")
	}
}

func TestWriteStatsCSV(t *testing.T) {
	series := buildSeries(t, map[int]float64{2016: 8, 2017: 12})

	var buf bytes.Buffer
	if err := WriteStatsCSV(&buf, series); err != nil {
		t.Fatalf("WriteStatsCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want header + 2 rows", len(records))
	}
	if records[0][0] != "year" || records[0][4] != "mean" {
		t.Errorf("unexpected header: %v", records[0])
	}
	if records[1][0] != "2016" || records[1][4] != "8" {
		t.Errorf("unexpected 2016 row: %v", records[1])
	}
	// Uniform value 12 sits in class 3; its fraction column reads 1.
	classCol := 11 + 2 // year..p95 is 11 columns, class_3 is third fraction
	if records[2][classCol] != "1" {
		t.Errorf("2017 class 3 fraction = %q, want 1", records[2][classCol])
	}
}

func TestSaveFigures(t *testing.T) {
	d := buildData(t)
	dir := filepath.Join(t.TempDir(), "figures")

	written, err := SaveFigures(dir, d)
	if err != nil {
		t.Fatalf("SaveFigures: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("got %d figures, want 2", len(written))
	}
	for _, path := range written {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("missing figure %s: %v", path, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("figure %s is empty", path)
		}
	}
}

func TestRenderHTML_UnitsLabel(t *testing.T) {
	d := buildData(t)
	d.Units = units.KgM2

	var buf bytes.Buffer
	if err := RenderHTML(&buf, d); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if !strings.Contains(buf.String(), "kg/m2/yr") {
		t.Error("rendered page missing converted unit label")
	}
}

// buildSeriesWithBreakpoints is buildSeries with a custom class ladder.
func buildSeriesWithBreakpoints(t *testing.T, breakpoints []float64, byYear map[int]float64) *erosion.Series {
	t.Helper()

	classifier, err := erosion.NewClassifier(breakpoints)
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}

	var outputs []erosion.AnnualOutput
	for year, value := range byYear {
		g, err := raster.NewFilled(2, 2, testTransform, "EPSG:32643", raster.DefaultNoData, value)
		if err != nil {
			t.Fatalf("grid for %d: %v", year, err)
		}
		classes, err := classifier.Classify(g)
		if err != nil {
			t.Fatalf("classify %d: %v", year, err)
		}
		stats, err := erosion.ComputeStats(year, g, classes, classifier.NumClasses())
		if err != nil {
			t.Fatalf("stats %d: %v", year, err)
		}
		outputs = append(outputs, erosion.AnnualOutput{Year: year, SoilLoss: g, Classes: classes, Stats: stats})
	}

	series, err := erosion.NewSeries(outputs)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	return series
}

func TestWriteStatsCSV_ClassColumnsFollowBreakpoints(t *testing.T) {
	tests := []struct {
		name        string
		breakpoints []float64
		wantClasses int
	}{
		{"five breakpoints", []float64{5, 10, 20, 40, 80}, 6},
		{"three breakpoints", []float64{10, 20, 40}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := buildSeriesWithBreakpoints(t, tt.breakpoints, map[int]float64{2016: 8, 2017: 12})

			var buf bytes.Buffer
			if err := WriteStatsCSV(&buf, series); err != nil {
				t.Fatalf("WriteStatsCSV: %v", err)
			}
			records, err := csv.NewReader(&buf).ReadAll()
			if err != nil {
				t.Fatalf("parse csv: %v", err)
			}

			wantCols := 11 + tt.wantClasses
			if len(records[0]) != wantCols {
				t.Fatalf("got %d columns, want %d: %v", len(records[0]), wantCols, records[0])
			}
			last := records[0][len(records[0])-1]
			want := fmt.Sprintf("class_%d_fraction", tt.wantClasses)
			if last != want {
				t.Errorf("last column = %q, want %q", last, want)
			}
		})
	}
}

func TestRenderHTML_ClassSeriesFollowBreakpoints(t *testing.T) {
	series := buildSeriesWithBreakpoints(t, []float64{5, 10, 20, 40, 80}, map[int]float64{2016: 8, 2017: 60})
	d := Data{Label: "custom ladder", Series: series}

	var buf bytes.Buffer
	if err := RenderHTML(&buf, d); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, "Class 6") {
		t.Error("composition chart missing the sixth class series")
	}
}
