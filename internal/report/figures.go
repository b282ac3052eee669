package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/basin-data/erosion.report/internal/erosion"
	"github.com/basin-data/erosion.report/internal/units"
)

// SaveFigures writes the PNG figures for a completed analysis into
// outputDir, creating it if needed. Returns the paths written.
func SaveFigures(outputDir string, d Data) ([]string, error) {
	if d.Series == nil || d.Series.Len() == 0 {
		return nil, fmt.Errorf("report: no annual outputs to plot")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("report: create output dir: %w", err)
	}

	var written []string

	trendFile := filepath.Join(outputDir, "annual_mean_trend.png")
	if err := saveTrendFigure(trendFile, d); err != nil {
		return written, err
	}
	written = append(written, trendFile)

	spreadFile := filepath.Join(outputDir, "annual_spread.png")
	if err := saveSpreadFigure(spreadFile, d); err != nil {
		return written, err
	}
	written = append(written, spreadFile)

	return written, nil
}

// saveTrendFigure plots annual mean soil loss against year, with the
// fitted regression line when a trend summary is present.
func saveTrendFigure(path string, d Data) error {
	p := plot.New()
	p.Title.Text = "Annual Mean Soil Loss"
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Mean soil loss (" + units.Label(d.Units) + ")"

	var pts plotter.XYs
	for _, out := range d.Series.Outputs() {
		if out.Stats.Degenerate {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(out.Year), Y: units.ConvertLoss(out.Stats.Mean, d.Units)})
	}
	if len(pts) == 0 {
		return fmt.Errorf("report: every year is degenerate, nothing to plot")
	}

	meanLine, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("report: mean line: %w", err)
	}
	meanLine.Width = vg.Points(1.5)
	meanLine.Color = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	p.Add(meanLine)
	p.Legend.Add("mean", meanLine)

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("report: mean points: %w", err)
	}
	p.Add(scatter)

	if d.Trend != nil {
		var fit plotter.XYs
		for _, year := range d.Series.Years() {
			fit = append(fit, plotter.XY{
				X: float64(year),
				Y: units.ConvertLoss(d.Trend.Intercept+d.Trend.Slope*float64(year), d.Units),
			})
		}
		fitLine, err := plotter.NewLine(fit)
		if err != nil {
			return fmt.Errorf("report: trend line: %w", err)
		}
		fitLine.Width = vg.Points(1)
		fitLine.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		fitLine.Color = color.RGBA{R: 0xd3, G: 0x2f, B: 0x2f, A: 0xff}
		p.Add(fitLine)
		p.Legend.Add(fmt.Sprintf("trend (%.3f/yr)", units.ConvertLoss(d.Trend.Slope, d.Units)), fitLine)
	}

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("report: save %s: %w", path, err)
	}
	return nil
}

// saveSpreadFigure plots the interquartile band and the p90/p95 tails of
// the annual distributions.
func saveSpreadFigure(path string, d Data) error {
	p := plot.New()
	p.Title.Text = "Annual Soil Loss Spread"
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Soil loss (" + units.Label(d.Units) + ")"

	quantiles := []struct {
		name  string
		pick  func(erosion.Stats) float64
		color color.RGBA
	}{
		{"p25", func(s erosion.Stats) float64 { return s.P25 }, color.RGBA{R: 0x66, G: 0xbb, B: 0x6a, A: 0xff}},
		{"median", func(s erosion.Stats) float64 { return s.Median }, color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}},
		{"p75", func(s erosion.Stats) float64 { return s.P75 }, color.RGBA{R: 0xff, G: 0x98, B: 0x00, A: 0xff}},
		{"p95", func(s erosion.Stats) float64 { return s.P95 }, color.RGBA{R: 0xd3, G: 0x2f, B: 0x2f, A: 0xff}},
	}

	for _, q := range quantiles {
		var pts plotter.XYs
		for _, out := range d.Series.Outputs() {
			if out.Stats.Degenerate {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(out.Year), Y: units.ConvertLoss(q.pick(out.Stats), d.Units)})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("report: %s line: %w", q.name, err)
		}
		line.Width = vg.Points(1)
		line.Color = q.color
		p.Add(line)
		p.Legend.Add(q.name, line)
	}

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("report: save %s: %w", path, err)
	}
	return nil
}
