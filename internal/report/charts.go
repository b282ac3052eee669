// Package report turns a completed analysis into human-readable products:
// an HTML dashboard, PNG figures and a CSV table of the annual statistics.
package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/basin-data/erosion.report/internal/erosion"
	"github.com/basin-data/erosion.report/internal/units"
)

// Data bundles the analysis products a report draws from. Trend, Change
// and Literature may be nil when the run stopped before the series-level
// stages; the report degrades to the per-year charts it can still draw.
type Data struct {
	Label      string
	Series     *erosion.Series
	Trend      *erosion.TrendSummary
	Change     *erosion.ChangeSummary
	Literature *erosion.LiteratureReview
	// Units selects the display unit for loss rates; empty means t/ha/yr.
	Units string
}

// RenderHTML writes the full report page to w: the annual mean trend, the
// severity class composition per year and the endpoint change summary.
func RenderHTML(w io.Writer, d Data) error {
	if d.Series == nil || d.Series.Len() == 0 {
		return fmt.Errorf("report: no annual outputs to report on")
	}

	page := components.NewPage()
	page.PageTitle = pageTitle(d)
	page.AddCharts(meanTrendChart(d))
	page.AddCharts(classCompositionChart(d.Series))
	if d.Change != nil {
		page.AddCharts(changeChart(d.Change))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("report: render page: %w", err)
	}
	return nil
}

func pageTitle(d Data) string {
	if d.Label != "" {
		return "Soil Loss Report: " + d.Label
	}
	return "Soil Loss Report"
}

// meanTrendChart plots the annual mean soil loss with the fitted trend
// line overlaid when a trend summary is available.
func meanTrendChart(d Data) *charts.Line {
	unitLabel := units.Label(d.Units)
	years := d.Series.Years()
	x := make([]string, len(years))
	means := make([]opts.LineData, len(years))
	for i, out := range d.Series.Outputs() {
		x[i] = fmt.Sprintf("%d", out.Year)
		if out.Stats.Degenerate {
			means[i] = opts.LineData{Value: nil}
		} else {
			means[i] = opts.LineData{Value: units.ConvertLoss(out.Stats.Mean, d.Units)}
		}
	}

	subtitle := ""
	if d.Trend != nil {
		subtitle = fmt.Sprintf("slope=%.3f %s per year, r2=%.3f, change=%.1f%%",
			units.ConvertLoss(d.Trend.Slope, d.Units), unitLabel, d.Trend.RSquared, d.Trend.PercentChange)
	}
	if d.Literature != nil {
		if subtitle != "" {
			subtitle += " · "
		}
		subtitle += fmt.Sprintf("literature check: %s", d.Literature.Status)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Annual Mean Soil Loss (%s)", unitLabel), Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: unitLabel}),
	)
	line.SetXAxis(x).AddSeries("mean", means,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)

	if d.Trend != nil {
		fitted := make([]opts.LineData, len(years))
		for i, year := range years {
			fitted[i] = opts.LineData{Value: units.ConvertLoss(d.Trend.Intercept+d.Trend.Slope*float64(year), d.Units)}
		}
		line.AddSeries("trend", fitted,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}),
		)
	}
	return line
}

// classCompositionChart renders the severity class shares per year as a
// stacked percentage bar chart, one series per class in its report color.
func classCompositionChart(series *erosion.Series) *charts.Bar {
	years := series.Years()
	x := make([]string, len(years))
	for i, y := range years {
		x[i] = fmt.Sprintf("%d", y)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Severity Class Composition"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "% of valid area", Max: 100}),
	)
	bar.SetXAxis(x)

	numClasses := classCount(series)
	for class := 1; class <= numClasses; class++ {
		y := make([]opts.BarData, len(years))
		for i, out := range series.Outputs() {
			y[i] = opts.BarData{Value: out.Stats.ClassFractions[class] * 100}
		}
		label := erosion.ClassLabels[class]
		if label == "" {
			label = fmt.Sprintf("Class %d", class)
		}
		seriesOpts := []charts.SeriesOpts{
			charts.WithBarChartOpts(opts.BarChart{Stack: "classes"}),
		}
		if color, ok := erosion.ClassColors[class]; ok {
			seriesOpts = append(seriesOpts, charts.WithItemStyleOpts(opts.ItemStyle{Color: color}))
		}
		bar.AddSeries(label, y, seriesOpts...)
	}
	return bar
}

// changeChart summarises the endpoint class transitions as a bar chart.
func changeChart(change *erosion.ChangeSummary) *charts.Bar {
	x := []string{"Improved", "Unchanged", "Worsened"}
	y := []opts.BarData{
		{Value: change.ImprovedPercent, ItemStyle: &opts.ItemStyle{Color: "#006837"}},
		{Value: change.UnchangedPercent, ItemStyle: &opts.ItemStyle{Color: "#9E9E9E"}},
		{Value: change.WorsenedPercent, ItemStyle: &opts.ItemStyle{Color: "#D32F2F"}},
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Class Transitions %d to %d", change.FromYear, change.ToYear),
			Subtitle: fmt.Sprintf("%d pixels compared, stable band ±%g t/ha/yr", change.ComparedPixels, change.StableBand),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "% of compared pixels", Max: 100}),
	)
	bar.SetXAxis(x).AddSeries("transitions", y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}
