package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/basin-data/erosion.report/internal/config"
	"github.com/basin-data/erosion.report/internal/erosion"
	"github.com/basin-data/erosion.report/internal/monitoring"
	"github.com/basin-data/erosion.report/internal/raster"
)

// Options configures a Runner. Zero values fall back to the defaults used
// throughout the analysis.
type Options struct {
	Breakpoints       []float64
	CoverageThreshold float64
	MinYearsForTrend  int
	ChangeStableBand  float64
	Literature        erosion.LiteratureBand
	// Workers is the number of parallel year workers; 0 or 1 processes
	// years sequentially.
	Workers int
	// AbortOnFindings stops the run when validation findings are present
	// instead of proceeding with flagged layers.
	AbortOnFindings bool
}

// OptionsFromConfig builds Options from a loaded AnalysisConfig.
func OptionsFromConfig(cfg *config.AnalysisConfig) Options {
	return Options{
		Breakpoints:       cfg.GetBreakpoints(),
		CoverageThreshold: cfg.GetCoverageThreshold(),
		MinYearsForTrend:  cfg.GetMinYearsForTrend(),
		ChangeStableBand:  cfg.GetChangeStableBand(),
		Literature: erosion.LiteratureBand{
			Min:         cfg.GetLiteratureMin(),
			Max:         cfg.GetLiteratureMax(),
			AbsoluteMax: cfg.GetLiteratureAbsoluteMax(),
		},
		Workers: cfg.GetWorkers(),
	}
}

// Result is everything a completed run produced.
type Result struct {
	Series     *erosion.Series
	Findings   []erosion.Finding
	Temporal   *erosion.TemporalResult
	Change     *erosion.ChangeResult
	Literature erosion.LiteratureReview
}

// Runner drives the full analysis: per-year validation, fusion,
// classification and statistics, then the series-level products.
type Runner struct {
	opts       Options
	provider   LayerProvider
	classifier *erosion.Classifier
}

// NewRunner validates the options and builds a Runner.
func NewRunner(provider LayerProvider, opts Options) (*Runner, error) {
	if provider == nil {
		return nil, fmt.Errorf("pipeline: provider is required")
	}
	if len(opts.Breakpoints) == 0 {
		opts.Breakpoints = erosion.DefaultBreakpoints
	}
	classifier, err := erosion.NewClassifier(opts.Breakpoints)
	if err != nil {
		return nil, err
	}
	if opts.MinYearsForTrend < 2 {
		opts.MinYearsForTrend = 2
	}
	if opts.Literature == (erosion.LiteratureBand{}) {
		opts.Literature = erosion.DefaultLiteratureBand()
	}
	return &Runner{opts: opts, provider: provider, classifier: classifier}, nil
}

// yearResult is the collect-point record for one worker's output.
type yearResult struct {
	output   erosion.AnnualOutput
	findings []erosion.Finding
	err      error
}

// Run processes every year and then the series-level analysis. Years are
// independent during per-year processing, so with Workers > 1 they run in
// parallel worker tasks writing into a pre-sized year-indexed slice; the
// collect point is the only synchronisation boundary. Cancellation is
// honoured between years, not mid-pixel-loop.
func (r *Runner) Run(ctx context.Context, years []int) (*Result, error) {
	if len(years) == 0 {
		return nil, fmt.Errorf("pipeline: no years supplied")
	}

	results := make([]yearResult, len(years))

	workers := r.opts.Workers
	if workers <= 1 {
		for i, year := range years {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = r.processYear(ctx, year)
		}
	} else {
		// Arena+index: each worker writes only its own slot.
		var wg sync.WaitGroup
		sem := make(chan struct{}, workers)
		for i, year := range years {
			if err := ctx.Err(); err != nil {
				break
			}
			wg.Add(1)
			sem <- struct{}{}
			go func(i, year int) {
				defer wg.Done()
				defer func() { <-sem }()
				results[i] = r.processYear(ctx, year)
			}(i, year)
		}
		wg.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	var findings []erosion.Finding
	outputs := make([]erosion.AnnualOutput, 0, len(years))
	for i, yr := range results {
		if yr.err != nil {
			return nil, fmt.Errorf("year %d: %w", years[i], yr.err)
		}
		findings = append(findings, yr.findings...)
		outputs = append(outputs, yr.output)
	}

	if len(findings) > 0 {
		for _, f := range findings {
			monitoring.Logf("validation: %s", f)
		}
		if r.opts.AbortOnFindings {
			return nil, fmt.Errorf("pipeline: aborting on %d validation findings", len(findings))
		}
	}

	// Workers may have completed out of order; the series sorts by year.
	series, err := erosion.NewSeries(outputs)
	if err != nil {
		return nil, err
	}

	if cf := erosion.ConsistencyFindings(series); len(cf) > 0 {
		for _, f := range cf {
			monitoring.Logf("validation: %s", f)
		}
		findings = append(findings, cf...)
	}

	result := &Result{Series: series, Findings: findings}

	// Series-level products need at least two years; a single-year run
	// still yields stats, classes and the literature review.
	if series.Len() >= 2 {
		analyzer := erosion.NewAnalyzer(r.opts.MinYearsForTrend, r.classifier.NumClasses())
		result.Temporal, err = analyzer.Analyze(series)
		if err != nil {
			return nil, err
		}
		result.Change, err = erosion.MapChange(series, r.opts.ChangeStableBand)
		if err != nil {
			return nil, err
		}
	} else {
		monitoring.Logf("single-year run: skipping trend and change analysis")
	}
	result.Literature = erosion.ReviewAgainstLiterature(series, r.opts.Literature)

	if result.Temporal != nil {
		monitoring.Logf("run complete: %d years, %d findings, trend slope %.4f t/ha/yr, change %.2f%%, literature %s",
			series.Len(), len(findings), result.Temporal.Trend.Slope,
			result.Temporal.Trend.PercentChange, result.Literature.Status)
	} else {
		monitoring.Logf("run complete: %d years, %d findings, literature %s",
			series.Len(), len(findings), result.Literature.Status)
	}

	return result, nil
}

// ValidateYears runs input validation for every year without fusing or
// classifying anything. Used by validate-only invocations.
func (r *Runner) ValidateYears(ctx context.Context, years []int) ([]erosion.Finding, error) {
	if len(years) == 0 {
		return nil, fmt.Errorf("pipeline: no years supplied")
	}
	var findings []erosion.Finding
	for _, year := range years {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		layers, err := r.provider.Layers(ctx, year)
		if err != nil {
			return nil, fmt.Errorf("year %d: acquiring layers: %w", year, err)
		}
		validator := erosion.NewValidator(referenceGrid(layers))
		validator.CoverageThreshold = r.opts.CoverageThreshold
		for _, layer := range layers {
			findings = append(findings, validator.Validate(layer)...)
		}
	}
	return findings, nil
}

// processYear walks one year through the Validated -> Fused -> Classified
// stages and computes its statistics.
func (r *Runner) processYear(ctx context.Context, year int) yearResult {
	layers, err := r.provider.Layers(ctx, year)
	if err != nil {
		return yearResult{err: fmt.Errorf("acquiring layers: %w", err)}
	}

	reference := referenceGrid(layers)
	validator := erosion.NewValidator(reference)
	validator.CoverageThreshold = r.opts.CoverageThreshold

	var findings []erosion.Finding
	for _, layer := range layers {
		findings = append(findings, validator.Validate(layer)...)
	}

	fused, err := erosion.Fuse(year, layers)
	if err != nil {
		return yearResult{err: err, findings: findings}
	}
	classes, err := r.classifier.Classify(fused)
	if err != nil {
		return yearResult{err: err, findings: findings}
	}
	stats, err := erosion.ComputeStats(year, fused, classes, r.classifier.NumClasses())
	if err != nil {
		return yearResult{err: err, findings: findings}
	}
	if stats.Degenerate {
		monitoring.Logf("year %d: all pixels nodata; statistics degenerate", year)
	}

	return yearResult{
		output: erosion.AnnualOutput{
			Year:     year,
			SoilLoss: fused,
			Classes:  classes,
			Stats:    stats,
		},
		findings: findings,
	}
}

// referenceGrid picks the co-registration reference for a year's layers.
// The topographic grid anchors the run (everything is aligned to the DEM
// grid upstream); the first layer serves as fallback.
func referenceGrid(layers []erosion.FactorLayer) *raster.Grid {
	for _, l := range layers {
		if l.Kind == erosion.FactorTopographic && l.Grid != nil {
			return l.Grid
		}
	}
	if len(layers) > 0 {
		return layers[0].Grid
	}
	return nil
}
