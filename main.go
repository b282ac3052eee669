package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/basin-data/erosion.report/api"
	"github.com/basin-data/erosion.report/internal/config"
	"github.com/basin-data/erosion.report/internal/erosion"
	"github.com/basin-data/erosion.report/internal/pipeline"
	"github.com/basin-data/erosion.report/internal/raster"
	"github.com/basin-data/erosion.report/internal/report"
	"github.com/basin-data/erosion.report/internal/store"
	"github.com/basin-data/erosion.report/internal/units"
	"github.com/basin-data/erosion.report/internal/version"
)

var (
	configPath    = flag.String("config", "", "Path to analysis config JSON (defaults apply when empty)")
	dataDir       = flag.String("data", "", "Directory holding the factor rasters")
	yearsFlag     = flag.String("years", "", "Years to analyse: a range like 2016-2025 or a comma list")
	outputDir     = flag.String("out", "output", "Directory for report products")
	dbPath        = flag.String("db", "erosion_runs.db", "SQLite database path (empty disables persistence)")
	migrationsDir = flag.String("migrations", "db/migrations", "Directory holding schema migrations")
	label         = flag.String("label", "", "Label for the persisted run")
	workers       = flag.Int("workers", 0, "Parallel year workers (overrides config when > 0)")
	validateOnly  = flag.Bool("validate-only", false, "Run input validation and stop")
	writeRasters  = flag.Bool("write-rasters", false, "Write fused, class, change and hotspot rasters")
	unitsFlag     = flag.String("units", units.THa, "Display units for report charts (tha, kgm2, tacre, tkm2)")
	serve         = flag.Bool("serve", false, "Serve the run archive over HTTP instead of running an analysis")
	listen        = flag.String("listen", ":8080", "Listen address for -serve")
)

func main() {
	flag.Parse()
	log.Printf("erosion.report %s (%s)", version.Version, version.GitSHA)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serve {
		if err := runServer(ctx); err != nil {
			log.Fatalf("server: %v", err)
		}
		return
	}

	if err := runAnalysis(ctx); err != nil {
		log.Fatalf("analysis: %v", err)
	}
}

func runServer(ctx context.Context) error {
	if *dbPath == "" {
		return fmt.Errorf("-serve requires -db")
	}
	db, err := store.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.MigrateUp(*migrationsDir); err != nil {
		return err
	}
	return api.NewServer(*listen, db).Start(ctx)
}

func runAnalysis(ctx context.Context) error {
	if *dataDir == "" {
		return fmt.Errorf("-data is required")
	}
	if !units.IsValid(*unitsFlag) {
		return fmt.Errorf("-units must be one of %s", units.GetValidUnitsString())
	}
	years, err := parseYears(*yearsFlag)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	opts := pipeline.OptionsFromConfig(cfg)
	if *workers > 0 {
		opts.Workers = *workers
	}
	opts.AbortOnFindings = *validateOnly

	provider := pipeline.NewDirProvider(*dataDir)
	for kind := range provider.Ranges {
		if r, ok := cfg.GetFactorRange(string(kind)); ok {
			provider.Ranges[kind] = erosion.ValueRange{Min: r.Min, Max: r.Max}
		}
	}
	runner, err := pipeline.NewRunner(provider, opts)
	if err != nil {
		return err
	}

	if *validateOnly {
		findings, err := runner.ValidateYears(ctx, years)
		if err != nil {
			return err
		}
		if len(findings) == 0 {
			log.Printf("validation passed for %d years", len(years))
			return nil
		}
		for _, f := range findings {
			log.Printf("finding: %s", f)
		}
		return fmt.Errorf("%d validation findings", len(findings))
	}

	result, err := runner.Run(ctx, years)
	if err != nil {
		return err
	}
	logResult(result)

	if *dbPath != "" {
		if err := persistResult(result, opts, years); err != nil {
			return err
		}
	}
	return writeProducts(result, cfg.GetNoData())
}

func loadConfig(path string) (*config.AnalysisConfig, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			path = config.DefaultConfigPath
		} else {
			return &config.AnalysisConfig{}, nil
		}
	}
	return config.LoadAnalysisConfig(path)
}

func logResult(result *pipeline.Result) {
	for _, out := range result.Series.Outputs() {
		log.Printf("year %d: %s", out.Year, out.Stats)
	}
	if result.Temporal != nil {
		t := result.Temporal.Trend
		log.Printf("trend: slope=%.4f t/ha/yr per year, r2=%.3f, change=%.1f%% over %d-%d",
			t.Slope, t.RSquared, t.PercentChange, t.FirstYear, t.LastYear)
		log.Printf("hotspot: %d persistent highest-class pixels", result.Temporal.Hotspot.TrueCount())
	}
	if result.Change != nil {
		c := result.Change.Summary
		log.Printf("change %d-%d: improved %.1f%%, worsened %.1f%%, unchanged %.1f%%",
			c.FromYear, c.ToYear, c.ImprovedPercent, c.WorsenedPercent, c.UnchangedPercent)
	}
	log.Printf("literature check: %s (%s)", result.Literature.Status, result.Literature.Note)
}

func persistResult(result *pipeline.Result, opts pipeline.Options, years []int) error {
	db, err := store.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.MigrateUp(*migrationsDir); err != nil {
		return err
	}

	optsJSON, err := json.Marshal(map[string]interface{}{
		"breakpoints":        opts.Breakpoints,
		"coverage_threshold": opts.CoverageThreshold,
		"change_stable_band": opts.ChangeStableBand,
		"workers":            opts.Workers,
	})
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	runs := store.NewRunStore(db)
	run := &store.Run{
		Label:       *label,
		StartYear:   years[0],
		EndYear:     years[len(years)-1],
		OptionsJSON: optsJSON,
	}
	if err := runs.InsertRun(run); err != nil {
		return err
	}
	for _, out := range result.Series.Outputs() {
		if err := runs.InsertYearStats(run.RunID, out.Stats); err != nil {
			return err
		}
	}
	if err := runs.InsertFindings(run.RunID, result.Findings); err != nil {
		return err
	}
	sum := store.RunSummaries{Literature: &result.Literature}
	if result.Temporal != nil {
		sum.Trend = &result.Temporal.Trend
	}
	if result.Change != nil {
		sum.Change = &result.Change.Summary
	}
	if err := runs.InsertSummaries(run.RunID, sum); err != nil {
		return err
	}
	log.Printf("persisted run %s", run.RunID)
	return nil
}

func writeProducts(result *pipeline.Result, nodata float64) error {
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	data := report.Data{Label: *label, Series: result.Series, Literature: &result.Literature, Units: *unitsFlag}
	if result.Temporal != nil {
		data.Trend = &result.Temporal.Trend
	}
	if result.Change != nil {
		data.Change = &result.Change.Summary
	}

	htmlPath := filepath.Join(*outputDir, "report.html")
	f, err := os.Create(htmlPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", htmlPath, err)
	}
	if err := report.RenderHTML(f, data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	csvPath := filepath.Join(*outputDir, "annual_stats.csv")
	cf, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", csvPath, err)
	}
	if err := report.WriteStatsCSV(cf, result.Series); err != nil {
		cf.Close()
		return err
	}
	if err := cf.Close(); err != nil {
		return err
	}

	figures, err := report.SaveFigures(*outputDir, data)
	if err != nil {
		return err
	}
	log.Printf("wrote %s, %s and %d figures", htmlPath, csvPath, len(figures))

	if *writeRasters {
		return exportRasters(result, nodata)
	}
	return nil
}

func exportRasters(result *pipeline.Result, nodata float64) error {
	for _, out := range result.Series.Outputs() {
		fusedPath := filepath.Join(*outputDir, fmt.Sprintf("soil_loss_%d.asc", out.Year))
		if err := raster.WriteASC(fusedPath, out.SoilLoss); err != nil {
			return err
		}
		classGrid, err := out.Classes.Grid(nodata)
		if err != nil {
			return err
		}
		classPath := filepath.Join(*outputDir, fmt.Sprintf("classes_%d.asc", out.Year))
		if err := raster.WriteASC(classPath, classGrid); err != nil {
			return err
		}
	}
	if result.Change != nil {
		if err := raster.WriteASC(filepath.Join(*outputDir, "change.asc"), result.Change.Diff); err != nil {
			return err
		}
	}
	if result.Temporal != nil {
		hotspotGrid, err := result.Temporal.Hotspot.Grid(nodata)
		if err != nil {
			return err
		}
		if err := raster.WriteASC(filepath.Join(*outputDir, "hotspot.asc"), hotspotGrid); err != nil {
			return err
		}
	}
	log.Printf("wrote rasters to %s", *outputDir)
	return nil
}

// parseYears accepts "2016-2025" or "2016,2018,2020". Years come back
// sorted by the caller's pipeline; duplicates are rejected there.
func parseYears(s string) ([]int, error) {
	if s == "" {
		return nil, fmt.Errorf("-years is required")
	}
	if from, to, ok := strings.Cut(s, "-"); ok {
		start, err := strconv.Atoi(strings.TrimSpace(from))
		if err != nil {
			return nil, fmt.Errorf("bad year range start %q", from)
		}
		end, err := strconv.Atoi(strings.TrimSpace(to))
		if err != nil {
			return nil, fmt.Errorf("bad year range end %q", to)
		}
		if end < start {
			return nil, fmt.Errorf("year range %d-%d is reversed", start, end)
		}
		years := make([]int, 0, end-start+1)
		for y := start; y <= end; y++ {
			years = append(years, y)
		}
		return years, nil
	}
	var years []int
	for _, part := range strings.Split(s, ",") {
		y, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("bad year %q", part)
		}
		years = append(years, y)
	}
	return years, nil
}
