// Package config loads the analysis run configuration.
//
// The schema uses pointer fields so partial JSON files are safe: any field
// omitted from the file falls back to its default through the Get* methods.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/analysis.defaults.json"

// FactorRange is a declared valid numeric range for one factor.
type FactorRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// AnalysisConfig is the root configuration for an analysis run.
type AnalysisConfig struct {
	// Severity classification
	Breakpoints []float64 `json:"breakpoints,omitempty"` // strictly ascending, non-empty

	// Validation
	CoverageThreshold *float64                `json:"coverage_threshold,omitempty"` // fraction in [0,1]
	FactorRanges      map[string]*FactorRange `json:"factor_ranges,omitempty"`      // keyed by factor kind

	// Temporal analysis
	MinYearsForTrend *int     `json:"min_years_for_trend,omitempty"` // >= 2
	ChangeStableBand *float64 `json:"change_stable_band,omitempty"`  // t/ha/yr

	// Literature review band
	LiteratureMin         *float64 `json:"literature_min,omitempty"`
	LiteratureMax         *float64 `json:"literature_max,omitempty"`
	LiteratureAbsoluteMax *float64 `json:"literature_absolute_max,omitempty"`

	// Pipeline
	Workers *int     `json:"workers,omitempty"` // parallel year workers; 0 = sequential
	NoData  *float64 `json:"nodata,omitempty"`
}

// EmptyAnalysisConfig returns an AnalysisConfig with all fields unset.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file. Fields
// omitted from the file retain their defaults, so partial configs are safe.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *AnalysisConfig) Validate() error {
	if len(c.Breakpoints) > 0 {
		for i := 1; i < len(c.Breakpoints); i++ {
			if c.Breakpoints[i] <= c.Breakpoints[i-1] {
				return fmt.Errorf("breakpoints must be strictly ascending, got %g after %g",
					c.Breakpoints[i], c.Breakpoints[i-1])
			}
		}
	}

	if c.CoverageThreshold != nil {
		if *c.CoverageThreshold < 0 || *c.CoverageThreshold > 1 {
			return fmt.Errorf("coverage_threshold must be between 0 and 1, got %f", *c.CoverageThreshold)
		}
	}

	if c.MinYearsForTrend != nil {
		if *c.MinYearsForTrend < 2 {
			return fmt.Errorf("min_years_for_trend must be at least 2, got %d", *c.MinYearsForTrend)
		}
	}

	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	for name, r := range c.FactorRanges {
		if r == nil {
			continue
		}
		if r.Max <= r.Min {
			return fmt.Errorf("factor_ranges[%s]: max %g must exceed min %g", name, r.Max, r.Min)
		}
	}

	return nil
}

// GetBreakpoints returns the severity breakpoints or the default bands.
func (c *AnalysisConfig) GetBreakpoints() []float64 {
	if len(c.Breakpoints) == 0 {
		return []float64{5, 10, 20, 40}
	}
	out := make([]float64, len(c.Breakpoints))
	copy(out, c.Breakpoints)
	return out
}

// GetCoverageThreshold returns the coverage_threshold value or the default.
func (c *AnalysisConfig) GetCoverageThreshold() float64 {
	if c.CoverageThreshold == nil {
		return 0 // full coverage required
	}
	return *c.CoverageThreshold
}

// GetMinYearsForTrend returns the min_years_for_trend value or the default.
func (c *AnalysisConfig) GetMinYearsForTrend() int {
	if c.MinYearsForTrend == nil {
		return 2
	}
	return *c.MinYearsForTrend
}

// GetChangeStableBand returns the change_stable_band value or the default.
func (c *AnalysisConfig) GetChangeStableBand() float64 {
	if c.ChangeStableBand == nil {
		return 5.0
	}
	return *c.ChangeStableBand
}

// GetLiteratureMin returns the literature_min value or the default.
func (c *AnalysisConfig) GetLiteratureMin() float64 {
	if c.LiteratureMin == nil {
		return 8.0
	}
	return *c.LiteratureMin
}

// GetLiteratureMax returns the literature_max value or the default.
func (c *AnalysisConfig) GetLiteratureMax() float64 {
	if c.LiteratureMax == nil {
		return 25.0
	}
	return *c.LiteratureMax
}

// GetLiteratureAbsoluteMax returns the literature_absolute_max value or the default.
func (c *AnalysisConfig) GetLiteratureAbsoluteMax() float64 {
	if c.LiteratureAbsoluteMax == nil {
		return 200.0
	}
	return *c.LiteratureAbsoluteMax
}

// GetWorkers returns the workers value or the default.
func (c *AnalysisConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0 // sequential
	}
	return *c.Workers
}

// GetNoData returns the nodata sentinel or the default.
func (c *AnalysisConfig) GetNoData() float64 {
	if c.NoData == nil {
		return -9999.0
	}
	return *c.NoData
}

// GetFactorRange returns the declared range for a factor kind, or ok=false
// when the config carries no override for it.
func (c *AnalysisConfig) GetFactorRange(kind string) (FactorRange, bool) {
	r, ok := c.FactorRanges[kind]
	if !ok || r == nil {
		return FactorRange{}, false
	}
	return *r, true
}
