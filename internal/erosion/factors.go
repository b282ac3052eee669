// Package erosion implements the factor-fusion and temporal-trend engine:
// validation of per-year factor rasters, their fusion into annual soil-loss
// grids, severity classification, distributional statistics, and the
// multi-year trend, persistence and change products derived from the full
// series.
package erosion

import (
	"fmt"

	"github.com/basin-data/erosion.report/internal/raster"
)

// FactorKind identifies one of the five soil-loss drivers.
type FactorKind string

const (
	// FactorRainfall is rainfall erosivity (R), year-specific.
	FactorRainfall FactorKind = "rainfall"
	// FactorSoil is soil erodibility (K), static across years.
	FactorSoil FactorKind = "soil"
	// FactorTopographic is slope length/steepness (LS), static across years.
	FactorTopographic FactorKind = "topographic"
	// FactorCover is vegetation cover management (C), year-specific.
	FactorCover FactorKind = "cover"
	// FactorPractice is conservation support practice (P), year-specific.
	FactorPractice FactorKind = "practice"
)

// FactorKinds lists the five factor slots in canonical order. Fusion input
// must fill every slot exactly once.
var FactorKinds = [5]FactorKind{
	FactorRainfall, FactorSoil, FactorTopographic, FactorCover, FactorPractice,
}

// Static reports whether the factor is year-independent and reused across
// the whole analysis period.
func (k FactorKind) Static() bool {
	return k == FactorSoil || k == FactorTopographic
}

// ValueRange is a closed numeric interval used for range validation.
type ValueRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies within the range.
func (r ValueRange) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

func (r ValueRange) String() string { return fmt.Sprintf("[%g, %g]", r.Min, r.Max) }

// DefaultRanges returns the documented valid range per factor. These come
// from the factor preparation documentation and are configuration, not hard
// law: observed data disagrees with them often enough that violations are
// reported as findings rather than rejected.
func DefaultRanges() map[FactorKind]ValueRange {
	return map[FactorKind]ValueRange{
		FactorRainfall:    {Min: 200, Max: 1200},
		FactorSoil:        {Min: 0.005, Max: 0.07},
		FactorTopographic: {Min: 0, Max: 50},
		FactorCover:       {Min: 0, Max: 1},
		FactorPractice:    {Min: 0.1, Max: 1},
	}
}

// FactorLayer is one factor raster tagged with its kind, producing year and
// the valid range used for validation. Static factors carry the year they
// are being used for, not a production year.
type FactorLayer struct {
	Kind  FactorKind
	Year  int
	Range ValueRange
	Grid  *raster.Grid
}

// NewFactorLayer builds a FactorLayer with the default range for its kind.
func NewFactorLayer(kind FactorKind, year int, g *raster.Grid) FactorLayer {
	return FactorLayer{Kind: kind, Year: year, Range: DefaultRanges()[kind], Grid: g}
}
