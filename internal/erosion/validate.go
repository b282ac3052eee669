package erosion

import (
	"fmt"
	"math"

	"github.com/basin-data/erosion.report/internal/raster"
)

// CheckKind identifies which validation check produced a finding.
type CheckKind string

const (
	// CheckCoverage flags a nodata fraction above the configured threshold.
	CheckCoverage CheckKind = "coverage"
	// CheckRange flags observed values outside the factor's declared range.
	CheckRange CheckKind = "range"
	// CheckCoRegistration flags a grid geometry mismatch with the reference.
	CheckCoRegistration CheckKind = "co-registration"
	// CheckConsistency flags implausible year-to-year jumps of the mean.
	CheckConsistency CheckKind = "consistency"
)

// Finding is one violated validation check. Findings are reported to the
// caller, which decides whether to proceed with the flagged layer; they are
// never raised as errors and inputs are never clamped or filled.
type Finding struct {
	Year    int        `json:"year"`
	Factor  FactorKind `json:"factor"`
	Check   CheckKind  `json:"check"`
	Message string     `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("year %d %s: %s check failed: %s", f.Year, f.Factor, f.Check, f.Message)
}

// Validator performs range/coverage/co-registration checks on factor
// layers. Pure: it never mutates the layer.
type Validator struct {
	// Reference is the grid every layer must co-register against.
	Reference *raster.Grid
	// CoverageThreshold is the maximum tolerated nodata fraction within the
	// grid, in [0,1]. The default 0 requires full coverage.
	CoverageThreshold float64
}

// NewValidator builds a Validator against a reference grid with full
// coverage required.
func NewValidator(reference *raster.Grid) *Validator {
	return &Validator{Reference: reference}
}

// Validate runs every check on the layer and returns the violated ones.
// An empty slice means the layer passed.
func (v *Validator) Validate(layer FactorLayer) []Finding {
	var findings []Finding

	if layer.Grid == nil {
		return []Finding{{
			Year:    layer.Year,
			Factor:  layer.Kind,
			Check:   CheckCoverage,
			Message: "no grid supplied",
		}}
	}

	if v.Reference != nil && !layer.Grid.CoRegistered(v.Reference) {
		findings = append(findings, Finding{
			Year:   layer.Year,
			Factor: layer.Kind,
			Check:  CheckCoRegistration,
			Message: fmt.Sprintf("grid %dx%d CRS %q does not match reference %dx%d CRS %q",
				layer.Grid.Width, layer.Grid.Height, layer.Grid.CRS,
				v.Reference.Width, v.Reference.Height, v.Reference.CRS),
		})
		// Coverage and range still run; the caller sees every violation at once.
	}

	g := layer.Grid
	total := g.Size()
	valid := 0
	min, max := math.Inf(1), math.Inf(-1)
	for i := 0; i < total; i++ {
		val := g.Cell(i)
		if g.IsNoData(val) {
			continue
		}
		valid++
		if val < min {
			min = val
		}
		if val > max {
			max = val
		}
	}

	nodataFrac := 1.0
	if total > 0 {
		nodataFrac = float64(total-valid) / float64(total)
	}
	if nodataFrac > v.CoverageThreshold {
		findings = append(findings, Finding{
			Year:   layer.Year,
			Factor: layer.Kind,
			Check:  CheckCoverage,
			Message: fmt.Sprintf("nodata fraction %.4f exceeds threshold %.4f",
				nodataFrac, v.CoverageThreshold),
		})
	}

	if valid > 0 && (!layer.Range.Contains(min) || !layer.Range.Contains(max)) {
		findings = append(findings, Finding{
			Year:   layer.Year,
			Factor: layer.Kind,
			Check:  CheckRange,
			Message: fmt.Sprintf("observed [%g, %g] outside declared %s",
				min, max, layer.Range),
		})
	}

	return findings
}
