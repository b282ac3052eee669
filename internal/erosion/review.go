package erosion

import (
	"fmt"
	"math"
)

// Literature comparison of the overall mean against published values for
// similar catchments. Like every other range here this is a review signal,
// not a gate: results outside the band are flagged, never rejected.

// LiteratureStatus categorises the overall mean against the expected band.
type LiteratureStatus string

const (
	LiteraturePassed LiteratureStatus = "passed"
	LiteratureLow    LiteratureStatus = "low"
	LiteratureHigh   LiteratureStatus = "high"
	// LiteratureFlagged marks a mean above the absolute plausibility cap.
	LiteratureFlagged LiteratureStatus = "flagged"
)

// LiteratureBand is the expected range of mean soil loss in t/ha/yr.
type LiteratureBand struct {
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	AbsoluteMax float64 `json:"absolute_max"`
}

// DefaultLiteratureBand reflects published estimates for comparable
// Western Ghats catchments.
func DefaultLiteratureBand() LiteratureBand {
	return LiteratureBand{Min: 8, Max: 25, AbsoluteMax: 200}
}

// LiteratureReview summarises the comparison for reporting.
type LiteratureReview struct {
	OverallMean float64          `json:"overall_mean"`
	Band        LiteratureBand   `json:"band"`
	Status      LiteratureStatus `json:"status"`
	Note        string           `json:"note"`
}

// ReviewAgainstLiterature compares the average of the usable annual means
// against the expected band. Degenerate years are skipped; a series with no
// usable years yields a flagged review.
func ReviewAgainstLiterature(series *Series, band LiteratureBand) LiteratureReview {
	sum, n := 0.0, 0
	for _, o := range series.Outputs() {
		if o.Stats.Degenerate {
			continue
		}
		sum += o.Stats.Mean
		n++
	}
	if n == 0 {
		return LiteratureReview{
			Band:   band,
			Status: LiteratureFlagged,
			Note:   "no usable years; every year in the series is degenerate",
		}
	}

	mean := sum / float64(n)
	review := LiteratureReview{OverallMean: mean, Band: band}
	switch {
	case band.AbsoluteMax > 0 && mean > band.AbsoluteMax:
		review.Status = LiteratureFlagged
		review.Note = fmt.Sprintf("mean %.2f t/ha/yr exceeds absolute plausibility cap %.0f", mean, band.AbsoluteMax)
	case mean < band.Min:
		review.Status = LiteratureLow
		review.Note = fmt.Sprintf("mean %.2f t/ha/yr below expected %.0f-%.0f; possible conservative factors or data quality", mean, band.Min, band.Max)
	case mean > band.Max:
		review.Status = LiteratureHigh
		review.Note = fmt.Sprintf("mean %.2f t/ha/yr above expected %.0f-%.0f; possible severe erosion or factor overestimation", mean, band.Min, band.Max)
	default:
		review.Status = LiteraturePassed
		review.Note = fmt.Sprintf("mean %.2f t/ha/yr within expected %.0f-%.0f", mean, band.Min, band.Max)
	}
	return review
}

// ConsistencyFindings flags year-to-year jumps of the annual mean larger
// than half of the overall series mean. Large jumps usually point at a bad
// input year (cloud-contaminated cover factor, wrong rainfall surface)
// rather than a real erosion signal.
func ConsistencyFindings(series *Series) []Finding {
	var usable []AnnualOutput
	sum := 0.0
	for _, o := range series.Outputs() {
		if o.Stats.Degenerate {
			continue
		}
		usable = append(usable, o)
		sum += o.Stats.Mean
	}
	if len(usable) < 2 {
		return nil
	}
	overall := sum / float64(len(usable))
	if overall == 0 {
		return nil
	}

	var findings []Finding
	threshold := 0.5 * overall
	for i := 1; i < len(usable); i++ {
		prev, cur := usable[i-1], usable[i]
		jump := math.Abs(cur.Stats.Mean - prev.Stats.Mean)
		if jump > threshold {
			findings = append(findings, Finding{
				Year:  cur.Year,
				Check: CheckConsistency,
				Message: fmt.Sprintf("mean jumped %.2f t/ha/yr from %d (%.2f to %.2f), more than half the overall mean %.2f",
					jump, prev.Year, prev.Stats.Mean, cur.Stats.Mean, overall),
			})
		}
	}
	return findings
}
