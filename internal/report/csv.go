package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/basin-data/erosion.report/internal/erosion"
)

// WriteStatsCSV writes the per-year statistics table. Degenerate years
// appear with their year and an empty row so gaps stay visible downstream.
func WriteStatsCSV(w io.Writer, series *erosion.Series) error {
	cw := csv.NewWriter(w)

	header := []string{
		"year", "count", "min", "max", "mean", "median", "std_dev",
		"p25", "p75", "p90", "p95",
	}
	numClasses := classCount(series)
	for class := 1; class <= numClasses; class++ {
		header = append(header, fmt.Sprintf("class_%d_fraction", class))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("report: write csv header: %w", err)
	}

	for _, out := range series.Outputs() {
		s := out.Stats
		row := []string{strconv.Itoa(s.Year)}
		if s.Degenerate {
			for len(row) < len(header) {
				row = append(row, "")
			}
		} else {
			row = append(row,
				strconv.Itoa(s.Count),
				formatFloat(s.Min), formatFloat(s.Max), formatFloat(s.Mean),
				formatFloat(s.Median), formatFloat(s.StdDev),
				formatFloat(s.P25), formatFloat(s.P75), formatFloat(s.P90), formatFloat(s.P95),
			)
			for class := 1; class <= numClasses; class++ {
				row = append(row, formatFloat(s.ClassFractions[class]))
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("report: write csv row for %d: %w", s.Year, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// classCount derives the classifier's class count from the recorded
// fractions. The breakpoint list is configurable, so the run may carry
// more or fewer classes than the default label map.
func classCount(series *erosion.Series) int {
	n := 0
	for _, out := range series.Outputs() {
		for class := range out.Stats.ClassFractions {
			if class > n {
				n = class
			}
		}
	}
	if n == 0 {
		n = len(erosion.ClassLabels)
	}
	return n
}
