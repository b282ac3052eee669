package erosion

import "fmt"

// PreconditionError marks a fatal structural violation: co-registration
// mismatch, a malformed breakpoint list, or too few years for trend
// analysis. It is never silently corrected; the operation that detects it
// aborts immediately.
type PreconditionError struct {
	Year   int        // 0 when the failure is not tied to a year
	Factor FactorKind // empty when not tied to a factor slot
	Reason string
}

func (e *PreconditionError) Error() string {
	switch {
	case e.Year != 0 && e.Factor != "":
		return fmt.Sprintf("precondition failed for year %d, factor %s: %s", e.Year, e.Factor, e.Reason)
	case e.Year != 0:
		return fmt.Sprintf("precondition failed for year %d: %s", e.Year, e.Reason)
	default:
		return fmt.Sprintf("precondition failed: %s", e.Reason)
	}
}

func preconditionf(year int, factor FactorKind, format string, args ...interface{}) *PreconditionError {
	return &PreconditionError{Year: year, Factor: factor, Reason: fmt.Sprintf(format, args...)}
}
