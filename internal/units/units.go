// Package units provides shared constants and conversion for soil loss units
package units

// Unit constants
const (
	THa   = "tha"   // tonnes per hectare per year, the computation unit
	KgM2  = "kgm2"  // kilograms per square metre per year
	TAcre = "tacre" // tonnes per acre per year
	TKm2  = "tkm2"  // tonnes per square kilometre per year
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{THa, KgM2, TAcre, TKm2}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "tha, kgm2, tacre, tkm2"
}

// ConvertLoss converts a soil loss rate from t/ha/yr to the target units.
// The pipeline computes and stores rates in t/ha/yr.
func ConvertLoss(lossTHa float64, targetUnits string) float64 {
	switch targetUnits {
	case KgM2:
		return lossTHa * 0.1 // t/ha to kg/m2
	case TAcre:
		return lossTHa * 0.404686 // t/ha to t/acre
	case TKm2:
		return lossTHa * 100 // t/ha to t/km2
	case THa:
		return lossTHa // no conversion needed
	default:
		return lossTHa // default to t/ha if unknown unit
	}
}

// Label returns the display label for a unit.
func Label(unit string) string {
	switch unit {
	case KgM2:
		return "kg/m2/yr"
	case TAcre:
		return "t/acre/yr"
	case TKm2:
		return "t/km2/yr"
	default:
		return "t/ha/yr"
	}
}
