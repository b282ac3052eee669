package units

import (
	"math"
	"testing"
)

func TestConvertLoss(t *testing.T) {
	tests := []struct {
		name     string
		lossTHa  float64
		units    string
		expected float64
	}{
		{"10 t/ha to kg/m2", 10.0, KgM2, 1.0},
		{"10 t/ha to t/acre", 10.0, TAcre, 4.04686},
		{"10 t/ha to t/km2", 10.0, TKm2, 1000.0},
		{"10 t/ha to t/ha", 10.0, THa, 10.0},
		{"unknown units default to t/ha", 10.0, "unknown", 10.0},
		{"0 t/ha to kg/m2", 0.0, KgM2, 0.0},
		{"severe loss 42.5 t/ha to kg/m2", 42.5, KgM2, 4.25},
		{"tolerable loss 5 t/ha to t/acre", 5.0, TAcre, 2.02343},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertLoss(tt.lossTHa, tt.units)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("ConvertLoss(%f, %s) = %f, want %f", tt.lossTHa, tt.units, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid tha", THa, true},
		{"valid kgm2", KgM2, true},
		{"valid tacre", TAcre, true},
		{"valid tkm2", TKm2, true},
		{"invalid unit", "invalid", false},
		{"empty string", "", false},
		{"case sensitive", "THA", false},
		{"case sensitive", "Tha", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.unit); got != tt.expected {
				t.Errorf("IsValid(%q) = %v, want %v", tt.unit, got, tt.expected)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		unit     string
		expected string
	}{
		{THa, "t/ha/yr"},
		{KgM2, "kg/m2/yr"},
		{TAcre, "t/acre/yr"},
		{TKm2, "t/km2/yr"},
		{"", "t/ha/yr"},
		{"bogus", "t/ha/yr"},
	}

	for _, tt := range tests {
		if got := Label(tt.unit); got != tt.expected {
			t.Errorf("Label(%q) = %q, want %q", tt.unit, got, tt.expected)
		}
	}
}

func TestGetValidUnitsString(t *testing.T) {
	if got := GetValidUnitsString(); got != "tha, kgm2, tacre, tkm2" {
		t.Errorf("GetValidUnitsString() = %q", got)
	}
}
