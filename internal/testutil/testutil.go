// Package testutil provides shared fixtures for raster-based tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/basin-data/erosion.report/internal/raster"
)

// FixtureTransform is the georeference used by all grid fixtures. It matches
// the 90 m UTM extent the sample catchment rasters use.
var FixtureTransform = raster.Transform{500000, 90, 0, 2060180, 0, -90}

// UniformGrid returns a 2x2 grid with every cell set to value.
func UniformGrid(t *testing.T, value float64) *raster.Grid {
	t.Helper()
	g, err := raster.NewFilled(2, 2, FixtureTransform, "EPSG:32643", raster.DefaultNoData, value)
	if err != nil {
		t.Fatalf("building uniform grid: %v", err)
	}
	return g
}

// WriteASCGrid writes a 2x2 ESRI ASCII grid fixture with every cell set to
// value into dir under name.
func WriteASCGrid(t *testing.T, dir, name, value string) {
	t.Helper()
	content := fmt.Sprintf(
		"ncols 2\nnrows 2\nxllcorner 500000\nyllcorner 2060000\ncellsize 90\nnodata_value -9999\ncrs EPSG:32643\n%s %s\n%s %s\n",
		value, value, value, value)
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
