package raster

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleASC = `ncols 3
nrows 2
xllcorner 500000
yllcorner 2060000
cellsize 90
nodata_value -9999
crs EPSG:32643
1.5 2 -9999
4 5 6.25
`

func TestReadASCFrom(t *testing.T) {
	g, err := ReadASCFrom(strings.NewReader(sampleASC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Width != 3 || g.Height != 2 {
		t.Fatalf("got %dx%d grid, want 3x2", g.Width, g.Height)
	}
	if g.CRS != "EPSG:32643" {
		t.Errorf("CRS = %q, want EPSG:32643", g.CRS)
	}
	if g.NoData != -9999 {
		t.Errorf("NoData = %v, want -9999", g.NoData)
	}
	// Top-left y origin = yll + nrows*cellsize.
	wantTransform := Transform{500000, 90, 0, 2060180, 0, -90}
	if !g.Transform.Equal(wantTransform) {
		t.Errorf("Transform = %v, want %v", g.Transform, wantTransform)
	}
	want := []float64{1.5, 2, -9999, 4, 5, 6.25}
	if diff := cmp.Diff(want, g.Cells()); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
}

func TestReadASCFrom_CellCountMismatch(t *testing.T) {
	in := "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n"
	if _, err := ReadASCFrom(strings.NewReader(in)); err == nil {
		t.Fatal("expected error for truncated cell data")
	}
}

func TestReadASCFrom_MissingHeader(t *testing.T) {
	in := "ncols 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2\n"
	if _, err := ReadASCFrom(strings.NewReader(in)); err == nil {
		t.Fatal("expected error for missing nrows header")
	}
}

func TestWriteASCTo_RoundTrip(t *testing.T) {
	orig, err := ReadASCFrom(strings.NewReader(sampleASC))
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteASCTo(&buf, orig); err != nil {
		t.Fatalf("write: %v", err)
	}
	back, err := ReadASCFrom(&buf)
	if err != nil {
		t.Fatalf("re-read: %v", err)
	}

	if !orig.CoRegistered(back) {
		t.Error("round-tripped grid lost co-registration metadata")
	}
	if diff := cmp.Diff(orig.Cells(), back.Cells()); diff != "" {
		t.Errorf("cells changed across round trip (-want +got):\n%s", diff)
	}
}
