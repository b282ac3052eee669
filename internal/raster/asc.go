package raster

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ESRI ASCII grid support. The acquisition tooling materialises factor
// rasters in this format; the pipeline writes fused, class and change
// rasters back out the same way. The CRS is carried in a sidecar-free
// convention: an optional "crs" header line after the standard six.

// ReadASC reads an ESRI ASCII grid from path.
func ReadASC(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("raster: open %s: %w", path, err)
	}
	defer f.Close()
	g, err := ReadASCFrom(f)
	if err != nil {
		return nil, fmt.Errorf("raster: read %s: %w", path, err)
	}
	return g, nil
}

// ReadASCFrom reads an ESRI ASCII grid from r.
func ReadASCFrom(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	hdr := map[string]string{}
	var dataLines []string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		key := strings.ToLower(fields[0])
		switch key {
		case "ncols", "nrows", "xllcorner", "yllcorner", "cellsize", "nodata_value", "crs":
			if len(fields) < 2 {
				return nil, fmt.Errorf("header %q missing value", key)
			}
			hdr[key] = fields[1]
		default:
			dataLines = append(dataLines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	ncols, err := headerInt(hdr, "ncols")
	if err != nil {
		return nil, err
	}
	nrows, err := headerInt(hdr, "nrows")
	if err != nil {
		return nil, err
	}
	xll, err := headerFloat(hdr, "xllcorner")
	if err != nil {
		return nil, err
	}
	yll, err := headerFloat(hdr, "yllcorner")
	if err != nil {
		return nil, err
	}
	cellsize, err := headerFloat(hdr, "cellsize")
	if err != nil {
		return nil, err
	}
	nodata := DefaultNoData
	if s, ok := hdr["nodata_value"]; ok {
		nodata, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("bad nodata_value %q: %w", s, err)
		}
	}

	cells := make([]float64, 0, ncols*nrows)
	for _, line := range dataLines {
		for _, tok := range strings.Fields(line) {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("bad cell value %q: %w", tok, err)
			}
			cells = append(cells, v)
		}
	}
	if len(cells) != ncols*nrows {
		return nil, fmt.Errorf("expected %d cells, got %d", ncols*nrows, len(cells))
	}

	// Row origin at the top-left corner, north-up.
	transform := Transform{xll, cellsize, 0, yll + float64(nrows)*cellsize, 0, -cellsize}
	return New(ncols, nrows, transform, hdr["crs"], nodata, cells)
}

// WriteASC writes g to path in ESRI ASCII format.
func WriteASC(path string, g *Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("raster: create %s: %w", path, err)
	}
	defer f.Close()
	if err := WriteASCTo(f, g); err != nil {
		return fmt.Errorf("raster: write %s: %w", path, err)
	}
	return nil
}

// WriteASCTo writes g to w in ESRI ASCII format.
func WriteASCTo(w io.Writer, g *Grid) error {
	bw := bufio.NewWriter(w)
	cellsize := g.Transform[1]
	yll := g.Transform[3] - float64(g.Height)*cellsize
	fmt.Fprintf(bw, "ncols %d\n", g.Width)
	fmt.Fprintf(bw, "nrows %d\n", g.Height)
	fmt.Fprintf(bw, "xllcorner %g\n", g.Transform[0])
	fmt.Fprintf(bw, "yllcorner %g\n", yll)
	fmt.Fprintf(bw, "cellsize %g\n", cellsize)
	fmt.Fprintf(bw, "nodata_value %g\n", g.NoData)
	if g.CRS != "" {
		fmt.Fprintf(bw, "crs %s\n", g.CRS)
	}
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			if col > 0 {
				bw.WriteByte(' ')
			}
			fmt.Fprintf(bw, "%g", g.At(row, col))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func headerInt(hdr map[string]string, key string) (int, error) {
	s, ok := hdr[key]
	if !ok {
		return 0, fmt.Errorf("missing header %q", key)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad header %s=%q: %w", key, s, err)
	}
	return v, nil
}

func headerFloat(hdr map[string]string, key string) (float64, error) {
	s, ok := hdr[key]
	if !ok {
		return 0, fmt.Errorf("missing header %q", key)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad header %s=%q: %w", key, s, err)
	}
	return v, nil
}
