// Package pipeline orchestrates the per-year processing loop and the
// series-level analysis that follows it.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/basin-data/erosion.report/internal/erosion"
	"github.com/basin-data/erosion.report/internal/fsutil"
	"github.com/basin-data/erosion.report/internal/raster"
	"github.com/basin-data/erosion.report/internal/security"
)

// LayerProvider supplies the five factor layers for a year. The
// acquisition side (remote earth-observation downloads, reprojection) sits
// behind this boundary and is assumed to have already materialised
// co-registered rasters.
type LayerProvider interface {
	// Layers returns the five factor layers for the year, static layers
	// included. Failing to produce valid inputs for a year is an
	// input-level failure, not a pipeline retry concern.
	Layers(ctx context.Context, year int) ([]erosion.FactorLayer, error)
}

// DirProvider loads factor layers from a directory of ESRI ASCII grids.
// Naming convention: static factors k.asc and ls.asc; year-specific factors
// r_<year>.asc, c_<year>.asc and p_<year>.asc.
type DirProvider struct {
	Dir    string
	Ranges map[erosion.FactorKind]erosion.ValueRange
	FS     fsutil.FileSystem

	// static layers are read once and shared across years; grids are
	// immutable so the sharing is safe. The once guards make the lazy
	// load safe when year workers call Layers concurrently.
	soilOnce sync.Once
	soil     *raster.Grid
	soilErr  error
	topoOnce sync.Once
	topo     *raster.Grid
	topoErr  error
}

// NewDirProvider builds a DirProvider with the default factor ranges.
func NewDirProvider(dir string) *DirProvider {
	return &DirProvider{Dir: dir, Ranges: erosion.DefaultRanges(), FS: fsutil.OSFileSystem{}}
}

func (p *DirProvider) factorPath(kind erosion.FactorKind, year int) string {
	switch kind {
	case erosion.FactorSoil:
		return filepath.Join(p.Dir, "k.asc")
	case erosion.FactorTopographic:
		return filepath.Join(p.Dir, "ls.asc")
	case erosion.FactorRainfall:
		return filepath.Join(p.Dir, fmt.Sprintf("r_%d.asc", year))
	case erosion.FactorCover:
		return filepath.Join(p.Dir, fmt.Sprintf("c_%d.asc", year))
	case erosion.FactorPractice:
		return filepath.Join(p.Dir, fmt.Sprintf("p_%d.asc", year))
	}
	return ""
}

// readGrid loads one raster after confirming the path stays inside the
// data directory. The containment check guards against symlinked data
// directories pointing raster reads somewhere unexpected.
func (p *DirProvider) readGrid(kind erosion.FactorKind, year int) (*raster.Grid, error) {
	path := p.factorPath(kind, year)
	if _, ok := p.FS.(fsutil.OSFileSystem); ok {
		if err := security.ValidatePathWithinDirectory(path, p.Dir); err != nil {
			return nil, err
		}
	}
	data, err := p.FS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("raster %s: %w", path, err)
	}
	g, err := raster.ReadASCFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("raster %s: %w", path, err)
	}
	return g, nil
}

// Layers implements LayerProvider.
func (p *DirProvider) Layers(ctx context.Context, year int) ([]erosion.FactorLayer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.soilOnce.Do(func() {
		p.soil, p.soilErr = p.readGrid(erosion.FactorSoil, year)
	})
	if p.soilErr != nil {
		return nil, fmt.Errorf("loading static soil factor: %w", p.soilErr)
	}
	p.topoOnce.Do(func() {
		p.topo, p.topoErr = p.readGrid(erosion.FactorTopographic, year)
	})
	if p.topoErr != nil {
		return nil, fmt.Errorf("loading static topographic factor: %w", p.topoErr)
	}

	layers := make([]erosion.FactorLayer, 0, len(erosion.FactorKinds))
	for _, kind := range erosion.FactorKinds {
		var g *raster.Grid
		switch kind {
		case erosion.FactorSoil:
			g = p.soil
		case erosion.FactorTopographic:
			g = p.topo
		default:
			var err error
			g, err = p.readGrid(kind, year)
			if err != nil {
				return nil, fmt.Errorf("loading %s factor for %d: %w", kind, year, err)
			}
		}
		layer := erosion.FactorLayer{Kind: kind, Year: year, Grid: g}
		if r, ok := p.Ranges[kind]; ok {
			layer.Range = r
		}
		layers = append(layers, layer)
	}
	return layers, nil
}

// HasYear reports whether every year-specific factor file exists for year.
func (p *DirProvider) HasYear(year int) bool {
	for _, kind := range []erosion.FactorKind{erosion.FactorRainfall, erosion.FactorCover, erosion.FactorPractice} {
		if !p.FS.Exists(p.factorPath(kind, year)) {
			return false
		}
	}
	return true
}
