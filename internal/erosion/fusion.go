package erosion

import (
	"math"

	"github.com/basin-data/erosion.report/internal/raster"
)

// Fuse combines the five factor layers for one year into a single soil-loss
// grid: the pointwise product R*K*LS*C*P. The output pixel is nodata iff
// any input pixel is nodata or non-finite; otherwise it is the exact
// floating-point product. Multiplication is commutative so slot order does
// not affect the result.
//
// All five slots must be present exactly once and co-registered; a
// violation is a *PreconditionError naming the year and offending slot.
// Fuse does not re-run range validation: out-of-range inputs (including
// negative values) are a caller error and produce whatever arithmetic
// result follows.
func Fuse(year int, layers []FactorLayer) (*raster.Grid, error) {
	if len(layers) != len(FactorKinds) {
		return nil, preconditionf(year, "", "need %d factor layers, got %d", len(FactorKinds), len(layers))
	}

	bySlot := make(map[FactorKind]FactorLayer, len(FactorKinds))
	for _, l := range layers {
		if l.Grid == nil {
			return nil, preconditionf(year, l.Kind, "missing grid")
		}
		if _, dup := bySlot[l.Kind]; dup {
			return nil, preconditionf(year, l.Kind, "duplicate factor slot")
		}
		bySlot[l.Kind] = l
	}
	for _, k := range FactorKinds {
		if _, ok := bySlot[k]; !ok {
			return nil, preconditionf(year, k, "factor slot not supplied")
		}
	}

	ref := bySlot[FactorKinds[0]].Grid
	for _, k := range FactorKinds[1:] {
		if g := bySlot[k].Grid; !ref.CoRegistered(g) {
			return nil, preconditionf(year, k,
				"grid %dx%d CRS %q not co-registered with %s grid %dx%d CRS %q",
				g.Width, g.Height, g.CRS, FactorKinds[0], ref.Width, ref.Height, ref.CRS)
		}
	}

	grids := make([]*raster.Grid, len(FactorKinds))
	for i, k := range FactorKinds {
		grids[i] = bySlot[k].Grid
	}

	out := make([]float64, ref.Size())
	for i := range out {
		product := 1.0
		valid := true
		for _, g := range grids {
			v := g.Cell(i)
			if g.IsNoData(v) || math.IsNaN(v) || math.IsInf(v, 0) {
				valid = false
				break
			}
			product *= v
		}
		if valid {
			out[i] = product
		} else {
			out[i] = ref.NoData
		}
	}

	return raster.Like(ref, out)
}
