package scene

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/riptide-sim/riptide/fluid"
)

// projectionSteps bounds the gradient-descent refinement when projecting a
// point onto the zero isosurface.
const projectionSteps = 4

// LevelSet is a cell-centered signed distance field sampled from implicit
// geometry. Values are in cell units, negative inside.
type LevelSet struct {
	dims   fluid.Dims
	maxDim float64
	phi    *fluid.Grid3[float64]
}

// NewLevelSet allocates a level set for the grid extents, initialized to a
// large positive distance.
func NewLevelSet(dims fluid.Dims) *LevelSet {
	return &LevelSet{
		dims:   dims,
		maxDim: dims.Max(),
		phi:    fluid.NewGrid3(dims.X, dims.Y, dims.Z, dims.Max()),
	}
}

// Rebuild resamples the field as the union (min) of the given geoms at each
// cell center.
func (ls *LevelSet) Rebuild(geoms []Geom) {
	h := 1.0 / ls.maxDim
	for i := 0; i < ls.dims.X; i++ {
		for j := 0; j < ls.dims.Y; j++ {
			for k := 0; k < ls.dims.Z; k++ {
				center := r3.Vec{
					X: (float64(i) + 0.5) * h,
					Y: (float64(j) + 0.5) * h,
					Z: (float64(k) + 0.5) * h,
				}
				d := ls.maxDim // far field
				for _, g := range geoms {
					if v := g.SDF(center) * ls.maxDim; v < d {
						d = v
					}
				}
				ls.phi.Set(i, j, k, d)
			}
		}
	}
}

// At returns the signed distance at cell (i,j,k) in cell units.
func (ls *LevelSet) At(i, j, k int) float64 {
	return ls.phi.At(i, j, k)
}

// Sample interpolates the field at a normalized position, in cell units.
func (ls *LevelSet) Sample(p r3.Vec) float64 {
	x := p.X*ls.maxDim - 0.5
	y := p.Y*ls.maxDim - 0.5
	z := p.Z*ls.maxDim - 0.5
	return triSample(ls.phi, x, y, z)
}

// ProjectToSurface walks a normalized-space point down the distance
// gradient onto the zero isosurface.
func (ls *LevelSet) ProjectToSurface(p r3.Vec, maxDim float64) r3.Vec {
	out := p
	for iter := 0; iter < projectionSteps; iter++ {
		phi := ls.Sample(out)
		grad := ls.gradient(out)
		n := r3.Norm(grad)
		if n < 1e-12 {
			break
		}
		// phi is in cell units; convert the move back to normalized space
		out = r3.Sub(out, r3.Scale(phi/(n*maxDim), grad))
	}
	return out
}

func (ls *LevelSet) gradient(p r3.Vec) r3.Vec {
	eps := 0.5 / ls.maxDim
	return r3.Vec{
		X: ls.Sample(r3.Add(p, r3.Vec{X: eps})) - ls.Sample(r3.Sub(p, r3.Vec{X: eps})),
		Y: ls.Sample(r3.Add(p, r3.Vec{Y: eps})) - ls.Sample(r3.Sub(p, r3.Vec{Y: eps})),
		Z: ls.Sample(r3.Add(p, r3.Vec{Z: eps})) - ls.Sample(r3.Sub(p, r3.Vec{Z: eps})),
	}
}

// triSample interpolates a cell grid at fractional index coordinates,
// clamped to the interior.
func triSample(g *fluid.Grid3[float64], x, y, z float64) float64 {
	nx, ny, nz := g.Dims()
	i, fx := sampleBase(x, nx)
	j, fy := sampleBase(y, ny)
	k, fz := sampleBase(z, nz)

	c00 := g.At(i, j, k)*(1-fx) + g.At(i+1, j, k)*fx
	c10 := g.At(i, j+1, k)*(1-fx) + g.At(i+1, j+1, k)*fx
	c01 := g.At(i, j, k+1)*(1-fx) + g.At(i+1, j, k+1)*fx
	c11 := g.At(i, j+1, k+1)*(1-fx) + g.At(i+1, j+1, k+1)*fx

	c0 := c00*(1-fy) + c10*fy
	c1 := c01*(1-fy) + c11*fy
	return c0*(1-fz) + c1*fz
}

func sampleBase(x float64, n int) (int, float64) {
	if x < 0 {
		return 0, 0
	}
	if x > float64(n-1) {
		return n - 2, 1
	}
	i := int(x)
	if i > n-2 {
		i = n - 2
	}
	return i, x - float64(i)
}
