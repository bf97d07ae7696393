package fluid

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// sdfRadiusFactor scales the effective particle radius used for the
// Zhu-Bridson surface reconstruction, in units of particle spacing.
const sdfRadiusFactor = 1.4

// emptyCellSDF is the level-set value for cells with no particles in reach.
const emptyCellSDF = 1.0

// ParticleGrid buckets particle indices by cell for O(1) neighborhood
// lookups. It never owns particles; buckets hold indices into the
// simulator's particle store and are authoritative only between Sorts.
type ParticleGrid struct {
	dims    Dims
	maxDim  float64
	buckets [][]int32
}

// NewParticleGrid creates an empty bucket grid for the given extents.
func NewParticleGrid(dims Dims) *ParticleGrid {
	buckets := make([][]int32, dims.Cells())
	for i := range buckets {
		buckets[i] = make([]int32, 0, 8)
	}
	return &ParticleGrid{
		dims:    dims,
		maxDim:  dims.Max(),
		buckets: buckets,
	}
}

func (g *ParticleGrid) bucketIndex(i, j, k int) int {
	return (i*g.dims.Y+j)*g.dims.Z + k
}

// CellOf returns the clamped cell coordinates containing a normalized
// position.
func (g *ParticleGrid) CellOf(p r3.Vec) (i, j, k int) {
	i = clampIndex(int(p.X*g.maxDim), g.dims.X)
	j = clampIndex(int(p.Y*g.maxDim), g.dims.Y)
	k = clampIndex(int(p.Z*g.maxDim), g.dims.Z)
	return i, j, k
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Sort rebuilds the buckets from the particle store in one pass. Sorting is
// single-threaded; every other hot path parallelizes over disjoint ranges.
func (g *ParticleGrid) Sort(particles []*Particle) {
	for i := range g.buckets {
		g.buckets[i] = g.buckets[i][:0]
	}
	for n, p := range particles {
		i, j, k := g.CellOf(p.P)
		idx := g.bucketIndex(i, j, k)
		g.buckets[idx] = append(g.buckets[idx], int32(n))
	}
}

// CellNeighbors appends the indices of particles in cells within the given
// radius of (i,j,k), clipped to the grid, and returns the extended slice.
// Order is unspecified. Reuse dst across calls to avoid allocations.
func (g *ParticleGrid) CellNeighbors(dst []int32, i, j, k, radius int) []int32 {
	for di := i - radius; di <= i+radius; di++ {
		if di < 0 || di >= g.dims.X {
			continue
		}
		for dj := j - radius; dj <= j+radius; dj++ {
			if dj < 0 || dj >= g.dims.Y {
				continue
			}
			for dk := k - radius; dk <= k+radius; dk++ {
				if dk < 0 || dk >= g.dims.Z {
					continue
				}
				dst = append(dst, g.buckets[g.bucketIndex(di, dj, dk)]...)
			}
		}
	}
	return dst
}

// MarkCellTypes classifies every cell: solid when on the outer boundary,
// inside the solid SDF, or holding a solid surface sample; fluid when any
// fluid particle occupies it; air otherwise.
func (g *ParticleGrid) MarkCellTypes(particles []*Particle, a *Grid3[CellType], solid LevelSet, pool *workerPool) {
	x, y, z := g.dims.X, g.dims.Y, g.dims.Z
	pool.run(x, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < y; j++ {
				for k := 0; k < z; k++ {
					a.Set(i, j, k, g.classify(particles, solid, i, j, k))
				}
			}
		}
	})
}

func (g *ParticleGrid) classify(particles []*Particle, solid LevelSet, i, j, k int) CellType {
	if i == 0 || i == g.dims.X-1 || j == 0 || j == g.dims.Y-1 || k == 0 || k == g.dims.Z-1 {
		return CellSolid
	}
	if solid != nil && solid.At(i, j, k) < 0 {
		return CellSolid
	}
	fluid := false
	for _, n := range g.buckets[g.bucketIndex(i, j, k)] {
		switch particles[n].Type {
		case ParticleSolid:
			return CellSolid
		case ParticleFluid:
			fluid = true
		}
	}
	if fluid {
		return CellFluid
	}
	return CellAir
}

// BuildSDF reconstructs the liquid level set from particle positions using
// the kernel-weighted mean of Zhu and Bridson: L = |c - mean| - r. Each cell
// is written exactly once, so the loop parallelizes over cell rows.
func (g *ParticleGrid) BuildSDF(particles []*Particle, mac *MacGrid, density float64, pool *workerPool) {
	x, y, z := g.dims.X, g.dims.Y, g.dims.Z
	h := 1.0 / g.maxDim
	re := sdfRadiusFactor * density / g.maxDim

	pool.run(x, func(start, end int) {
		var scratch []int32
		for i := start; i < end; i++ {
			for j := 0; j < y; j++ {
				for k := 0; k < z; k++ {
					center := r3.Vec{
						X: (float64(i) + 0.5) * h,
						Y: (float64(j) + 0.5) * h,
						Z: (float64(k) + 0.5) * h,
					}
					scratch = g.CellNeighbors(scratch[:0], i, j, k, 1)
					var wsum float64
					var mean r3.Vec
					for _, n := range scratch {
						p := particles[n]
						if p.Type != ParticleFluid {
							continue
						}
						d := r3.Sub(p.P, center)
						w := p.Mass * smoothKernel(r3.Norm2(d), re)
						wsum += w
						mean = r3.Add(mean, r3.Scale(w, p.P))
					}
					if wsum > 0 {
						mean = r3.Scale(1.0/wsum, mean)
						mac.L.Set(i, j, k, r3.Norm(r3.Sub(center, mean))-re)
					} else {
						mac.L.Set(i, j, k, emptyCellSDF)
					}
				}
			}
		}
	})
}

// FluidCount returns the number of fluid particles bucketed in cell (i,j,k).
func (g *ParticleGrid) FluidCount(particles []*Particle, i, j, k int) int {
	count := 0
	for _, n := range g.buckets[g.bucketIndex(i, j, k)] {
		if particles[n].Type == ParticleFluid {
			count++
		}
	}
	return count
}

// Bucket returns the raw index bucket for cell (i,j,k).
func (g *ParticleGrid) Bucket(i, j, k int) []int32 {
	return g.buckets[g.bucketIndex(i, j, k)]
}
