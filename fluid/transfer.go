package fluid

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// splatSupport is the sharp-kernel support radius for particle-to-face
// transfers, in cell units.
const splatSupport = 1.4

// splatToGrid transfers particle velocities onto the MAC face grids as a
// kernel-weighted average. Faces are partitioned by slab so each face has
// exactly one writer pulling from the adjacent particle buckets; no atomics.
// Faces that no particle reaches keep their previous value, which the
// extrapolation pass then overrides where it matters.
func splatToGrid(pg *ParticleGrid, particles []*Particle, mac *MacGrid, pool *workerPool) {
	dims := mac.Dims()
	maxd := dims.Max()

	// x faces
	pool.run(dims.X+1, func(start, end int) {
		var scratch []int32
		for i := start; i < end; i++ {
			for j := 0; j < dims.Y; j++ {
				for k := 0; k < dims.Z; k++ {
					face := r3.Vec{X: float64(i), Y: float64(j) + 0.5, Z: float64(k) + 0.5}
					scratch = faceNeighbors(pg, scratch[:0], i-1, i, j-1, j+1, k-1, k+1)
					if v, ok := weightedFaceVelocity(particles, scratch, face, maxd, 0); ok {
						mac.Ux.Set(i, j, k, v)
					}
				}
			}
		}
	})
	// y faces
	pool.run(dims.X, func(start, end int) {
		var scratch []int32
		for i := start; i < end; i++ {
			for j := 0; j < dims.Y+1; j++ {
				for k := 0; k < dims.Z; k++ {
					face := r3.Vec{X: float64(i) + 0.5, Y: float64(j), Z: float64(k) + 0.5}
					scratch = faceNeighbors(pg, scratch[:0], i-1, i+1, j-1, j, k-1, k+1)
					if v, ok := weightedFaceVelocity(particles, scratch, face, maxd, 1); ok {
						mac.Uy.Set(i, j, k, v)
					}
				}
			}
		}
	})
	// z faces
	pool.run(dims.X, func(start, end int) {
		var scratch []int32
		for i := start; i < end; i++ {
			for j := 0; j < dims.Y; j++ {
				for k := 0; k < dims.Z+1; k++ {
					face := r3.Vec{X: float64(i) + 0.5, Y: float64(j) + 0.5, Z: float64(k)}
					scratch = faceNeighbors(pg, scratch[:0], i-1, i+1, j-1, j+1, k-1, k)
					if v, ok := weightedFaceVelocity(particles, scratch, face, maxd, 2); ok {
						mac.Uz.Set(i, j, k, v)
					}
				}
			}
		}
	})
}

// faceNeighbors collects bucket contents over an inclusive cell range
// clipped to the grid.
func faceNeighbors(pg *ParticleGrid, dst []int32, i0, i1, j0, j1, k0, k1 int) []int32 {
	for i := i0; i <= i1; i++ {
		if i < 0 || i >= pg.dims.X {
			continue
		}
		for j := j0; j <= j1; j++ {
			if j < 0 || j >= pg.dims.Y {
				continue
			}
			for k := k0; k <= k1; k++ {
				if k < 0 || k >= pg.dims.Z {
					continue
				}
				dst = append(dst, pg.buckets[pg.bucketIndex(i, j, k)]...)
			}
		}
	}
	return dst
}

func weightedFaceVelocity(particles []*Particle, idx []int32, face r3.Vec, maxd float64, axis int) (float64, bool) {
	var sum, wsum float64
	for _, n := range idx {
		p := particles[n]
		if p.Type != ParticleFluid {
			continue
		}
		pos := r3.Scale(maxd, p.P)
		w := p.Mass * sharpKernel(r3.Norm2(r3.Sub(pos, face)), splatSupport)
		if w == 0 {
			continue
		}
		switch axis {
		case 0:
			sum += w * p.U.X
		case 1:
			sum += w * p.U.Y
		default:
			sum += w * p.U.Z
		}
		wsum += w
	}
	if wsum == 0 {
		return 0, false
	}
	return sum / wsum, true
}

// interpolateVelocity samples the MAC velocity at a normalized position with
// trilinear interpolation of each face-staggered component.
func interpolateVelocity(mac *MacGrid, p r3.Vec) r3.Vec {
	maxd := mac.Dims().Max()
	x := p.X * maxd
	y := p.Y * maxd
	z := p.Z * maxd
	return r3.Vec{
		X: triLerp(mac.Ux, x, y-0.5, z-0.5),
		Y: triLerp(mac.Uy, x-0.5, y, z-0.5),
		Z: triLerp(mac.Uz, x-0.5, y-0.5, z),
	}
}

// triLerp interpolates a grid at fractional index coordinates, clamped to
// the grid interior.
func triLerp(g *Grid3[float64], x, y, z float64) float64 {
	nx, ny, nz := g.Dims()
	i, fx := lerpBase(x, nx)
	j, fy := lerpBase(y, ny)
	k, fz := lerpBase(z, nz)

	c00 := g.At(i, j, k)*(1-fx) + g.At(i+1, j, k)*fx
	c10 := g.At(i, j+1, k)*(1-fx) + g.At(i+1, j+1, k)*fx
	c01 := g.At(i, j, k+1)*(1-fx) + g.At(i+1, j, k+1)*fx
	c11 := g.At(i, j+1, k+1)*(1-fx) + g.At(i+1, j+1, k+1)*fx

	c0 := c00*(1-fy) + c10*fy
	c1 := c01*(1-fy) + c11*fy
	return c0*(1-fz) + c1*fz
}

func lerpBase(x float64, n int) (int, float64) {
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

// enforceBoundary zeroes the normal velocity component of any face adjacent
// to a solid cell or a domain wall. Static obstacles carry zero velocity;
// tangential components pass through untouched.
func enforceBoundary(mac *MacGrid, pool *workerPool) {
	dims := mac.Dims()
	pool.run(dims.X+1, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < dims.Y; j++ {
				for k := 0; k < dims.Z; k++ {
					if mac.solidAt(i-1, j, k) || mac.solidAt(i, j, k) {
						mac.Ux.Set(i, j, k, 0)
					}
				}
			}
		}
	})
	pool.run(dims.X, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < dims.Y+1; j++ {
				for k := 0; k < dims.Z; k++ {
					if mac.solidAt(i, j-1, k) || mac.solidAt(i, j, k) {
						mac.Uy.Set(i, j, k, 0)
					}
				}
			}
		}
	})
	pool.run(dims.X, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < dims.Y; j++ {
				for k := 0; k < dims.Z+1; k++ {
					if mac.solidAt(i, j, k-1) || mac.solidAt(i, j, k) {
						mac.Uz.Set(i, j, k, 0)
					}
				}
			}
		}
	})
}
