package fluid

// extrapolator fills face velocities just outside the liquid so the PIC
// gather near the surface samples defined values. Mask grids are allocated
// once and reused every step.
type extrapolator struct {
	fluidAdj [3]*Grid3[bool] // a neighboring cell along the axis is fluid
	wall     [3]*Grid3[bool] // both neighboring cells are solid or off-domain
}

func newExtrapolator(dims Dims) *extrapolator {
	return &extrapolator{
		fluidAdj: [3]*Grid3[bool]{
			NewGrid3(dims.X+1, dims.Y, dims.Z, false),
			NewGrid3(dims.X, dims.Y+1, dims.Z, false),
			NewGrid3(dims.X, dims.Y, dims.Z+1, false),
		},
		wall: [3]*Grid3[bool]{
			NewGrid3(dims.X+1, dims.Y, dims.Z, false),
			NewGrid3(dims.X, dims.Y+1, dims.Z, false),
			NewGrid3(dims.X, dims.Y, dims.Z+1, false),
		},
	}
}

// extrapolate performs one averaging sweep: every wall face that is not
// fluid-adjacent takes the mean of the fluid-adjacent values among its six
// face neighbors.
func (e *extrapolator) extrapolate(mac *MacGrid, pool *workerPool) {
	dims := mac.Dims()
	x, y, z := dims.X, dims.Y, dims.Z

	// mark x faces
	pool.run(x+1, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < y; j++ {
				for k := 0; k < z; k++ {
					e.fluidAdj[0].Set(i, j, k,
						(i > 0 && mac.A.At(i-1, j, k) == CellFluid) ||
							(i < x && mac.A.At(i, j, k) == CellFluid))
					e.wall[0].Set(i, j, k,
						(i <= 0 || mac.A.At(i-1, j, k) == CellSolid) &&
							(i >= x || mac.A.At(i, j, k) == CellSolid))
				}
			}
		}
	})
	// mark y faces
	pool.run(x, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < y+1; j++ {
				for k := 0; k < z; k++ {
					e.fluidAdj[1].Set(i, j, k,
						(j > 0 && mac.A.At(i, j-1, k) == CellFluid) ||
							(j < y && mac.A.At(i, j, k) == CellFluid))
					e.wall[1].Set(i, j, k,
						(j <= 0 || mac.A.At(i, j-1, k) == CellSolid) &&
							(j >= y || mac.A.At(i, j, k) == CellSolid))
				}
			}
		}
	})
	// mark z faces
	pool.run(x, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < y; j++ {
				for k := 0; k < z+1; k++ {
					e.fluidAdj[2].Set(i, j, k,
						(k > 0 && mac.A.At(i, j, k-1) == CellFluid) ||
							(k < z && mac.A.At(i, j, k) == CellFluid))
					e.wall[2].Set(i, j, k,
						(k <= 0 || mac.A.At(i, j, k-1) == CellSolid) &&
							(k >= z || mac.A.At(i, j, k) == CellSolid))
				}
			}
		}
	})

	faces := [3]*Grid3[float64]{mac.Ux, mac.Uy, mac.Uz}
	pool.run(x+1, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < y+1; j++ {
				for k := 0; k < z+1; k++ {
					for n := 0; n < 3; n++ {
						if n != 0 && i > x-1 {
							continue
						}
						if n != 1 && j > y-1 {
							continue
						}
						if n != 2 && k > z-1 {
							continue
						}
						if e.fluidAdj[n].At(i, j, k) || !e.wall[n].At(i, j, k) {
							continue
						}
						wsum := 0
						sum := 0.0
						neighbors := [6][3]int{
							{i - 1, j, k}, {i + 1, j, k},
							{i, j - 1, k}, {i, j + 1, k},
							{i, j, k - 1}, {i, j, k + 1},
						}
						for _, qv := range neighbors {
							qi, qj, qk := qv[0], qv[1], qv[2]
							if !e.fluidAdj[n].At(qi, qj, qk) {
								continue
							}
							wsum++
							sum += faces[n].At(qi, qj, qk)
						}
						if wsum > 0 {
							faces[n].Set(i, j, k, sum/float64(wsum))
						}
					}
				}
			}
		}
	})
}
