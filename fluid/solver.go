package fluid

import (
	"log/slog"
	"math"
)

// Ghost-fluid clamp for level-set ratios across the free surface.
const subcellEps = 1.0e-6

// micTuning is the modified-incomplete-Cholesky safety parameter.
const micTuning = 0.25

// pressureSolver owns the scratch grids for the Poisson solve. Everything is
// allocated once at simulator construction and reused every step.
type pressureSolver struct {
	dims    Dims
	subcell int
	tol     float64
	maxIter int

	pc *Grid3[float64] // MIC(0) preconditioner diagonal, as 1/sqrt(e)
	r  *Grid3[float64] // residual
	z  *Grid3[float64] // preconditioned residual
	s  *Grid3[float64] // search direction
	q  *Grid3[float64] // A*s and the forward-substitution intermediate

	// stats from the last solve
	iterations int
	residual   float64
}

func newPressureSolver(dims Dims, subcell int, tol float64) *pressureSolver {
	maxd := int(dims.Max())
	return &pressureSolver{
		dims:    dims,
		subcell: subcell,
		tol:     tol,
		maxIter: maxd * maxd,
		pc:      NewGrid3(dims.X, dims.Y, dims.Z, 0.0),
		r:       NewGrid3(dims.X, dims.Y, dims.Z, 0.0),
		z:       NewGrid3(dims.X, dims.Y, dims.Z, 0.0),
		s:       NewGrid3(dims.X, dims.Y, dims.Z, 0.0),
		q:       NewGrid3(dims.X, dims.Y, dims.Z, 0.0),
	}
}

// aRef is the off-diagonal matrix entry between cell (i,j,k) and its
// neighbor (qi,qj,qk): -1 when both are fluid, 0 otherwise.
func (ps *pressureSolver) aRef(a *Grid3[CellType], i, j, k, qi, qj, qk int) float64 {
	if a.At(i, j, k) != CellFluid || a.At(qi, qj, qk) != CellFluid {
		return 0
	}
	return -1
}

// pcRef reads the preconditioner restricted to fluid cells.
func (ps *pressureSolver) pcRef(a *Grid3[CellType], i, j, k int) float64 {
	if a.At(i, j, k) != CellFluid {
		return 0
	}
	return ps.pc.At(i, j, k)
}

// aDiag is the matrix diagonal at a fluid cell: the number of non-solid
// neighbors, with the ghost-fluid sub-cell term folded in for air neighbors.
func (ps *pressureSolver) aDiag(a *Grid3[CellType], l *Grid3[float64], i, j, k int) float64 {
	diag := 6.0
	if a.At(i, j, k) != CellFluid {
		return diag
	}
	x, y, z := ps.dims.X, ps.dims.Y, ps.dims.Z
	neighbors := [6][3]int{
		{i - 1, j, k}, {i + 1, j, k},
		{i, j - 1, k}, {i, j + 1, k},
		{i, j, k - 1}, {i, j, k + 1},
	}
	for _, q := range neighbors {
		qi, qj, qk := q[0], q[1], q[2]
		if qi < 0 || qi > x-1 || qj < 0 || qj > y-1 || qk < 0 || qk > z-1 ||
			a.At(qi, qj, qk) == CellSolid {
			diag -= 1.0
		} else if a.At(qi, qj, qk) == CellAir && ps.subcell != 0 {
			diag -= l.At(qi, qj, qk) / math.Min(subcellEps, l.At(i, j, k))
		}
	}
	return diag
}

// buildPreconditioner fills pc with the MIC(0) factorization restricted to
// fluid cells. The build runs single-threaded; the sweep order is part of
// the factorization.
func (ps *pressureSolver) buildPreconditioner(mac *MacGrid) {
	ps.pc.Fill(0)
	x, y, z := ps.dims.X, ps.dims.Y, ps.dims.Z
	for i := 0; i < x; i++ {
		for j := 0; j < y; j++ {
			for k := 0; k < z; k++ {
				if mac.A.At(i, j, k) != CellFluid {
					continue
				}
				left := ps.aRef(mac.A, i-1, j, k, i, j, k) * ps.pcRef(mac.A, i-1, j, k)
				bottom := ps.aRef(mac.A, i, j-1, k, i, j, k) * ps.pcRef(mac.A, i, j-1, k)
				back := ps.aRef(mac.A, i, j, k-1, i, j, k) * ps.pcRef(mac.A, i, j, k-1)
				diag := ps.aDiag(mac.A, mac.L, i, j, k)
				if diag <= 0 {
					continue
				}
				e := diag - left*left - bottom*bottom - back*back
				if e < micTuning*diag {
					e = diag
				}
				ps.pc.Set(i, j, k, 1.0/math.Sqrt(e))
			}
		}
	}
}

// xRef reads the pressure iterate at a neighbor of fluid cell f, applying
// the boundary conditions: Neumann at solids (mirror the center value) and
// the ghost-fluid Dirichlet at air.
func (ps *pressureSolver) xRef(mac *MacGrid, x *Grid3[float64], fi, fj, fk, pi, pj, pk int) float64 {
	i := clampIndex(pi, ps.dims.X)
	j := clampIndex(pj, ps.dims.Y)
	k := clampIndex(pk, ps.dims.Z)
	switch mac.A.At(i, j, k) {
	case CellFluid:
		return x.At(i, j, k)
	case CellSolid:
		return x.At(fi, fj, fk)
	}
	if ps.subcell != 0 {
		return mac.L.At(i, j, k) / math.Min(subcellEps, mac.L.At(fi, fj, fk)) * x.At(fi, fj, fk)
	}
	return 0
}

// computeAx writes target = A*x over fluid cells, zero elsewhere. Each cell
// is written once, so the outer loop parallelizes.
func (ps *pressureSolver) computeAx(mac *MacGrid, x, target *Grid3[float64], pool *workerPool) {
	n := ps.dims.Max()
	h := 1.0 / (n * n)
	y, z := ps.dims.Y, ps.dims.Z
	pool.run(ps.dims.X, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < y; j++ {
				for k := 0; k < z; k++ {
					if mac.A.At(i, j, k) != CellFluid {
						target.Set(i, j, k, 0)
						continue
					}
					result := (6.0*x.At(i, j, k) -
						ps.xRef(mac, x, i, j, k, i+1, j, k) -
						ps.xRef(mac, x, i, j, k, i-1, j, k) -
						ps.xRef(mac, x, i, j, k, i, j+1, k) -
						ps.xRef(mac, x, i, j, k, i, j-1, k) -
						ps.xRef(mac, x, i, j, k, i, j, k+1) -
						ps.xRef(mac, x, i, j, k, i, j, k-1)) / h
					target.Set(i, j, k, result)
				}
			}
		}
	})
}

// applyPreconditioner solves M z = r by forward then backward substitution
// with the MIC(0) factor. The sweeps carry a data dependency along the cell
// ordering and stay single-threaded.
func (ps *pressureSolver) applyPreconditioner(mac *MacGrid) {
	a := mac.A
	x, y, z := ps.dims.X, ps.dims.Y, ps.dims.Z

	// forward: L q = r
	for i := 0; i < x; i++ {
		for j := 0; j < y; j++ {
			for k := 0; k < z; k++ {
				if a.At(i, j, k) != CellFluid {
					ps.q.Set(i, j, k, 0)
					continue
				}
				t := ps.r.At(i, j, k) -
					ps.aRef(a, i-1, j, k, i, j, k)*ps.pcRef(a, i-1, j, k)*ps.q.At(i-1, j, k) -
					ps.aRef(a, i, j-1, k, i, j, k)*ps.pcRef(a, i, j-1, k)*ps.q.At(i, j-1, k) -
					ps.aRef(a, i, j, k-1, i, j, k)*ps.pcRef(a, i, j, k-1)*ps.q.At(i, j, k-1)
				ps.q.Set(i, j, k, t*ps.pc.At(i, j, k))
			}
		}
	}
	// backward: L^T z = q
	for i := x - 1; i >= 0; i-- {
		for j := y - 1; j >= 0; j-- {
			for k := z - 1; k >= 0; k-- {
				if a.At(i, j, k) != CellFluid {
					ps.z.Set(i, j, k, 0)
					continue
				}
				t := ps.q.At(i, j, k) -
					ps.aRef(a, i+1, j, k, i, j, k)*ps.pc.At(i, j, k)*ps.z.At(i+1, j, k) -
					ps.aRef(a, i, j+1, k, i, j, k)*ps.pc.At(i, j, k)*ps.z.At(i, j+1, k) -
					ps.aRef(a, i, j, k+1, i, j, k)*ps.pc.At(i, j, k)*ps.z.At(i, j, k+1)
				ps.z.Set(i, j, k, t*ps.pc.At(i, j, k))
			}
		}
	}
}

// fluidDot computes the inner product of two cell grids over fluid cells
// with a deterministic chunked reduction.
func (ps *pressureSolver) fluidDot(a *Grid3[CellType], u, v *Grid3[float64], pool *workerPool) float64 {
	yz := ps.dims.Y * ps.dims.Z
	total := ps.dims.X * yz
	return pool.reduceSum(total, func(start, end int) float64 {
		var sum float64
		for gn := start; gn < end; gn++ {
			if a.data[gn] == CellFluid {
				sum += u.data[gn] * v.data[gn]
			}
		}
		return sum
	})
}

// fluidMaxAbs is the infinity norm of a cell grid over fluid cells.
func (ps *pressureSolver) fluidMaxAbs(a *Grid3[CellType], u *Grid3[float64], pool *workerPool) float64 {
	total := ps.dims.Cells()
	return pool.reduceMax(total, func(start, end int) float64 {
		var m float64
		for gn := start; gn < end; gn++ {
			if a.data[gn] == CellFluid {
				if v := math.Abs(u.data[gn]); v > m {
					m = v
				}
			}
		}
		return m
	})
}

// saxpyFluid computes dst = u + alpha*v over fluid cells, zero elsewhere.
func (ps *pressureSolver) saxpyFluid(a *Grid3[CellType], dst, u, v *Grid3[float64], alpha float64, pool *workerPool) {
	total := ps.dims.Cells()
	pool.run(total, func(start, end int) {
		for gn := start; gn < end; gn++ {
			if a.data[gn] == CellFluid {
				dst.data[gn] = u.data[gn] + alpha*v.data[gn]
			} else {
				dst.data[gn] = 0
			}
		}
	})
}

// solve runs the preconditioned conjugate gradient on A P = -D. D must
// already hold the divergence; it is negated in place to form the right-hand
// side. On non-convergence the last iterate is kept (not necessarily the one
// with the smallest residual) and the residual surfaced through the solver
// stats.
func (ps *pressureSolver) solve(mac *MacGrid, pool *workerPool, verbose bool) {
	// rhs: b = -D
	total := ps.dims.Cells()
	pool.run(total, func(start, end int) {
		for gn := start; gn < end; gn++ {
			mac.D.data[gn] = -mac.D.data[gn]
		}
	})

	ps.buildPreconditioner(mac)

	mac.P.Fill(0)
	ps.saxpyFluid(mac.A, ps.r, mac.D, mac.D, 0, pool) // r = b on fluid cells

	ps.residual = ps.fluidMaxAbs(mac.A, ps.r, pool)
	ps.iterations = 0
	if ps.residual < ps.tol {
		return
	}

	ps.applyPreconditioner(mac)
	ps.s.CopyFrom(ps.z)
	sigma := ps.fluidDot(mac.A, ps.z, ps.r, pool)

	for ps.iterations < ps.maxIter {
		ps.iterations++
		ps.computeAx(mac, ps.s, ps.q, pool)
		sq := ps.fluidDot(mac.A, ps.s, ps.q, pool)
		if sq == 0 {
			break
		}
		alpha := sigma / sq
		ps.saxpyFluid(mac.A, mac.P, mac.P, ps.s, alpha, pool)
		ps.saxpyFluid(mac.A, ps.r, ps.r, ps.q, -alpha, pool)

		ps.residual = ps.fluidMaxAbs(mac.A, ps.r, pool)
		if ps.residual < ps.tol {
			break
		}

		ps.applyPreconditioner(mac)
		sigmaNew := ps.fluidDot(mac.A, ps.z, ps.r, pool)
		beta := sigmaNew / sigma
		ps.saxpyFluid(mac.A, ps.s, ps.z, ps.s, beta, pool)
		sigma = sigmaNew
	}

	if ps.residual >= ps.tol {
		slog.Warn("pressure solve did not converge",
			"iterations", ps.iterations, "residual", ps.residual, "tolerance", ps.tol)
	} else if verbose {
		slog.Debug("pressure solve", "iterations", ps.iterations, "residual", ps.residual)
	}
}

// subtractPressureGradient applies u -= grad(P)/h across faces between
// non-solid cells, substituting ghost pressures where the face crosses the
// liquid surface so the free boundary sits at the zero level set.
func subtractPressureGradient(mac *MacGrid, subcell int, pool *workerPool) {
	dims := mac.Dims()
	h := 1.0 / dims.Max()

	// x faces
	pool.run(dims.X+1, func(start, end int) {
		for i := start; i < end; i++ {
			if i == 0 || i == dims.X {
				continue
			}
			for j := 0; j < dims.Y; j++ {
				for k := 0; k < dims.Z; k++ {
					if !faceProjects(mac, i, j, k, i-1, j, k) {
						continue
					}
					pf, pb := facePressures(mac, subcell, i, j, k, i-1, j, k)
					mac.Ux.Set(i, j, k, mac.Ux.At(i, j, k)-(pf-pb)/h)
				}
			}
		}
	})
	// y faces
	pool.run(dims.X, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 1; j < dims.Y; j++ {
				for k := 0; k < dims.Z; k++ {
					if !faceProjects(mac, i, j, k, i, j-1, k) {
						continue
					}
					pf, pb := facePressures(mac, subcell, i, j, k, i, j-1, k)
					mac.Uy.Set(i, j, k, mac.Uy.At(i, j, k)-(pf-pb)/h)
				}
			}
		}
	})
	// z faces
	pool.run(dims.X, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < dims.Y; j++ {
				for k := 1; k < dims.Z; k++ {
					if !faceProjects(mac, i, j, k, i, j, k-1) {
						continue
					}
					pf, pb := facePressures(mac, subcell, i, j, k, i, j, k-1)
					mac.Uz.Set(i, j, k, mac.Uz.At(i, j, k)-(pf-pb)/h)
				}
			}
		}
	})
}

// faceProjects reports whether the pressure gradient applies across a face:
// at least one side is fluid and neither side is solid.
func faceProjects(mac *MacGrid, fi, fj, fk, bi, bj, bk int) bool {
	f := mac.A.At(fi, fj, fk)
	b := mac.A.At(bi, bj, bk)
	if f == CellSolid || b == CellSolid {
		return false
	}
	return f == CellFluid || b == CellFluid
}

// facePressures returns the front and back pressures for the face between
// cells f and b, replacing the air-side value with a linearly extrapolated
// ghost when the face crosses the surface.
func facePressures(mac *MacGrid, subcell int, fi, fj, fk, bi, bj, bk int) (pf, pb float64) {
	pf = mac.P.At(fi, fj, fk)
	pb = mac.P.At(bi, bj, bk)
	if subcell == 0 {
		return pf, pb
	}
	lf := mac.L.At(fi, fj, fk)
	lb := mac.L.At(bi, bj, bk)
	if lf*lb >= 0 {
		return pf, pb
	}
	if lf >= 0 {
		pf = lf / math.Min(subcellEps, lb) * mac.P.At(bi, bj, bk)
	}
	if lb >= 0 {
		pb = lb / math.Min(subcellEps, lf) * mac.P.At(fi, fj, fk)
	}
	return pf, pb
}
