package fluid

import (
	"fmt"
	"log/slog"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/riptide-sim/riptide/telemetry"
)

// densitySupportFactor scales the smoothing radius of the particle density
// estimate, in units of particle spacing.
const densitySupportFactor = 4.0

// calibrationSide is the edge length of the uniform packing used to
// calibrate the density normalization at Init.
const calibrationSide = 10

// Tunables collects the numerical constants of the pipeline. Zero values
// are not meaningful; start from DefaultTunables.
type Tunables struct {
	PicFlipRatio      float64 // FLIP fraction of the blended update
	Subcell           int     // 1 enables the ghost-fluid free-surface terms
	CGTolerance       float64 // PCG residual target, infinity norm
	ReFactor          float64 // solid repulsion radius in particle spacings
	StuckOvershoot    float64 // fraction of the surface distance to overshoot
	BounceRetract     float64 // fraction of the hit distance kept on bounce
	ResampleMin       int     // reseed fluid cells below this population
	ResampleMax       int     // trim fluid cells above this population
	ResampleMaxChange float64 // per-step particle count change bound
}

// DefaultTunables returns the published FLIP solver defaults.
func DefaultTunables() Tunables {
	return Tunables{
		PicFlipRatio:      0.95,
		Subcell:           1,
		CGTolerance:       1.0e-4,
		ReFactor:          1.5,
		StuckOvershoot:    1.05,
		BounceRetract:     0.90,
		ResampleMin:       4,
		ResampleMax:       32,
		ResampleMaxChange: 0.1,
	}
}

// Simulator owns the particle store, the two MAC grids, and all solver
// scratch state, and advances the liquid one frame per Step. The scene is a
// non-owning handle; it outlives the simulator by contract.
type Simulator struct {
	dims       Dims
	density    float64
	stepSize   float64
	maxDensity float64
	frame      int
	verbose    bool

	tun Tunables

	scene    SceneProvider
	exporter Exporter

	particles []*Particle
	pgrid     *ParticleGrid
	mac       *MacGrid
	macPrev   *MacGrid

	solver *pressureSolver
	extra  *extrapolator
	pool   *workerPool
	rng    *rand.Rand
	perf   *telemetry.PerfCollector

	stuckFlags  []bool
	removeFlags []bool
}

// New validates the configuration and allocates all per-run state. No grid
// or scratch allocation happens inside Step after warmup.
func New(dims Dims, density, stepSize float64, scene SceneProvider, verbose bool) (*Simulator, error) {
	if dims.X < 3 || dims.Y < 3 || dims.Z < 3 {
		return nil, fmt.Errorf("fluid: grid dimensions %dx%dx%d too small, need at least 3 per axis",
			dims.X, dims.Y, dims.Z)
	}
	if density <= 0 {
		return nil, fmt.Errorf("fluid: density must be positive, got %g", density)
	}
	if stepSize <= 0 {
		return nil, fmt.Errorf("fluid: step size must be positive, got %g", stepSize)
	}
	if scene == nil {
		return nil, fmt.Errorf("fluid: nil scene provider")
	}
	tun := DefaultTunables()
	return &Simulator{
		dims:     dims,
		density:  density,
		stepSize: stepSize,
		verbose:  verbose,
		tun:      tun,
		scene:    scene,
		pgrid:    NewParticleGrid(dims),
		mac:      NewMacGrid(dims),
		macPrev:  NewMacGrid(dims),
		solver:   newPressureSolver(dims, tun.Subcell, tun.CGTolerance),
		extra:    newExtrapolator(dims),
		pool:     newWorkerPool(),
		rng:      rand.New(rand.NewSource(1)),
	}, nil
}

// SetTunables overrides the numerical constants. Call before Init.
func (s *Simulator) SetTunables(t Tunables) {
	s.tun = t
	s.solver.subcell = t.Subcell
	s.solver.tol = t.CGTolerance
}

// SetExporter installs the particle sink used when Step is asked to save.
func (s *Simulator) SetExporter(e Exporter) {
	s.exporter = e
}

// SetPerfCollector installs per-phase step timing.
func (s *Simulator) SetPerfCollector(pc *telemetry.PerfCollector) {
	s.perf = pc
}

// Particles returns the live particle store.
func (s *Simulator) Particles() []*Particle {
	return s.particles
}

// Dimensions returns the grid extents.
func (s *Simulator) Dimensions() Dims {
	return s.dims
}

// Scene returns the scene handle.
func (s *Simulator) Scene() SceneProvider {
	return s.scene
}

// MAC returns the current velocity grid. Callers must not mutate it while
// a step is in flight.
func (s *Simulator) MAC() *MacGrid {
	return s.mac
}

// Frame returns the index of the last completed step.
func (s *Simulator) Frame() int {
	return s.frame
}

// SolverStats reports the iteration count and residual of the last pressure
// solve.
func (s *Simulator) SolverStats() (iterations int, residual float64) {
	return s.solver.iterations, s.solver.residual
}

// Close stops the worker pool.
func (s *Simulator) Close() {
	s.pool.stop()
}

// Init calibrates the density normalization against a uniform packing, then
// runs the initial emission and cell classification.
func (s *Simulator) Init() {
	s.scene.BuildSolidLevelSet(0)

	// Maximum particle density is not known analytically for the smoothing
	// kernel in use, so measure it on a known dense packing.
	h := s.density / s.dims.Max()
	calib := make([]*Particle, 0, calibrationSide*calibrationSide*calibrationSide)
	for i := 0; i < calibrationSide; i++ {
		for j := 0; j < calibrationSide; j++ {
			for k := 0; k < calibrationSide; k++ {
				calib = append(calib, &Particle{
					P: r3.Vec{
						X: (float64(i) + 0.5) * h,
						Y: (float64(j) + 0.5) * h,
						Z: (float64(k) + 0.5) * h,
					},
					Mass: 1.0,
					Type: ParticleFluid,
				})
			}
		}
	}
	s.particles = calib
	s.pgrid.Sort(s.particles)
	s.maxDensity = 1.0
	s.computeDensity()
	s.maxDensity = 0.0
	for _, p := range calib {
		if p.Density > s.maxDensity {
			s.maxDensity = p.Density
		}
	}

	s.particles = s.particles[:0]
	s.scene.GenerateParticles(&s.particles, s.dims, s.density, 0)
	s.pgrid.Sort(s.particles)
	s.pgrid.MarkCellTypes(s.particles, s.mac.A, s.scene.SolidLevelSet(), s.pool)

	if s.verbose {
		slog.Info("simulator initialized",
			"dims", fmt.Sprintf("%dx%dx%d", s.dims.X, s.dims.Y, s.dims.Z),
			"particles", len(s.particles),
			"max_density", s.maxDensity)
	}
}

// Step advances the simulation one frame. The step is atomic: phases run
// strictly in order and all recoveries are local.
func (s *Simulator) Step(save bool) {
	s.frame++
	s.perfStart()

	s.phase(telemetry.PhaseEmit)
	s.scene.GenerateParticles(&s.particles, s.dims, s.density, s.frame)
	s.scene.BuildSolidLevelSet(s.frame)

	s.phase(telemetry.PhaseRepair)
	s.repairStuckParticles()

	s.phase(telemetry.PhaseSort)
	s.snapshotParticles()
	s.pgrid.Sort(s.particles)

	s.phase(telemetry.PhaseDensity)
	s.computeDensity()

	s.phase(telemetry.PhaseForces)
	s.applyExternalForces()

	s.phase(telemetry.PhaseSplat)
	splatToGrid(s.pgrid, s.particles, s.mac, s.pool)

	s.phase(telemetry.PhaseClassify)
	s.pgrid.MarkCellTypes(s.particles, s.mac.A, s.scene.SolidLevelSet(), s.pool)
	s.macPrev.CopyFacesFrom(s.mac)

	s.phase(telemetry.PhaseProject)
	enforceBoundary(s.mac, s.pool)
	s.project()
	enforceBoundary(s.mac, s.pool)

	s.phase(telemetry.PhaseExtrapolate)
	s.extra.extrapolate(s.mac, s.pool)

	s.phase(telemetry.PhaseBlend)
	s.deltaFaces()
	s.solvePicFlip()

	s.phase(telemetry.PhaseAdvect)
	s.advectParticles()
	s.pgrid.Sort(s.particles)

	s.phase(telemetry.PhaseConstraints)
	s.applyWallAndRepulsion()
	s.resolveSolidCollisions()
	s.snapshotParticles()

	s.phase(telemetry.PhaseResample)
	s.resample()
	s.resolveSolidCollisions()
	s.dropNonFinite()

	s.phase(telemetry.PhaseExport)
	if save && s.exporter != nil {
		if err := s.exporter.ExportParticles(s.particles, s.dims.Max(), s.frame); err != nil {
			slog.Error("particle export failed", "frame", s.frame, "error", err)
		}
	}
	s.perfEnd()

	if s.verbose {
		iters, res := s.SolverStats()
		slog.Info("step",
			"frame", s.frame,
			"particles", len(s.particles),
			"cg_iterations", iters,
			"cg_residual", res)
	}
}

// Project runs the pressure projection on the current grid state: compute
// divergence, rebuild the liquid level set, solve, subtract the gradient.
// Exposed for the incompressibility property tests.
func (s *Simulator) Project() {
	s.project()
}

func (s *Simulator) project() {
	s.computeDivergence()
	s.pgrid.BuildSDF(s.particles, s.mac, s.density, s.pool)
	s.solver.solve(s.mac, s.pool, s.verbose)
	subtractPressureGradient(s.mac, s.tun.Subcell, s.pool)
}

func (s *Simulator) computeDivergence() {
	h := 1.0 / s.dims.Max()
	y, z := s.dims.Y, s.dims.Z
	s.pool.run(s.dims.X, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < y; j++ {
				for k := 0; k < z; k++ {
					div := (s.mac.Ux.At(i+1, j, k) - s.mac.Ux.At(i, j, k) +
						s.mac.Uy.At(i, j+1, k) - s.mac.Uy.At(i, j, k) +
						s.mac.Uz.At(i, j, k+1) - s.mac.Uz.At(i, j, k)) / h
					s.mac.D.Set(i, j, k, div)
				}
			}
		}
	})
}

// snapshotParticles saves position and velocity for the FLIP delta and the
// collision ray casts.
func (s *Simulator) snapshotParticles() {
	s.pool.run(len(s.particles), func(start, end int) {
		for i := start; i < end; i++ {
			p := s.particles[i]
			p.PPrev = p.P
			p.UPrev = p.U
		}
	})
}

// computeDensity estimates a normalized density per fluid particle from its
// neighborhood. Solid surface samples are pinned at density 1.
func (s *Simulator) computeDensity() {
	support := densitySupportFactor * s.density / s.dims.Max()
	s.pool.run(len(s.particles), func(start, end int) {
		var scratch []int32
		for i := start; i < end; i++ {
			p := s.particles[i]
			if p.Type == ParticleSolid {
				p.Density = 1.0
				continue
			}
			ci, cj, ck := s.pgrid.CellOf(p.P)
			scratch = s.pgrid.CellNeighbors(scratch[:0], ci, cj, ck, 1)
			var weightSum float64
			for _, n := range scratch {
				np := s.particles[n]
				weightSum += np.Mass * smoothKernel(r3.Norm2(r3.Sub(np.P, p.P)), support)
			}
			p.Density = weightSum / s.maxDensity
		}
	})
}

func (s *Simulator) applyExternalForces() {
	forces := s.scene.ExternalForces()
	var total r3.Vec
	for _, f := range forces {
		total = r3.Add(total, f)
	}
	impulse := r3.Scale(s.stepSize, total)
	s.pool.run(len(s.particles), func(start, end int) {
		for i := start; i < end; i++ {
			p := s.particles[i]
			if p.Type == ParticleFluid {
				p.U = r3.Add(p.U, impulse)
			}
		}
	})
}

// deltaFaces turns the snapshot grid into the per-step velocity change:
// macPrev = mac - macPrev, face by face.
func (s *Simulator) deltaFaces() {
	sub := func(cur, prev *Grid3[float64]) {
		s.pool.run(len(cur.data), func(start, end int) {
			for i := start; i < end; i++ {
				prev.data[i] = cur.data[i] - prev.data[i]
			}
		})
	}
	sub(s.mac.Ux, s.macPrev.Ux)
	sub(s.mac.Uy, s.macPrev.Uy)
	sub(s.mac.Uz, s.macPrev.Uz)
}

// solvePicFlip forms the blended velocity update. PIC samples the projected
// grid; FLIP adds the grid's velocity change to the particle's pre-solve
// velocity. PIC is diffusive but stable, FLIP energetic but noisy.
func (s *Simulator) solvePicFlip() {
	ratio := s.tun.PicFlipRatio
	s.pool.run(len(s.particles), func(start, end int) {
		for i := start; i < end; i++ {
			p := s.particles[i]
			if p.Type != ParticleFluid {
				continue
			}
			p.T = r3.Add(p.U, interpolateVelocity(s.macPrev, p.P))
			pic := interpolateVelocity(s.mac, p.P)
			p.U = r3.Add(r3.Scale(1.0-ratio, pic), r3.Scale(ratio, p.T))
		}
	})
}

func (s *Simulator) advectParticles() {
	s.pool.run(len(s.particles), func(start, end int) {
		for i := start; i < end; i++ {
			p := s.particles[i]
			if p.Type != ParticleFluid {
				continue
			}
			vel := interpolateVelocity(s.mac, p.P)
			p.P = r3.Add(p.P, r3.Scale(s.stepSize, vel))
		}
	})
}

func (s *Simulator) perfStart() {
	if s.perf != nil {
		s.perf.StartTick()
	}
}

func (s *Simulator) phase(name string) {
	if s.perf != nil {
		s.perf.StartPhase(name)
	}
}

func (s *Simulator) perfEnd() {
	if s.perf != nil {
		s.perf.EndTick()
	}
}
