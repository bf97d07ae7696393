package scene

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/riptide-sim/riptide/fluid"
)

// emitJitter is the fraction of the particle spacing used to jitter seeded
// positions off the lattice.
const emitJitter = 0.04

// Scene owns all geometry and its level sets. It implements
// fluid.SceneProvider and outlives any simulator that holds it.
type Scene struct {
	dims   fluid.Dims
	maxDim float64

	solids  []Geom
	liquids []Geom

	solidLS  *LevelSet
	liquidLS *LevelSet

	forces []r3.Vec

	emitEveryFrame bool
	rng            *rand.Rand
}

var _ fluid.SceneProvider = (*Scene)(nil)

// New creates an empty scene for the given grid extents.
func New(dims fluid.Dims) *Scene {
	return &Scene{
		dims:     dims,
		maxDim:   dims.Max(),
		solidLS:  NewLevelSet(dims),
		liquidLS: NewLevelSet(dims),
		rng:      rand.New(rand.NewSource(7)),
	}
}

// AddSolid registers an obstacle volume.
func (s *Scene) AddSolid(g Geom) {
	s.solids = append(s.solids, g)
	s.solidLS.Rebuild(s.solids)
}

// AddLiquid registers a liquid source volume.
func (s *Scene) AddLiquid(g Geom) {
	s.liquids = append(s.liquids, g)
	s.liquidLS.Rebuild(s.liquids)
}

// AddExternalForce appends a constant acceleration applied every step.
func (s *Scene) AddExternalForce(f r3.Vec) {
	s.forces = append(s.forces, f)
}

// SetEmitEveryFrame switches liquid sources from a one-shot fill at frame
// zero to continuous emission.
func (s *Scene) SetEmitEveryFrame(v bool) {
	s.emitEveryFrame = v
}

// ExternalForces returns the per-step acceleration terms.
func (s *Scene) ExternalForces() []r3.Vec {
	return s.forces
}

// SolidLevelSet returns the solid SDF handle.
func (s *Scene) SolidLevelSet() fluid.LevelSet {
	return s.solidLS
}

// LiquidLevelSet returns the liquid source SDF handle.
func (s *Scene) LiquidLevelSet() fluid.LevelSet {
	return s.liquidLS
}

// BuildSolidLevelSet refreshes the solid SDF for the frame. Geometry here
// is static, so the rebuild only runs when obstacles changed; animated
// scenes would resample every call.
func (s *Scene) BuildSolidLevelSet(frame int) {
	// static obstacles: rebuilt eagerly in AddSolid
}

// GenerateParticles appends emitted particles for the given frame: the
// liquid volumes filled with jittered fluid samples, and at frame zero a
// thin shell of immovable solid surface samples so particle repulsion sees
// the obstacles.
func (s *Scene) GenerateParticles(particles *[]*fluid.Particle, dims fluid.Dims, density float64, frame int) {
	if frame > 0 && !s.emitEveryFrame {
		return
	}
	h := density / s.maxDim

	for _, g := range s.liquids {
		lo, hi := g.Bounds()
		for x := lo.X + 0.5*h; x < hi.X; x += h {
			for y := lo.Y + 0.5*h; y < hi.Y; y += h {
				for z := lo.Z + 0.5*h; z < hi.Z; z += h {
					p := r3.Vec{
						X: x + (s.rng.Float64()-0.5)*emitJitter*h,
						Y: y + (s.rng.Float64()-0.5)*emitJitter*h,
						Z: z + (s.rng.Float64()-0.5)*emitJitter*h,
					}
					if g.SDF(p) >= 0 || s.insideAnySolid(p) || !s.insideDomain(p) {
						continue
					}
					*particles = append(*particles, &fluid.Particle{
						P:     p,
						PPrev: p,
						Mass:  1.0,
						Type:  fluid.ParticleFluid,
					})
				}
			}
		}
	}

	if frame == 0 {
		s.seedSolidShells(particles, h)
	}
}

// seedSolidShells places solid surface samples within half a spacing of
// each obstacle surface.
func (s *Scene) seedSolidShells(particles *[]*fluid.Particle, h float64) {
	for _, g := range s.solids {
		lo, hi := g.Bounds()
		for x := lo.X; x <= hi.X; x += h {
			for y := lo.Y; y <= hi.Y; y += h {
				for z := lo.Z; z <= hi.Z; z += h {
					p := r3.Vec{X: x, Y: y, Z: z}
					if math.Abs(g.SDF(p)) > 0.5*h || !s.insideDomain(p) {
						continue
					}
					*particles = append(*particles, &fluid.Particle{
						P:      p,
						PPrev:  p,
						Mass:   1.0,
						Type:   fluid.ParticleSolid,
						Normal: g.Normal(p),
					})
				}
			}
		}
	}
}

func (s *Scene) insideAnySolid(p r3.Vec) bool {
	for _, g := range s.solids {
		if g.SDF(p) < 0 {
			return true
		}
	}
	return false
}

func (s *Scene) insideDomain(p r3.Vec) bool {
	r := 1.0 / s.maxDim
	return p.X >= r && p.X <= 1-r &&
		p.Y >= r && p.Y <= 1-r &&
		p.Z >= r && p.Z <= 1-r
}

// IntersectSolids casts a cell-unit ray against all obstacles and returns
// the nearest hit.
func (s *Scene) IntersectSolids(r fluid.Ray) fluid.Intersection {
	o := r3.Scale(1.0/s.maxDim, r.Origin)
	var best fluid.Intersection
	bestT := math.Inf(1)
	for _, g := range s.solids {
		t, ok := g.Intersect(o, r.Dir)
		if !ok || t >= bestT {
			continue
		}
		point := r3.Add(o, r3.Scale(t, r.Dir))
		bestT = t
		best = fluid.Intersection{
			Hit:    true,
			Point:  r3.Scale(s.maxDim, point),
			Normal: g.Normal(point),
		}
	}
	if !best.Hit {
		// fall back to the domain walls so escape rays terminate
		if t, n, ok := s.intersectWalls(o, r.Dir); ok {
			best = fluid.Intersection{
				Hit:    true,
				Point:  r3.Scale(s.maxDim, r3.Add(o, r3.Scale(t, r.Dir))),
				Normal: n,
			}
		}
	}
	return best
}

// intersectWalls treats the domain boundary as an inward-facing box.
func (s *Scene) intersectWalls(o, d r3.Vec) (float64, r3.Vec, bool) {
	bestT := math.Inf(1)
	var bestN r3.Vec
	for axis := 0; axis < 3; axis++ {
		da := component(d, axis)
		if da == 0 {
			continue
		}
		for _, wall := range [2]float64{0, 1} {
			t := (wall - component(o, axis)) / da
			if t <= 0 || t >= bestT {
				continue
			}
			bestT = t
			switch axis {
			case 0:
				bestN = r3.Vec{X: 1 - 2*wall}
			case 1:
				bestN = r3.Vec{Y: 1 - 2*wall}
			default:
				bestN = r3.Vec{Z: 1 - 2*wall}
			}
		}
	}
	if math.IsInf(bestT, 1) {
		return 0, r3.Vec{}, false
	}
	return bestT, bestN, true
}

// PointInsideSolid reports whether a cell-unit point lies inside an
// obstacle, and which one.
func (s *Scene) PointInsideSolid(p r3.Vec, frame int) (int, bool) {
	q := r3.Scale(1.0/s.maxDim, p)
	for i, g := range s.solids {
		if g.SDF(q) < 0 {
			return i, true
		}
	}
	return 0, false
}
