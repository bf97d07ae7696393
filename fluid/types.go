package fluid

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// CellType classifies a MAC grid cell.
type CellType int8

const (
	CellAir CellType = iota
	CellFluid
	CellSolid
)

// ParticleType distinguishes liquid samples from immovable thin-shell solid
// surface samples. Solid samples only contribute to neighbor repulsion.
type ParticleType int8

const (
	ParticleFluid ParticleType = iota
	ParticleSolid
)

// Particle is one sample point. Positions are normalized to [0,1]^3 over the
// longest grid axis; velocities are in the same normalized units per second.
type Particle struct {
	P     r3.Vec // position
	PPrev r3.Vec // position at the start of the step
	U     r3.Vec // velocity
	UPrev r3.Vec // velocity at the start of the step
	T     r3.Vec // scratch, used during the PIC/FLIP blend

	Mass    float64
	Density float64

	Type   ParticleType
	Normal r3.Vec // outward surface normal, solid samples only
}

// Dims holds the integer grid extents.
type Dims struct {
	X, Y, Z int
}

// Max returns the longest axis as a float, the normalization scale for
// particle coordinates.
func (d Dims) Max() float64 {
	m := d.X
	if d.Y > m {
		m = d.Y
	}
	if d.Z > m {
		m = d.Z
	}
	return float64(m)
}

// Cells returns the total cell count.
func (d Dims) Cells() int {
	return d.X * d.Y * d.Z
}

// Ray is a geometry query ray. Origin and direction are in cell units
// (normalized position times Dims.Max).
type Ray struct {
	Origin r3.Vec
	Dir    r3.Vec
	Frame  int
}

// Intersection is the result of a solid geometry ray cast. Point is in cell
// units; Normal is unit length.
type Intersection struct {
	Hit    bool
	Point  r3.Vec
	Normal r3.Vec
}

// LevelSet is a cell-centered signed distance field owned by the scene.
// Values are in cell units, negative inside.
type LevelSet interface {
	// At returns the signed distance at cell (i,j,k).
	At(i, j, k int) float64
	// ProjectToSurface moves a normalized-space point to the nearest point
	// on the zero isosurface and returns it.
	ProjectToSurface(p r3.Vec, maxDim float64) r3.Vec
}

// SceneProvider supplies geometry, emission, and forcing to the simulator.
// The scene owns all geometry and outlives the simulator.
type SceneProvider interface {
	// GenerateParticles appends emitted particles for the given frame.
	GenerateParticles(particles *[]*Particle, dims Dims, density float64, frame int)
	// BuildSolidLevelSet refreshes the solid SDF for the frame.
	BuildSolidLevelSet(frame int)
	// SolidLevelSet returns the current solid SDF.
	SolidLevelSet() LevelSet
	// LiquidLevelSet returns the liquid source SDF.
	LiquidLevelSet() LevelSet
	// IntersectSolids casts a ray against all solid geometry.
	IntersectSolids(r Ray) Intersection
	// PointInsideSolid reports whether a cell-unit point is inside a solid,
	// and which one.
	PointInsideSolid(p r3.Vec, frame int) (geomID int, inside bool)
	// ExternalForces returns the per-step acceleration terms, summed by the
	// simulator.
	ExternalForces() []r3.Vec
}

// Exporter receives the particle state at the end of a step. The simulator
// treats it as an opaque sink.
type Exporter interface {
	ExportParticles(particles []*Particle, maxDim float64, frame int) error
}

func isFiniteVec(v r3.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}

func clampVec(v, lo, hi r3.Vec) r3.Vec {
	return r3.Vec{
		X: math.Min(math.Max(v.X, lo.X), hi.X),
		Y: math.Min(math.Max(v.Y, lo.Y), hi.Y),
		Z: math.Min(math.Max(v.Z, lo.Z), hi.Z),
	}
}
