// Package scene provides the solver's scene: implicit solid and liquid
// geometry, their level sets, particle emission, and external forces.
// Geometry lives in the normalized [0,1] domain of the simulation.
package scene

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Geom is an implicit solid or liquid volume.
type Geom interface {
	// SDF returns the signed distance to the surface at p, negative inside.
	SDF(p r3.Vec) float64
	// Normal returns the outward unit normal at p.
	Normal(p r3.Vec) r3.Vec
	// Intersect casts a ray from origin o along unit direction d and
	// returns the nearest forward hit distance.
	Intersect(o, d r3.Vec) (t float64, ok bool)
	// Bounds returns an axis-aligned bounding box.
	Bounds() (lo, hi r3.Vec)
}

// Sphere is an implicit sphere.
type Sphere struct {
	Center r3.Vec
	Radius float64
}

func (s Sphere) SDF(p r3.Vec) float64 {
	return r3.Norm(r3.Sub(p, s.Center)) - s.Radius
}

func (s Sphere) Normal(p r3.Vec) r3.Vec {
	d := r3.Sub(p, s.Center)
	n := r3.Norm(d)
	if n == 0 {
		return r3.Vec{Y: 1}
	}
	return r3.Scale(1.0/n, d)
}

func (s Sphere) Intersect(o, d r3.Vec) (float64, bool) {
	oc := r3.Sub(o, s.Center)
	b := r3.Dot(oc, d)
	c := r3.Norm2(oc) - s.Radius*s.Radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

func (s Sphere) Bounds() (r3.Vec, r3.Vec) {
	r := r3.Vec{X: s.Radius, Y: s.Radius, Z: s.Radius}
	return r3.Sub(s.Center, r), r3.Add(s.Center, r)
}

// Box is an implicit axis-aligned box.
type Box struct {
	Min, Max r3.Vec
}

func (b Box) SDF(p r3.Vec) float64 {
	c := r3.Scale(0.5, r3.Add(b.Min, b.Max))
	half := r3.Scale(0.5, r3.Sub(b.Max, b.Min))
	q := r3.Vec{
		X: math.Abs(p.X-c.X) - half.X,
		Y: math.Abs(p.Y-c.Y) - half.Y,
		Z: math.Abs(p.Z-c.Z) - half.Z,
	}
	outside := r3.Vec{
		X: math.Max(q.X, 0),
		Y: math.Max(q.Y, 0),
		Z: math.Max(q.Z, 0),
	}
	inside := math.Min(math.Max(q.X, math.Max(q.Y, q.Z)), 0)
	return r3.Norm(outside) + inside
}

func (b Box) Normal(p r3.Vec) r3.Vec {
	// face of largest penetration relative to the box extents
	c := r3.Scale(0.5, r3.Add(b.Min, b.Max))
	half := r3.Scale(0.5, r3.Sub(b.Max, b.Min))
	d := r3.Sub(p, c)
	rx := math.Abs(d.X) / math.Max(half.X, 1e-12)
	ry := math.Abs(d.Y) / math.Max(half.Y, 1e-12)
	rz := math.Abs(d.Z) / math.Max(half.Z, 1e-12)
	switch {
	case rx >= ry && rx >= rz:
		return r3.Vec{X: sign(d.X)}
	case ry >= rz:
		return r3.Vec{Y: sign(d.Y)}
	default:
		return r3.Vec{Z: sign(d.Z)}
	}
}

func (b Box) Intersect(o, d r3.Vec) (float64, bool) {
	tmin := math.Inf(-1)
	tmax := math.Inf(1)
	for axis := 0; axis < 3; axis++ {
		oa, da := component(o, axis), component(d, axis)
		lo, hi := component(b.Min, axis), component(b.Max, axis)
		if da == 0 {
			if oa < lo || oa > hi {
				return 0, false
			}
			continue
		}
		t0 := (lo - oa) / da
		t1 := (hi - oa) / da
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math.Max(tmin, t0)
		tmax = math.Min(tmax, t1)
		if tmin > tmax {
			return 0, false
		}
	}
	t := tmin
	if t < 0 {
		t = tmax
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

func (b Box) Bounds() (r3.Vec, r3.Vec) {
	return b.Min, b.Max
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func component(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}
