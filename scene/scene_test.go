package scene

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/riptide-sim/riptide/fluid"
)

func TestSphereSDF(t *testing.T) {
	s := Sphere{Center: r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, Radius: 0.2}

	tests := []struct {
		name string
		p    r3.Vec
		want float64
	}{
		{"center", r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, -0.2},
		{"on surface", r3.Vec{X: 0.7, Y: 0.5, Z: 0.5}, 0},
		{"outside", r3.Vec{X: 0.9, Y: 0.5, Z: 0.5}, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.SDF(tt.p); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("SDF(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestSphereIntersect(t *testing.T) {
	s := Sphere{Center: r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, Radius: 0.1}

	tt, ok := s.Intersect(r3.Vec{X: 0.5, Y: 0.9, Z: 0.5}, r3.Vec{Y: -1})
	if !ok {
		t.Fatal("ray aimed at sphere should hit")
	}
	if math.Abs(tt-0.3) > 1e-12 {
		t.Errorf("hit distance = %v, want 0.3", tt)
	}

	if _, ok := s.Intersect(r3.Vec{X: 0.5, Y: 0.9, Z: 0.5}, r3.Vec{Y: 1}); ok {
		t.Error("ray pointing away should miss")
	}
}

func TestBoxSDFAndNormal(t *testing.T) {
	b := Box{Min: r3.Vec{X: 0.2, Y: 0.2, Z: 0.2}, Max: r3.Vec{X: 0.8, Y: 0.6, Z: 0.8}}

	if got := b.SDF(r3.Vec{X: 0.5, Y: 0.4, Z: 0.5}); got >= 0 {
		t.Errorf("SDF inside box = %v, want negative", got)
	}
	if got := b.SDF(r3.Vec{X: 0.5, Y: 0.9, Z: 0.5}); math.Abs(got-0.3) > 1e-12 {
		t.Errorf("SDF above box = %v, want 0.3", got)
	}

	n := b.Normal(r3.Vec{X: 0.5, Y: 0.59, Z: 0.5})
	if n.Y != 1 {
		t.Errorf("normal near top face = %v, want +y", n)
	}
}

func TestBoxIntersect(t *testing.T) {
	b := Box{Min: r3.Vec{X: 0.4, Y: 0.4, Z: 0.4}, Max: r3.Vec{X: 0.6, Y: 0.6, Z: 0.6}}

	tt, ok := b.Intersect(r3.Vec{X: 0.5, Y: 0.9, Z: 0.5}, r3.Vec{Y: -1})
	if !ok {
		t.Fatal("ray aimed at box should hit")
	}
	if math.Abs(tt-0.3) > 1e-12 {
		t.Errorf("hit distance = %v, want 0.3", tt)
	}
}

func TestLevelSetRebuild(t *testing.T) {
	dims := fluid.Dims{X: 8, Y: 8, Z: 8}
	ls := NewLevelSet(dims)
	ls.Rebuild([]Geom{Sphere{Center: r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, Radius: 0.25}})

	if got := ls.At(4, 4, 4); got >= 0 {
		t.Errorf("level set at sphere center = %v, want negative", got)
	}
	if got := ls.At(0, 0, 0); got <= 0 {
		t.Errorf("level set far outside = %v, want positive", got)
	}
}

func TestLevelSetProjectToSurface(t *testing.T) {
	dims := fluid.Dims{X: 16, Y: 16, Z: 16}
	ls := NewLevelSet(dims)
	sphere := Sphere{Center: r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, Radius: 0.25}
	ls.Rebuild([]Geom{sphere})

	inside := r3.Vec{X: 0.5, Y: 0.6, Z: 0.5}
	out := ls.ProjectToSurface(inside, dims.Max())
	if got := math.Abs(sphere.SDF(out)); got > 0.05 {
		t.Errorf("projected point is %v off the surface", got)
	}
}

func TestGenerateParticlesFillsLiquid(t *testing.T) {
	dims := fluid.Dims{X: 8, Y: 8, Z: 8}
	sc := New(dims)
	sc.AddLiquid(Box{Min: r3.Vec{X: 0.2, Y: 0.2, Z: 0.2}, Max: r3.Vec{X: 0.6, Y: 0.6, Z: 0.6}})

	var particles []*fluid.Particle
	sc.GenerateParticles(&particles, dims, 0.5, 0)
	if len(particles) == 0 {
		t.Fatal("liquid volume produced no particles")
	}
	for i, p := range particles {
		if p.Type != fluid.ParticleFluid {
			t.Fatalf("particle %d type = %v, want fluid", i, p.Type)
		}
		if p.P.X < 0.1 || p.P.X > 0.7 {
			t.Fatalf("particle %d emitted at %v, outside the liquid bounds", i, p.P)
		}
	}

	// one-shot sources do not emit after frame zero
	n := len(particles)
	sc.GenerateParticles(&particles, dims, 0.5, 1)
	if len(particles) != n {
		t.Errorf("one-shot source emitted again at frame 1")
	}
}

func TestGenerateParticlesSeedsSolidShell(t *testing.T) {
	dims := fluid.Dims{X: 8, Y: 8, Z: 8}
	sc := New(dims)
	sc.AddSolid(Sphere{Center: r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, Radius: 0.2})

	var particles []*fluid.Particle
	sc.GenerateParticles(&particles, dims, 0.5, 0)
	solids := 0
	for _, p := range particles {
		if p.Type == fluid.ParticleSolid {
			solids++
			if n := r3.Norm(p.Normal); math.Abs(n-1) > 1e-9 {
				t.Fatalf("solid sample normal has length %v", n)
			}
		}
	}
	if solids == 0 {
		t.Error("solid obstacle produced no surface samples")
	}
}

func TestPointInsideSolid(t *testing.T) {
	dims := fluid.Dims{X: 8, Y: 8, Z: 8}
	sc := New(dims)
	sc.AddSolid(Sphere{Center: r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, Radius: 0.2})

	// cell-unit coordinates
	if _, inside := sc.PointInsideSolid(r3.Vec{X: 4, Y: 4, Z: 4}, 0); !inside {
		t.Error("sphere center should be inside")
	}
	if _, inside := sc.PointInsideSolid(r3.Vec{X: 1, Y: 1, Z: 1}, 0); inside {
		t.Error("corner should be outside")
	}
}

func TestIntersectSolidsFallsBackToWalls(t *testing.T) {
	dims := fluid.Dims{X: 8, Y: 8, Z: 8}
	sc := New(dims)

	hit := sc.IntersectSolids(fluid.Ray{Origin: r3.Vec{X: 4, Y: 4, Z: 4}, Dir: r3.Vec{Y: -1}})
	if !hit.Hit {
		t.Fatal("ray in an empty scene should hit the domain walls")
	}
	if math.Abs(hit.Point.Y) > 1e-9 {
		t.Errorf("wall hit at y=%v, want 0", hit.Point.Y)
	}
	if hit.Normal.Y != 1 {
		t.Errorf("floor normal = %v, want +y", hit.Normal)
	}
}
