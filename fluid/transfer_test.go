package fluid

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestSplatGatherRoundTrip(t *testing.T) {
	// A single particle's velocity must survive a splat followed by a
	// gather at the same position to within kernel roundoff.
	dims := Dims{X: 8, Y: 8, Z: 8}
	pg := NewParticleGrid(dims)
	pool := newWorkerPool()
	defer pool.stop()

	want := r3.Vec{X: 0.3, Y: -0.7, Z: 0.2}
	p := fluidParticleAt(0.5, 0.5, 0.5)
	p.U = want
	particles := []*Particle{p}
	pg.Sort(particles)

	mac := NewMacGrid(dims)
	splatToGrid(pg, particles, mac, pool)
	got := interpolateVelocity(mac, p.P)

	if math.Abs(got.X-want.X) > 1e-9 ||
		math.Abs(got.Y-want.Y) > 1e-9 ||
		math.Abs(got.Z-want.Z) > 1e-9 {
		t.Errorf("round trip velocity = %+v, want %+v", got, want)
	}
}

func TestSplatLeavesUnreachedFaces(t *testing.T) {
	dims := Dims{X: 8, Y: 8, Z: 8}
	pg := NewParticleGrid(dims)
	pool := newWorkerPool()
	defer pool.stop()

	p := fluidParticleAt(0.5, 0.5, 0.5)
	p.U = r3.Vec{X: 1}
	particles := []*Particle{p}
	pg.Sort(particles)

	mac := NewMacGrid(dims)
	mac.Ux.Set(0, 0, 0, 42) // far corner, outside any kernel support
	splatToGrid(pg, particles, mac, pool)

	if got := mac.Ux.At(0, 0, 0); got != 42 {
		t.Errorf("face with no contributing particles = %v, want unchanged 42", got)
	}
}

func TestTriLerp(t *testing.T) {
	g := NewGrid3(3, 3, 3, 0.0)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				g.Set(i, j, k, float64(i))
			}
		}
	}

	tests := []struct {
		name    string
		x, y, z float64
		want    float64
	}{
		{"on sample", 1, 1, 1, 1},
		{"midpoint", 0.5, 1, 1, 0.5},
		{"clamped low", -2, 1, 1, 0},
		{"clamped high", 5, 1, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := triLerp(g, tt.x, tt.y, tt.z); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("triLerp(%v,%v,%v) = %v, want %v", tt.x, tt.y, tt.z, got, tt.want)
			}
		})
	}
}

func TestEnforceBoundary(t *testing.T) {
	dims := Dims{X: 4, Y: 4, Z: 4}
	mac := NewMacGrid(dims)
	pool := newWorkerPool()
	defer pool.stop()

	mac.Ux.Fill(1)
	mac.Uy.Fill(1)
	mac.Uz.Fill(1)
	// interior solid cell
	mac.A.Set(2, 2, 2, CellSolid)

	enforceBoundary(mac, pool)

	if got := mac.Ux.At(0, 1, 1); got != 0 {
		t.Errorf("domain wall face = %v, want 0", got)
	}
	if got := mac.Ux.At(4, 1, 1); got != 0 {
		t.Errorf("far domain wall face = %v, want 0", got)
	}
	if got := mac.Ux.At(2, 2, 2); got != 0 {
		t.Errorf("face into solid cell = %v, want 0", got)
	}
	if got := mac.Ux.At(3, 2, 2); got != 0 {
		t.Errorf("face out of solid cell = %v, want 0", got)
	}
	if got := mac.Ux.At(2, 1, 1); got != 1 {
		t.Errorf("free interior face = %v, want untouched 1", got)
	}
}
