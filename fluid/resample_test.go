package fluid

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestResampleSeedsSparseCells(t *testing.T) {
	sc := &stubScene{}
	sim, err := New(Dims{X: 8, Y: 8, Z: 8}, 0.5, 1.0/60, sc, false)
	require.NoError(t, err)
	defer sim.Close()

	// a lone fluid particle in an interior cell
	p := fluidParticleAt(0.45, 0.45, 0.45)
	sim.particles = []*Particle{p}
	sim.pgrid.Sort(sim.particles)
	sim.pgrid.MarkCellTypes(sim.particles, sim.mac.A, nil, sim.pool)
	sim.maxDensity = 1

	before := len(sim.particles)
	sim.resample()
	require.Greater(t, len(sim.particles), before, "sparse fluid cell should be reseeded")
	// growth stays within the per-step budget
	require.LessOrEqual(t, len(sim.particles), before+1,
		"resample exceeded the bounded change fraction")

	for _, q := range sim.particles {
		require.Equal(t, ParticleFluid, q.Type)
		i, j, k := sim.pgrid.CellOf(q.P)
		require.Equal(t, [3]int{3, 3, 3}, [3]int{i, j, k}, "seeded outside the sparse cell")
	}
}

func TestResampleTrimsCrowdedCells(t *testing.T) {
	sc := &stubScene{}
	sim, err := New(Dims{X: 8, Y: 8, Z: 8}, 0.5, 1.0/60, sc, false)
	require.NoError(t, err)
	defer sim.Close()

	// 300 particles crammed into one cell, well past the cap
	var particles []*Particle
	for i := 0; i < 300; i++ {
		particles = append(particles, fluidParticleAt(
			0.40+0.01*float64(i%10),
			0.40+0.01*float64((i/10)%10),
			0.40+0.01*float64(i/100),
		))
	}
	sim.particles = particles
	sim.pgrid.Sort(sim.particles)
	sim.pgrid.MarkCellTypes(sim.particles, sim.mac.A, nil, sim.pool)
	sim.maxDensity = 1

	before := len(sim.particles)
	sim.resample()
	require.Less(t, len(sim.particles), before, "crowded cell should be trimmed")
	require.GreaterOrEqual(t, len(sim.particles), before-before/10-1,
		"resample deleted more than the bounded fraction")
}

func TestResampleNoFluidIsNoop(t *testing.T) {
	sc := &stubScene{}
	sim, err := New(Dims{X: 8, Y: 8, Z: 8}, 0.5, 1.0/60, sc, false)
	require.NoError(t, err)
	defer sim.Close()

	solid := &Particle{P: r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, Mass: 1, Type: ParticleSolid, Normal: r3.Vec{Y: 1}}
	sim.particles = []*Particle{solid}
	sim.pgrid.Sort(sim.particles)
	sim.resample()
	require.Len(t, sim.particles, 1)
}
