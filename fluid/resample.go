package fluid

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// resample keeps the per-cell fluid particle population inside the
// configured band: sparse fluid cells are reseeded with jittered particles
// carrying grid-sampled velocity, overfull cells drop their oldest samples
// (lowest store index first).
// The net change per step is bounded to a fraction of the fluid population
// so resampling cannot move mass abruptly.
func (s *Simulator) resample() {
	fluidCount := 0
	for _, p := range s.particles {
		if p.Type == ParticleFluid {
			fluidCount++
		}
	}
	if fluidCount == 0 {
		return
	}
	budget := int(s.tun.ResampleMaxChange * float64(fluidCount))
	if budget < 1 {
		budget = 1
	}
	added, removed := 0, 0

	h := 1.0 / s.dims.Max()
	remove := s.removeFlags
	if cap(remove) < len(s.particles) {
		remove = make([]bool, len(s.particles))
		s.removeFlags = remove
	}
	remove = remove[:len(s.particles)]
	for i := range remove {
		remove[i] = false
	}

	var spawned []*Particle
	for i := 0; i < s.dims.X && (added < budget || removed < budget); i++ {
		for j := 0; j < s.dims.Y; j++ {
			for k := 0; k < s.dims.Z; k++ {
				if s.mac.A.At(i, j, k) != CellFluid {
					continue
				}
				count := s.pgrid.FluidCount(s.particles, i, j, k)
				switch {
				case count > s.tun.ResampleMax:
					for _, n := range s.pgrid.Bucket(i, j, k) {
						if count <= s.tun.ResampleMax || removed >= budget {
							break
						}
						if s.particles[n].Type != ParticleFluid || remove[n] {
							continue
						}
						remove[n] = true
						removed++
						count--
					}
				case count > 0 && count < s.tun.ResampleMin:
					for count < s.tun.ResampleMin && added < budget {
						pos := r3.Vec{
							X: (float64(i) + s.rng.Float64()) * h,
							Y: (float64(j) + s.rng.Float64()) * h,
							Z: (float64(k) + s.rng.Float64()) * h,
						}
						if _, inside := s.scene.PointInsideSolid(r3.Scale(s.dims.Max(), pos), s.frame); inside {
							count++ // never seed inside solids; give up on this slot
							continue
						}
						vel := interpolateVelocity(s.mac, pos)
						spawned = append(spawned, &Particle{
							P:     pos,
							PPrev: pos,
							U:     vel,
							UPrev: vel,
							Mass:  1.0,
							Type:  ParticleFluid,
						})
						added++
						count++
					}
				}
			}
		}
	}

	if removed == 0 && added == 0 {
		return
	}
	kept := s.particles[:0]
	for n, p := range s.particles {
		if n < len(remove) && remove[n] {
			continue
		}
		kept = append(kept, p)
	}
	s.particles = append(kept, spawned...)
	s.pgrid.Sort(s.particles)
}
