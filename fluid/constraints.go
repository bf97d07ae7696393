package fluid

import (
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"
)

// repairStuckParticles moves fluid particles that ended up inside a solid
// back outside it. The solid level set gives the direction to the nearest
// surface; a ray cast from the projected point refines the exact crossing,
// and the particle is placed a fraction past it along the outward ray.
func (s *Simulator) repairStuckParticles() {
	maxd := s.dims.Max()
	n := len(s.particles)
	stuckFlags := s.stuckFlags
	if cap(stuckFlags) < n {
		stuckFlags = make([]bool, n)
		s.stuckFlags = stuckFlags
	}
	stuckFlags = stuckFlags[:n]

	s.pool.run(n, func(start, end int) {
		for i := start; i < end; i++ {
			p := s.particles[i]
			stuckFlags[i] = false
			if p.Type != ParticleFluid {
				continue
			}
			point := r3.Scale(maxd, p.P)
			if _, inside := s.scene.PointInsideSolid(point, s.frame); inside {
				stuckFlags[i] = true
			}
		}
	})

	sls := s.scene.SolidLevelSet()
	for i := 0; i < n; i++ {
		if !stuckFlags[i] {
			continue
		}
		p := s.particles[i]
		surface := sls.ProjectToSurface(p.P, maxd)
		dir := r3.Sub(surface, p.P)
		d := r3.Norm(dir)
		if d == 0 || !isFiniteVec(dir) {
			continue
		}
		dir = r3.Scale(1.0/d, dir)
		ray := Ray{Origin: r3.Scale(maxd, surface), Dir: dir, Frame: s.frame}
		hit := s.scene.IntersectSolids(ray)
		if !hit.Hit || !isFiniteVec(hit.Point) {
			continue
		}
		nearest := r3.Norm(r3.Sub(ray.Origin, hit.Point))
		p.P = r3.Scale(1.0/maxd, r3.Add(ray.Origin, r3.Scale(s.tun.StuckOvershoot*nearest, dir)))
		p.U = r3.Scale(d, dir)
	}
}

// applyWallAndRepulsion clamps fluid particles into the domain and pushes
// them off nearby solid surface samples, killing the inward velocity
// component. Solid samples never move, so reading their positions from
// other worker ranges is safe.
func (s *Simulator) applyWallAndRepulsion() {
	maxd := s.dims.Max()
	wall := 1.0 / maxd
	lo := r3.Vec{X: wall, Y: wall, Z: wall}
	hi := r3.Vec{X: 1 - wall, Y: 1 - wall, Z: 1 - wall}
	re := s.tun.ReFactor * s.density / maxd

	s.pool.run(len(s.particles), func(start, end int) {
		var scratch []int32
		for n := start; n < end; n++ {
			p := s.particles[n]
			if p.Type != ParticleFluid {
				continue
			}
			p.P = clampVec(p.P, lo, hi)

			ci, cj, ck := s.pgrid.CellOf(p.P)
			scratch = s.pgrid.CellNeighbors(scratch[:0], ci, cj, ck, 1)
			for _, m := range scratch {
				np := s.particles[m]
				if np.Type != ParticleSolid {
					continue
				}
				dist := r3.Norm(r3.Sub(p.P, np.P))
				if dist >= re || dist == 0 {
					continue
				}
				normal := np.Normal
				if r3.Norm(normal) < 1e-7 {
					normal = r3.Scale(1.0/dist, r3.Sub(p.P, np.P))
				}
				p.P = r3.Add(p.P, r3.Scale(re-dist, normal))
				if vn := r3.Dot(p.U, normal); vn < 0 {
					p.U = r3.Sub(p.U, r3.Scale(vn, normal))
				}
			}
		}
	})
}

// resolveSolidCollisions ray-casts each fluid particle from its previous
// position toward its current one. A hit closer than the displacement
// reflects the velocity about the hit normal at preserved speed and
// retracts the particle short of the surface; a particle still inside a
// solid after that is rolled back along its reversed velocity.
func (s *Simulator) resolveSolidCollisions() {
	maxd := s.dims.Max()
	s.pool.run(len(s.particles), func(start, end int) {
		for n := start; n < end; n++ {
			p := s.particles[n]
			if p.Type != ParticleFluid {
				continue
			}
			delta := r3.Sub(p.P, p.PPrev)
			d := r3.Norm(delta)
			if d == 0 {
				continue
			}
			dir := r3.Scale(1.0/d, delta)
			if !isFiniteVec(dir) {
				continue
			}
			ray := Ray{Origin: r3.Scale(maxd, p.PPrev), Dir: dir, Frame: s.frame}
			speed := r3.Norm(p.UPrev)
			hit := s.scene.IntersectSolids(ray)
			if hit.Hit && isFiniteVec(hit.Normal) {
				solidDist := r3.Norm(r3.Sub(ray.Origin, hit.Point))
				moveDist := d * maxd
				if solidDist < moveDist {
					p.P = r3.Scale(1.0/maxd,
						r3.Add(ray.Origin, r3.Scale(s.tun.BounceRetract*solidDist, dir)))
					reflected := r3.Sub(r3.Scale(2*r3.Dot(dir, hit.Normal), hit.Normal), dir)
					norm := r3.Norm(reflected)
					if norm > 0 {
						p.U = r3.Scale(speed/norm, reflected)
					}
				}
			}
			point := r3.Scale(maxd, p.P)
			if _, inside := s.scene.PointInsideSolid(point, s.frame); inside {
				p.U = r3.Scale(-speed, dir)
				p.P = r3.Add(p.PPrev, r3.Scale(s.stepSize, p.U))
			}
		}
	})
}

// dropNonFinite removes particles whose position went non-finite during the
// step. Recoveries elsewhere are local; this is the backstop.
func (s *Simulator) dropNonFinite() {
	kept := s.particles[:0]
	dropped := 0
	for _, p := range s.particles {
		if isFiniteVec(p.P) {
			kept = append(kept, p)
		} else {
			dropped++
		}
	}
	s.particles = kept
	if dropped > 0 {
		slog.Warn("dropped non-finite particles", "count", dropped, "frame", s.frame)
	}
}

// KineticEnergy sums 0.5*m*|u|^2 over fluid particles; telemetry only.
func (s *Simulator) KineticEnergy() float64 {
	var ke float64
	for _, p := range s.particles {
		if p.Type == ParticleFluid {
			ke += 0.5 * p.Mass * r3.Norm2(p.U)
		}
	}
	return ke
}
