// Package fluid implements the core time-stepping engine of a 3D FLIP
// (fluid-implicit-particle) liquid solver: particles, the staggered MAC
// velocity grid, particle/grid transfers, the pressure projection, and the
// per-frame pipeline that ties them together.
package fluid

// Grid3 is a dense 3D cell grid backed by a flat slice. Reads outside the
// bounds return the default value supplied at construction; writes outside
// the bounds are dropped. The default doubles as the ghost value at the
// domain edge.
type Grid3[T any] struct {
	nx, ny, nz int
	def        T
	data       []T
}

// NewGrid3 allocates an nx*ny*nz grid filled with def.
func NewGrid3[T any](nx, ny, nz int, def T) *Grid3[T] {
	g := &Grid3[T]{
		nx:   nx,
		ny:   ny,
		nz:   nz,
		def:  def,
		data: make([]T, nx*ny*nz),
	}
	g.Fill(def)
	return g
}

// At returns the value at (i,j,k), or the grid default when out of range.
func (g *Grid3[T]) At(i, j, k int) T {
	if i < 0 || i >= g.nx || j < 0 || j >= g.ny || k < 0 || k >= g.nz {
		return g.def
	}
	return g.data[(i*g.ny+j)*g.nz+k]
}

// Set writes v at (i,j,k). Out-of-range writes are dropped.
func (g *Grid3[T]) Set(i, j, k int, v T) {
	if i < 0 || i >= g.nx || j < 0 || j >= g.ny || k < 0 || k >= g.nz {
		return
	}
	g.data[(i*g.ny+j)*g.nz+k] = v
}

// Fill sets every cell to v.
func (g *Grid3[T]) Fill(v T) {
	for i := range g.data {
		g.data[i] = v
	}
}

// Dims returns the grid extents.
func (g *Grid3[T]) Dims() (nx, ny, nz int) {
	return g.nx, g.ny, g.nz
}

// Len returns the number of cells.
func (g *Grid3[T]) Len() int {
	return len(g.data)
}

// CopyFrom copies the contents of src, which must have identical extents.
func (g *Grid3[T]) CopyFrom(src *Grid3[T]) {
	copy(g.data, src.data)
}
