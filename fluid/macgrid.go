package fluid

import "math"

// MacGrid is the staggered marker-and-cell velocity grid. Velocity components
// live on cell faces, scalars at cell centers.
type MacGrid struct {
	dims Dims

	Ux *Grid3[float64] // (X+1) x Y x Z face-normal x velocities
	Uy *Grid3[float64] // X x (Y+1) x Z
	Uz *Grid3[float64] // X x Y x (Z+1)

	P *Grid3[float64]  // pressure
	D *Grid3[float64]  // divergence / solve right-hand side
	L *Grid3[float64]  // liquid level set, +Inf where unknown
	A *Grid3[CellType] // cell classification
}

// NewMacGrid allocates all face and cell grids for the given extents.
func NewMacGrid(dims Dims) *MacGrid {
	return &MacGrid{
		dims: dims,
		Ux:   NewGrid3(dims.X+1, dims.Y, dims.Z, 0.0),
		Uy:   NewGrid3(dims.X, dims.Y+1, dims.Z, 0.0),
		Uz:   NewGrid3(dims.X, dims.Y, dims.Z+1, 0.0),
		P:    NewGrid3(dims.X, dims.Y, dims.Z, 0.0),
		D:    NewGrid3(dims.X, dims.Y, dims.Z, 0.0),
		L:    NewGrid3(dims.X, dims.Y, dims.Z, math.Inf(1)),
		A:    NewGrid3(dims.X, dims.Y, dims.Z, CellAir),
	}
}

// Clear resets every grid to its construction default.
func (m *MacGrid) Clear() {
	m.Ux.Fill(0)
	m.Uy.Fill(0)
	m.Uz.Fill(0)
	m.P.Fill(0)
	m.D.Fill(0)
	m.L.Fill(math.Inf(1))
	m.A.Fill(CellAir)
}

// Dims returns the cell extents.
func (m *MacGrid) Dims() Dims {
	return m.dims
}

// CopyFacesFrom copies the three face grids from src.
func (m *MacGrid) CopyFacesFrom(src *MacGrid) {
	m.Ux.CopyFrom(src.Ux)
	m.Uy.CopyFrom(src.Uy)
	m.Uz.CopyFrom(src.Uz)
}

// solidAt reads A with out-of-range cells treated as solid. Face boundary
// checks want solid ghosts; the pressure matrix's off-diagonal terms read A
// directly and get air ghosts from the grid default. The matrix diagonal
// (aDiag) does not: it counts off-domain neighbors as solid.
func (m *MacGrid) solidAt(i, j, k int) bool {
	if i < 0 || i >= m.dims.X || j < 0 || j >= m.dims.Y || k < 0 || k >= m.dims.Z {
		return true
	}
	return m.A.At(i, j, k) == CellSolid
}
