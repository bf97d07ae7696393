package fluid

import (
	"math"
	"testing"
)

func TestGrid3Bounds(t *testing.T) {
	g := NewGrid3(4, 3, 2, -1.0)

	tests := []struct {
		name    string
		i, j, k int
		want    float64
	}{
		{"interior default", 1, 1, 1, -1.0},
		{"negative i", -1, 0, 0, -1.0},
		{"i past end", 4, 0, 0, -1.0},
		{"j past end", 0, 3, 0, -1.0},
		{"k past end", 0, 0, 2, -1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.At(tt.i, tt.j, tt.k); got != tt.want {
				t.Errorf("At(%d,%d,%d) = %v, want %v", tt.i, tt.j, tt.k, got, tt.want)
			}
		})
	}

	g.Set(2, 1, 0, 5)
	if got := g.At(2, 1, 0); got != 5 {
		t.Errorf("At(2,1,0) = %v after Set, want 5", got)
	}

	// out-of-range writes are dropped, not panics
	g.Set(-1, 0, 0, 9)
	g.Set(4, 0, 0, 9)
	if got := g.At(0, 0, 0); got != -1.0 {
		t.Errorf("out-of-range Set leaked into (0,0,0): %v", got)
	}
}

func TestGrid3Fill(t *testing.T) {
	g := NewGrid3(3, 3, 3, 0.0)
	g.Set(1, 1, 1, 7)
	g.Fill(2)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				if got := g.At(i, j, k); got != 2 {
					t.Fatalf("At(%d,%d,%d) = %v after Fill(2)", i, j, k, got)
				}
			}
		}
	}
}

func TestMacGridClearMatchesFresh(t *testing.T) {
	dims := Dims{X: 4, Y: 5, Z: 6}
	fresh := NewMacGrid(dims)

	dirty := NewMacGrid(dims)
	dirty.Ux.Fill(3)
	dirty.Uy.Fill(-2)
	dirty.Uz.Fill(1)
	dirty.P.Fill(9)
	dirty.D.Fill(4)
	dirty.L.Fill(-0.5)
	dirty.A.Fill(CellFluid)
	dirty.Clear()
	dirty.Clear() // idempotent

	if !macGridsEqual(fresh, dirty) {
		t.Error("Clear() does not restore the state of a fresh MacGrid")
	}
}

func macGridsEqual(a, b *MacGrid) bool {
	eqF := func(x, y *Grid3[float64]) bool {
		for i := range x.data {
			if x.data[i] != y.data[i] && !(math.IsInf(x.data[i], 1) && math.IsInf(y.data[i], 1)) {
				return false
			}
		}
		return true
	}
	if !eqF(a.Ux, b.Ux) || !eqF(a.Uy, b.Uy) || !eqF(a.Uz, b.Uz) {
		return false
	}
	if !eqF(a.P, b.P) || !eqF(a.D, b.D) || !eqF(a.L, b.L) {
		return false
	}
	for i := range a.A.data {
		if a.A.data[i] != b.A.data[i] {
			return false
		}
	}
	return true
}

func TestMacGridSolidAt(t *testing.T) {
	m := NewMacGrid(Dims{X: 3, Y: 3, Z: 3})
	m.A.Set(1, 1, 1, CellSolid)

	if !m.solidAt(-1, 0, 0) {
		t.Error("off-domain cell should read as solid")
	}
	if !m.solidAt(1, 1, 1) {
		t.Error("marked cell should read as solid")
	}
	if m.solidAt(0, 0, 0) {
		t.Error("air cell should not read as solid")
	}
}
