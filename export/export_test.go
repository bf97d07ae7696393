package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/riptide-sim/riptide/fluid"
)

func TestCSVExporterWritesFrames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	exp, err := NewCSVExporter(dir)
	if err != nil {
		t.Fatalf("NewCSVExporter: %v", err)
	}

	particles := []*fluid.Particle{
		{P: r3.Vec{X: 0.5, Y: 0.25, Z: 0.75}, U: r3.Vec{Y: -1}, Density: 0.9, Type: fluid.ParticleFluid},
		{P: r3.Vec{X: 0.1, Y: 0.1, Z: 0.1}, Type: fluid.ParticleSolid, Normal: r3.Vec{Y: 1}},
	}
	if err := exp.ExportParticles(particles, 16, 3); err != nil {
		t.Fatalf("ExportParticles: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "particles_0003.csv"))
	if err != nil {
		t.Fatalf("reading exported file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("exported %d lines, want header + 2 rows", len(lines))
	}
	if !strings.Contains(lines[0], "x") || !strings.Contains(lines[0], "density") {
		t.Errorf("header missing columns: %q", lines[0])
	}
	// positions are scaled to cell units
	if !strings.Contains(lines[1], "8") {
		t.Errorf("first row should contain the scaled x position 8: %q", lines[1])
	}
}

func TestCSVExporterOverwritesFrame(t *testing.T) {
	dir := t.TempDir()
	exp, err := NewCSVExporter(dir)
	if err != nil {
		t.Fatal(err)
	}
	p := []*fluid.Particle{{P: r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, Type: fluid.ParticleFluid}}
	if err := exp.ExportParticles(p, 8, 1); err != nil {
		t.Fatal(err)
	}
	if err := exp.ExportParticles(p, 8, 1); err != nil {
		t.Fatalf("re-exporting the same frame should overwrite: %v", err)
	}
}
