// Package export writes particle snapshots to disk. The simulator sees it
// as an opaque sink behind fluid.Exporter.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/riptide-sim/riptide/fluid"
)

// ParticleRecord is one exported particle row. Positions are in cell units
// so downstream tooling does not need to know the domain scale.
type ParticleRecord struct {
	X       float64 `csv:"x"`
	Y       float64 `csv:"y"`
	Z       float64 `csv:"z"`
	VX      float64 `csv:"vx"`
	VY      float64 `csv:"vy"`
	VZ      float64 `csv:"vz"`
	Density float64 `csv:"density"`
	Solid   bool    `csv:"solid"`
}

// CSVExporter writes one CSV file per exported frame into a directory.
type CSVExporter struct {
	dir string
	buf []ParticleRecord
}

var _ fluid.Exporter = (*CSVExporter)(nil)

// NewCSVExporter creates the output directory and returns the exporter.
func NewCSVExporter(dir string) (*CSVExporter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	return &CSVExporter{dir: dir}, nil
}

// ExportParticles writes the particle state for a frame as
// particles_NNNN.csv.
func (e *CSVExporter) ExportParticles(particles []*fluid.Particle, maxDim float64, frame int) error {
	if cap(e.buf) < len(particles) {
		e.buf = make([]ParticleRecord, 0, len(particles))
	}
	records := e.buf[:0]
	for _, p := range particles {
		records = append(records, ParticleRecord{
			X:       p.P.X * maxDim,
			Y:       p.P.Y * maxDim,
			Z:       p.P.Z * maxDim,
			VX:      p.U.X,
			VY:      p.U.Y,
			VZ:      p.U.Z,
			Density: p.Density,
			Solid:   p.Type == fluid.ParticleSolid,
		})
	}
	e.buf = records

	path := filepath.Join(e.dir, fmt.Sprintf("particles_%04d.csv", frame))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.Marshal(records, f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
