package telemetry

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// FrameStats is one per-frame telemetry record.
type FrameStats struct {
	Frame         int32   `csv:"frame"`
	Particles     int32   `csv:"particles"`
	KineticEnergy float64 `csv:"kinetic_energy"`
	CGIterations  int32   `csv:"cg_iterations"`
	CGResidual    float64 `csv:"cg_residual"`
	StepMS        float64 `csv:"step_ms"`
}

// Summary holds the distribution of a sampled quantity over a window.
type Summary struct {
	Mean float64
	P10  float64
	P50  float64
	P90  float64
}

// Summarize computes mean and percentiles of a sample window. The input is
// copied before sorting.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return Summary{
		Mean: stat.Mean(sorted, nil),
		P10:  stat.Quantile(0.1, stat.Empirical, sorted, nil),
		P50:  stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P90:  stat.Quantile(0.9, stat.Empirical, sorted, nil),
	}
}
