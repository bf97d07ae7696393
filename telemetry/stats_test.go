package telemetry

import (
	"math"
	"testing"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   Summary
	}{
		{"empty", nil, Summary{}},
		{"single", []float64{5}, Summary{Mean: 5, P10: 5, P50: 5, P90: 5}},
		{
			"uniform",
			[]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			Summary{Mean: 5.5, P10: 1, P50: 5, P90: 9},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.values)
			if math.Abs(got.Mean-tt.want.Mean) > 1e-9 {
				t.Errorf("mean = %v, want %v", got.Mean, tt.want.Mean)
			}
			if math.Abs(got.P50-tt.want.P50) > 1e-9 {
				t.Errorf("p50 = %v, want %v", got.P50, tt.want.P50)
			}
		})
	}
}

func TestSummarizeDoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Summarize(values)
	if values[0] != 3 || values[1] != 1 || values[2] != 2 {
		t.Errorf("input mutated: %v", values)
	}
}
