package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollectorAggregates(t *testing.T) {
	pc := NewPerfCollector(4)

	for i := 0; i < 3; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseSplat)
		time.Sleep(time.Millisecond)
		pc.StartPhase(PhaseProject)
		time.Sleep(time.Millisecond)
		pc.EndTick()
	}

	stats := pc.Stats()
	if stats.AvgStepDuration <= 0 {
		t.Errorf("avg step duration = %v", stats.AvgStepDuration)
	}
	if stats.MinStepDuration > stats.MaxStepDuration {
		t.Errorf("min %v > max %v", stats.MinStepDuration, stats.MaxStepDuration)
	}
	if stats.PhaseAvg[PhaseSplat] <= 0 {
		t.Errorf("splat phase not recorded: %v", stats.PhaseAvg)
	}
	if stats.PhaseAvg[PhaseProject] <= 0 {
		t.Errorf("project phase not recorded: %v", stats.PhaseAvg)
	}
}

func TestPerfCollectorEmptyWindow(t *testing.T) {
	pc := NewPerfCollector(8)
	stats := pc.Stats()
	if stats.AvgStepDuration != 0 || stats.StepsPerSecond != 0 {
		t.Errorf("empty window produced stats: %+v", stats)
	}
}

func TestPerfCollectorWindowWraps(t *testing.T) {
	pc := NewPerfCollector(2)
	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseAdvect)
		pc.EndTick()
	}
	if pc.sampleCount != 2 {
		t.Errorf("sample count = %d, want window size 2", pc.sampleCount)
	}
}

func TestPerfStatsToCSV(t *testing.T) {
	pc := NewPerfCollector(2)
	pc.StartTick()
	pc.StartPhase(PhaseProject)
	time.Sleep(time.Millisecond)
	pc.EndTick()

	rec := pc.Stats().ToCSV(42)
	if rec.WindowEnd != 42 {
		t.Errorf("window end = %d", rec.WindowEnd)
	}
	if rec.ProjectPct <= 0 {
		t.Errorf("project pct = %v, want > 0", rec.ProjectPct)
	}
}
