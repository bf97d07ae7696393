package main

import (
	"flag"
	"log/slog"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/riptide-sim/riptide/config"
	"github.com/riptide-sim/riptide/export"
	"github.com/riptide-sim/riptide/fluid"
	"github.com/riptide-sim/riptide/scene"
	"github.com/riptide-sim/riptide/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	frames := flag.Int("frames", 0, "Frames to simulate (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV telemetry and config snapshot")
	exportDir := flag.String("export-dir", "", "Particle export directory (overrides config)")
	verbose := flag.Bool("verbose", false, "Per-step logging")

	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	frameCount := cfg.Simulation.Frames
	if *frames > 0 {
		frameCount = *frames
	}
	if *verbose {
		cfg.Simulation.Verbose = true
	}

	dims := fluid.Dims{X: cfg.Grid.X, Y: cfg.Grid.Y, Z: cfg.Grid.Z}
	sc := buildScene(cfg, dims)

	sim, err := fluid.New(dims, cfg.Simulation.Density, cfg.Simulation.StepSize, sc, cfg.Simulation.Verbose)
	if err != nil {
		slog.Error("failed to create simulator", "error", err)
		os.Exit(1)
	}
	defer sim.Close()
	sim.SetTunables(fluid.Tunables{
		PicFlipRatio:      cfg.Blend.PicFlipRatio,
		Subcell:           cfg.Solver.Subcell,
		CGTolerance:       cfg.Solver.Tolerance,
		ReFactor:          cfg.Constraints.ReFactor,
		StuckOvershoot:    cfg.Constraints.StuckOvershoot,
		BounceRetract:     cfg.Constraints.BounceRetract,
		ResampleMin:       cfg.Resample.MinPerCell,
		ResampleMax:       cfg.Resample.MaxPerCell,
		ResampleMaxChange: cfg.Resample.MaxChangeFraction,
	})

	exportEvery := 0
	dir := cfg.Export.Dir
	if *exportDir != "" {
		dir = *exportDir
	}
	if dir != "" {
		exp, err := export.NewCSVExporter(dir)
		if err != nil {
			slog.Error("failed to create exporter", "error", err)
			os.Exit(1)
		}
		sim.SetExporter(exp)
		exportEvery = cfg.Export.Every
		if exportEvery < 1 {
			exportEvery = 1
		}
	}

	perfWindow := cfg.Telemetry.PerfWindow
	if perfWindow < 1 {
		perfWindow = 60
	}
	perf := telemetry.NewPerfCollector(perfWindow)
	sim.SetPerfCollector(perf)

	om, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to create output manager", "error", err)
		os.Exit(1)
	}
	defer om.Close()
	if om != nil {
		if err := cfg.WriteYAML(om.Dir() + "/config.yaml"); err != nil {
			slog.Warn("failed to snapshot config", "error", err)
		}
	}

	sim.Init()
	slog.Info("starting simulation",
		"dims", dims,
		"density", cfg.Simulation.Density,
		"step_size", cfg.Simulation.StepSize,
		"frames", frameCount,
		"particles", len(sim.Particles()))

	for f := 1; f <= frameCount; f++ {
		save := exportEvery > 0 && f%exportEvery == 0
		sim.Step(save)

		iters, residual := sim.SolverStats()
		stats := perf.Stats()
		if err := om.WriteFrame(telemetry.FrameStats{
			Frame:         int32(f),
			Particles:     int32(len(sim.Particles())),
			KineticEnergy: sim.KineticEnergy(),
			CGIterations:  int32(iters),
			CGResidual:    residual,
			StepMS:        float64(stats.AvgStepDuration.Microseconds()) / 1000.0,
		}); err != nil {
			slog.Warn("failed to write frame stats", "error", err)
		}
		if f%perfWindow == 0 {
			stats.LogStats()
			if err := om.WritePerf(stats, int32(f)); err != nil {
				slog.Warn("failed to write perf stats", "error", err)
			}
		}
	}

	slog.Info("simulation finished", "frames", frameCount, "particles", len(sim.Particles()))
}

func buildScene(cfg *config.Config, dims fluid.Dims) *scene.Scene {
	sc := scene.New(dims)
	for _, b := range cfg.Scene.LiquidBoxes {
		sc.AddLiquid(scene.Box{
			Min: r3.Vec{X: b.Min[0], Y: b.Min[1], Z: b.Min[2]},
			Max: r3.Vec{X: b.Max[0], Y: b.Max[1], Z: b.Max[2]},
		})
	}
	for _, s := range cfg.Scene.LiquidSpheres {
		sc.AddLiquid(scene.Sphere{
			Center: r3.Vec{X: s.Center[0], Y: s.Center[1], Z: s.Center[2]},
			Radius: s.Radius,
		})
	}
	for _, b := range cfg.Scene.SolidBoxes {
		sc.AddSolid(scene.Box{
			Min: r3.Vec{X: b.Min[0], Y: b.Min[1], Z: b.Min[2]},
			Max: r3.Vec{X: b.Max[0], Y: b.Max[1], Z: b.Max[2]},
		})
	}
	for _, s := range cfg.Scene.SolidSpheres {
		sc.AddSolid(scene.Sphere{
			Center: r3.Vec{X: s.Center[0], Y: s.Center[1], Z: s.Center[2]},
			Radius: s.Radius,
		})
	}
	sc.SetEmitEveryFrame(cfg.Scene.EmitEveryFrame)
	sc.AddExternalForce(r3.Vec{
		X: cfg.Forces.Gravity[0],
		Y: cfg.Forces.Gravity[1],
		Z: cfg.Forces.Gravity[2],
	})
	return sc
}
