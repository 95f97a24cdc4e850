package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/pthm-cable/evosim/config"
	"github.com/pthm-cable/evosim/headless"
	"github.com/pthm-cable/evosim/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config seed, -1 = time-based)")
	workers := flag.Int("workers", 0, "Worker goroutines per step (0 = config)")
	engineKind := flag.String("engine", "", "Backend override: legacy or data_oriented (empty = config)")
	duration := flag.Float64("duration", 0, "Target duration in virtual minutes (0 = config)")
	speed := flag.Float64("speed", 0, "Speed multiplier (0 = config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, config and diagnostics")
	snapshots := flag.Bool("snapshots", false, "Save a world snapshot on every bookmark (requires -output-dir)")
	logStats := flag.Bool("log-stats", false, "Output window stats and bookmarks via slog")
	logInterval := flag.Int("log-interval", -1, "Steps between progress logs (-1 = config, 0 = off)")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	switch *engineKind {
	case "":
	case "legacy":
		cfg.UseDataOrientedEngine = false
	case "data_oriented":
		cfg.UseDataOrientedEngine = true
	default:
		slog.Error("unknown engine", "engine", *engineKind)
		os.Exit(2)
	}
	if *duration > 0 {
		cfg.TargetDurationMinutes = *duration
	}
	if *speed > 0 {
		cfg.SpeedMultiplier = *speed
	}
	if *logInterval >= 0 {
		cfg.Telemetry.LogInterval = *logInterval
	}

	rngSeed := *seed
	if rngSeed == -1 {
		rngSeed = time.Now().UnixNano()
	}

	om, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to create output manager", "error", err)
		os.Exit(1)
	}
	defer om.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	slog.Info("starting headless simulation",
		"seed", rngSeed,
		"engine", *engineKind,
		"target_minutes", cfg.TargetDurationMinutes,
		"speed", cfg.SpeedMultiplier,
		"output_dir", om.Dir(),
	)

	diag, err := headless.Run(ctx, cfg, headless.Options{
		Seed:      rngSeed,
		Workers:   *workers,
		Output:    om,
		Snapshots: *snapshots,
		LogStats:  *logStats,
	})
	if err != nil {
		slog.Error("simulation failed", "error", err)
		om.Close()
		os.Exit(1)
	}

	slog.Info("simulation finished", "diagnostics", diag)
}
