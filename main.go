package main

import (
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pthm-cable/meadow/config"
	"github.com/pthm-cable/meadow/game"
	"github.com/pthm-cable/meadow/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Int("stats-window", 0, "Stats window size in ticks (0 = use config)")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for bookmark snapshot files")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	ratio := flag.Float64("ratio", -1, "Nutrient return ratio (negative = use config)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (empty = disabled)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		slog.Error("invalid log level", "level", *logLevel, "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *ratio >= 0 {
		cfg.Engine.NutrientReturnRatio = *ratio
	}

	// Set up seed
	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	var metrics *telemetry.Metrics
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		m, err := telemetry.NewMetrics(reg)
		if err != nil {
			slog.Error("failed to register metrics", "error", err)
			os.Exit(1)
		}
		metrics = m
		go serveMetrics(*metricsAddr, m)
	}

	g, err := game.NewGameWithOptions(game.Options{
		Seed:        rngSeed,
		LogStats:    *logStats,
		StatsWindow: *statsWindow,
		SnapshotDir: *snapshotDir,
		OutputDir:   *outputDir,
		Metrics:     metrics,
	})
	if err != nil {
		slog.Error("failed to start simulation", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := g.Unload(); err != nil {
			slog.Error("failed to close output", "error", err)
		}
	}()

	slog.Info("starting headless simulation",
		"seed", rngSeed,
		"population", g.Population(),
		"nutrient_return_ratio", cfg.Engine.NutrientReturnRatio,
		"stats_window", *statsWindow,
		"max_ticks", *maxTicks,
	)

	for {
		g.UpdateHeadless()

		if *maxTicks > 0 && int(g.Tick()) >= *maxTicks {
			slog.Info("max ticks reached", "tick", g.Tick(), "population", g.Population())
			return
		}
	}
}

func serveMetrics(addr string, m *telemetry.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	slog.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server stopped", "error", err)
	}
}
