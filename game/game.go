// Package game drives a meadow engine headlessly and routes its telemetry to
// logs, CSV files, snapshots and Prometheus.
package game

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/pthm-cable/meadow/config"
	"github.com/pthm-cable/meadow/sim"
	"github.com/pthm-cable/meadow/telemetry"
)

// bookmarkHistory is the number of windows the bookmark detector looks back over.
const bookmarkHistory = 10

// Options configures a Game.
type Options struct {
	Seed        int64
	Config      *config.Config // nil uses config.Cfg()
	LogStats    bool
	StatsWindow int // Ticks per telemetry window; 0 uses the config
	SnapshotDir string
	OutputDir   string
	Metrics     *telemetry.Metrics

	// StatsCallback receives every flushed window.
	StatsCallback func(telemetry.WindowStats)
}

// Game holds a running meadow and its telemetry sinks.
type Game struct {
	engine  *sim.Engine
	cfg     *config.Config
	rngSeed int64
	ratio   float64

	// Telemetry
	collector        *telemetry.Collector
	perfCollector    *telemetry.PerfCollector
	bookmarkDetector *telemetry.BookmarkDetector
	outputManager    *telemetry.OutputManager
	metrics          *telemetry.Metrics
	statsCallback    func(telemetry.WindowStats)
	logStats         bool
	snapshotDir      string
}

// NewGameWithOptions builds the engine, seeds the initial population and opens
// the output directory if one is set.
func NewGameWithOptions(opts Options) (*Game, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}

	engine, err := sim.New(cfg, rand.New(rand.NewSource(opts.Seed)))
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	window := opts.StatsWindow
	if window <= 0 {
		window = cfg.Telemetry.StatsWindow
	}

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := om.WriteConfig(cfg); err != nil {
		return nil, errors.Join(err, om.Close())
	}

	g := &Game{
		engine:           engine,
		cfg:              cfg,
		rngSeed:          opts.Seed,
		ratio:            cfg.Engine.NutrientReturnRatio,
		collector:        telemetry.NewCollector(window),
		perfCollector:    telemetry.NewPerfCollector(window, sim.Phases...),
		bookmarkDetector: telemetry.NewBookmarkDetector(bookmarkHistory),
		outputManager:    om,
		metrics:          opts.Metrics,
		statsCallback:    opts.StatsCallback,
		logStats:         opts.LogStats,
		snapshotDir:      opts.SnapshotDir,
	}
	engine.SetPhaseTimer(g.perfCollector)
	engine.Seed(cfg.Population.Initial)

	return g, nil
}

// UpdateHeadless advances the simulation by one tick and records telemetry.
func (g *Game) UpdateHeadless() {
	g.engine.Tick(g.ratio)

	g.collector.RecordTick(g.engine)
	if err := g.outputManager.WriteDeaths(g.engine.LastDeaths()); err != nil {
		slog.Error("failed to write deaths", "error", err)
	}

	g.flushTelemetry()
}

// Tick returns the number of completed ticks.
func (g *Game) Tick() int32 {
	return g.engine.CurrentTick()
}

// Population returns the number of living plants.
func (g *Game) Population() int {
	return g.engine.Population()
}

// Engine returns the underlying engine.
func (g *Game) Engine() *sim.Engine {
	return g.engine
}

// Seed returns the seed the game was created with.
func (g *Game) Seed() int64 {
	return g.rngSeed
}

// Unload closes output files.
func (g *Game) Unload() error {
	return g.outputManager.Close()
}
