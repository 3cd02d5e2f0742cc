package main

import (
	"fmt"
	"log"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/meadow/config"
	"github.com/pthm-cable/meadow/game"
	"github.com/pthm-cable/meadow/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params      *ParamVector
	maxTicks    int32
	seeds       []int64
	baseConfig  *config.Config
	statsWindow int

	mu          sync.Mutex
	lastQuality float64 // quality from most recent Evaluate call
	lastMeanPop float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int32, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	window := baseCfg.Telemetry.StatsWindow
	if window <= 0 {
		window = 100
	}
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		statsWindow: window,
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// LastMeanPopulation returns the seed-averaged mean population from the most
// recent evaluation.
func (fe *FitnessEvaluator) LastMeanPopulation() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastMeanPop
}

// runResult holds the results from a single simulation run.
type runResult struct {
	survivalTicks int32                   // ticks before the meadow emptied (or maxTicks)
	windowStats   []telemetry.WindowStats // collected via StatsCallback each window
	err           error
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	fitness float64
	quality float64
	meanPop float64
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Engines share nothing, so seeds run in parallel.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			result := fe.runSimulation(x, s)
			if result.err != nil {
				log.Printf("evaluation failed: %v", result.err)
				return
			}
			quality := computeQuality(result.windowStats)
			meanPop := meanPopulation(result.windowStats)
			results[idx] = seedResult{
				fitness: fe.computeFitness(result.survivalTicks, meanPop, quality),
				quality: quality,
				meanPop: meanPop,
			}
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalQuality, totalPop float64
	for _, r := range results {
		totalFitness += r.fitness
		totalQuality += r.quality
		totalPop += r.meanPop
	}
	n := float64(len(fe.seeds))

	fe.mu.Lock()
	fe.lastQuality = totalQuality / n
	fe.lastMeanPop = totalPop / n
	fe.mu.Unlock()

	return totalFitness / n
}

// runSimulation executes a single headless run until the meadow empties or
// maxTicks is reached.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) *runResult {
	cfg := fe.baseConfig.Clone()
	fe.params.ApplyToConfig(cfg, x)

	result := &runResult{survivalTicks: fe.maxTicks}

	g, err := game.NewGameWithOptions(game.Options{
		Seed:        seed,
		Config:      cfg,
		StatsWindow: fe.statsWindow,
		StatsCallback: func(stats telemetry.WindowStats) {
			result.windowStats = append(result.windowStats, stats)
		},
	})
	if err != nil {
		result.err = fmt.Errorf("seed %d: %w", seed, err)
		return result
	}
	defer g.Unload()

	for g.Tick() < fe.maxTicks {
		g.UpdateHeadless()
		if g.Population() == 0 {
			result.survivalTicks = g.Tick()
			break
		}
	}

	return result
}

// computeFitness calculates the scalar fitness (lower = better).
// Formula: -(survivalFraction × meanPopulation × (1 + 0.2 × quality))
func (fe *FitnessEvaluator) computeFitness(survivalTicks int32, meanPop, quality float64) float64 {
	survival := float64(survivalTicks) / float64(fe.maxTicks)
	return -(survival * meanPop * (1.0 + 0.2*quality))
}

// Quality component weights.
const (
	qualityWeightBalance   = 0.5
	qualityWeightStability = 0.5

	qualityWarmupWindows = 2 // skip first N windows (warmup)
)

// meanPopulation averages the population over windows past warmup.
func meanPopulation(windows []telemetry.WindowStats) float64 {
	if len(windows) <= qualityWarmupWindows {
		return 0
	}
	pops := make([]float64, 0, len(windows)-qualityWarmupWindows)
	for _, w := range windows[qualityWarmupWindows:] {
		pops = append(pops, float64(w.Population))
	}
	return stat.Mean(pops, nil)
}

// computeQuality scores the meadow in [0, 1] from species balance and
// population stability.
func computeQuality(windows []telemetry.WindowStats) float64 {
	if len(windows) <= qualityWarmupWindows {
		return 0
	}
	valid := windows[qualityWarmupWindows:]

	var balanceSum float64
	pops := make([]float64, 0, len(valid))
	for _, w := range valid {
		pops = append(pops, float64(w.Population))
		balanceSum += speciesBalance(w.Species)
	}
	balance := balanceSum / float64(len(valid))

	stability := 0.0
	if len(pops) >= 2 {
		c := cv(pops)
		stability = math.Exp(-c * c)
	}

	return clamp01(qualityWeightBalance*balance + qualityWeightStability*stability)
}

// speciesBalance is the smallest species count over the largest, 0 when any
// species is absent.
func speciesBalance(species telemetry.SpeciesCounts) float64 {
	if len(species) == 0 {
		return 0
	}
	lo, hi := math.Inf(1), 0.0
	for _, sp := range species {
		c := float64(sp.Count)
		lo = math.Min(lo, c)
		hi = math.Max(hi, c)
	}
	if hi == 0 {
		return 0
	}
	return lo / hi
}

// cv computes the coefficient of variation (std/mean) for a slice of values.
func cv(values []float64) float64 {
	mean, std := stat.MeanStdDev(values, nil)
	if mean == 0 {
		return 0
	}
	return std / mean
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	return math.Min(math.Max(x, 0), 1)
}
