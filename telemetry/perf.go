package telemetry

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/meadow/sim"
)

// PerfCollector times engine ticks over a rolling window of the most recent
// ticks. It satisfies sim.PhaseTimer. Phases outside the set it was built
// with are not timed.
type PerfCollector struct {
	phases []string
	index  map[string]int

	// Ring of samples: one tick duration and one row of phase durations each.
	ticks  []time.Duration
	spent  [][]time.Duration
	next   int
	filled int

	current   []time.Duration
	tickStart time.Time
	mark      time.Time
	active    int
}

// NewPerfCollector creates a collector averaging over windowSize ticks.
// With no phases given it times sim.Phases.
func NewPerfCollector(windowSize int, phases ...string) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	if len(phases) == 0 {
		phases = sim.Phases
	}
	p := &PerfCollector{
		phases:  phases,
		index:   make(map[string]int, len(phases)),
		ticks:   make([]time.Duration, windowSize),
		spent:   make([][]time.Duration, windowSize),
		current: make([]time.Duration, len(phases)),
		active:  -1,
	}
	for i, name := range phases {
		p.index[name] = i
	}
	for i := range p.spent {
		p.spent[i] = make([]time.Duration, len(phases))
	}
	return p
}

// StartTick begins timing a new tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	clear(p.current)
	p.active = -1
}

// StartPhase closes the running phase and starts timing name.
func (p *PerfCollector) StartPhase(name string) {
	now := time.Now()
	p.closePhase(now)
	p.mark = now
	if i, ok := p.index[name]; ok {
		p.active = i
	} else {
		p.active = -1
	}
}

// EndTick closes the running phase and records the tick.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.closePhase(now)
	p.active = -1

	p.ticks[p.next] = now.Sub(p.tickStart)
	copy(p.spent[p.next], p.current)
	p.next = (p.next + 1) % len(p.ticks)
	if p.filled < len(p.ticks) {
		p.filled++
	}
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.active >= 0 {
		p.current[p.active] += now.Sub(p.mark)
	}
}

// PerfStats holds aggregated timing over the window.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration
	TicksPerSecond  float64

	Phases   []string                 // tick order
	PhaseAvg map[string]time.Duration // average time per tick
	PhasePct map[string]float64       // share of the average tick, in percent
}

// Stats aggregates the samples currently in the window.
func (p *PerfCollector) Stats() PerfStats {
	s := PerfStats{
		Phases:   p.phases,
		PhaseAvg: make(map[string]time.Duration, len(p.phases)),
		PhasePct: make(map[string]float64, len(p.phases)),
	}
	if p.filled == 0 {
		return s
	}

	var total time.Duration
	sums := make([]time.Duration, len(p.phases))
	for i := 0; i < p.filled; i++ {
		d := p.ticks[i]
		total += d
		if i == 0 || d < s.MinTickDuration {
			s.MinTickDuration = d
		}
		s.MaxTickDuration = max(s.MaxTickDuration, d)
		for k, spent := range p.spent[i] {
			sums[k] += spent
		}
	}

	n := time.Duration(p.filled)
	s.AvgTickDuration = total / n
	if s.AvgTickDuration > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.AvgTickDuration)
	}
	for k, name := range p.phases {
		avg := sums[k] / n
		s.PhaseAvg[name] = avg
		if s.AvgTickDuration > 0 {
			s.PhasePct[name] = float64(avg) / float64(s.AvgTickDuration) * 100
		}
	}
	return s
}

// LogStats logs the stats at info level.
func (s PerfStats) LogStats() {
	slog.Info("perf", "window", s)
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_tick_us", s.MinTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}
	for _, name := range s.Phases {
		attrs = append(attrs, slog.Float64(name+"_pct", s.PhasePct[name]))
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one row of perf.csv.
type PerfStatsCSV struct {
	WindowEnd       int32   `csv:"window_end"`
	AvgTickUS       int64   `csv:"avg_tick_us"`
	MinTickUS       int64   `csv:"min_tick_us"`
	MaxTickUS       int64   `csv:"max_tick_us"`
	TicksPerSec     float64 `csv:"ticks_per_sec"`
	ShadowsPct      float64 `csv:"shadows_pct"`
	UpdatePct       float64 `csv:"update_pct"`
	CleanupPct      float64 `csv:"cleanup_pct"`
	RestitutionPct  float64 `csv:"restitution_pct"`
	ReproductionPct float64 `csv:"reproduction_pct"`
}

// ToCSV flattens the stats for the window ending at windowEnd.
func (s PerfStats) ToCSV(windowEnd int32) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:       windowEnd,
		AvgTickUS:       s.AvgTickDuration.Microseconds(),
		MinTickUS:       s.MinTickDuration.Microseconds(),
		MaxTickUS:       s.MaxTickDuration.Microseconds(),
		TicksPerSec:     s.TicksPerSecond,
		ShadowsPct:      s.PhasePct[sim.PhaseShadows],
		UpdatePct:       s.PhasePct[sim.PhaseUpdate],
		CleanupPct:      s.PhasePct[sim.PhaseCleanup],
		RestitutionPct:  s.PhasePct[sim.PhaseRestitution],
		ReproductionPct: s.PhasePct[sim.PhaseReproduction],
	}
}
