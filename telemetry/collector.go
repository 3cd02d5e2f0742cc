package telemetry

import (
	"github.com/pthm-cable/meadow/components"
	"github.com/pthm-cable/meadow/sim"
)

// Collector accumulates events within tick windows and produces WindowStats.
type Collector struct {
	windowDurationTicks int32

	// Current window tracking
	windowStartTick int32

	// Event counters for current window
	births     int
	deaths     sim.DeathCounts
	exhausted  int
	ageAtDeath float64
}

// NewCollector creates a collector that flushes every windowTicks ticks.
func NewCollector(windowTicks int) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{windowDurationTicks: int32(windowTicks)}
}

// RecordBirths records offspring placed during a tick.
func (c *Collector) RecordBirths(n int) {
	c.births += n
}

// RecordDeath records a death event.
func (c *Collector) RecordDeath(d sim.DeathRecord) {
	c.deaths.Add(d.Reason)
	if d.Exhausted {
		c.exhausted++
	}
	c.ageAtDeath += float64(d.Age)
}

// RecordTick records the births and deaths of the engine's last tick.
func (c *Collector) RecordTick(e *sim.Engine) {
	c.RecordBirths(e.LastBirths())
	for _, d := range e.LastDeaths() {
		c.RecordDeath(d)
	}
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats from the engine snapshot and the window's
// events, then resets counters for the next window.
func (c *Collector) Flush(currentTick int32, st sim.Stats, plants []sim.PlantState) WindowStats {
	health := make([]float64, len(plants))
	height := make([]float64, len(plants))
	for i, ps := range plants {
		health[i] = ps.Plant.Health
		height[i] = ps.Plant.Height
	}
	hd := ComputeDistribution(health)
	ht := ComputeDistribution(height)

	species := make(SpeciesCounts, len(st.Species))
	for i, sp := range st.Species {
		species[i] = SpeciesCount{Name: sp.Name, Count: sp.Count}
	}

	var meanAge float64
	if n := c.deaths.Total(); n > 0 {
		meanAge = c.ageAtDeath / float64(n)
	}

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,

		Population: st.Population,
		Species:    species,

		Births:          c.births,
		Deaths:          c.deaths.Total(),
		DeathsSunlight:  c.deaths.Get(components.ReasonSunlight),
		DeathsNutrients: c.deaths.Get(components.ReasonNutrients),
		DeathsWater:     c.deaths.Get(components.ReasonWater),
		DeathsAge:       c.deaths.Get(components.ReasonAge),
		DeathsExhausted: c.exhausted,
		MeanAgeAtDeath:  meanAge,

		HealthMean: hd.Mean,
		HealthStd:  hd.Std,
		HealthP10:  hd.P10,
		HealthP50:  hd.P50,
		HealthP90:  hd.P90,

		HeightMean: ht.Mean,
		HeightStd:  ht.Std,
		HeightP10:  ht.P10,
		HeightP50:  ht.P50,
		HeightP90:  ht.P90,

		AvgNutrients: st.AvgNutrients,
		AvgWater:     st.AvgWater,

		NutrientsConsumed: st.NutrientsConsumed,
		WaterConsumed:     st.WaterConsumed,
		NutrientsReturned: st.NutrientsReturned,
		WaterReturned:     st.WaterReturned,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.births = 0
	c.deaths = sim.DeathCounts{}
	c.exhausted = 0
	c.ageAtDeath = 0

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}
