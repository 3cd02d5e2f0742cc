package sim

import (
	"cmp"
	"math"
	"slices"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/meadow/components"
	"github.com/pthm-cable/meadow/systems"
	"github.com/pthm-cable/meadow/traits"
)

// DeathRecord describes one plant that died during a tick.
type DeathRecord struct {
	Tick      int32 // CurrentTick once the dying tick completes
	ID        uint32
	Species   string
	X, Y      float64
	Age       int32
	Radius    float64
	Height    float64
	Reason    components.DeathReason
	Exhausted bool // Health reached 0 before any timer expired

	NutrientsReturned float64
	WaterReturned     float64
	Offspring         int

	entity ecs.Entity
	plant  components.Plant
}

// DeathCounts is the histogram of death reasons.
type DeathCounts struct {
	Sunlight  int
	Nutrients int
	Water     int
	Age       int
}

// Add counts one death. Reasons outside the histogram are ignored.
func (d *DeathCounts) Add(r components.DeathReason) {
	switch r {
	case components.ReasonSunlight:
		d.Sunlight++
	case components.ReasonNutrients:
		d.Nutrients++
	case components.ReasonWater:
		d.Water++
	case components.ReasonAge:
		d.Age++
	}
}

// Get returns the count for a reason.
func (d DeathCounts) Get(r components.DeathReason) int {
	switch r {
	case components.ReasonSunlight:
		return d.Sunlight
	case components.ReasonNutrients:
		return d.Nutrients
	case components.ReasonWater:
		return d.Water
	case components.ReasonAge:
		return d.Age
	}
	return 0
}

// Total returns the number of counted deaths.
func (d DeathCounts) Total() int {
	return d.Sunlight + d.Nutrients + d.Water + d.Age
}

// SpeciesStats aggregates the living plants of one species.
type SpeciesStats struct {
	Name      string
	Count     int
	AvgHealth int // Rounded
	AvgHeight int // Rounded
}

// Stats is a read-only snapshot of the engine.
type Stats struct {
	Tick       int32
	Population int
	Species    []SpeciesStats // Registry order

	AvgNutrients float64
	AvgWater     float64

	NutrientsConsumed float64
	WaterConsumed     float64
	NutrientsReturned float64
	WaterReturned     float64

	Deaths          DeathCounts
	ExhaustedDeaths int
	Births          int // Offspring placed since creation
}

// Stats computes a snapshot of the current state.
func (e *Engine) Stats() Stats {
	n := e.species.Len()
	health := make([]float64, n)
	height := make([]float64, n)

	s := Stats{
		Tick:              e.tick,
		Population:        len(e.entities),
		Species:           make([]SpeciesStats, n),
		AvgNutrients:      e.env.Nutrients.Mean(),
		AvgWater:          e.env.Water.Mean(),
		NutrientsConsumed: e.nutrientsConsumed,
		WaterConsumed:     e.waterConsumed,
		NutrientsReturned: e.nutrientsReturned,
		WaterReturned:     e.waterReturned,
		Deaths:            e.deaths,
		ExhaustedDeaths:   e.exhausted,
		Births:            e.births,
	}

	for _, ps := range e.Plants() {
		i := ps.Plant.Species
		s.Species[i].Count++
		health[i] += ps.Plant.Health
		height[i] += ps.Plant.Height
	}
	for i := range s.Species {
		s.Species[i].Name = e.species.Get(uint8(i)).Name
		if c := s.Species[i].Count; c > 0 {
			s.Species[i].AvgHealth = int(math.Round(health[i] / float64(c)))
			s.Species[i].AvgHeight = int(math.Round(height[i] / float64(c)))
		}
	}
	return s
}

// SpeciesCount returns the number of living plants of the named species.
func (s Stats) SpeciesCount(name string) int {
	for _, sp := range s.Species {
		if sp.Name == name {
			return sp.Count
		}
	}
	return 0
}

// PlantState pairs a plant with its position.
type PlantState struct {
	Position components.Position
	Plant    components.Plant
}

// Plant returns a copy of the plant with the given id.
func (e *Engine) Plant(id uint32) (PlantState, bool) {
	entity, ok := e.entity(id)
	if !ok {
		return PlantState{}, false
	}
	pos, p := e.plantMapper.Get(entity)
	return PlantState{Position: *pos, Plant: *p}, true
}

// Plants returns copies of every living plant, ordered by id.
func (e *Engine) Plants() []PlantState {
	out := make([]PlantState, 0, len(e.entities))
	query := e.plantFilter.Query()
	for query.Next() {
		pos, p := query.Get()
		out = append(out, PlantState{Position: *pos, Plant: *p})
	}
	slices.SortFunc(out, func(a, b PlantState) int {
		return cmp.Compare(a.Plant.ID, b.Plant.ID)
	})
	return out
}

// LastDeaths returns the deaths of the most recent tick. The slice is
// reused by the next Tick.
func (e *Engine) LastDeaths() []DeathRecord {
	return e.lastDeaths
}

// LastBirths returns the offspring placed during the most recent tick.
func (e *Engine) LastBirths() int {
	return e.lastBirths
}

// CurrentTick returns the number of completed ticks.
func (e *Engine) CurrentTick() int32 {
	return e.tick
}

// Nutrients returns the nutrient grid. Callers must not mutate it.
func (e *Engine) Nutrients() *systems.ResourceField {
	return e.env.Nutrients
}

// Water returns the water grid. Callers must not mutate it.
func (e *Engine) Water() *systems.ResourceField {
	return e.env.Water
}

// Shadows returns static and dynamic shadows. Callers must not mutate them.
func (e *Engine) Shadows() []systems.Shadow {
	return e.env.Shadows.Shadows()
}

// Environment returns the engine's environment. Callers must not mutate it.
func (e *Engine) Environment() *systems.Environment {
	return e.env
}

// Species returns the species registry.
func (e *Engine) Species() *traits.Registry {
	return e.species
}
