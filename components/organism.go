// Package components defines ECS components for the simulation.
package components

import "github.com/pthm-cable/meadow/traits"

// Health bounds.
const (
	MaxHealth = 100.0
)

// DeathReason classifies why a plant left the population.
type DeathReason uint8

const (
	ReasonNone DeathReason = iota
	ReasonSunlight
	ReasonNutrients
	ReasonWater
	ReasonAge
	ReasonNoResources // contract guard; never produced by the engine
)

// CountedReasons are the reasons tracked by the death histogram, in tie-break order.
var CountedReasons = [...]DeathReason{ReasonSunlight, ReasonNutrients, ReasonWater, ReasonAge}

// String returns the reason label used in stats and CSV output.
func (r DeathReason) String() string {
	switch r {
	case ReasonSunlight:
		return "sunlight"
	case ReasonNutrients:
		return "nutrients"
	case ReasonWater:
		return "water"
	case ReasonAge:
		return "age"
	case ReasonNoResources:
		return "no_resources"
	}
	return ""
}

// Starvation counts consecutive-ish ticks of unmet need per resource.
// Each timer rises by one per unmet tick and falls by one per met tick, never below 0.
type Starvation struct {
	Sunlight  int32
	Nutrients int32
	Water     int32
}

// Max returns the largest timer and the reason it maps to.
// Ties resolve sunlight > nutrients > water.
func (s Starvation) Max() (int32, DeathReason) {
	switch {
	case s.Sunlight >= s.Nutrients && s.Sunlight >= s.Water:
		return s.Sunlight, ReasonSunlight
	case s.Nutrients >= s.Water:
		return s.Nutrients, ReasonNutrients
	default:
		return s.Water, ReasonWater
	}
}

// Plant holds one organism's state. Radius and height only ever grow, and by
// the same delta.
type Plant struct {
	ID      uint32 // Monotonic; also the insertion order
	Species uint8  // Index into the species registry

	Radius float64
	Height float64
	Health float64 // [0, MaxHealth]
	Age    int32

	// Fixed at birth
	Preference      traits.Preference
	GrowthRate      float64
	MaxAge          float64
	Aggressiveness  float64
	NutrientReq     float64
	WaterReq        float64
	ReproduceRadius float64

	Starvation Starvation

	// Diagnostics
	AbsorbedNutrients float64
	AbsorbedWater     float64
}

// NewPlant builds a newborn plant from rolled individual traits.
func NewPlant(id uint32, species uint8, pref traits.Preference, ind traits.Individual) Plant {
	return Plant{
		ID:              id,
		Species:         species,
		Radius:          ind.Radius,
		Height:          ind.Height,
		Health:          MaxHealth,
		Preference:      pref,
		GrowthRate:      ind.GrowthRate,
		MaxAge:          ind.MaxAge,
		Aggressiveness:  ind.Aggressiveness,
		NutrientReq:     ind.NutrientReq,
		WaterReq:        ind.WaterReq,
		ReproduceRadius: ind.ReproduceRadius,
	}
}

// NutrientReturn is the nutrient mass a dead plant gives back to the soil.
func (p *Plant) NutrientReturn(ratio float64) float64 {
	return p.Aggressiveness * float64(p.Age) * 0.03 * ratio
}

// WaterReturn is the water a dead plant gives back.
func (p *Plant) WaterReturn() float64 {
	return float64(p.Age) * 0.01
}

// ReturnRadius is the radius over which a dead plant's resources spread.
func (p *Plant) ReturnRadius() float64 {
	return p.Radius * 3
}
