package systems

import (
	"math"

	"github.com/pthm-cable/meadow/components"
	"github.com/pthm-cable/meadow/traits"
)

// Plant lifecycle constants.
const (
	MaxStarvation = 100 // A timer above this kills

	sunPreferMinLight   = 0.8 // Sun plants need strictly more light than this
	otherPreferMaxLight = 0.7 // Shade and neutral plants need at most this

	nutrientAbsorbRate = 0.005
	waterAbsorbRate    = 0.0025
	absorbRadiusScale  = 2.0
	absorbSizeLimit    = 200.0 // Absorption efficiency reaches 0 at this radius
	absorbCellCap      = 0.1   // Max fraction of a cell taken per tick

	minGrowthFactor = 0.1
	maxGrowthFactor = 1.5

	healthPenalty = 0.5 // Per unmet need
	healthGain    = 1.0 // When all needs are met
)

// Resources is the per-tick snapshot a plant updates against. Nearby cells
// are indices into the owning fields.
type Resources struct {
	Sunlight        float64
	AvgNutrients    float64
	AvgWater        float64
	Nutrients       *ResourceField
	Water           *ResourceField
	NearbyNutrients []int
	NearbyWater     []int
}

// Outcome reports the result of one plant update.
type Outcome struct {
	Alive     bool
	Reason    components.DeathReason
	Exhausted bool // Died because health reached 0 rather than a timer

	Growth            float64 // Delta applied to both radius and height
	AbsorbedNutrients float64
	AbsorbedWater     float64
}

// UpdatePlant advances a plant by one tick.
//
// Order matters: age, needs, starvation timers, absorption, growth, health.
// Absorption runs even when needs are unmet. A plant whose health reaches 0
// is attributed to its largest starvation timer; health only falls on ticks
// with an unmet need, so that timer is at least 1.
func UpdatePlant(p *components.Plant, pos components.Position, res *Resources) Outcome {
	if res == nil {
		return Outcome{Reason: components.ReasonNoResources}
	}

	p.Age++
	if float64(p.Age) >= p.MaxAge {
		return Outcome{Reason: components.ReasonAge}
	}

	sunOK := SunlightSuitable(p.Preference, res.Sunlight)
	nutOK := res.AvgNutrients >= p.NutrientReq
	watOK := res.AvgWater >= p.WaterReq

	p.Starvation.Sunlight = stepTimer(p.Starvation.Sunlight, sunOK)
	p.Starvation.Nutrients = stepTimer(p.Starvation.Nutrients, nutOK)
	p.Starvation.Water = stepTimer(p.Starvation.Water, watOK)

	if worst, reason := p.Starvation.Max(); worst > MaxStarvation {
		return Outcome{Reason: reason}
	}

	var out Outcome
	out.AbsorbedNutrients = absorb(p, pos, res.Nutrients, res.NearbyNutrients, nutrientAbsorbRate)
	out.AbsorbedWater = absorb(p, pos, res.Water, res.NearbyWater, waterAbsorbRate)
	p.AbsorbedNutrients += out.AbsorbedNutrients
	p.AbsorbedWater += out.AbsorbedWater

	allOK := sunOK && nutOK && watOK
	if allOK {
		f := GrowthFactor(p.Preference, res.Sunlight, out.AbsorbedNutrients, out.AbsorbedWater, p.Health)
		out.Growth = p.GrowthRate * f
		p.Radius += out.Growth
		p.Height += out.Growth
	}

	if allOK {
		p.Health += healthGain
	} else {
		for _, ok := range [...]bool{sunOK, nutOK, watOK} {
			if !ok {
				p.Health -= healthPenalty
			}
		}
	}
	p.Health = clamp(p.Health, 0, components.MaxHealth)

	out.Alive = p.Health > 0
	if !out.Alive {
		_, out.Reason = p.Starvation.Max()
		out.Exhausted = true
	}
	return out
}

// SunlightSuitable reports whether the light level meets a preference.
// Sun plants need bright light; every other preference is satisfied by dim light.
func SunlightSuitable(pref traits.Preference, sunlight float64) bool {
	if pref == traits.Sun {
		return sunlight > sunPreferMinLight
	}
	return sunlight <= otherPreferMaxLight
}

// GrowthFactor scales growth by resource intake, light preference and health.
func GrowthFactor(pref traits.Preference, sunlight, nutrients, water, health float64) float64 {
	f := (sunlight + nutrients + water) / 3
	f *= preferenceModifier(pref, sunlight)
	f *= health / components.MaxHealth
	return clamp(f, minGrowthFactor, maxGrowthFactor)
}

func preferenceModifier(pref traits.Preference, sunlight float64) float64 {
	switch pref {
	case traits.Sun:
		switch {
		case sunlight > 0.7:
			return 1.2
		case sunlight > 0.4:
			return 1.0
		}
		return 0.6
	case traits.Shade:
		switch {
		case sunlight < 0.3:
			return 1.2
		case sunlight < 0.6:
			return 1.0
		}
		return 0.6
	}
	return 1.0
}

func stepTimer(t int32, ok bool) int32 {
	if !ok {
		return t + 1
	}
	if t > 0 {
		return t - 1
	}
	return 0
}

// absorb draws from cells within twice the plant's radius. Each take is
// distance weighted and capped at a tenth of the cell's current value.
func absorb(p *components.Plant, pos components.Position, field *ResourceField, cells []int, k float64) float64 {
	if field == nil {
		return 0
	}
	radius := p.Radius * absorbRadiusScale
	rate := k * p.Aggressiveness * math.Max(0, 1-p.Radius/absorbSizeLimit)
	if radius <= 0 || rate <= 0 {
		return 0
	}

	var total float64
	for _, i := range cells {
		c := &field.Cells[i]
		d := pos.DistanceTo(c.X, c.Y)
		if d >= radius {
			continue
		}
		take := math.Min(c.Value*absorbCellCap, rate*c.Value*(1-d/radius))
		if take <= 0 {
			continue
		}
		field.Deplete(i, take)
		total += take
	}
	return total
}
