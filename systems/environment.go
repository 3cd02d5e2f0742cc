// Package systems holds the meadow environment: resource grids, shadows and
// the per-plant update.
package systems

import (
	"math/rand"

	"github.com/pthm-cable/meadow/components"
)

// QueryRadius is the distance within which a plant senses resource cells.
const QueryRadius = 40.0

// Environment bundles the two resource grids and the shadow field.
type Environment struct {
	Width, Height float64
	Nutrients     *ResourceField
	Water         *ResourceField
	Shadows       *ShadowField
}

// EnvironmentParams configures NewEnvironment.
type EnvironmentParams struct {
	Width, Height         float64
	GridSize              float64
	MaxResourceDifference float64
	ShadowCount           int
	MinShadowSize         float64
	MaxShadowSize         float64
}

// NewEnvironment generates nutrients, then water, then terrain shadows, all
// from rng, so a seed fixes the whole layout.
func NewEnvironment(rng *rand.Rand, p EnvironmentParams) *Environment {
	return &Environment{
		Width:     p.Width,
		Height:    p.Height,
		Nutrients: GenerateResourceField(rng, Nutrients, p.Width, p.Height, p.GridSize, p.MaxResourceDifference),
		Water:     GenerateResourceField(rng, Water, p.Width, p.Height, p.GridSize, p.MaxResourceDifference),
		Shadows: NewShadowField(GenerateStaticShadows(rng, p.ShadowCount, p.Width, p.Height,
			p.MinShadowSize, p.MaxShadowSize)),
	}
}

// Sample fills res with the snapshot for the plant with the given id at pos.
// res's index buffers are reused.
func (e *Environment) Sample(pos components.Position, id uint32, res *Resources) {
	res.Sunlight = e.Shadows.SunlightAt(pos.X, pos.Y, id)
	res.Nutrients = e.Nutrients
	res.Water = e.Water
	res.NearbyNutrients = e.Nutrients.Query(pos.X, pos.Y, QueryRadius, res.NearbyNutrients)
	res.NearbyWater = e.Water.Query(pos.X, pos.Y, QueryRadius, res.NearbyWater)
	res.AvgNutrients = e.Nutrients.Average(res.NearbyNutrients)
	res.AvgWater = e.Water.Average(res.NearbyWater)
}

// InBounds reports whether (x, y) lies strictly inside the field.
func (e *Environment) InBounds(x, y float64) bool {
	return x > 0 && x < e.Width && y > 0 && y < e.Height
}
