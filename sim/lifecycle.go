package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/meadow/components"
)

// ErrOutOfBounds is returned when a plant is placed outside the field.
var ErrOutOfBounds = errors.New("position outside field")

// AddOrganism places a plant of the named species at a uniformly random
// position and returns its id.
func (e *Engine) AddOrganism(species string) (uint32, error) {
	idx, ok := e.species.Lookup(species)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSpecies, species)
	}
	x, y := e.randomPosition()
	return e.spawn(idx, x, y), nil
}

// AddOrganismAt places a plant of the named species at (x, y).
func (e *Engine) AddOrganismAt(species string, x, y float64) (uint32, error) {
	idx, ok := e.species.Lookup(species)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSpecies, species)
	}
	if math.IsNaN(x) || math.IsNaN(y) || x < 0 || x > e.env.Width || y < 0 || y > e.env.Height {
		return 0, fmt.Errorf("%w: (%g, %g)", ErrOutOfBounds, x, y)
	}
	return e.spawn(idx, x, y), nil
}

// AddRandomOrganism picks a species uniformly, then a random position.
func (e *Engine) AddRandomOrganism() uint32 {
	idx := e.species.Pick(e.rng)
	x, y := e.randomPosition()
	return e.spawn(idx, x, y)
}

// Seed adds n random plants.
func (e *Engine) Seed(n int) {
	for i := 0; i < n; i++ {
		e.AddRandomOrganism()
	}
	slog.Info("population seeded", "count", n, "population", e.Population())
}

// Clear removes every plant. The environment, counters and histogram are
// left as they are.
func (e *Engine) Clear() {
	// Remove in id order so entity recycling stays deterministic
	for _, id := range slices.Sorted(maps.Keys(e.entities)) {
		e.world.RemoveEntity(e.entities[id])
		delete(e.entities, id)
	}
	e.env.Shadows.RebuildDynamic(nil)
}

// Population returns the number of living plants.
func (e *Engine) Population() int {
	return len(e.entities)
}

func (e *Engine) randomPosition() (float64, float64) {
	return e.rng.Float64() * e.env.Width, e.rng.Float64() * e.env.Height
}

// spawn creates a plant entity with freshly rolled traits.
func (e *Engine) spawn(species uint8, x, y float64) uint32 {
	sp := e.species.Get(species)

	id := e.nextID
	e.nextID++

	pos := components.Position{X: x, Y: y}
	plant := components.NewPlant(id, species, sp.Preference, sp.Roll(e.rng))

	entity := e.plantMapper.NewEntity(&pos, &plant)
	e.entities[id] = entity
	return id
}

// reproduce scatters offspring of a parent that died of age. Each child is
// placed at a random angle and distance within the reproduce radius;
// positions outside the open field are dropped without retry.
func (e *Engine) reproduce(parent *components.Plant, x, y float64) int {
	sp := e.species.Get(parent.Species)
	count := sp.Offspring(e.rng)

	born := 0
	for i := 0; i < count; i++ {
		angle := e.rng.Float64() * 2 * math.Pi
		dist := e.rng.Float64() * parent.ReproduceRadius
		cx := x + math.Cos(angle)*dist
		cy := y + math.Sin(angle)*dist

		if !e.env.InBounds(cx, cy) {
			continue
		}
		e.spawn(parent.Species, cx, cy)
		born++
	}

	e.births += born
	e.lastBirths += born
	return born
}

// entity resolves a plant id to its live entity.
func (e *Engine) entity(id uint32) (ecs.Entity, bool) {
	entity, ok := e.entities[id]
	if !ok || !e.world.Alive(entity) {
		return ecs.Entity{}, false
	}
	return entity, true
}
