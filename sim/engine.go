// Package sim runs the plant community: it owns the population, the
// environment and the seeded random source, and advances them tick by tick.
package sim

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/meadow/components"
	"github.com/pthm-cable/meadow/config"
	"github.com/pthm-cable/meadow/systems"
	"github.com/pthm-cable/meadow/traits"
)

// ErrUnknownSpecies is returned when a species name is not registered.
var ErrUnknownSpecies = errors.New("unknown species")

// Phase names reported to a PhaseTimer.
const (
	PhaseShadows      = "shadows"
	PhaseUpdate       = "update"
	PhaseCleanup      = "cleanup"
	PhaseRestitution  = "restitution"
	PhaseReproduction = "reproduction"
)

// Phases lists the phase names in the order a tick runs them.
var Phases = []string{PhaseShadows, PhaseUpdate, PhaseCleanup, PhaseRestitution, PhaseReproduction}

// PhaseTimer receives tick phase boundaries. It is optional.
type PhaseTimer interface {
	StartTick()
	StartPhase(name string)
	EndTick()
}

// Engine holds the complete simulation state. It is not safe for
// concurrent use; run one engine per goroutine.
type Engine struct {
	world *ecs.World
	rng   *rand.Rand

	plantMapper *ecs.Map2[components.Position, components.Plant]
	plantFilter *ecs.Filter2[components.Position, components.Plant]

	species *traits.Registry
	env     *systems.Environment

	// id -> entity, for lookups by plant id
	entities map[uint32]ecs.Entity

	// State
	tick   int32
	nextID uint32

	nutrientsReturned float64
	waterReturned     float64
	nutrientsConsumed float64
	waterConsumed     float64
	deaths            DeathCounts
	exhausted         int
	births            int

	// Per-tick scratch, reused across ticks
	order      []orderEntry
	casters    []systems.Caster
	dead       []DeathRecord
	lastDeaths []DeathRecord
	lastBirths int
	res        systems.Resources

	perf PhaseTimer
}

type orderEntry struct {
	entity ecs.Entity
	id     uint32
	height float64
}

// New creates an engine with a freshly generated environment. The
// environment consumes rng in a fixed order (nutrients, water, shadows),
// so the same seed yields the same landscape. No plants are added.
func New(cfg *config.Config, rng *rand.Rand) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("sim: nil config")
	}
	if rng == nil {
		return nil, errors.New("sim: nil random source")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sim: invalid config: %w", err)
	}
	reg, err := traits.NewRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("sim: building species registry: %w", err)
	}

	world := ecs.NewWorld()
	e := &Engine{
		world:       world,
		rng:         rng,
		plantMapper: ecs.NewMap2[components.Position, components.Plant](world),
		plantFilter: ecs.NewFilter2[components.Position, components.Plant](world),
		species:     reg,
		entities:    make(map[uint32]ecs.Entity),
		nextID:      1,
	}

	e.env = systems.NewEnvironment(rng, systems.EnvironmentParams{
		Width:                 cfg.Field.Width,
		Height:                cfg.Field.Height,
		GridSize:              cfg.Field.GridSize,
		MaxResourceDifference: cfg.Field.MaxResourceDifference,
		ShadowCount:           cfg.Shadows.Count,
		MinShadowSize:         cfg.Shadows.MinSize,
		MaxShadowSize:         cfg.Shadows.MaxSize,
	})

	slog.Debug("engine created",
		"width", cfg.Field.Width,
		"height", cfg.Field.Height,
		"cells", e.env.Nutrients.Len(),
		"shadows", len(e.env.Shadows.Static()),
		"species", reg.Names(),
	)

	return e, nil
}

// SetPhaseTimer installs a timer that is notified of tick phases.
func (e *Engine) SetPhaseTimer(p PhaseTimer) {
	e.perf = p
}

// Tick advances the simulation by one step.
//
// Plants are updated shortest first, so shorter plants draw from shared
// cells before taller neighbours in the same tick. Dead plants are removed
// only after every plant has been updated.
func (e *Engine) Tick(nutrientReturnRatio float64) {
	if e.perf != nil {
		e.perf.StartTick()
	}
	e.lastDeaths = e.lastDeaths[:0]
	e.lastBirths = 0

	// 1. Dynamic shadows from the current population
	e.startPhase(PhaseShadows)
	e.rebuildShadows()

	// 2-3. Ordered update
	e.startPhase(PhaseUpdate)
	e.updatePlants()

	// 4. Remove the dead
	e.startPhase(PhaseCleanup)
	e.cleanupDead()

	// 5-6. Return resources, reproduce, record
	e.processDeaths(nutrientReturnRatio)

	e.tick++

	if e.perf != nil {
		e.perf.EndTick()
	}
}

func (e *Engine) startPhase(name string) {
	if e.perf != nil {
		e.perf.StartPhase(name)
	}
}

// rebuildShadows replaces the dynamic shadows with one per tall plant.
func (e *Engine) rebuildShadows() {
	e.casters = e.casters[:0]
	query := e.plantFilter.Query()
	for query.Next() {
		pos, p := query.Get()
		if p.Height > systems.ShadowHeightThreshold {
			e.casters = append(e.casters, systems.Caster{
				ID:     p.ID,
				X:      pos.X,
				Y:      pos.Y,
				Radius: p.Radius,
				Height: p.Height,
			})
		}
	}
	// Query order follows archetype storage; sort for a stable shadow list
	slices.SortFunc(e.casters, func(a, b systems.Caster) int {
		return cmp.Compare(a.ID, b.ID)
	})
	e.env.Shadows.RebuildDynamic(e.casters)
}

// updatePlants runs the state machine over every plant in processing order.
func (e *Engine) updatePlants() {
	e.order = e.order[:0]
	query := e.plantFilter.Query()
	for query.Next() {
		_, p := query.Get()
		e.order = append(e.order, orderEntry{entity: query.Entity(), id: p.ID, height: p.Height})
	}
	slices.SortStableFunc(e.order, compareOrder)

	e.dead = e.dead[:0]
	for _, o := range e.order {
		pos, p := e.plantMapper.Get(o.entity)
		e.env.Sample(*pos, p.ID, &e.res)
		out := systems.UpdatePlant(p, *pos, &e.res)

		e.nutrientsConsumed += out.AbsorbedNutrients
		e.waterConsumed += out.AbsorbedWater

		if !out.Alive {
			e.dead = append(e.dead, DeathRecord{
				Tick:      e.tick + 1,
				ID:        p.ID,
				Species:   e.species.Get(p.Species).Name,
				X:         pos.X,
				Y:         pos.Y,
				Age:       p.Age,
				Radius:    p.Radius,
				Height:    p.Height,
				Reason:    out.Reason,
				Exhausted: out.Exhausted,
				entity:    o.entity,
				plant:     *p,
			})
		}
	}
}

// compareOrder sorts by ascending height, ties by ascending id.
func compareOrder(a, b orderEntry) int {
	switch {
	case a.height < b.height:
		return -1
	case a.height > b.height:
		return 1
	case a.id < b.id:
		return -1
	case a.id > b.id:
		return 1
	}
	return 0
}

// cleanupDead removes the entities collected during the update pass.
func (e *Engine) cleanupDead() {
	for i := range e.dead {
		delete(e.entities, e.dead[i].ID)
		e.world.RemoveEntity(e.dead[i].entity)
	}
}

// processDeaths returns resources to the soil, reproduces plants that died
// of age and updates the death histogram, in update order.
func (e *Engine) processDeaths(ratio float64) {
	for i := range e.dead {
		d := &e.dead[i]

		e.startPhase(PhaseRestitution)
		d.NutrientsReturned = d.plant.NutrientReturn(ratio)
		d.WaterReturned = d.plant.WaterReturn()
		radius := d.plant.ReturnRadius()
		e.env.Nutrients.Restitute(d.X, d.Y, radius, d.NutrientsReturned)
		e.env.Water.Restitute(d.X, d.Y, radius, d.WaterReturned)
		e.nutrientsReturned += d.NutrientsReturned
		e.waterReturned += d.WaterReturned

		if d.Reason == components.ReasonAge {
			e.startPhase(PhaseReproduction)
			d.Offspring = e.reproduce(&d.plant, d.X, d.Y)
		}

		e.deaths.Add(d.Reason)
		if d.Exhausted {
			e.exhausted++
		}
		e.lastDeaths = append(e.lastDeaths, *d)
	}

	if len(e.dead) > 0 {
		slog.Debug("deaths",
			"tick", e.tick,
			"count", len(e.dead),
			"births", e.lastBirths,
		)
	}
}
