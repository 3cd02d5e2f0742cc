// Package traits defines plant species and their per-individual characteristics.
package traits

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pthm-cable/meadow/config"
)

// Preference classifies which light band a species is adapted to.
type Preference uint8

const (
	Neutral Preference = iota
	Sun
	Shade
)

// String returns the config spelling of the preference.
func (p Preference) String() string {
	switch p {
	case Sun:
		return "sun"
	case Shade:
		return "shade"
	default:
		return "neutral"
	}
}

// ParsePreference maps a config string to a Preference.
func ParsePreference(s string) (Preference, error) {
	switch s {
	case "sun":
		return Sun, nil
	case "shade":
		return Shade, nil
	case "neutral", "":
		return Neutral, nil
	}
	return Neutral, fmt.Errorf("unknown sunlight preference %q", s)
}

// Range is a closed-open interval sampled uniformly.
type Range struct {
	Min, Max float64
}

// Sample draws a uniform value in [Min, Max).
func (r Range) Sample(rng *rand.Rand) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

// Requirement is a resource need that grows linearly with radius.
type Requirement struct {
	Base, PerRadius float64
}

// At evaluates the requirement for a plant of the given radius.
func (r Requirement) At(radius float64) float64 {
	return r.Base + r.PerRadius*radius
}

// Species is the immutable trait record shared by all plants of one kind.
type Species struct {
	Name            string
	Preference      Preference
	InitialRadius   Range
	InitialHeight   Range
	GrowthRate      Range
	MaxAge          Range
	Aggressiveness  Range
	NutrientReq     Requirement
	WaterReq        Requirement
	ReproduceRadius float64
	OffspringCount  Range
	Color           string
	InnerColor      string
}

// Offspring draws how many seeds a dying parent scatters.
func (s *Species) Offspring(rng *rand.Rand) int {
	return int(math.Floor(s.OffspringCount.Sample(rng)))
}

// Individual holds the traits fixed for one plant at birth.
type Individual struct {
	Radius          float64
	Height          float64
	GrowthRate      float64
	MaxAge          float64
	Aggressiveness  float64
	NutrientReq     float64
	WaterReq        float64
	ReproduceRadius float64
}

// Roll samples an individual. Requirements are evaluated once, against the
// initial radius.
func (s *Species) Roll(rng *rand.Rand) Individual {
	ind := Individual{
		Radius:          s.InitialRadius.Sample(rng),
		Height:          s.InitialHeight.Sample(rng),
		GrowthRate:      s.GrowthRate.Sample(rng),
		MaxAge:          s.MaxAge.Sample(rng),
		Aggressiveness:  s.Aggressiveness.Sample(rng),
		ReproduceRadius: s.ReproduceRadius,
	}
	ind.NutrientReq = s.NutrientReq.At(ind.Radius)
	ind.WaterReq = s.WaterReq.At(ind.Radius)
	return ind
}

// FromConfig converts a species config entry.
func FromConfig(sc config.SpeciesConfig) (Species, error) {
	pref, err := ParsePreference(sc.Preference)
	if err != nil {
		return Species{}, fmt.Errorf("species %q: %w", sc.Name, err)
	}
	rng := func(r config.RangeConfig) Range { return Range{Min: r.Min, Max: r.Max} }
	req := func(r config.RequirementConfig) Requirement {
		return Requirement{Base: r.Base, PerRadius: r.PerRadius}
	}
	return Species{
		Name:            sc.Name,
		Preference:      pref,
		InitialRadius:   rng(sc.InitialRadius),
		InitialHeight:   rng(sc.InitialHeight),
		GrowthRate:      rng(sc.GrowthRate),
		MaxAge:          rng(sc.MaxAge),
		Aggressiveness:  rng(sc.Aggressiveness),
		NutrientReq:     req(sc.NutrientRequirement),
		WaterReq:        req(sc.WaterRequirement),
		ReproduceRadius: sc.ReproduceRadius,
		OffspringCount:  rng(sc.OffspringCount),
		Color:           sc.Color,
		InnerColor:      sc.InnerColor,
	}, nil
}

// Registry is the ordered set of species an engine can spawn.
type Registry struct {
	species []Species
	index   map[string]int
}

// NewRegistry builds a registry from config, preserving config order.
func NewRegistry(cfg *config.Config) (*Registry, error) {
	if len(cfg.Species) > math.MaxUint8 {
		return nil, fmt.Errorf("too many species: %d (max %d)", len(cfg.Species), math.MaxUint8)
	}
	r := &Registry{
		species: make([]Species, 0, len(cfg.Species)),
		index:   make(map[string]int, len(cfg.Species)),
	}
	for _, sc := range cfg.Species {
		sp, err := FromConfig(sc)
		if err != nil {
			return nil, err
		}
		r.index[sp.Name] = len(r.species)
		r.species = append(r.species, sp)
	}
	return r, nil
}

// Lookup returns the species index by name.
func (r *Registry) Lookup(name string) (uint8, bool) {
	i, ok := r.index[name]
	return uint8(i), ok
}

// Get returns the species at index i.
func (r *Registry) Get(i uint8) *Species {
	return &r.species[i]
}

// Len returns the number of registered species.
func (r *Registry) Len() int {
	return len(r.species)
}

// Pick chooses a species index uniformly at random.
func (r *Registry) Pick(rng *rand.Rand) uint8 {
	return uint8(rng.Intn(len(r.species)))
}

// Names returns species names in registry order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.species))
	for i, sp := range r.species {
		names[i] = sp.Name
	}
	return names
}
