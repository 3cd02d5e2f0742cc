package systems

import (
	"math"
	"math/rand"
)

// Dynamic shadow constants.
const (
	ShadowHeightThreshold = 15.0 // Plants taller than this cast a shadow
	shadowRadiusScale     = 1.5
	shadowBaseOpacity     = 0.3
	shadowMinOpacity      = 0.1
	shadowHeightDivisor   = 500.0
)

// Shadow is a circular occluder. Owner is the casting plant's ID, or 0 for
// terrain shadows.
type Shadow struct {
	X, Y    float64
	Radius  float64
	Opacity float64 // [0,1]
	Owner   uint32
}

// Caster is the view of a plant the shadow field needs.
type Caster struct {
	ID     uint32
	X, Y   float64
	Radius float64
	Height float64
}

// ShadowField holds permanent terrain shadows and the plant shadows of the
// current tick.
type ShadowField struct {
	static  []Shadow
	dynamic []Shadow
	all     []Shadow // static followed by dynamic, rebuilt with dynamic
}

// NewShadowField creates a field with the given static shadows.
func NewShadowField(static []Shadow) *ShadowField {
	sf := &ShadowField{static: static}
	sf.all = append(sf.all[:0], sf.static...)
	return sf
}

// GenerateStaticShadows places count fully opaque terrain shadows with random
// centres inside the field and radii in [minSize, maxSize].
func GenerateStaticShadows(rng *rand.Rand, count int, width, height, minSize, maxSize float64) []Shadow {
	if count <= 0 {
		return nil
	}
	shadows := make([]Shadow, count)
	for i := range shadows {
		shadows[i] = Shadow{
			X:       rng.Float64() * width,
			Y:       rng.Float64() * height,
			Radius:  minSize + rng.Float64()*(maxSize-minSize),
			Opacity: 1,
		}
	}
	return shadows
}

// RebuildDynamic replaces the plant shadows from the current casters.
// Nothing carries over from the previous tick.
func (sf *ShadowField) RebuildDynamic(casters []Caster) {
	sf.dynamic = sf.dynamic[:0]
	for _, c := range casters {
		if c.Height <= ShadowHeightThreshold {
			continue
		}
		opacity := math.Max(shadowMinOpacity, shadowBaseOpacity+c.Height/shadowHeightDivisor)
		sf.dynamic = append(sf.dynamic, Shadow{
			X:       c.X,
			Y:       c.Y,
			Radius:  c.Radius * shadowRadiusScale,
			Opacity: math.Min(1, opacity),
			Owner:   c.ID,
		})
	}
	sf.all = append(sf.all[:0], sf.static...)
	sf.all = append(sf.all, sf.dynamic...)
}

// SunlightAt returns the light reaching (x, y) in [0,1], ignoring shadows
// owned by exclude. Overlapping shadows attenuate multiplicatively.
func (sf *ShadowField) SunlightAt(x, y float64, exclude uint32) float64 {
	sunlight := 1.0
	for i := range sf.all {
		s := &sf.all[i]
		if s.Owner != 0 && s.Owner == exclude {
			continue
		}
		d := math.Hypot(s.X-x, s.Y-y)
		if d < s.Radius {
			overlap := 1 - math.Min(1, d/s.Radius)
			sunlight *= 1 - overlap*s.Opacity
		}
	}
	return clamp(sunlight, 0, 1)
}

// Shadows returns static and dynamic shadows. The slice is reused across
// ticks and must not be modified.
func (sf *ShadowField) Shadows() []Shadow {
	return sf.all
}

// Static returns the terrain shadows.
func (sf *ShadowField) Static() []Shadow {
	return sf.static
}

// Dynamic returns the plant shadows of the current tick.
func (sf *ShadowField) Dynamic() []Shadow {
	return sf.dynamic
}
