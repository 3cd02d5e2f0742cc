package components

import "math"

// Position represents a plant's fixed world position.
type Position struct {
	X, Y float64
}

// DistanceTo returns the Euclidean distance to (x, y).
func (p Position) DistanceTo(x, y float64) float64 {
	return math.Hypot(p.X-x, p.Y-y)
}
