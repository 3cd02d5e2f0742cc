package systems

import (
	"math"
	"math/rand"
)

// ResourceKind selects a resource grid.
type ResourceKind uint8

const (
	Nutrients ResourceKind = iota
	Water
)

// String returns the resource label.
func (k ResourceKind) String() string {
	if k == Water {
		return "water"
	}
	return "nutrients"
}

// seedRange returns the range the top-left cell is drawn from.
func (k ResourceKind) seedRange() (lo, hi float64) {
	if k == Water {
		return 0.3, 1.0
	}
	return 0.5, 1.0
}

// Generated cell values are clamped to this band.
const (
	minCellValue = 0.1
	maxCellValue = 1.0
)

// ResourceCell is one grid unit. Initial is the ceiling restitution can refill to.
type ResourceCell struct {
	X, Y    float64 // Top-left corner in world units
	Value   float64
	Initial float64
}

// ResourceField is a flat, row-major grid of resource cells. Cells are owned
// by the field and addressed by index; callers must not mutate returned cells.
type ResourceField struct {
	Kind       ResourceKind
	Cols, Rows int
	GridSize   float64
	Cells      []ResourceCell
}

// GenerateResourceField lays out a spatially correlated random field.
//
// This is a random walk, not a diffusion solve: the top-left cell is seeded in
// a kind-specific range, and every other cell copies the value of its upper or
// left neighbour (chosen uniformly when both exist) plus a uniform step in
// [-maxDiff, +maxDiff], clamped to [0.1, 1]. The result is locally smooth but
// drifts across the field.
func GenerateResourceField(rng *rand.Rand, kind ResourceKind, width, height, gridSize, maxDiff float64) *ResourceField {
	cols := int(math.Ceil(width / gridSize))
	rows := int(math.Ceil(height / gridSize))

	rf := &ResourceField{
		Kind:     kind,
		Cols:     cols,
		Rows:     rows,
		GridSize: gridSize,
		Cells:    make([]ResourceCell, cols*rows),
	}

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			var value float64
			if i == 0 && j == 0 {
				lo, hi := kind.seedRange()
				value = lo + rng.Float64()*(hi-lo)
			} else {
				var base float64
				switch {
				case i > 0 && j > 0:
					if rng.Intn(2) == 0 {
						base = rf.Cells[(i-1)*cols+j].Value
					} else {
						base = rf.Cells[i*cols+j-1].Value
					}
				case i > 0:
					base = rf.Cells[(i-1)*cols+j].Value
				default:
					base = rf.Cells[i*cols+j-1].Value
				}
				value = clamp(base+(rng.Float64()*2-1)*maxDiff, minCellValue, maxCellValue)
			}

			rf.Cells[i*cols+j] = ResourceCell{
				X:       float64(j) * gridSize,
				Y:       float64(i) * gridSize,
				Value:   value,
				Initial: value,
			}
		}
	}

	return rf
}

// Query appends to dst the indices of cells whose corner lies strictly within
// radius of (x, y), in row-major order. Only the rows and columns of the
// bounding box are visited; the result equals a full linear scan.
func (rf *ResourceField) Query(x, y, radius float64, dst []int) []int {
	dst = dst[:0]
	if !(radius > 0) || math.IsNaN(x) || math.IsNaN(y) || len(rf.Cells) == 0 {
		return dst
	}
	r2 := radius * radius

	// Bounds are clamped as floats; huge radii overflow int conversion.
	i0 := gridIndex(math.Floor((y-radius)/rf.GridSize), rf.Rows-1)
	i1 := gridIndex(math.Ceil((y+radius)/rf.GridSize), rf.Rows-1)
	j0 := gridIndex(math.Floor((x-radius)/rf.GridSize), rf.Cols-1)
	j1 := gridIndex(math.Ceil((x+radius)/rf.GridSize), rf.Cols-1)

	for i := i0; i <= i1; i++ {
		for j := j0; j <= j1; j++ {
			idx := i*rf.Cols + j
			dx := rf.Cells[idx].X - x
			dy := rf.Cells[idx].Y - y
			if dx*dx+dy*dy < r2 {
				dst = append(dst, idx)
			}
		}
	}
	return dst
}

// Average returns the mean value of the given cells, or 0 for none.
func (rf *ResourceField) Average(indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	var sum float64
	for _, i := range indices {
		sum += rf.Cells[i].Value
	}
	return sum / float64(len(indices))
}

// Deplete lowers a cell's value, never below 0.
func (rf *ResourceField) Deplete(i int, amount float64) {
	c := &rf.Cells[i]
	c.Value -= amount
	if c.Value < 0 {
		c.Value = 0
	}
}

// Restitute spreads amount evenly over the cells within radius of (x, y).
// No cell is refilled above its initial value.
func (rf *ResourceField) Restitute(x, y, radius, amount float64) {
	if amount <= 0 {
		return
	}
	var buf [64]int
	cells := rf.Query(x, y, radius, buf[:0])
	if len(cells) == 0 {
		return
	}
	share := amount / float64(len(cells))
	for _, i := range cells {
		c := &rf.Cells[i]
		c.Value = math.Min(c.Initial, c.Value+share)
	}
}

// Mean returns the average value over the whole grid.
func (rf *ResourceField) Mean() float64 {
	if len(rf.Cells) == 0 {
		return 0
	}
	var sum float64
	for i := range rf.Cells {
		sum += rf.Cells[i].Value
	}
	return sum / float64(len(rf.Cells))
}

// Len returns the number of cells.
func (rf *ResourceField) Len() int {
	return len(rf.Cells)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// gridIndex clamps a row or column coordinate to [0, hi] before converting.
func gridIndex(v float64, hi int) int {
	return int(clamp(v, 0, float64(hi)))
}
