package systems

import (
	"math"
	"math/rand"
	"slices"
	"testing"
)

func TestResourceFieldCreation(t *testing.T) {
	rf := GenerateResourceField(rand.New(rand.NewSource(42)), Nutrients, 800, 600, 40, 0.2)

	if rf.Cols != 20 || rf.Rows != 15 {
		t.Fatalf("expected grid 20x15, got %dx%d", rf.Cols, rf.Rows)
	}
	if rf.Len() != 300 {
		t.Fatalf("expected 300 cells, got %d", rf.Len())
	}

	// Cells are laid out row-major at grid corners
	c := rf.Cells[1*rf.Cols+3]
	if c.X != 120 || c.Y != 40 {
		t.Errorf("cell (1,3) at (%g,%g), want (120,40)", c.X, c.Y)
	}
}

func TestResourceFieldPartialCells(t *testing.T) {
	rf := GenerateResourceField(rand.New(rand.NewSource(1)), Water, 810, 601, 40, 0.2)
	// ceil(810/40)=21, ceil(601/40)=16
	if rf.Cols != 21 || rf.Rows != 16 {
		t.Errorf("expected grid 21x16, got %dx%d", rf.Cols, rf.Rows)
	}
}

func TestResourceFieldGenerationBounds(t *testing.T) {
	tests := []struct {
		kind   ResourceKind
		seedLo float64
	}{
		{Nutrients, 0.5},
		{Water, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			for seed := int64(0); seed < 20; seed++ {
				rf := GenerateResourceField(rand.New(rand.NewSource(seed)), tt.kind, 400, 400, 40, 0.5)
				if v := rf.Cells[0].Value; v < tt.seedLo || v > 1 {
					t.Fatalf("seed cell %f outside [%g,1]", v, tt.seedLo)
				}
				for i, c := range rf.Cells {
					if c.Value < 0.1 || c.Value > 1 {
						t.Fatalf("cell %d value %f outside [0.1,1]", i, c.Value)
					}
					if c.Value != c.Initial {
						t.Fatalf("cell %d value %f != initial %f", i, c.Value, c.Initial)
					}
				}
			}
		})
	}
}

func TestResourceFieldNeighbourStep(t *testing.T) {
	const maxDiff = 0.05
	rf := GenerateResourceField(rand.New(rand.NewSource(3)), Nutrients, 400, 400, 40, maxDiff)

	// Every cell is within maxDiff of its upper or left neighbour
	for i := 0; i < rf.Rows; i++ {
		for j := 0; j < rf.Cols; j++ {
			if i == 0 && j == 0 {
				continue
			}
			v := rf.Cells[i*rf.Cols+j].Value
			ok := false
			if i > 0 && math.Abs(v-rf.Cells[(i-1)*rf.Cols+j].Value) <= maxDiff+1e-12 {
				ok = true
			}
			if j > 0 && math.Abs(v-rf.Cells[i*rf.Cols+j-1].Value) <= maxDiff+1e-12 {
				ok = true
			}
			if !ok {
				t.Fatalf("cell (%d,%d) jumps more than %g from both neighbours", i, j, maxDiff)
			}
		}
	}
}

func TestResourceFieldZeroDifferenceIsFlat(t *testing.T) {
	rf := GenerateResourceField(rand.New(rand.NewSource(5)), Water, 200, 200, 40, 0)
	for i, c := range rf.Cells {
		if c.Value != rf.Cells[0].Value {
			t.Fatalf("cell %d = %f, want flat %f", i, c.Value, rf.Cells[0].Value)
		}
	}
}

func TestResourceFieldDeterministic(t *testing.T) {
	a := GenerateResourceField(rand.New(rand.NewSource(11)), Nutrients, 800, 600, 40, 0.2)
	b := GenerateResourceField(rand.New(rand.NewSource(11)), Nutrients, 800, 600, 40, 0.2)
	if !slices.Equal(a.Cells, b.Cells) {
		t.Fatal("same seed produced different fields")
	}
}

func TestResourceFieldQueryMatchesLinearScan(t *testing.T) {
	rf := GenerateResourceField(rand.New(rand.NewSource(8)), Nutrients, 800, 600, 40, 0.2)
	rng := rand.New(rand.NewSource(9))

	for n := 0; n < 200; n++ {
		x := rng.Float64()*900 - 50
		y := rng.Float64()*700 - 50
		r := rng.Float64() * 150

		var want []int
		for i, c := range rf.Cells {
			if math.Hypot(c.X-x, c.Y-y) < r {
				want = append(want, i)
			}
		}
		got := rf.Query(x, y, r, nil)
		if len(want) == 0 && len(got) == 0 {
			continue
		}
		if !slices.Equal(got, want) {
			t.Fatalf("Query(%f,%f,%f) = %v, want %v", x, y, r, got, want)
		}
	}

	all := make([]int, rf.Len())
	for i := range all {
		all[i] = i
	}
	for _, r := range []float64{1e6, 1e30, math.MaxFloat64, math.Inf(1)} {
		if got := rf.Query(400, 300, r, nil); !slices.Equal(got, all) {
			t.Errorf("Query(400,300,%g) returned %d cells, want all %d", r, len(got), len(all))
		}
	}
	if got := rf.Query(400, 300, math.NaN(), nil); len(got) != 0 {
		t.Errorf("Query with NaN radius = %v, want none", got)
	}
}

func TestResourceFieldQueryStrictRadius(t *testing.T) {
	rf := GenerateResourceField(rand.New(rand.NewSource(1)), Nutrients, 200, 200, 40, 0.2)

	// Cell (0,1) sits exactly 40 from (0,0); strictly-less excludes it
	got := rf.Query(0, 0, 40, nil)
	if !slices.Equal(got, []int{0}) {
		t.Errorf("Query(0,0,40) = %v, want [0]", got)
	}
}

func TestResourceFieldAverageEmpty(t *testing.T) {
	rf := GenerateResourceField(rand.New(rand.NewSource(1)), Nutrients, 200, 200, 40, 0.2)
	if avg := rf.Average(nil); avg != 0 {
		t.Errorf("Average(empty) = %f, want 0", avg)
	}
}

func TestResourceFieldDeplete(t *testing.T) {
	rf := GenerateResourceField(rand.New(rand.NewSource(1)), Nutrients, 200, 200, 40, 0.2)
	before := rf.Cells[3].Value

	rf.Deplete(3, 0.05)
	if got := rf.Cells[3].Value; math.Abs(got-(before-0.05)) > 1e-12 {
		t.Errorf("after deplete %f, want %f", got, before-0.05)
	}

	rf.Deplete(3, 10)
	if got := rf.Cells[3].Value; got != 0 {
		t.Errorf("over-depletion left %f, want 0", got)
	}
	if rf.Cells[3].Initial != before {
		t.Error("deplete changed the ceiling")
	}
}

func TestResourceFieldRestitute(t *testing.T) {
	rf := GenerateResourceField(rand.New(rand.NewSource(1)), Water, 400, 400, 40, 0.2)

	// Drain four cells around (100,100) by half
	cells := rf.Query(100, 100, 40, nil)
	if len(cells) != 4 {
		t.Fatalf("expected 4 cells near (100,100), got %d", len(cells))
	}
	for _, i := range cells {
		rf.Deplete(i, rf.Cells[i].Value/2)
	}

	rf.Restitute(100, 100, 40, 0.04)
	for _, i := range cells {
		c := rf.Cells[i]
		want := math.Min(c.Initial, c.Initial/2+0.01)
		if math.Abs(c.Value-want) > 1e-12 {
			t.Errorf("cell %d = %f, want %f", i, c.Value, want)
		}
	}

	// A huge return fills to the ceiling and no further
	rf.Restitute(100, 100, 40, 100)
	for _, i := range cells {
		if c := rf.Cells[i]; c.Value != c.Initial {
			t.Errorf("cell %d = %f, want ceiling %f", i, c.Value, c.Initial)
		}
	}
}

func TestResourceFieldRestituteAtCeiling(t *testing.T) {
	rf := GenerateResourceField(rand.New(rand.NewSource(2)), Nutrients, 400, 400, 40, 0.2)
	before := slices.Clone(rf.Cells)

	rf.Restitute(200, 200, 120, 5)
	if !slices.Equal(before, rf.Cells) {
		t.Error("restitution changed cells already at their ceiling")
	}
}

func TestResourceFieldRestituteNoOp(t *testing.T) {
	rf := GenerateResourceField(rand.New(rand.NewSource(2)), Nutrients, 400, 400, 40, 0.2)
	rf.Deplete(0, 0.05)
	before := slices.Clone(rf.Cells)

	rf.Restitute(0, 0, 40, 0)
	rf.Restitute(0, 0, 40, -1)
	rf.Restitute(-500, -500, 10, 1) // no cells in range
	if !slices.Equal(before, rf.Cells) {
		t.Error("no-op restitution changed cells")
	}
}
