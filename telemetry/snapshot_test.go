package telemetry

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/meadow/config"
	"github.com/pthm-cable/meadow/sim"
)

func TestTakeSnapshot(t *testing.T) {
	e, err := sim.New(config.Default(), rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatal(err)
	}
	e.Seed(30)
	for i := 0; i < 20; i++ {
		e.Tick(1.1)
	}

	s := TakeSnapshot(e, 3, nil)
	if s.Tick != 20 || s.Seed != 3 || s.Version != SnapshotVersion {
		t.Errorf("header = tick %d seed %d version %d", s.Tick, s.Seed, s.Version)
	}
	if len(s.Nutrients) != s.Cols*s.Rows || len(s.Water) != s.Cols*s.Rows {
		t.Errorf("cells %d/%d, want %d", len(s.Nutrients), len(s.Water), s.Cols*s.Rows)
	}
	if len(s.Plants) != e.Population() {
		t.Errorf("plants = %d, want %d", len(s.Plants), e.Population())
	}
	if len(s.Shadows) != len(e.Shadows()) {
		t.Errorf("shadows = %d, want %d", len(s.Shadows), len(e.Shadows()))
	}
	for i := 1; i < len(s.Plants); i++ {
		if s.Plants[i-1].ID >= s.Plants[i].ID {
			t.Fatalf("plants not ordered by id at %d", i)
		}
	}
	for _, p := range s.Plants {
		if _, ok := e.Species().Lookup(p.Species); !ok {
			t.Errorf("plant %d has unknown species %q", p.ID, p.Species)
		}
	}
}

func TestSaveLoadSnapshot(t *testing.T) {
	dir := t.TempDir()

	original := &Snapshot{
		Version:   SnapshotVersion,
		Seed:      12345,
		Cols:      2,
		Rows:      1,
		Tick:      500,
		Nutrients: []float64{0.5, 0.25},
		Water:     []float64{1, 0.75},
		Shadows:   []ShadowState{{X: 10, Y: 20, Radius: 30, Opacity: 1}},
		Plants: []PlantState{
			{ID: 1, Species: "sunflower", X: 100, Y: 100, Radius: 9, Height: 16, Health: 100, Age: 42},
			{ID: 7, Species: "violet", X: 300, Y: 80, Radius: 5, Height: 6, Health: 97.5, StarvedSunlight: 5},
		},
		Bookmark: &Bookmark{Type: BookmarkPopulationCrash, Tick: 500, Description: "crash"},
	}

	path, err := SaveSnapshot(original, dir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if want := filepath.Join(dir, "snapshot_500_population_crash.json"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded.Tick != 500 || loaded.Seed != 12345 {
		t.Errorf("header mismatch: %+v", loaded)
	}
	if len(loaded.Plants) != 2 || loaded.Plants[1].StarvedSunlight != 5 || loaded.Plants[1].Health != 97.5 {
		t.Errorf("plants mismatch: %+v", loaded.Plants)
	}
	if loaded.Bookmark == nil || loaded.Bookmark.Type != BookmarkPopulationCrash {
		t.Errorf("bookmark mismatch: %+v", loaded.Bookmark)
	}
}

func TestLoadSnapshotRejectsOtherVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.json")
	if err := os.WriteFile(path, []byte(`{"version": 99, "tick": 1}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(path); err == nil {
		t.Error("expected version error")
	}
}
