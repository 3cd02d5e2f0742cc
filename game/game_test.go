package game

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pthm-cable/meadow/config"
	"github.com/pthm-cable/meadow/telemetry"
)

func runGame(t *testing.T, opts Options, ticks int) *Game {
	t.Helper()
	g, err := NewGameWithOptions(opts)
	if err != nil {
		t.Fatalf("NewGameWithOptions: %v", err)
	}
	for g.Tick() < int32(ticks) {
		g.UpdateHeadless()
	}
	if err := g.Unload(); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	return g
}

func TestGameSeedsInitialPopulation(t *testing.T) {
	cfg := config.Default()
	g, err := NewGameWithOptions(Options{Seed: 1, Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	defer g.Unload()

	if g.Population() != cfg.Population.Initial {
		t.Errorf("population = %d, want %d", g.Population(), cfg.Population.Initial)
	}
	if g.Tick() != 0 || g.Seed() != 1 {
		t.Errorf("tick %d seed %d", g.Tick(), g.Seed())
	}
}

func TestGameRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Field.GridSize = 0
	if _, err := NewGameWithOptions(Options{Config: cfg}); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestGameFlushesWindows(t *testing.T) {
	var windows []telemetry.WindowStats
	runGame(t, Options{
		Seed:        5,
		Config:      config.Default(),
		StatsWindow: 50,
		StatsCallback: func(s telemetry.WindowStats) {
			windows = append(windows, s)
		},
	}, 160)

	if len(windows) != 3 {
		t.Fatalf("got %d windows, want 3", len(windows))
	}
	for i, w := range windows {
		if want := int32(50 * (i + 1)); w.WindowEndTick != want {
			t.Errorf("window %d ends at %d, want %d", i, w.WindowEndTick, want)
		}
		if w.Species.Get("sunflower")+w.Species.Get("violet") != w.Population {
			t.Errorf("window %d species counts do not sum to population %d", i, w.Population)
		}
	}
}

func TestGameDeterministic(t *testing.T) {
	collect := func() []telemetry.WindowStats {
		var windows []telemetry.WindowStats
		runGame(t, Options{
			Seed:          99,
			Config:        config.Default(),
			StatsWindow:   25,
			StatsCallback: func(s telemetry.WindowStats) { windows = append(windows, s) },
		}, 100)
		return windows
	}

	a, b := collect(), collect()
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed produced different telemetry")
	}
}

func TestGameWritesOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	g := runGame(t, Options{
		Seed:        3,
		Config:      config.Default(),
		StatsWindow: 20,
		OutputDir:   dir,
	}, 40)

	for _, name := range []string{"config.yaml", "telemetry.csv", "perf.csv", "deaths.csv", "bookmarks.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("telemetry.csv is empty")
	}
	if g.Tick() != 40 {
		t.Errorf("tick = %d, want 40", g.Tick())
	}
}
