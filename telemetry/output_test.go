package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/meadow/components"
	"github.com/pthm-cable/meadow/config"
	"github.com/pthm-cable/meadow/sim"
)

func TestNilOutputManagerIsNoop(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v; want nil, nil", om, err)
	}
	if err := om.WriteTelemetry(WindowStats{}); err != nil {
		t.Error(err)
	}
	if err := om.WriteDeaths([]sim.DeathRecord{{ID: 1}}); err != nil {
		t.Error(err)
	}
	if err := om.WriteConfig(config.Default()); err != nil {
		t.Error(err)
	}
	if om.Dir() != "" {
		t.Error("nil manager reported a directory")
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
}

func TestOutputManagerTelemetryHeaderOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	for _, tick := range []int32{100, 200} {
		if err := om.WriteTelemetry(meadow(tick, 3, 4)); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "window_end,population,species,") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "200,7,sunflower:3|violet:4,") {
		t.Errorf("unexpected second row %q", lines[2])
	}
}

func TestOutputManagerDeaths(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := om.WriteDeaths(nil); err != nil {
		t.Fatal(err)
	}
	batches := [][]sim.DeathRecord{
		{{Tick: 101, ID: 1, Species: "sunflower", Reason: components.ReasonWater, Age: 101}},
		{
			{Tick: 340, ID: 2, Species: "violet", Reason: components.ReasonAge, Offspring: 2, NutrientsReturned: 0.75},
			{Tick: 340, ID: 5, Species: "violet", Reason: components.ReasonSunlight, Exhausted: true},
		},
	}
	for _, b := range batches {
		if err := om.WriteDeaths(b); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dir, "deaths.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var rows []DeathRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		t.Fatalf("reading deaths.csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0].Reason != "water" || rows[0].Age != 101 {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].Offspring != 2 || rows[1].NutrientsReturned != 0.75 {
		t.Errorf("row 1 = %+v", rows[1])
	}
	if !rows[2].Exhausted || rows[2].Reason != "sunlight" {
		t.Errorf("row 2 = %+v", rows[2])
	}
}

func TestOutputManagerConfigAndBookmarks(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := om.WriteConfig(config.Default()); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteBookmark(Bookmark{Type: BookmarkSpeciesExtinct, Tick: 900, Description: "violet died out"}); err != nil {
		t.Fatal(err)
	}
	if err := om.WritePerf(PerfStats{}, 900); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("reloading written config: %v", err)
	}
	if len(cfg.Species) != len(config.Default().Species) {
		t.Errorf("reloaded %d species, want %d", len(cfg.Species), len(config.Default().Species))
	}

	data, err := os.ReadFile(filepath.Join(dir, "bookmarks.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "species_extinct,900,violet died out"; !strings.Contains(string(data), want) {
		t.Errorf("bookmarks.csv missing %q:\n%s", want, data)
	}
}
