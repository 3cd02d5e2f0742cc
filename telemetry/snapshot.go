package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pthm-cable/meadow/sim"
	"github.com/pthm-cable/meadow/systems"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the full state of a meadow at one tick for offline inspection.
type Snapshot struct {
	Version int   `json:"version"`
	Seed    int64 `json:"seed"`

	FieldWidth  float64 `json:"field_width"`
	FieldHeight float64 `json:"field_height"`
	GridSize    float64 `json:"grid_size"`
	Cols        int     `json:"cols"`
	Rows        int     `json:"rows"`

	Tick int32 `json:"tick"`

	// Row-major cell values
	Nutrients []float64 `json:"nutrients"`
	Water     []float64 `json:"water"`

	Shadows []ShadowState `json:"shadows"`
	Plants  []PlantState  `json:"plants"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// ShadowState is one occluder; Owner is 0 for terrain shadows.
type ShadowState struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Radius  float64 `json:"radius"`
	Opacity float64 `json:"opacity"`
	Owner   uint32  `json:"owner,omitempty"`
}

// PlantState holds one plant's state.
type PlantState struct {
	ID      uint32 `json:"id"`
	Species string `json:"species"`

	X float64 `json:"x"`
	Y float64 `json:"y"`

	Radius float64 `json:"radius"`
	Height float64 `json:"height"`
	Health float64 `json:"health"`
	Age    int32   `json:"age"`

	StarvedSunlight  int32 `json:"starved_sunlight,omitempty"`
	StarvedNutrients int32 `json:"starved_nutrients,omitempty"`
	StarvedWater     int32 `json:"starved_water,omitempty"`
}

// TakeSnapshot captures the engine's current state.
func TakeSnapshot(e *sim.Engine, seed int64, bm *Bookmark) *Snapshot {
	env := e.Environment()
	s := &Snapshot{
		Version:     SnapshotVersion,
		Seed:        seed,
		FieldWidth:  env.Width,
		FieldHeight: env.Height,
		GridSize:    env.Nutrients.GridSize,
		Cols:        env.Nutrients.Cols,
		Rows:        env.Nutrients.Rows,
		Tick:        e.CurrentTick(),
		Nutrients:   cellValues(env.Nutrients),
		Water:       cellValues(env.Water),
		Bookmark:    bm,
	}

	for _, sh := range e.Shadows() {
		s.Shadows = append(s.Shadows, ShadowState{
			X: sh.X, Y: sh.Y, Radius: sh.Radius, Opacity: sh.Opacity, Owner: sh.Owner,
		})
	}

	species := e.Species()
	for _, ps := range e.Plants() {
		p := ps.Plant
		s.Plants = append(s.Plants, PlantState{
			ID:               p.ID,
			Species:          species.Get(p.Species).Name,
			X:                ps.Position.X,
			Y:                ps.Position.Y,
			Radius:           p.Radius,
			Height:           p.Height,
			Health:           p.Health,
			Age:              p.Age,
			StarvedSunlight:  p.Starvation.Sunlight,
			StarvedNutrients: p.Starvation.Nutrients,
			StarvedWater:     p.Starvation.Water,
		})
	}

	return s
}

func cellValues(rf *systems.ResourceField) []float64 {
	out := make([]float64, len(rf.Cells))
	for i, c := range rf.Cells {
		out[i] = c.Value
	}
	return out
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}
	path := filepath.Join(dir, name+".json")

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}

	return &snapshot, nil
}
