package telemetry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/meadow/config"
	"github.com/pthm-cable/meadow/sim"
)

// DeathRow is one line of deaths.csv.
type DeathRow struct {
	Tick              int32   `csv:"tick"`
	ID                uint32  `csv:"id"`
	Species           string  `csv:"species"`
	X                 float64 `csv:"x"`
	Y                 float64 `csv:"y"`
	Age               int32   `csv:"age"`
	Radius            float64 `csv:"radius"`
	Height            float64 `csv:"height"`
	Reason            string  `csv:"reason"`
	Exhausted         bool    `csv:"exhausted"`
	NutrientsReturned float64 `csv:"nutrients_returned"`
	WaterReturned     float64 `csv:"water_returned"`
	Offspring         int     `csv:"offspring"`
}

// NewDeathRow flattens a death record for CSV output.
func NewDeathRow(d sim.DeathRecord) DeathRow {
	return DeathRow{
		Tick:              d.Tick,
		ID:                d.ID,
		Species:           d.Species,
		X:                 d.X,
		Y:                 d.Y,
		Age:               d.Age,
		Radius:            d.Radius,
		Height:            d.Height,
		Reason:            d.Reason.String(),
		Exhausted:         d.Exhausted,
		NutrientsReturned: d.NutrientsReturned,
		WaterReturned:     d.WaterReturned,
		Offspring:         d.Offspring,
	}
}

// csvFile is an append-only CSV file that writes its header once.
type csvFile struct {
	f             *os.File
	headerWritten bool
}

func createCSV(dir, name string) (*csvFile, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return &csvFile{f: f}, nil
}

// write appends records, which must be a slice of csv-tagged structs.
func (c *csvFile) write(records any) error {
	if !c.headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, c.f); err != nil {
			return err
		}
		c.headerWritten = true
		return nil
	}
	// Subsequent writes skip headers
	return gocsv.MarshalWithoutHeaders(records, c.f)
}

// OutputManager handles structured experiment output with CSV logging.
type OutputManager struct {
	dir       string
	telemetry *csvFile
	deaths    *csvFile
	perf      *csvFile
	bookmarks *csvFile
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	files := []struct {
		dst  **csvFile
		name string
	}{
		{&om.telemetry, "telemetry.csv"},
		{&om.deaths, "deaths.csv"},
		{&om.perf, "perf.csv"},
		{&om.bookmarks, "bookmarks.csv"},
	}
	for _, spec := range files {
		f, err := createCSV(dir, spec.name)
		if err != nil {
			om.Close()
			return nil, err
		}
		*spec.dst = f
	}

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteTelemetry writes a window stats record to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats WindowStats) error {
	if om == nil {
		return nil
	}
	if err := om.telemetry.write([]WindowStats{stats}); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// WriteDeaths appends a tick's deaths to deaths.csv.
func (om *OutputManager) WriteDeaths(deaths []sim.DeathRecord) error {
	if om == nil || len(deaths) == 0 {
		return nil
	}
	rows := make([]DeathRow, len(deaths))
	for i, d := range deaths {
		rows[i] = NewDeathRow(d)
	}
	if err := om.deaths.write(rows); err != nil {
		return fmt.Errorf("writing deaths: %w", err)
	}
	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int32) error {
	if om == nil {
		return nil
	}
	if err := om.perf.write([]PerfStatsCSV{stats.ToCSV(windowEnd)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteBookmark writes a bookmark record to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	if err := om.bookmarks.write([]Bookmark{b}); err != nil {
		return fmt.Errorf("writing bookmark: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var errs []error
	for _, c := range []*csvFile{om.telemetry, om.deaths, om.perf, om.bookmarks} {
		if c != nil {
			errs = append(errs, c.f.Close())
		}
	}
	return errors.Join(errs...)
}
