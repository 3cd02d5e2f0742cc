package telemetry

import (
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/meadow/components"
)

// SpeciesCount is the living population of one species.
type SpeciesCount struct {
	Name  string
	Count int
}

// SpeciesCounts is written to CSV as "name:count" pairs joined by "|".
type SpeciesCounts []SpeciesCount

// MarshalCSV implements gocsv.TypeMarshaller.
func (sc SpeciesCounts) MarshalCSV() (string, error) {
	var b strings.Builder
	for i, s := range sc {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(s.Name)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(s.Count))
	}
	return b.String(), nil
}

// Get returns the count for the named species.
func (sc SpeciesCounts) Get(name string) int {
	for _, s := range sc {
		if s.Name == name {
			return s.Count
		}
	}
	return 0
}

// WindowStats holds aggregated statistics for a window of ticks.
type WindowStats struct {
	WindowStartTick int32 `csv:"-"`
	WindowEndTick   int32 `csv:"window_end"`

	// Population at window end
	Population int           `csv:"population"`
	Species    SpeciesCounts `csv:"species"`

	// Events during window
	Births          int     `csv:"births"`
	Deaths          int     `csv:"deaths"`
	DeathsSunlight  int     `csv:"deaths_sunlight"`
	DeathsNutrients int     `csv:"deaths_nutrients"`
	DeathsWater     int     `csv:"deaths_water"`
	DeathsAge       int     `csv:"deaths_age"`
	DeathsExhausted int     `csv:"deaths_exhausted"` // Subset of the above where health ran out first
	MeanAgeAtDeath  float64 `csv:"mean_age_at_death"`

	// Distributions over living plants at window end
	HealthMean float64 `csv:"health_mean"`
	HealthStd  float64 `csv:"health_std"`
	HealthP10  float64 `csv:"health_p10"`
	HealthP50  float64 `csv:"health_p50"`
	HealthP90  float64 `csv:"health_p90"`

	HeightMean float64 `csv:"height_mean"`
	HeightStd  float64 `csv:"height_std"`
	HeightP10  float64 `csv:"height_p10"`
	HeightP50  float64 `csv:"height_p50"`
	HeightP90  float64 `csv:"height_p90"`

	// Environment at window end
	AvgNutrients float64 `csv:"avg_nutrients"`
	AvgWater     float64 `csv:"avg_water"`

	// Cumulative resource flows
	NutrientsConsumed float64 `csv:"nutrients_consumed"`
	WaterConsumed     float64 `csv:"water_consumed"`
	NutrientsReturned float64 `csv:"nutrients_returned"`
	WaterReturned     float64 `csv:"water_returned"`
}

// DeathsBy returns the window's death count for a histogram reason.
func (s WindowStats) DeathsBy(r components.DeathReason) int {
	switch r {
	case components.ReasonSunlight:
		return s.DeathsSunlight
	case components.ReasonNutrients:
		return s.DeathsNutrients
	case components.ReasonWater:
		return s.DeathsWater
	case components.ReasonAge:
		return s.DeathsAge
	}
	return 0
}

// Distribution summarizes a sample.
type Distribution struct {
	Mean, Std     float64
	P10, P50, P90 float64
}

// ComputeDistribution returns mean, sample standard deviation and empirical
// quantiles of values. An empty sample yields zeros. values is not modified.
func ComputeDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var d Distribution
	if len(sorted) == 1 {
		d.Mean = sorted[0]
	} else {
		d.Mean, d.Std = stat.MeanStdDev(sorted, nil)
	}
	d.P10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	d.P50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	d.P90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	return d
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	species := make([]slog.Attr, 0, len(s.Species))
	for _, sp := range s.Species {
		species = append(species, slog.Int(sp.Name, sp.Count))
	}

	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Int("population", s.Population),
		slog.Attr{Key: "species", Value: slog.GroupValue(species...)},
		slog.Int("births", s.Births),
		slog.Int("deaths", s.Deaths),
		slog.Int("deaths_sunlight", s.DeathsSunlight),
		slog.Int("deaths_nutrients", s.DeathsNutrients),
		slog.Int("deaths_water", s.DeathsWater),
		slog.Int("deaths_age", s.DeathsAge),
		slog.Int("deaths_exhausted", s.DeathsExhausted),
		slog.Float64("mean_age_at_death", s.MeanAgeAtDeath),
		slog.Float64("health_mean", s.HealthMean),
		slog.Float64("health_p50", s.HealthP50),
		slog.Float64("height_mean", s.HeightMean),
		slog.Float64("height_p90", s.HeightP90),
		slog.Float64("avg_nutrients", s.AvgNutrients),
		slog.Float64("avg_water", s.AvgWater),
		slog.Float64("nutrients_returned", s.NutrientsReturned),
		slog.Float64("water_returned", s.WaterReturned),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}
