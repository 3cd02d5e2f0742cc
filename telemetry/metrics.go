package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pthm-cable/meadow/components"
)

// Metrics bundles Prometheus gauges and counters fed from stats windows.
type Metrics struct {
	gatherer prometheus.Gatherer

	Tick       prometheus.Gauge
	Population *prometheus.GaugeVec   // species
	Births     prometheus.Counter
	Deaths     *prometheus.CounterVec // reason
	Exhausted  prometheus.Counter
	HealthMean prometheus.Gauge
	HeightMean prometheus.Gauge

	ResourceMean     *prometheus.GaugeVec // resource
	ResourceConsumed *prometheus.GaugeVec // resource, cumulative
	ResourceReturned *prometheus.GaugeVec // resource, cumulative

	TickSeconds prometheus.Gauge
}

// NewMetrics registers meadow metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{gatherer: gatherer}
	var err error

	gauges := []struct {
		dst  *prometheus.Gauge
		name string
		help string
	}{
		{&m.Tick, "meadow_tick", "Last completed simulation tick."},
		{&m.HealthMean, "meadow_health_mean", "Mean health of living plants."},
		{&m.HeightMean, "meadow_height_mean", "Mean height of living plants."},
		{&m.TickSeconds, "meadow_tick_seconds", "Average wall time per tick over the last window."},
	}
	for _, g := range gauges {
		*g.dst, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: g.name, Help: g.help}), g.name)
		if err != nil {
			return nil, err
		}
	}

	counters := []struct {
		dst  *prometheus.Counter
		name string
		help string
	}{
		{&m.Births, "meadow_births_total", "Offspring placed in the field."},
		{&m.Exhausted, "meadow_exhausted_deaths_total", "Deaths where health ran out before a starvation timer expired."},
	}
	for _, c := range counters {
		*c.dst, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{Name: c.name, Help: c.help}), c.name)
		if err != nil {
			return nil, err
		}
	}

	m.Population, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "meadow_population",
		Help: "Living plants, labeled by species.",
	}, []string{"species"}), "meadow_population")
	if err != nil {
		return nil, err
	}

	m.Deaths, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meadow_deaths_total",
		Help: "Plant deaths, labeled by reason.",
	}, []string{"reason"}), "meadow_deaths_total")
	if err != nil {
		return nil, err
	}

	resourceVecs := []struct {
		dst  **prometheus.GaugeVec
		name string
		help string
	}{
		{&m.ResourceMean, "meadow_resource_mean", "Mean cell value over the field, labeled by resource."},
		{&m.ResourceConsumed, "meadow_resource_consumed", "Cumulative amount absorbed by plants, labeled by resource."},
		{&m.ResourceReturned, "meadow_resource_returned", "Cumulative amount returned by dead plants, labeled by resource."},
	}
	for _, v := range resourceVecs {
		*v.dst, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: v.name,
			Help: v.help,
		}, []string{"resource"}), v.name)
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Observe updates every metric from a flushed window.
func (m *Metrics) Observe(s WindowStats) {
	if m == nil {
		return
	}
	m.Tick.Set(float64(s.WindowEndTick))
	for _, sp := range s.Species {
		m.Population.WithLabelValues(sp.Name).Set(float64(sp.Count))
	}

	m.Births.Add(float64(s.Births))
	for _, r := range components.CountedReasons {
		m.Deaths.WithLabelValues(r.String()).Add(float64(s.DeathsBy(r)))
	}
	m.Exhausted.Add(float64(s.DeathsExhausted))

	m.HealthMean.Set(s.HealthMean)
	m.HeightMean.Set(s.HeightMean)

	m.ResourceMean.WithLabelValues("nutrients").Set(s.AvgNutrients)
	m.ResourceMean.WithLabelValues("water").Set(s.AvgWater)
	m.ResourceConsumed.WithLabelValues("nutrients").Set(s.NutrientsConsumed)
	m.ResourceConsumed.WithLabelValues("water").Set(s.WaterConsumed)
	m.ResourceReturned.WithLabelValues("nutrients").Set(s.NutrientsReturned)
	m.ResourceReturned.WithLabelValues("water").Set(s.WaterReturned)
}

// ObservePerf records tick timing.
func (m *Metrics) ObservePerf(p PerfStats) {
	if m == nil {
		return
	}
	m.TickSeconds.Set(p.AvgTickDuration.Seconds())
}

// Handler exposes a ready-to-use /metrics handler.
func (m *Metrics) Handler() http.Handler {
	gatherer := m.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
