package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pthm-cable/multiverse/regions"
)

const (
	metricsNamespace = "multiverse"
	cosmosSubsystem  = "cosmos"
	lifeSubsystem    = "life"
)

// Metrics exposes simulation state to Prometheus. Each instance owns its
// registry.
type Metrics struct {
	registry *prometheus.Registry

	// Age is the universe age in Gyr.
	Age prometheus.Gauge
	// Cycle is the current rebirth cycle.
	Cycle prometheus.Gauge
	// Phase is the ordinal of the current cosmic phase.
	Phase prometheus.Gauge
	// EntropyFraction is entropy relative to the collapse threshold.
	EntropyFraction prometheus.Gauge
	// Particles counts live particles.
	Particles prometheus.Gauge
	// Regions counts regions per level of detail.
	// Labels: lod
	Regions *prometheus.GaugeVec

	// Creatures counts simulated creatures.
	Creatures prometheus.Gauge
	// LedgerSize counts souls in the ledger.
	LedgerSize prometheus.Gauge
	// BirthsTotal and DeathsTotal count creature births and deaths.
	BirthsTotal prometheus.Counter
	DeathsTotal prometheus.Counter

	// EventsTotal counts cosmic events.
	// Labels: type
	EventsTotal *prometheus.CounterVec
	// SolveSeconds measures gravity solve latency.
	SolveSeconds prometheus.Histogram
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Age: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: cosmosSubsystem,
			Name:      "age_gyr",
			Help:      "Universe age in Gyr",
		}),
		Cycle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: cosmosSubsystem,
			Name:      "cycle",
			Help:      "Current rebirth cycle",
		}),
		Phase: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: cosmosSubsystem,
			Name:      "phase",
			Help:      "Ordinal of the current cosmic phase",
		}),
		EntropyFraction: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: cosmosSubsystem,
			Name:      "entropy_fraction",
			Help:      "Entropy as a fraction of the collapse threshold",
		}),
		Particles: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: cosmosSubsystem,
			Name:      "particles",
			Help:      "Live particles",
		}),
		Regions: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: cosmosSubsystem,
			Name:      "regions",
			Help:      "Regions per level of detail",
		}, []string{"lod"}),
		Creatures: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: lifeSubsystem,
			Name:      "creatures",
			Help:      "Simulated creatures",
		}),
		LedgerSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: lifeSubsystem,
			Name:      "ledger_souls",
			Help:      "Souls in the ledger",
		}),
		BirthsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: lifeSubsystem,
			Name:      "births_total",
			Help:      "Total creature births",
		}),
		DeathsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: lifeSubsystem,
			Name:      "deaths_total",
			Help:      "Total creature deaths",
		}),
		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Total cosmic events by type",
		}, []string{"type"}),
		SolveSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: cosmosSubsystem,
			Name:      "solve_seconds",
			Help:      "Gravity solve latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
}

// ObserveWindow updates the gauges and counters from a flushed window.
func (m *Metrics) ObserveWindow(s WindowStats) {
	if m == nil {
		return
	}
	m.Age.Set(s.Age)
	m.Cycle.Set(float64(s.Cycle))
	m.Phase.Set(float64(s.PhaseIndex))
	m.EntropyFraction.Set(s.EntropyFraction)
	m.Particles.Set(float64(s.Alive))
	for lod, n := range s.Levels() {
		m.Regions.WithLabelValues(regions.LOD(lod).String()).Set(float64(n))
	}
	m.Creatures.Set(float64(s.Creatures))
	m.LedgerSize.Set(float64(s.LedgerSize))
	m.BirthsTotal.Add(float64(s.Births))
	m.DeathsTotal.Add(float64(s.Deaths))
}

// RecordEvent counts an event.
func (m *Metrics) RecordEvent(e Event) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(string(e.Type)).Inc()
}

// ObserveSolve records the duration of one gravity solve.
func (m *Metrics) ObserveSolve(d time.Duration) {
	if m == nil {
		return
	}
	m.SolveSeconds.Observe(d.Seconds())
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
