package telemetry

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/multiverse/components"
	"github.com/pthm-cable/multiverse/cosmology"
	"github.com/pthm-cable/multiverse/regions"
	"github.com/pthm-cable/multiverse/systems"
)

// Collector accumulates events within windows of ticks and produces
// WindowStats.
type Collector struct {
	windowTicks uint64

	// Current window tracking
	windowStartTick uint64

	// Event counters for current window
	solverSteps int
	births      int
	deaths      int
}

// NewCollector creates a new stats collector flushing every windowTicks ticks.
func NewCollector(windowTicks int) *Collector {
	return &Collector{windowTicks: uint64(max(windowTicks, 1))}
}

// RecordSolve records one gravity solver invocation.
func (c *Collector) RecordSolve() {
	c.solverSteps++
}

// RecordBirths records creature births.
func (c *Collector) RecordBirths(n int) {
	c.births += n
}

// RecordDeaths records creature deaths.
func (c *Collector) RecordDeaths(n int) {
	c.deaths += n
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick uint64) bool {
	return currentTick-c.windowStartTick >= c.windowTicks
}

// Sample is the instantaneous state the caller provides at flush time.
type Sample struct {
	Clock         cosmology.Clock
	MaxEntropy    float64
	Particles     []components.Particle
	Levels        [regions.NumLODs]int
	LoadedStars   int
	LoadedPlanets int
	LifePlanets   int
	Civilizations int
	Creatures     int
	Lineages      int
	LedgerSize    int
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick uint64, s Sample) WindowStats {
	var speeds []float64
	var dark int
	for i := range s.Particles {
		p := &s.Particles[i]
		if !p.Alive() {
			continue
		}
		speeds = append(speeds, r3.Norm(p.Vel))
		if p.Kind.IsDark() {
			dark++
		}
	}
	speed := Distribute(speeds)

	var fraction float64
	if s.MaxEntropy > 0 {
		fraction = s.Clock.Entropy / s.MaxEntropy
	}

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		Cycle:           s.Clock.Cycle,
		Age:             s.Clock.Age,
		Phase:           s.Clock.Phase.String(),
		PhaseIndex:      int(s.Clock.Phase),
		ScaleFactor:     s.Clock.ScaleFactor,
		Temperature:     s.Clock.Temperature,
		Entropy:         s.Clock.Entropy,
		EntropyFraction: fraction,

		Alive:      len(speeds),
		DarkMatter: dark,
		SpeedMean:  speed.Mean,
		SpeedP10:   speed.P10,
		SpeedP50:   speed.P50,
		SpeedP90:   speed.P90,
		Momentum:   r3.Norm(systems.Momentum(s.Particles)),

		SolverSteps: c.solverSteps,

		Statistical: s.Levels[regions.LODStatistical],
		Galactic:    s.Levels[regions.LODGalactic],
		Stellar:     s.Levels[regions.LODStellar],
		Planetary:   s.Levels[regions.LODPlanetary],
		Biosphere:   s.Levels[regions.LODBiosphere],

		LoadedStars:   s.LoadedStars,
		LoadedPlanets: s.LoadedPlanets,
		LifePlanets:   s.LifePlanets,
		Civilizations: s.Civilizations,

		Creatures: s.Creatures,
		Births:    c.births,
		Deaths:    c.deaths,
		Lineages:  s.Lineages,

		LedgerSize: s.LedgerSize,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.solverSteps = 0
	c.births = 0
	c.deaths = 0

	return stats
}

// WindowTicks returns the number of ticks per window.
func (c *Collector) WindowTicks() uint64 {
	return c.windowTicks
}

// Reset starts a new window at tick without emitting stats.
func (c *Collector) Reset(tick uint64) {
	c.windowStartTick = tick
	c.solverSteps = 0
	c.births = 0
	c.deaths = 0
}
