// Package game is the simulation root. A Sim owns the universe clock, the
// particle buffer, the region grid, the creature population and the soul
// ledger, and advances them in a fixed order once per tick.
package game

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pthm-cable/multiverse/biosphere"
	"github.com/pthm-cable/multiverse/components"
	"github.com/pthm-cable/multiverse/config"
	"github.com/pthm-cable/multiverse/cosmology"
	"github.com/pthm-cable/multiverse/procgen"
	"github.com/pthm-cable/multiverse/regions"
	"github.com/pthm-cable/multiverse/rng"
	"github.com/pthm-cable/multiverse/soul"
	"github.com/pthm-cable/multiverse/systems"
	"github.com/pthm-cable/multiverse/telemetry"
)

// Solver throttle: the gravity solve runs every N ticks, N chosen by time
// scale.
const (
	solveEveryExtreme = 120 // time scale >= 1e6
	solveEveryFast    = 30  // >= 1e4
	solveEveryMedium  = 5   // >= 100
	solveEverySlow    = 3
)

// SolveInterval returns how many ticks pass between gravity solves at a
// time scale.
func SolveInterval(timeScale float64) uint64 {
	switch {
	case timeScale >= 1e6:
		return solveEveryExtreme
	case timeScale >= 1e4:
		return solveEveryFast
	case timeScale >= 100:
		return solveEveryMedium
	}
	return solveEverySlow
}

// CycleSeed returns the seed regions and particles derive from in a cycle.
func CycleSeed(universe uint64, cycle uint32) uint64 {
	return rng.Derive(universe, "cycle", int(cycle))
}

// Sim holds the complete simulation state.
type Sim struct {
	cfg  *config.Config
	opts Options

	// Universe state
	tick      uint64
	timeScale float64
	unsolved  float64 // Gyr advanced since the last solve
	clock     cosmology.Clock
	particles []components.Particle
	observer  regions.Observer

	// Subsystems
	backend    systems.Backend
	params     systems.StepParams
	regions    *regions.Manager
	ledger     *soul.Ledger
	tracker    *soul.Tracker
	population *biosphere.Population

	// Population totals at the last sample, for per-window deltas
	lastBirths int
	lastDeaths int

	// Telemetry
	collector        *telemetry.Collector
	profiler         *telemetry.Profiler
	bookmarkDetector *telemetry.BookmarkDetector
	events           *telemetry.EventLog
	outputManager    *telemetry.OutputManager
	metrics          *telemetry.Metrics
}

// New creates a simulation at the Big Bang of the first cycle. cfg must be
// validated; New reports configuration errors before any state exists.
func New(cfg *config.Config, opts Options) (*Sim, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.TimeScale == 0 {
		opts.TimeScale = 1
	}
	if opts.TimeScale < 0 {
		return nil, fmt.Errorf("%w: time scale %g", config.ErrInvalid, opts.TimeScale)
	}

	backend := opts.Backend
	if backend == nil {
		var err error
		if backend, err = systems.NewBackend(cfg); err != nil {
			return nil, err
		}
	}

	ledger := opts.Ledger
	if ledger == nil {
		ledger = soul.NewLedger()
	}

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		if opts.Backend == nil {
			backend.Close()
		}
		return nil, fmt.Errorf("creating output manager: %w", err)
	}
	if err := om.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config", "error", err)
	}

	tracker := soul.NewTracker()
	s := &Sim{
		cfg:              cfg,
		opts:             opts,
		timeScale:        opts.TimeScale,
		clock:            cosmology.NewClock(),
		backend:          backend,
		params:           systems.ParamsFromConfig(cfg),
		ledger:           ledger,
		tracker:          tracker,
		population:       biosphere.New(cfg, tracker),
		collector:        telemetry.NewCollector(cfg.Telemetry.StatsWindow),
		profiler:         telemetry.NewProfiler(cfg.Telemetry.ProfileWindow),
		bookmarkDetector: telemetry.NewBookmarkDetector(10),
		events:           telemetry.NewEventLog(cfg.Telemetry.EventHistorySize),
		outputManager:    om,
		metrics:          opts.Metrics,
	}

	seed := CycleSeed(cfg.Derived.Seed, s.clock.Cycle)
	s.regions = regions.NewManager(cfg, seed, ledger)
	if err := s.regions.Bootstrap(context.Background(), 0); err != nil {
		s.Close()
		return nil, fmt.Errorf("bootstrapping regions: %w", err)
	}
	s.particles = systems.Spawn(cfg, seed)

	slog.Info("universe created",
		"seed", cfg.Universe.Seed,
		"particles", len(s.particles),
		"backend", backend.Name(),
		"time_scale", s.timeScale,
	)
	return s, nil
}

// Close stops background work and flushes output. The ledger is written to
// the output directory.
func (s *Sim) Close() error {
	s.regions.Close()
	if s.opts.Backend == nil {
		s.backend.Close()
	}
	if err := s.outputManager.WriteLedger(s.ledger); err != nil {
		slog.Error("failed to write soul ledger", "error", err)
	}
	return s.outputManager.Close()
}

// Ticks returns the number of ticks run.
func (s *Sim) Ticks() uint64 {
	return s.tick
}

// Clock returns a copy of the universe clock.
func (s *Sim) Clock() cosmology.Clock {
	return s.clock
}

// Particles returns the particle buffer. Callers must not retain it across
// ticks.
func (s *Sim) Particles() []components.Particle {
	return s.particles
}

// Regions returns the region manager.
func (s *Sim) Regions() *regions.Manager {
	return s.regions
}

// Ledger returns the soul ledger.
func (s *Sim) Ledger() *soul.Ledger {
	return s.ledger
}

// Tracker returns the current cycle's lineage tracker.
func (s *Sim) Tracker() *soul.Tracker {
	return s.tracker
}

// Population returns the creature population.
func (s *Sim) Population() *biosphere.Population {
	return s.population
}

// Observer returns the observer consumed by the last tick.
func (s *Sim) Observer() regions.Observer {
	return s.observer
}

// TimeScale returns the current time scale.
func (s *Sim) TimeScale() float64 {
	return s.timeScale
}

// SetTimeScale changes the time scale. Non-positive values are ignored.
func (s *Sim) SetTimeScale(scale float64) {
	if scale > 0 {
		s.timeScale = scale
	}
}

// Events returns the most recent events, oldest first.
func (s *Sim) Events() []telemetry.Event {
	return s.events.Recent()
}

// Planet returns a loaded planet.
func (s *Sim) Planet(ref components.PlanetRef) (procgen.Planet, bool) {
	return s.regions.Planet(ref)
}

// Ensure synchronously brings a region to at least lod and applies the
// resulting change as a tick would.
func (s *Sim) Ensure(ctx context.Context, c regions.Coord, lod regions.LOD) error {
	ch, err := s.regions.Ensure(ctx, c, lod)
	if err != nil {
		return err
	}
	if ch.From != ch.To || ch.Published {
		s.applyChanges([]regions.Change{ch})
	}
	return nil
}
