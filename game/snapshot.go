package game

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/pthm-cable/multiverse/config"
	"github.com/pthm-cable/multiverse/telemetry"
)

// ErrConfigMismatch is returned when restoring a snapshot taken under a
// different configuration.
var ErrConfigMismatch = errors.New("snapshot configuration differs from the running simulation")

// Capture returns a deep copy of the complete simulation state.
func (s *Sim) Capture() *telemetry.Snapshot {
	cfg := *s.cfg
	return &telemetry.Snapshot{
		Version:   telemetry.SnapshotVersion,
		Config:    &cfg,
		Tick:      s.tick,
		TimeScale: s.timeScale,
		Unsolved:  s.unsolved,
		Clock:     s.clock,
		Particles: slices.Clone(s.particles),
		CycleSeed: s.regions.Seed(),
		StatsAge:  s.regions.StatsAge(),
		Regions:   s.regions.Regions(),
		Observer:  s.observer,
		Ledger:    s.ledger.Entries(),
		Lineages:  s.tracker.Records(),
		Homes:     s.population.Homes(),
		Creatures: s.population.Creatures(),
	}
}

// Restore replaces the simulation state with a snapshot. The snapshot is
// validated first; on error the running state is left untouched.
func (s *Sim) Restore(snap *telemetry.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	if !sameConfig(s.cfg, snap.Config) {
		return ErrConfigMismatch
	}
	if err := s.regions.Restore(snap.CycleSeed, snap.StatsAge, snap.Regions); err != nil {
		return fmt.Errorf("%w: %v", telemetry.ErrCorruptSnapshot, err)
	}

	s.tick = snap.Tick
	s.timeScale = snap.TimeScale
	s.unsolved = snap.Unsolved
	s.clock = snap.Clock
	s.particles = slices.Clone(snap.Particles)
	s.observer = snap.Observer

	s.ledger.Replace(snap.Ledger...)
	s.tracker.Restore(snap.Lineages)
	s.population.Restore(snap.Homes, snap.Creatures)
	s.lastBirths, s.lastDeaths = s.population.Totals()

	s.collector.Reset(s.tick)
	s.bookmarkDetector.Reset()
	s.emit(telemetry.NewRestoreEvent(s.tick, s.clock.Cycle, s.clock.Age,
		fmt.Sprintf("restored %d particles, %d creatures", len(s.particles), len(snap.Creatures))))
	return nil
}

// FromSnapshot creates a simulation running under the snapshot's
// configuration and restores the snapshot into it.
func FromSnapshot(snap *telemetry.Snapshot, opts Options) (*Sim, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	cfg := *snap.Config
	opts.TimeScale = snap.TimeScale
	s, err := New(&cfg, opts)
	if err != nil {
		return nil, err
	}
	if err := s.Restore(snap); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// sameConfig compares configurations ignoring derived values.
func sameConfig(a, b *config.Config) bool {
	x, y := *a, *b
	x.Derived, y.Derived = config.DerivedConfig{}, config.DerivedConfig{}
	return reflect.DeepEqual(x, y)
}
