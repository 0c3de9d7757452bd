package game

import (
	"context"
	"log/slog"

	"github.com/pthm-cable/multiverse/systems"
	"github.com/pthm-cable/multiverse/telemetry"
)

// Rebirth ends the current cycle and starts the next from a fresh Big Bang.
// Every creature dies with the age it reached, each lineage with a recorded
// lifespan is folded into the soul ledger, and the regions and particles are
// regenerated from the next cycle's seed. The ledger is the only state that
// survives.
func (s *Sim) Rebirth() {
	old := s.clock.Cycle
	s.population.DespawnAll()
	s.recordPopulation()

	contributions := s.tracker.Contributions()
	for _, c := range contributions {
		s.ledger.Merge(c, old)
	}

	s.clock.Reset()
	s.tracker.Reset()
	s.unsolved = 0

	seed := CycleSeed(s.cfg.Derived.Seed, s.clock.Cycle)
	s.regions.Reset(seed)
	if err := s.regions.Bootstrap(context.Background(), 0); err != nil {
		slog.Error("failed to bootstrap regions", "cycle", s.clock.Cycle, "error", err)
	}
	s.particles = systems.Spawn(s.cfg, seed)
	s.bookmarkDetector.Reset()

	s.emit(telemetry.NewRebirthEvent(s.tick, s.clock.Cycle, len(contributions), s.ledger.Len()))
	if err := s.outputManager.WriteLedger(s.ledger); err != nil {
		slog.Error("failed to write soul ledger", "error", err)
	}
}

