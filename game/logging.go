package game

import (
	"log/slog"

	"github.com/pthm-cable/multiverse/cosmology"
	"github.com/pthm-cable/multiverse/systems"
)

// Status is a point-in-time summary used for progress logs.
type Status struct {
	Tick      uint64
	Cycle     uint32
	Age       float64
	Phase     cosmology.Phase
	Entropy   float64
	Particles int
	Loaded    int // regions above Statistical
	Pending   int
	Life      int
	Civs      int
	Creatures int
	Souls     int
}

// Status summarizes the current state.
func (s *Sim) Status() Status {
	counts := s.regions.Counts()
	life, civs := s.regions.Discoveries()
	return Status{
		Tick:      s.tick,
		Cycle:     s.clock.Cycle,
		Age:       s.clock.Age,
		Phase:     s.clock.Phase,
		Entropy:   s.clock.Entropy,
		Particles: systems.AliveCount(s.particles),
		Loaded:    sumAbove(counts[:], 1),
		Pending:   s.regions.Pending(),
		Life:      life,
		Civs:      civs,
		Creatures: s.population.Count(),
		Souls:     s.ledger.Len(),
	}
}

func sumAbove(counts []int, from int) int {
	var n int
	for _, c := range counts[from:] {
		n += c
	}
	return n
}

// LogValue implements slog.LogValuer.
func (st Status) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("tick", st.Tick),
		slog.Uint64("cycle", uint64(st.Cycle)),
		slog.Float64("age_gyr", st.Age),
		slog.String("phase", st.Phase.String()),
		slog.Float64("entropy", st.Entropy),
		slog.Int("particles", st.Particles),
		slog.Int("loaded_regions", st.Loaded),
		slog.Int("pending", st.Pending),
		slog.Int("life", st.Life),
		slog.Int("civilizations", st.Civs),
		slog.Int("creatures", st.Creatures),
		slog.Int("souls", st.Souls),
	)
}

// LogStatus logs the current status at info level.
func (s *Sim) LogStatus() {
	slog.Info("status", "sim", s.Status())
}
