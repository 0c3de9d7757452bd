package game

import (
	"time"

	"github.com/pthm-cable/multiverse/regions"
	"github.com/pthm-cable/multiverse/systems"
	"github.com/pthm-cable/multiverse/telemetry"
)

// Tick advances the universe by one tick as seen from o. Each tick runs, in
// order: clock advance, gravity (throttled by time scale), the entropy check
// with rebirth on collapse, LOD evaluation, publication of generated detail,
// the biosphere, then compaction and telemetry.
func (s *Sim) Tick(o regions.Observer) {
	prof := s.profiler
	prof.Begin()
	s.observer = o
	cfg := s.cfg
	dt := cfg.Universe.Timestep * s.timeScale

	prof.Enter(telemetry.StageClock)
	for _, tr := range s.clock.Advance(dt) {
		s.emit(telemetry.NewPhaseEvent(s.tick, s.clock.Cycle, tr))
	}
	s.unsolved += dt

	prof.Enter(telemetry.StageSolve)
	if s.tick%SolveInterval(s.timeScale) == 0 {
		prof.Count(telemetry.StageSolve, len(s.particles))
		s.solve()
	}

	prof.Enter(telemetry.StageEntropy)
	if s.tick%uint64(cfg.Cadence.EntropyInterval) == 0 {
		prof.Count(telemetry.StageEntropy, len(s.particles))
		e := systems.Entropy(s.particles)
		for _, tr := range s.clock.ObserveEntropy(e, cfg.Universe.MaxEntropy) {
			s.emit(telemetry.NewPhaseEvent(s.tick, s.clock.Cycle, tr))
		}
		if s.clock.Collapsed() {
			s.Rebirth()
		}
	}

	prof.Enter(telemetry.StageLOD)
	changes := s.regions.Evaluate(o, s.clock.Age, s.tick)
	prof.Count(telemetry.StageLOD, len(changes))

	prof.Enter(telemetry.StageGeneration)
	published := s.regions.Collect()
	prof.Count(telemetry.StageGeneration, len(published))
	s.applyChanges(append(changes, published...))

	prof.Enter(telemetry.StageBiosphere)
	prof.Count(telemetry.StageBiosphere, s.population.Count())
	s.population.Step(dt)

	prof.Enter(telemetry.StageHousekeeping)
	if s.tick%uint64(cfg.Cadence.CompactionInterval) == 0 {
		s.particles = systems.Compact(s.particles)
	}
	s.tick++
	s.recordPopulation()
	s.flushTelemetry()

	prof.End()
}

// solve runs the gravity backend over the time accumulated since the last
// solve.
func (s *Sim) solve() {
	start := time.Now()
	p := s.params
	p.DT = s.unsolved
	p.Hubble = s.clock.Hubble
	s.backend.Step(s.particles, p)
	s.unsolved = 0
	s.collector.RecordSolve()
	s.metrics.ObserveSolve(time.Since(start))
}

// applyChanges reacts to level-of-detail changes: regions reaching Biosphere
// seed creatures on their inhabited planets, regions leaving it despawn them,
// and a Biosphere region whose detail was regenerated is repopulated from the
// new planets.
func (s *Sim) applyChanges(changes []regions.Change) {
	for _, ch := range changes {
		if ch.From != ch.To {
			s.emit(telemetry.NewLODEvent(s.tick, s.clock.Cycle, s.clock.Age, ch))
		}
		s.announce(ch)

		switch {
		case ch.To == regions.LODBiosphere && ch.From != regions.LODBiosphere:
			s.seedRegion(ch.Coord)
		case ch.To == regions.LODBiosphere && ch.Published:
			s.despawnRegion(ch.Coord)
			s.seedRegion(ch.Coord)
		case ch.From == regions.LODBiosphere && ch.To < regions.LODBiosphere:
			s.despawnRegion(ch.Coord)
		}
	}
}

// announce emits life and civilization events for newly discovered planets.
func (s *Sim) announce(ch regions.Change) {
	for _, ref := range ch.Discovered {
		p, ok := s.regions.Planet(ref)
		if !ok || p.Biosphere == nil {
			continue
		}
		desc := p.Biosphere.Genome.Describe()
		s.emit(telemetry.NewLifeEvent(s.tick, s.clock.Cycle, s.clock.Age, ref, desc))
		if p.Biosphere.Technology {
			_, civs := s.regions.Discoveries()
			s.emit(telemetry.NewCivilizationEvent(s.tick, s.clock.Cycle, s.clock.Age, ref, civs, desc))
		}
	}
}

func (s *Sim) seedRegion(c regions.Coord) {
	r := s.regions.Region(c)
	for _, ref := range r.Life {
		if p := r.Planet(ref); p != nil {
			s.population.Seed(ref, p)
		}
	}
}

func (s *Sim) despawnRegion(c regions.Coord) {
	for _, h := range s.population.Homes() {
		if h.Ref.Region == c.Index() {
			s.population.Despawn(h.Ref)
		}
	}
}

// recordPopulation feeds births and deaths since the last tick to the
// collector.
func (s *Sim) recordPopulation() {
	births, deaths := s.population.Totals()
	s.collector.RecordBirths(births - s.lastBirths)
	s.collector.RecordDeaths(deaths - s.lastDeaths)
	s.lastBirths, s.lastDeaths = births, deaths
}
