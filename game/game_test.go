package game

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/multiverse/components"
	"github.com/pthm-cable/multiverse/config"
	"github.com/pthm-cable/multiverse/cosmology"
	"github.com/pthm-cable/multiverse/procgen"
	"github.com/pthm-cable/multiverse/regions"
	"github.com/pthm-cable/multiverse/systems"
	"github.com/pthm-cable/multiverse/telemetry"
)

// farAway lies outside the grid, so no region is promoted.
var farAway = regions.Observer{Pos: r3.Vec{X: 1e6, Y: 1e6, Z: 1e6}}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Universe.ParticleCount = 400
	cfg.Gravity.Workers = 2
	cfg.Regions.MaxStars = 60
	cfg.Regions.MassPoints = 8
	cfg.Regions.GenerationWorkers = 2
	cfg.Life.MinProbability = 1
	cfg.Life.MaxProbability = 1
	return cfg
}

func newTestSim(t *testing.T, cfg *config.Config) *Sim {
	t.Helper()
	s, err := New(cfg, DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// populate moves the clock to a life-bearing age and brings dense regions to
// Biosphere detail until creatures exist.
func populate(t *testing.T, s *Sim) {
	t.Helper()
	ctx := context.Background()
	s.clock.Advance(6)
	require.NoError(t, s.regions.Bootstrap(ctx, s.clock.Age))
	for _, c := range s.regions.Ranked(32) {
		require.NoError(t, s.Ensure(ctx, c, regions.LODBiosphere))
		if s.population.Count() > 0 {
			return
		}
	}
	t.Fatal("no region produced life")
}

func TestSolveInterval(t *testing.T) {
	tests := []struct {
		scale float64
		want  uint64
	}{
		{1, 3},
		{99, 3},
		{100, 5},
		{1e4, 30},
		{1e6, 120},
		{1e9, 120},
	}
	for _, tt := range tests {
		if got := SolveInterval(tt.scale); got != tt.want {
			t.Errorf("SolveInterval(%g) mismatch: got %d, want %d", tt.scale, got, tt.want)
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Universe.ParticleCount = 0
	_, err := New(cfg, DefaultOptions())
	assert.True(t, errors.Is(err, config.ErrInvalid))

	_, err = New(testConfig(), Options{TimeScale: -1})
	assert.True(t, errors.Is(err, config.ErrInvalid))
}

func TestDarkMatterShare(t *testing.T) {
	cfg := testConfig()
	cfg.Universe.ParticleCount = 1000
	s := newTestSim(t, cfg)

	kinds := systems.CountKinds(s.Particles())
	if got, want := kinds[components.KindDarkMatter], 270; got != want {
		t.Errorf("dark matter count mismatch: got %d, want %d", got, want)
	}
}

func TestFirstTickMovesEveryParticle(t *testing.T) {
	s := newTestSim(t, testConfig())
	before := make([]r3.Vec, len(s.Particles()))
	for i, p := range s.Particles() {
		before[i] = p.Pos
	}

	s.Tick(farAway)

	require.Len(t, s.Particles(), len(before))
	for i, p := range s.Particles() {
		if p.Pos == before[i] {
			t.Errorf("particle %d did not move", i)
		}
	}
	assert.Equal(t, uint64(1), s.Ticks())
	assert.Zero(t, s.unsolved)
}

func TestTickDeterministic(t *testing.T) {
	a := newTestSim(t, testConfig())
	b := newTestSim(t, testConfig())

	for i := 0; i < 20; i++ {
		a.Tick(farAway)
		b.Tick(farAway)
	}

	assert.Equal(t, a.Clock(), b.Clock())
	assert.Equal(t, a.Particles(), b.Particles())
}

func TestEntropyCollapseRebirths(t *testing.T) {
	cfg := testConfig()
	cfg.Universe.MaxEntropy = 1e-9
	cfg.Cadence.EntropyInterval = 1
	s := newTestSim(t, cfg)
	s.clock.Advance(14)

	var phases []string
	var rebirths int
	s.opts.EventCallback = func(e telemetry.Event) {
		switch e.Type {
		case telemetry.EventPhaseTransition:
			phases = append(phases, e.Detail)
		case telemetry.EventRebirth:
			rebirths++
		}
	}

	s.Tick(farAway)
	assert.Equal(t, cosmology.PhaseHeatDeath, s.Clock().Phase)
	assert.Zero(t, rebirths)

	s.Tick(farAway)
	assert.Equal(t, []string{"civilization_era -> heat_death", "heat_death -> collapse"}, phases)
	assert.Equal(t, 1, rebirths)
	assert.Equal(t, uint32(2), s.Clock().Cycle)
	assert.Zero(t, s.Clock().Age)
}

func TestDefaultUniverseOutlivesEarlyEntropy(t *testing.T) {
	if testing.Short() {
		t.Skip("full-size universe")
	}
	s := newTestSim(t, config.Default())

	age := s.Clock().Age
	for i := 0; i <= s.cfg.Cadence.EntropyInterval; i++ {
		s.Tick(farAway)
		if s.Clock().Age <= age {
			t.Fatalf("age did not advance at tick %d: got %v, previous %v", i, s.Clock().Age, age)
		}
		age = s.Clock().Age
	}

	assert.Equal(t, uint32(1), s.Clock().Cycle)
	assert.Positive(t, s.Clock().Entropy)
	assert.Equal(t, cosmology.PhaseAtomicEra, s.Clock().Phase)
}

func TestFirstTickDuringInflation(t *testing.T) {
	// A tenth of the default universe with the entropy ceiling scaled to
	// match, so entropy per particle is unchanged.
	cfg := config.Default()
	cfg.Universe.ParticleCount /= 10
	cfg.Universe.MaxEntropy /= 10
	opts := DefaultOptions()
	opts.TimeScale = 0.005 // dt = 5e-6 Gyr, inside inflation
	s, err := New(cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	var events []telemetry.Event
	s.opts.EventCallback = func(e telemetry.Event) { events = append(events, e) }
	before := slices.Clone(s.Particles())

	s.Tick(farAway)

	clock := s.Clock()
	assert.Equal(t, uint32(1), clock.Cycle)
	assert.Equal(t, cosmology.PhaseInflation, clock.Phase)
	assert.Equal(t, 1000.0, clock.Hubble)
	assert.InDelta(t, 5e-6, clock.Age, 1e-18)
	require.Len(t, events, 1)
	assert.Equal(t, "big_bang -> inflation", events[0].Detail)

	// the solve ran before the entropy check, which measured its result
	assert.Zero(t, s.unsolved)
	assert.Equal(t, systems.Entropy(s.Particles()), clock.Entropy)

	require.Len(t, s.Particles(), cfg.Universe.ParticleCount)
	for i, p := range s.Particles() {
		require.True(t, p.Alive(), "particle %d died", i)
		require.False(t, math.IsNaN(p.Pos.X) || math.IsInf(p.Pos.X, 0), "particle %d not finite", i)
		if p.Pos == before[i].Pos {
			t.Errorf("particle %d did not move", i)
		}
	}
	assert.Equal(t, [regions.NumLODs]int{regions.NumRegions}, s.regions.Counts())

	prof := s.profiler.Profile()
	assert.Equal(t, 1, prof.Stage(telemetry.StageSolve).Runs)
	assert.Equal(t, cfg.Universe.ParticleCount, prof.Stage(telemetry.StageEntropy).Units)
	assert.Zero(t, prof.Stage(telemetry.StageGeneration).Units)
}

func TestRebirthCarriesLineages(t *testing.T) {
	s := newTestSim(t, testConfig())
	populate(t, s)

	// Long enough for every founder to die and leave offspring.
	s.population.Step(1)
	lived := map[string]bool{}
	for _, r := range s.tracker.Records() {
		if r.Lifespan > 0 {
			lived[r.Lineage.String()] = true
		}
	}
	require.NotEmpty(t, lived)
	oldSeed := s.regions.Seed()

	s.Rebirth()

	assert.Zero(t, s.Clock().Age)
	assert.Equal(t, uint32(2), s.Clock().Cycle)
	assert.Zero(t, s.population.Count())
	assert.Zero(t, s.tracker.Count())
	assert.NotEqual(t, oldSeed, s.regions.Seed())
	for _, soul := range s.ledger.Entries() {
		delete(lived, soul.Lineage.String())
	}
	assert.Empty(t, lived, "lineages missing from the ledger")
	assert.Equal(t, [regions.NumLODs]int{regions.NumRegions}, s.regions.Counts())
}

func TestRegeneratedBiosphereRepopulates(t *testing.T) {
	s := newTestSim(t, testConfig())
	populate(t, s)
	home := regions.CoordAt(s.population.Homes()[0].Ref.Region)
	o := ObserverAt(home, regions.LODBiosphere)

	// Moving past the stats refresh age leaves the region's detail stale.
	s.clock.Advance(s.cfg.Cadence.StatsRefreshAge + 1)
	s.Tick(o)
	require.NoError(t, s.Ensure(context.Background(), home, regions.LODBiosphere))

	r := s.regions.Region(home)
	require.Equal(t, regions.LODBiosphere, r.LOD)
	require.Equal(t, r.StatsAge, r.DetailAge)

	want := map[components.PlanetRef]procgen.Environment{}
	for _, ref := range r.Life {
		p := r.Planet(ref)
		want[ref] = procgen.Environment{
			Type:        p.Type,
			Atmosphere:  p.Atmosphere,
			Temperature: p.Temperature,
			Complexity:  p.Complexity,
		}
	}
	got := map[components.PlanetRef]procgen.Environment{}
	for _, h := range s.population.Homes() {
		if h.Ref.Region == home.Index() {
			got[h.Ref] = h.Env
		}
	}
	assert.Equal(t, want, got)
	for _, c := range s.population.Creatures() {
		if c.Organism.Home.Region == home.Index() {
			assert.Contains(t, want, c.Organism.Home)
		}
	}
}

func TestCaptureRestoreRoundTrip(t *testing.T) {
	a := newTestSim(t, testConfig())
	populate(t, a)
	home := regions.CoordAt(a.population.Homes()[0].Ref.Region)
	for i := 0; i < 5; i++ {
		a.Tick(ObserverAt(home, regions.LODBiosphere))
	}
	require.NotZero(t, a.population.Count())
	snap := a.Capture()

	data, err := telemetry.EncodeSnapshot(snap)
	require.NoError(t, err)
	decoded, err := telemetry.DecodeSnapshot(data)
	require.NoError(t, err)

	b := newTestSim(t, testConfig())
	require.NoError(t, b.Restore(decoded))
	assert.Equal(t, snap, b.Capture())

	a.Tick(farAway)
	b.Tick(farAway)
	assert.Equal(t, a.Clock(), b.Clock())
	assert.Equal(t, a.Particles(), b.Particles())
	assert.Equal(t, a.population.Creatures(), b.population.Creatures())
}

func TestRestoreFailureLeavesStateUntouched(t *testing.T) {
	s := newTestSim(t, testConfig())
	s.Tick(farAway)
	before := s.Capture()

	tests := []struct {
		name   string
		mutate func(*telemetry.Snapshot)
		want   error
	}{
		{"version", func(snap *telemetry.Snapshot) { snap.Version = 99 }, telemetry.ErrSnapshotVersion},
		{"regions", func(snap *telemetry.Snapshot) { snap.Regions = snap.Regions[:10] }, telemetry.ErrCorruptSnapshot},
		{"config", func(snap *telemetry.Snapshot) {
			cfg := *snap.Config
			cfg.Universe.Seed++
			snap.Config = &cfg
		}, ErrConfigMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := s.Capture()
			tt.mutate(snap)
			err := s.Restore(snap)
			if !errors.Is(err, tt.want) {
				t.Errorf("Restore error mismatch: got %v, want %v", err, tt.want)
			}
			assert.Equal(t, before, s.Capture())
		})
	}

	s.Tick(farAway)
	assert.Equal(t, uint64(2), s.Ticks())
}

func TestFromSnapshot(t *testing.T) {
	a := newTestSim(t, testConfig())
	a.SetTimeScale(200)
	a.Tick(farAway)
	snap := a.Capture()

	b, err := FromSnapshot(snap, DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	assert.Equal(t, 200.0, b.TimeScale())
	assert.Equal(t, snap, b.Capture())
}

func TestPilotTour(t *testing.T) {
	s := newTestSim(t, testConfig())
	p := NewPilot(2, 3)
	ranked := s.regions.Ranked(2)

	var visited []regions.Coord
	for i := 0; i < 9; i++ {
		o := p.Observer(s)
		assert.Equal(t, regions.LODBiosphere, o.Hint)
		if i%3 == 0 {
			visited = append(visited, p.Current())
		}
	}
	assert.Equal(t, []regions.Coord{ranked[0], ranked[1], ranked[0]}, visited)
}

func TestEventsRecorded(t *testing.T) {
	cfg := testConfig()
	s := newTestSim(t, cfg)

	var events []telemetry.Event
	s.opts.EventCallback = func(e telemetry.Event) { events = append(events, e) }

	home := s.regions.Densest()
	for i := 0; i < 10; i++ {
		s.Tick(ObserverAt(home, regions.LODStellar))
	}

	// The first tick leaves the Big Bang phase and promotes the neighbours
	// of home to Galactic at once.
	var phase, lod bool
	for _, e := range events {
		switch e.Type {
		case telemetry.EventPhaseTransition:
			phase = true
		case telemetry.EventLODChange:
			lod = true
		}
	}
	assert.True(t, phase, "no phase transition event")
	assert.True(t, lod, "no lod change event")
	assert.Equal(t, events, s.Events()[len(s.Events())-len(events):])
}
