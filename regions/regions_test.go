package regions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/multiverse/config"
	"github.com/pthm-cable/multiverse/procgen"
)

const testAge = 5.0

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Regions.MaxStars = 40
	cfg.Regions.MassPoints = 16
	return cfg
}

func newTestManager(t *testing.T, seed uint64) *Manager {
	t.Helper()
	m := NewManager(testConfig(), seed, nil)
	t.Cleanup(m.Close)
	require.NoError(t, m.Bootstrap(context.Background(), testAge))
	return m
}

// farAway lies outside the grid, so every region wants Statistical detail.
var farAway = Observer{Pos: r3.Vec{X: 1e6, Y: 1e6, Z: 1e6}}

func TestCoordRoundTrip(t *testing.T) {
	for i := 0; i < NumRegions; i++ {
		c := CoordAt(i)
		if c.Index() != i {
			t.Errorf("index mismatch: got %d, want %d", c.Index(), i)
		}
		got, ok := CoordOf(c.Center())
		if !ok || got != c {
			t.Errorf("CoordOf(center of %v) = %v, %v", c, got, ok)
		}
	}

	_, ok := CoordOf(r3.Vec{X: gridOffset + 1})
	assert.False(t, ok)
	c, ok := CoordOf(r3.Vec{X: -gridOffset, Y: -gridOffset, Z: -gridOffset})
	assert.True(t, ok)
	assert.Equal(t, Coord{}, c)
}

func TestDesired(t *testing.T) {
	home := Coord{X: 4, Y: 4, Z: 4}
	o := Observer{Pos: home.Center()}

	tests := []struct {
		name  string
		coord Coord
		hint  LOD
		want  LOD
	}{
		{"containing region", home, LODStatistical, LODStellar},
		{"containing region with hint", home, LODBiosphere, LODBiosphere},
		{"hint below stellar", home, LODGalactic, LODStellar},
		{"neighbour", Coord{X: 3, Y: 4, Z: 4}, LODBiosphere, LODGalactic},
		{"diagonal neighbour", Coord{X: 5, Y: 5, Z: 5}, LODStatistical, LODGalactic},
		{"far region", Coord{}, LODBiosphere, LODStatistical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o.Hint = tt.hint
			if got := Desired(tt.coord, o); got != tt.want {
				t.Errorf("Desired mismatch: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLOD(t *testing.T) {
	for l := LOD(0); l < NumLODs; l++ {
		got, err := ParseLOD(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}
	_, err := ParseLOD("galaxy")
	assert.Error(t, err)
}

func TestBootstrapDeterministic(t *testing.T) {
	a := newTestManager(t, 7)
	b := newTestManager(t, 7)
	c := newTestManager(t, 8)

	assert.Equal(t, a.Regions(), b.Regions())
	assert.NotEqual(t, a.Regions()[0].Seed, c.Regions()[0].Seed)

	for _, r := range a.Regions() {
		assert.Equal(t, LODStatistical, r.LOD)
		assert.GreaterOrEqual(t, r.Summary.Density, procgen.MinDensity)
		assert.LessOrEqual(t, r.Summary.Density, procgen.MaxDensity)
		assert.Positive(t, r.Summary.StarCount)
		assert.Equal(t, testAge, r.StatsAge)
		assert.Equal(t, testConfig().Universe.DarkMatterFraction, r.DarkMatter)
	}
}

func TestEnsureIdempotent(t *testing.T) {
	m := newTestManager(t, 42)
	ctx := context.Background()
	c := Coord{X: 2, Y: 5, Z: 1}

	ch, err := m.Ensure(ctx, c, LODPlanetary)
	require.NoError(t, err)
	assert.Equal(t, LODStatistical, ch.From)
	assert.Equal(t, LODPlanetary, ch.To)

	first := m.Region(c)
	require.Len(t, first.Stars, 40)
	for _, s := range first.Stars {
		assert.Len(t, s.Planets, s.PlanetCount)
	}

	// Demote everything, then promote again.
	m.Evaluate(farAway, testAge, 0)
	demoted := m.Region(c)
	assert.Equal(t, LODStatistical, demoted.LOD)
	assert.Empty(t, demoted.Stars)
	assert.Empty(t, demoted.MassPoints)
	assert.Equal(t, first.Summary, demoted.Summary)

	_, err = m.Ensure(ctx, c, LODPlanetary)
	require.NoError(t, err)
	again := m.Region(c)
	assert.Equal(t, first.Stars, again.Stars)
	assert.Equal(t, first.MassPoints, again.MassPoints)
	assert.Equal(t, first.Life, again.Life)

	// An independent manager with the same seed generates the same content.
	other := newTestManager(t, 42)
	_, err = other.Ensure(ctx, c, LODPlanetary)
	require.NoError(t, err)
	assert.Equal(t, first.Stars, other.Region(c).Stars)

	// Ensuring a lower level is a no-op.
	ch, err = m.Ensure(ctx, c, LODStellar)
	require.NoError(t, err)
	assert.Equal(t, ch.From, ch.To)
	assert.False(t, ch.Published)
	assert.Equal(t, LODPlanetary, m.Region(c).LOD)

	_, err = m.Ensure(ctx, Coord{X: GridSize}, LODStellar)
	assert.Error(t, err)
}

func TestDemoteToStellarKeepsStars(t *testing.T) {
	m := newTestManager(t, 3)
	c := Coord{X: 4, Y: 4, Z: 4}
	_, err := m.Ensure(context.Background(), c, LODPlanetary)
	require.NoError(t, err)
	stars := m.Region(c).Stars

	changes := m.Evaluate(Observer{Pos: c.Center()}, testAge, 0)
	r := m.Region(c)
	assert.Equal(t, LODStellar, r.LOD)
	require.Len(t, r.Stars, len(stars))
	for i := range r.Stars {
		assert.Empty(t, r.Stars[i].Planets)
		assert.Equal(t, stars[i].Mass, r.Stars[i].Mass)
	}
	assert.Contains(t, changes, Change{Coord: c, From: LODPlanetary, To: LODStellar})
}

func collectAll(t *testing.T, m *Manager) []Change {
	t.Helper()
	var changes []Change
	require.Eventually(t, func() bool {
		changes = append(changes, m.Collect()...)
		return m.Pending() == 0
	}, 10*time.Second, 5*time.Millisecond)
	return changes
}

func TestEvaluateBackgroundPromotion(t *testing.T) {
	m := newTestManager(t, 11)
	home := Coord{X: 1, Y: 6, Z: 3}
	o := Observer{Pos: home.Center(), Hint: LODPlanetary}

	changes := m.Evaluate(o, testAge, 0)
	for _, ch := range changes {
		assert.Equal(t, LODGalactic, ch.To, "only galactic promotions apply immediately")
		assert.NotEmpty(t, m.Region(ch.Coord).MassPoints)
	}
	assert.Equal(t, LODStatistical, m.Region(home).LOD, "detail is not visible before publication")
	assert.Equal(t, 1, m.Pending())

	published := collectAll(t, m)
	require.Len(t, published, 1)
	assert.Equal(t, home, published[0].Coord)
	assert.Equal(t, LODPlanetary, published[0].To)
	assert.True(t, published[0].Published)

	want := newTestManager(t, 11)
	_, err := want.Ensure(context.Background(), home, LODPlanetary)
	require.NoError(t, err)
	assert.Equal(t, want.Region(home).Stars, m.Region(home).Stars)

	// Planetary detail already covers the biosphere level.
	o.Hint = LODBiosphere
	changes = m.Evaluate(o, testAge, 5)
	assert.Contains(t, changes, Change{Coord: home, From: LODPlanetary, To: LODBiosphere})
	assert.Zero(t, m.Pending())
}

func TestEvaluateCadence(t *testing.T) {
	m := newTestManager(t, 5)
	o := Observer{Pos: Coord{X: 4, Y: 4, Z: 4}.Center()}

	assert.Nil(t, m.Evaluate(o, testAge, 1))
	assert.Zero(t, m.Pending())
	assert.NotEmpty(t, m.Evaluate(o, testAge, 5))
}

func TestStatsRefresh(t *testing.T) {
	m := newTestManager(t, 9)
	c := Coord{X: 4, Y: 4, Z: 4}
	o := Observer{Pos: c.Center()}
	_, err := m.Ensure(context.Background(), c, LODStellar)
	require.NoError(t, err)
	before := m.Region(c)

	// Off-cadence tick, but age moved past the refresh threshold.
	m.Evaluate(o, testAge+3, 1)
	assert.Equal(t, testAge+3, m.StatsAge())
	r := m.Region(c)
	assert.Equal(t, testAge+3, r.StatsAge)
	assert.NotEqual(t, before.Summary.Composition, r.Summary.Composition)
	assert.Equal(t, before.Summary.Density, r.Summary.Density)
	assert.Equal(t, 1, m.Pending(), "stale stellar detail is regenerated")

	published := collectAll(t, m)
	require.Len(t, published, 1)
	assert.Equal(t, Change{Coord: c, From: LODStellar, To: LODStellar, Published: true}, published[0])
	r = m.Region(c)
	assert.Equal(t, testAge+3, r.DetailAge)
	assert.Equal(t, LODStellar, r.LOD)
}

func TestResetDiscardsPending(t *testing.T) {
	m := newTestManager(t, 13)
	o := Observer{Pos: Coord{X: 2, Y: 2, Z: 2}.Center(), Hint: LODPlanetary}
	m.Evaluate(o, testAge, 0)
	oldSeed := m.Regions()[0].Seed

	m.Reset(14)
	assert.Zero(t, m.Pending())
	assert.Empty(t, m.Collect())
	assert.Equal(t, uint64(14), m.Seed())
	for _, r := range m.Regions() {
		assert.Equal(t, LODStatistical, r.LOD)
		assert.Empty(t, r.Stars)
	}
	assert.NotEqual(t, oldSeed, m.Regions()[0].Seed)

	require.NoError(t, m.Bootstrap(context.Background(), 0))
	assert.Zero(t, m.StatsAge())
}

func TestGenerateCancelled(t *testing.T) {
	m := newTestManager(t, 21)
	r := m.Region(Coord{X: 1, Y: 1, Z: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.gen.generate(ctx, newRequest(&r, LODStellar, 1))
	assert.True(t, errors.Is(err, ErrCancelled))

	_, err = m.Ensure(ctx, r.Coord, LODStellar)
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.Equal(t, LODStatistical, m.Region(r.Coord).LOD, "cancelled generation leaves the region untouched")
}

func TestSlotSingleAssignment(t *testing.T) {
	s := newSlot()
	assert.False(t, s.ready())
	first := &Detail{Target: LODStellar}
	s.publish(first, nil)
	s.publish(&Detail{Target: LODPlanetary}, ErrCancelled)
	assert.True(t, s.ready())
	assert.Same(t, first, s.detail)
	assert.NoError(t, s.err)
}

func TestRankedAndDensest(t *testing.T) {
	m := newTestManager(t, 17)
	ranked := m.Ranked(NumRegions)
	require.Len(t, ranked, NumRegions)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, m.Region(ranked[i-1]).Summary.Density, m.Region(ranked[i]).Summary.Density)
	}
	assert.Equal(t, ranked[0], m.Densest())
}

func TestRestore(t *testing.T) {
	m := newTestManager(t, 19)
	c := Coord{X: 7, Y: 0, Z: 7}
	_, err := m.Ensure(context.Background(), c, LODPlanetary)
	require.NoError(t, err)
	life, civs := m.Discoveries()

	other := NewManager(testConfig(), 1, nil)
	t.Cleanup(other.Close)
	require.NoError(t, other.Restore(m.Seed(), m.StatsAge(), m.Regions()))
	assert.Equal(t, m.Regions(), other.Regions())
	assert.Equal(t, m.Seed(), other.Seed())
	gotLife, gotCivs := other.Discoveries()
	assert.Equal(t, life, gotLife)
	assert.Equal(t, civs, gotCivs)

	assert.Error(t, other.Restore(1, 0, m.Regions()[:10]))
	bad := m.Regions()
	bad[3].Coord = Coord{}
	assert.Error(t, other.Restore(1, 0, bad))
}
