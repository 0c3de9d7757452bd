package soul

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/multiverse/components"
	"github.com/pthm-cable/multiverse/traits"
)

func TestLineageIDStable(t *testing.T) {
	ref := components.PlanetRef{Region: 3, Star: 14, Planet: 2}
	a := LineageID(42, ref)
	b := LineageID(42, ref)
	assert.Equal(t, a, b)
	assert.Equal(t, uuid.Version(5), a.Version())

	assert.NotEqual(t, a, LineageID(43, ref), "seed must scope lineage")
	assert.NotEqual(t, a, LineageID(42, components.PlanetRef{Region: 3, Star: 14, Planet: 3}))
}

func TestConditionSet(t *testing.T) {
	c := ConditionFrigid.Add(ConditionOceanic)
	assert.True(t, c.Has(ConditionFrigid))
	assert.True(t, c.Has(ConditionFrigid|ConditionOceanic))
	assert.False(t, c.Has(ConditionScorching))
	assert.Equal(t, []string{"frigid", "oceanic"}, c.Names())
	assert.Equal(t, "none", Condition(0).String())
}

func TestTrackerStability(t *testing.T) {
	tr := NewTracker()
	id := uuid.New()
	tr.Register(id, traits.Primordial(), ConditionFrigid)

	for i := 0; i < 4; i++ {
		tr.RecordBirth(id, nil)
	}
	tr.RecordBirth(id, []traits.Axis{traits.AxisSize, traits.AxisCognition})
	tr.RecordBirth(id, []traits.Axis{traits.AxisSize})
	tr.RecordDeath(id, 0.5)
	tr.RecordDeath(id, 0.25)

	r := tr.Get(id)
	require.NotNil(t, r)
	assert.Equal(t, uint64(6), r.Births)
	assert.Equal(t, uint64(2), r.Deaths)
	assert.InDelta(t, 0.75, r.Lifespan, 1e-12)

	st := r.Stability()
	assert.InDelta(t, 1.0, st[traits.AxisSubstrate], 1e-12)
	assert.InDelta(t, 1-2.0/6, st[traits.AxisSize], 1e-12)
	assert.InDelta(t, 1-1.0/6, st[traits.AxisCognition], 1e-12)
}

func TestTrackerIgnoresUnknownLineage(t *testing.T) {
	tr := NewTracker()
	tr.RecordBirth(uuid.New(), nil)
	tr.RecordDeath(uuid.New(), 1)
	assert.Zero(t, tr.Count())
}

func TestTrackerRegisterKeepsCounters(t *testing.T) {
	tr := NewTracker()
	id := uuid.New()
	tr.Register(id, traits.Primordial(), ConditionFrigid)
	tr.RecordBirth(id, nil)

	g := traits.Primordial()
	g.Cognition = 0.5
	tr.Register(id, g, ConditionOceanic)

	r := tr.Get(id)
	assert.Equal(t, uint64(1), r.Births)
	assert.Equal(t, 0.5, r.Genome.Cognition)
	assert.True(t, r.Conditions.Has(ConditionFrigid|ConditionOceanic))
}

func TestContributionsOnlyNonzeroLifespan(t *testing.T) {
	tr := NewTracker()
	lived, unborn := uuid.New(), uuid.New()
	tr.Register(lived, traits.Primordial(), 0)
	tr.Register(unborn, traits.Primordial(), 0)
	tr.RecordBirth(lived, nil)
	tr.RecordDeath(lived, 0.1)

	cs := tr.Contributions()
	require.Len(t, cs, 1)
	assert.Equal(t, lived, cs[0].Lineage)
	assert.Equal(t, uint64(1), cs[0].Births)
}

func TestTrackerRestoreRoundTrip(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 5; i++ {
		id := uuid.New()
		tr.Register(id, traits.Primordial(), Condition(i))
		tr.RecordBirth(id, []traits.Axis{traits.AxisEnergy})
		tr.RecordDeath(id, float64(i))
	}
	records := tr.Records()

	other := NewTracker()
	other.Restore(records)
	assert.Equal(t, records, other.Records())

	tr.Reset()
	assert.Zero(t, tr.Count())
}

func TestLedgerMerge(t *testing.T) {
	l := NewLedger()
	id := uuid.New()

	var st [traits.NumAxes]float64
	for a := range st {
		st[a] = 1
	}
	first := l.Merge(Contribution{Lineage: id, Lifespan: 2, Stability: st, Conditions: ConditionFrigid, Births: 3}, 1)
	assert.Equal(t, 2.0, first.Lifespan)
	assert.Equal(t, uint64(3), first.Generations)
	assert.Equal(t, uint32(1), first.Cycles)
	assert.Equal(t, 1.0, first.Stability[traits.AxisSize])

	var low [traits.NumAxes]float64
	g := traits.Primordial()
	g.Motility = traits.Crawling
	second := l.Merge(Contribution{Lineage: id, Genome: g, Lifespan: 1, Stability: low, Conditions: ConditionOceanic, Births: 1}, 2)

	assert.Equal(t, 3.0, second.Lifespan)
	assert.Equal(t, uint64(4), second.Generations)
	assert.Equal(t, uint32(2), second.Cycles)
	assert.Equal(t, uint32(2), second.LastCycle)
	assert.InDelta(t, 0.75, second.Stability[traits.AxisSize], 1e-12)
	assert.True(t, second.Conditions.Has(ConditionFrigid|ConditionOceanic))
	assert.Equal(t, traits.Crawling, second.Genome.Motility)

	// a second merge in the same cycle does not count another cycle
	third := l.Merge(Contribution{Lineage: id, Lifespan: 1, Births: 1}, 2)
	assert.Equal(t, uint32(2), third.Cycles)
}

func TestLedgerLookupAndEntries(t *testing.T) {
	l := NewLedger()
	_, ok := l.Lookup(uuid.New())
	assert.False(t, ok)

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		l.Merge(Contribution{Lineage: id, Lifespan: 1}, 1)
	}
	assert.Equal(t, 3, l.Len())

	entries := l.Entries()
	require.Len(t, entries, 3)
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Lineage.String(), entries[i].Lineage.String())
	}

	s, ok := l.Lookup(ids[1])
	require.True(t, ok)
	assert.Equal(t, ids[1], s.Lineage)
}

func TestLedgerConcurrentMerge(t *testing.T) {
	l := NewLedger()
	id := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Merge(Contribution{Lineage: id, Lifespan: 1, Births: 1}, 1)
			l.Entries()
		}()
	}
	wg.Wait()

	s, ok := l.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, 16.0, s.Lifespan)
	assert.Equal(t, uint64(16), s.Generations)
}

func TestLedgerFileRoundTrip(t *testing.T) {
	l := NewLedger()
	for i := 0; i < 4; i++ {
		l.Merge(Contribution{Lineage: uuid.New(), Lifespan: float64(i + 1), Conditions: ConditionThinAir, Births: 2}, 3)
	}

	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, l.SaveFile(path))

	loaded, err := LoadLedgerFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, l.Entries(), loaded.Entries())

	_, err = LoadLedgerFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
