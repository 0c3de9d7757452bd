package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/multiverse/components"
	"github.com/pthm-cable/multiverse/config"
	"github.com/pthm-cable/multiverse/cosmology"
	"github.com/pthm-cable/multiverse/procgen"
	"github.com/pthm-cable/multiverse/regions"
	"github.com/pthm-cable/multiverse/soul"
	"github.com/pthm-cable/multiverse/telemetry"
	"github.com/pthm-cable/multiverse/traits"
)

func newTestBadger(t *testing.T) *Badger {
	t.Helper()
	b, err := OpenBadgerInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func minimalSnapshot(t *testing.T) *telemetry.Snapshot {
	t.Helper()
	cfg := config.Default()
	grid := make([]regions.Region, regions.NumRegions)
	for i := range grid {
		grid[i].Coord = regions.CoordAt(i)
	}
	return &telemetry.Snapshot{
		Version:   telemetry.SnapshotVersion,
		Config:    cfg,
		Tick:      42,
		TimeScale: 1,
		Clock:     cosmology.NewClock(),
		Regions:   grid,
	}
}

func TestBadgerSnapshot(t *testing.T) {
	b := newTestBadger(t)
	snap := minimalSnapshot(t)

	require.NoError(t, b.SaveSnapshot("latest", snap))
	require.NoError(t, b.SaveSnapshot("cycle-1", snap))

	loaded, err := b.LoadSnapshot("latest")
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)

	names, err := b.Snapshots()
	require.NoError(t, err)
	assert.Equal(t, []string{"cycle-1", "latest"}, names)

	_, err = b.LoadSnapshot("missing")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestBadgerSnapshotVersion(t *testing.T) {
	b := newTestBadger(t)
	snap := minimalSnapshot(t)
	require.NoError(t, b.SaveSnapshot("ok", snap))

	// Overwrite with a future format version
	snap.Version = telemetry.SnapshotVersion + 1
	require.NoError(t, b.SaveSnapshot("future", snap))

	_, err := b.LoadSnapshot("future")
	assert.ErrorIs(t, err, telemetry.ErrSnapshotVersion)
}

func TestBadgerLedger(t *testing.T) {
	b := newTestBadger(t)

	ledger := soul.NewLedger()
	a := uuid.New()
	c := uuid.New()
	ledger.Merge(soul.Contribution{Lineage: a, Lifespan: 1.5, Births: 3}, 1)
	ledger.Merge(soul.Contribution{Lineage: c, Lifespan: 0.2, Births: 1}, 1)
	require.NoError(t, b.SaveLedger(ledger))

	loaded, err := b.LoadLedger()
	require.NoError(t, err)
	assert.Equal(t, ledger.Entries(), loaded.Entries())

	s, err := b.LookupSoul(a)
	require.NoError(t, err)
	assert.Equal(t, 1.5, s.Lifespan)

	_, err = b.LookupSoul(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	// Saving a smaller ledger keeps previously stored souls
	require.NoError(t, b.SaveLedger(soul.NewLedger()))
	loaded, err = b.LoadLedger()
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
}

func TestOpenBadgerRequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	assert.Error(t, err)
}

func TestOpenBadgerOnDisk(t *testing.T) {
	dir := t.TempDir()
	b, err := OpenBadger(BadgerConfig{Path: dir, SyncWrites: true})
	require.NoError(t, err)

	ledger := soul.NewLedger()
	ledger.Merge(soul.Contribution{Lineage: uuid.New(), Lifespan: 2, Births: 1}, 3)
	require.NoError(t, b.SaveLedger(ledger))
	require.NoError(t, b.Close())

	b, err = OpenBadger(BadgerConfig{Path: dir})
	require.NoError(t, err)
	defer b.Close()
	loaded, err := b.LoadLedger()
	require.NoError(t, err)
	assert.Equal(t, ledger.Entries(), loaded.Entries())
}

func testDiscovery(ref components.PlanetRef, complexity float64) Discovery {
	return Discovery{
		Universe:    ^uint64(0), // exercises the signed column
		Cycle:       2,
		Ref:         ref,
		Lineage:     uuid.New(),
		Age:         11.5,
		PlanetType:  procgen.Rocky.String(),
		Temperature: 290,
		Complexity:  complexity,
		Stage:       "complex",
		Species:     1200,
		Genome:      "test",
		Description: "test genome",
	}
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	c, err := OpenCatalog(":memory:")
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Insert(ctx,
		testDiscovery(components.PlanetRef{Region: 1, Star: 0, Planet: 2}, 3.5),
		testDiscovery(components.PlanetRef{Region: 4, Star: 7, Planet: 0}, 9.1),
		testDiscovery(components.PlanetRef{Region: 2, Star: 3, Planet: 1}, 6.0),
	))

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	top, err := c.Top(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, 9.1, top[0].Complexity)
	assert.Equal(t, 6.0, top[1].Complexity)
	assert.Equal(t, ^uint64(0), top[0].Universe)
	assert.Equal(t, components.PlanetRef{Region: 4, Star: 7, Planet: 0}, top[0].Ref)

	// Re-inserting the same planet replaces it
	again := testDiscovery(components.PlanetRef{Region: 1, Star: 0, Planet: 2}, 9.9)
	require.NoError(t, c.Insert(ctx, again))
	n, err = c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	top, err = c.Top(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, again, top[0])
}

func TestNewDiscovery(t *testing.T) {
	ref := components.PlanetRef{Region: 5, Star: 1, Planet: 0}
	_, ok := NewDiscovery(1, 1, 10, ref, procgen.Planet{})
	assert.False(t, ok)

	p := procgen.Planet{
		Type:        procgen.Ocean,
		Temperature: 300,
		Complexity:  4,
		Life:        true,
		Biosphere: &procgen.Biosphere{
			Stage:   procgen.StageMulticellular,
			Species: 10,
			Lineage: uuid.New(),
			Genome:  traits.Genome{},
		},
	}
	d, ok := NewDiscovery(7, 2, 10, ref, p)
	require.True(t, ok)
	assert.Equal(t, "ocean", d.PlanetType)
	assert.Equal(t, p.Biosphere.Lineage, d.Lineage)
	assert.Equal(t, p.Biosphere.Genome.Short(), d.Genome)
}
