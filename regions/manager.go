package regions

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pthm-cable/multiverse/components"
	"github.com/pthm-cable/multiverse/config"
	"github.com/pthm-cable/multiverse/procgen"
	"github.com/pthm-cable/multiverse/rng"
)

// Change records a region moving between levels of detail.
type Change struct {
	Coord Coord
	From  LOD
	To    LOD
	// Published is set when freshly generated detail replaced the region's
	// content, including regeneration at an unchanged level.
	Published bool
	// Discovered lists inhabited planets first seen in this cycle.
	Discovered []components.PlanetRef
}

// Manager owns the region grid. Its methods are safe for concurrent use,
// but the grid is normally driven from the simulation thread only.
type Manager struct {
	mu      sync.Mutex
	regions [NumRegions]Region
	seed    uint64 // cycle seed regions derive from
	epoch   uint64 // bumped on every reset; stale results are dropped

	lodInterval  int
	refreshAge   float64
	sigma        float64
	darkMatter   float64
	workers      int
	statsAge     float64
	bootstrapped bool

	gen        *generator
	pool       *pool
	ctx        context.Context
	cancel     context.CancelFunc
	pending    map[int]*task
	flight     singleflight.Group
	discovered map[components.PlanetRef]struct{}
	civs       int
}

// NewManager creates a manager for cycleSeed. souls biases genome synthesis
// and may be nil. Call Bootstrap before the first Evaluate.
func NewManager(cfg *config.Config, cycleSeed uint64, souls procgen.SoulSource) *Manager {
	gen := &generator{
		maxStars:   cfg.Regions.MaxStars,
		massPoints: cfg.Regions.MassPoints,
		params:     procgen.ParamsFromConfig(cfg),
		souls:      souls,
	}
	m := &Manager{
		lodInterval: cfg.Cadence.LODInterval,
		refreshAge:  cfg.Cadence.StatsRefreshAge,
		sigma:       cfg.Regions.DensitySigma,
		darkMatter:  cfg.Universe.DarkMatterFraction,
		workers:     cfg.Derived.GenerationWorkers,
		gen:         gen,
		pool:        newPool(gen, cfg.Derived.GenerationWorkers),
	}
	m.reset(cycleSeed)
	return m
}

// Close cancels pending generation and stops the workers.
func (m *Manager) Close() {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()
	m.pool.close()
}

// Reset discards all generated detail and pending work and rebuilds the grid
// at Statistical detail from a new cycle seed. Summaries are recomputed by the
// next Bootstrap.
func (m *Manager) Reset(cycleSeed uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancel()
	m.reset(cycleSeed)
}

func (m *Manager) reset(cycleSeed uint64) {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.seed = cycleSeed
	m.epoch++
	m.pending = make(map[int]*task)
	m.discovered = make(map[components.PlanetRef]struct{})
	m.civs = 0
	m.statsAge = 0
	m.bootstrapped = false
	for i := range m.regions {
		c := CoordAt(i)
		m.regions[i] = Region{
			Coord:      c,
			Seed:       rng.Derive(cycleSeed, "region", c.X, c.Y, c.Z),
			DarkMatter: m.darkMatter,
		}
	}
}

// Bootstrap computes every region's density and summary at age, in parallel.
func (m *Manager) Bootstrap(ctx context.Context, age float64) error {
	m.mu.Lock()
	seeds := make([]uint64, NumRegions)
	for i := range m.regions {
		seeds[i] = m.regions[i].Seed
	}
	epoch := m.epoch
	m.mu.Unlock()

	summaries := make([]procgen.Summary, NumRegions)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(m.workers, 1))
	for i := range seeds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: bootstrap: %v", ErrCancelled, err)
			}
			density := procgen.Density(seeds[i], m.sigma)
			summaries[i] = procgen.Summarize(seeds[i], density, RegionSize, age)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if epoch != m.epoch {
		return fmt.Errorf("%w: bootstrap superseded by reset", ErrCancelled)
	}
	for i := range m.regions {
		m.regions[i].Summary = summaries[i]
		m.regions[i].StatsAge = age
	}
	m.statsAge = age
	m.bootstrapped = true
	return nil
}

// refreshStats recomputes every summary at age. Densities are kept.
func (m *Manager) refreshStats(age float64) {
	for i := range m.regions {
		r := &m.regions[i]
		r.Summary = procgen.Summarize(r.Seed, r.Summary.Density, RegionSize, age)
		r.StatsAge = age
	}
	m.statsAge = age
}

// Evaluate reassigns levels of detail for the observer. It runs every
// LODInterval ticks, and unconditionally once age has moved further than the
// stats refresh age from the last summary. Demotions and Galactic promotions
// apply at once; higher promotions are queued and published by Collect.
func (m *Manager) Evaluate(o Observer, age float64, tick uint64) []Change {
	m.mu.Lock()
	defer m.mu.Unlock()

	refresh := m.bootstrapped && math.Abs(age-m.statsAge) > m.refreshAge
	if refresh {
		m.refreshStats(age)
	}
	if !refresh && tick%uint64(m.lodInterval) != 0 {
		return nil
	}

	var changes []Change
	for i := range m.regions {
		r := &m.regions[i]
		want := Desired(r.Coord, o)
		from := r.LOD
		stale := r.LOD >= LODStellar && r.DetailAge != r.StatsAge

		if t, ok := m.pending[i]; ok && t.req.target > want {
			m.drop(i)
		}

		switch {
		case want < r.LOD:
			r.demote(want)
			if stale && want >= LODStellar {
				m.schedule(r, want)
			}
		case want == r.LOD:
			if stale {
				m.schedule(r, want)
			}
		case want == LODGalactic:
			r.MassPoints = procgen.MassPoints(r.Seed, r.Coord.Center(), RegionSize, r.Summary.Density, m.gen.massPoints)
			r.LOD = LODGalactic
		case want == LODBiosphere && r.LOD == LODPlanetary && !stale:
			r.LOD = LODBiosphere
		default:
			m.schedule(r, want)
		}

		if r.LOD != from {
			changes = append(changes, Change{Coord: r.Coord, From: from, To: r.LOD})
		}
	}
	return changes
}

// schedule queues generation of r at target unless an equivalent task is
// already in flight.
func (m *Manager) schedule(r *Region, target LOD) {
	i := r.Coord.Index()
	if t, ok := m.pending[i]; ok {
		if t.req.target == target && t.req.age == r.StatsAge && t.req.epoch == m.epoch {
			return
		}
		m.drop(i)
	}
	ctx, cancel := context.WithCancel(m.ctx)
	t := &task{req: newRequest(r, target, m.epoch), ctx: ctx, cancel: cancel, result: newSlot()}
	m.pending[i] = t
	m.pool.submit(t)
}

// drop cancels and forgets the pending task of region i.
func (m *Manager) drop(i int) {
	if t, ok := m.pending[i]; ok {
		t.cancel()
		delete(m.pending, i)
	}
}

// Collect publishes every finished generation task, in region order.
// Cancelled, failed and stale results are discarded; the region stays at its
// previous level and is rescheduled by a later Evaluate.
func (m *Manager) Collect() []Change {
	m.mu.Lock()
	defer m.mu.Unlock()

	var changes []Change
	for _, i := range slices.Sorted(maps.Keys(m.pending)) {
		t := m.pending[i]
		if !t.result.ready() {
			continue
		}
		delete(m.pending, i)
		t.cancel()
		if t.result.err != nil {
			slog.Debug("region generation discarded", "region", CoordAt(i), "err", t.result.err)
			continue
		}
		if ch, ok := m.publish(i, t.req, t.result.detail); ok {
			changes = append(changes, ch)
		}
	}
	return changes
}

// publish applies detail generated from req if it still matches the region.
func (m *Manager) publish(i int, req request, d *Detail) (Change, bool) {
	r := &m.regions[i]
	if req.epoch != m.epoch || req.age != r.StatsAge {
		return Change{}, false
	}
	ch := Change{Coord: r.Coord, From: r.LOD, To: d.Target, Published: true}
	r.apply(d)
	for _, ref := range d.Life {
		if _, seen := m.discovered[ref]; seen {
			continue
		}
		m.discovered[ref] = struct{}{}
		ch.Discovered = append(ch.Discovered, ref)
		if p := r.Planet(ref); p != nil && p.Biosphere != nil && p.Biosphere.Technology {
			m.civs++
		}
	}
	return ch, true
}

// Ensure synchronously brings a region to at least lod, generating detail on
// the calling goroutine. Concurrent calls for the same region and level share
// one generation.
func (m *Manager) Ensure(ctx context.Context, c Coord, lod LOD) (Change, error) {
	if !c.Valid() {
		return Change{}, fmt.Errorf("region %v outside the grid", c)
	}
	i := c.Index()

	m.mu.Lock()
	r := &m.regions[i]
	if r.LOD >= lod && (r.LOD < LODStellar || r.DetailAge == r.StatsAge) {
		m.mu.Unlock()
		return Change{Coord: c, From: r.LOD, To: r.LOD}, nil
	}
	req := newRequest(r, max(lod, r.LOD), m.epoch)
	m.mu.Unlock()

	key := fmt.Sprintf("%d/%d/%d/%v", req.epoch, i, req.target, req.age)
	v, err, _ := m.flight.Do(key, func() (any, error) {
		return m.gen.generate(ctx, req)
	})
	if err != nil {
		return Change{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r.LOD >= req.target && r.DetailAge == req.age {
		return Change{Coord: c, From: r.LOD, To: r.LOD}, nil
	}
	if t, ok := m.pending[i]; ok && t.req.target <= req.target {
		m.drop(i)
	}
	ch, ok := m.publish(i, req, v.(*Detail))
	if !ok {
		return Change{}, fmt.Errorf("%w: region %v superseded during generation", ErrCancelled, c)
	}
	return ch, nil
}

// Region returns a copy of the region at c.
func (m *Manager) Region(c Coord) Region {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regions[c.Index()]
}

// Planet returns a copy of a loaded planet.
func (m *Manager) Planet(ref components.PlanetRef) (procgen.Planet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ref.Region < 0 || ref.Region >= NumRegions {
		return procgen.Planet{}, false
	}
	p := m.regions[ref.Region].Planet(ref)
	if p == nil {
		return procgen.Planet{}, false
	}
	return *p, true
}

// Star returns a copy of a loaded star without its planets.
func (m *Manager) Star(ref components.PlanetRef) (procgen.Star, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ref.Region < 0 || ref.Region >= NumRegions {
		return procgen.Star{}, false
	}
	r := &m.regions[ref.Region]
	if ref.Star < 0 || ref.Star >= len(r.Stars) {
		return procgen.Star{}, false
	}
	s := r.Stars[ref.Star]
	s.Planets = nil
	return s, true
}

// Regions returns a copy of the grid in index order.
func (m *Manager) Regions() []Region {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.regions[:])
}

// Seed returns the current cycle seed.
func (m *Manager) Seed() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seed
}

// StatsAge returns the age the summaries were last computed at.
func (m *Manager) StatsAge() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsAge
}

// Restore replaces the grid with persisted regions. Pending work is
// cancelled and the discovery set is rebuilt from the restored detail.
func (m *Manager) Restore(cycleSeed uint64, statsAge float64, regions []Region) error {
	if len(regions) != NumRegions {
		return fmt.Errorf("restoring regions: got %d, want %d", len(regions), NumRegions)
	}
	for i, r := range regions {
		if r.Coord.Index() != i || !r.Coord.Valid() {
			return fmt.Errorf("restoring regions: region %d has coordinate %v", i, r.Coord)
		}
		if int(r.LOD) >= NumLODs {
			return fmt.Errorf("restoring regions: region %v has %v", r.Coord, r.LOD)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancel()
	m.reset(cycleSeed)
	copy(m.regions[:], regions)
	m.statsAge = statsAge
	m.bootstrapped = true
	for i := range m.regions {
		r := &m.regions[i]
		for _, ref := range r.Life {
			m.discovered[ref] = struct{}{}
			if p := r.Planet(ref); p != nil && p.Biosphere != nil && p.Biosphere.Technology {
				m.civs++
			}
		}
	}
	return nil
}

// Pending returns the number of generation tasks in flight.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Counts returns the number of regions at each level.
func (m *Manager) Counts() [NumLODs]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out [NumLODs]int
	for i := range m.regions {
		out[m.regions[i].LOD]++
	}
	return out
}

// Totals returns the estimated star and planet counts across the grid, and
// the number of stars and planets actually generated.
func (m *Manager) Totals() (stars, planets int64, loadedStars, loadedPlanets int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.regions {
		r := &m.regions[i]
		stars += r.Summary.StarCount
		planets += r.Summary.PlanetCount
		loadedStars += len(r.Stars)
		for j := range r.Stars {
			loadedPlanets += len(r.Stars[j].Planets)
		}
	}
	return
}

// Densest returns the region with the highest density. Ties go to the lowest
// index.
func (m *Manager) Densest() Coord {
	return m.Ranked(1)[0]
}

// Ranked returns the n densest regions, densest first.
func (m *Manager) Ranked(n int) []Coord {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := make([]int, NumRegions)
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(m.regions[b].Summary.Density, m.regions[a].Summary.Density)
	})
	n = min(max(n, 0), NumRegions)
	out := make([]Coord, n)
	for i := range out {
		out[i] = CoordAt(idx[i])
	}
	return out
}

// WithLife returns the inhabited planets currently loaded, in region order.
func (m *Manager) WithLife() []components.PlanetRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []components.PlanetRef
	for i := range m.regions {
		out = append(out, m.regions[i].Life...)
	}
	return out
}

// Discoveries returns how many inhabited planets and civilizations were found
// this cycle.
func (m *Manager) Discoveries() (life, civilizations int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.discovered), m.civs
}
