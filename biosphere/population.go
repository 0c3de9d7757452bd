// Package biosphere runs the creature population of planets held at
// Biosphere detail. Creatures are ECS entities; each carries its lineage and
// genome, ages, dies and leaves mutated offspring. Births, mutations and
// deaths feed the soul tracker.
package biosphere

import (
	"cmp"
	"slices"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/multiverse/components"
	"github.com/pthm-cable/multiverse/config"
	"github.com/pthm-cable/multiverse/procgen"
	"github.com/pthm-cable/multiverse/rng"
	"github.com/pthm-cable/multiverse/soul"
	"github.com/pthm-cable/multiverse/traits"
)

// Home is an inhabited planet whose creatures are simulated.
type Home struct {
	Ref        components.PlanetRef `json:"ref"`
	Env        procgen.Environment  `json:"env"`
	Conditions soul.Condition       `json:"conditions"`
}

// Creature is a flat copy of one entity, used for snapshots.
type Creature struct {
	Organism components.Organism `json:"organism"`
	Genome   traits.Genome       `json:"genome"`
}

// Population owns the creature ECS world.
type Population struct {
	world  *ecs.World
	mapper *ecs.Map2[components.Organism, components.Heritage]
	filter *ecs.Filter2[components.Organism, components.Heritage]

	cfg     config.BiosphereConfig
	toolUse float64
	tracker *soul.Tracker
	homes   map[components.PlanetRef]Home
	counts  map[components.PlanetRef]int
	nextID  uint32
	births  int
	deaths  int
}

// New creates an empty population. tracker receives births, mutations and
// deaths.
func New(cfg *config.Config, tracker *soul.Tracker) *Population {
	world := ecs.NewWorld()
	return &Population{
		world:   world,
		mapper:  ecs.NewMap2[components.Organism, components.Heritage](world),
		filter:  ecs.NewFilter2[components.Organism, components.Heritage](world),
		cfg:     cfg.Biosphere,
		toolUse: cfg.Genome.ToolUseThreshold,
		tracker: tracker,
		homes:   make(map[components.PlanetRef]Home),
		counts:  make(map[components.PlanetRef]int),
		nextID:  1,
	}
}

// Seed spawns the founding cohort of an inhabited planet from its dominant
// genome. Seeding a planet that already has creatures is a no-op. Returns
// the number of creatures spawned.
func (p *Population) Seed(ref components.PlanetRef, planet *procgen.Planet) int {
	if planet.Biosphere == nil || p.counts[ref] > 0 {
		return 0
	}
	bio := planet.Biosphere
	home := Home{
		Ref: ref,
		Env: procgen.Environment{
			Type:        planet.Type,
			Atmosphere:  planet.Atmosphere,
			Temperature: planet.Temperature,
			Complexity:  planet.Complexity,
		},
		Conditions: bio.Conditions,
	}
	p.homes[ref] = home
	p.tracker.Register(bio.Lineage, bio.Genome, bio.Conditions)

	n := max(p.cfg.MaxPopulation/2, 1)
	for i := 0; i < n; i++ {
		seed := rng.Derive(planet.Seed, "creature", i)
		org := components.Organism{
			Lineage: bio.Lineage,
			Home:    ref,
			Seed:    seed,
		}
		p.spawn(org, bio.Genome, nil)
	}
	return n
}

// spawn creates an entity, assigning its ID and lifespan, and records the
// birth.
func (p *Population) spawn(org components.Organism, g traits.Genome, mutated []traits.Axis) {
	org.ID = p.nextID
	p.nextID++
	org.Age = 0
	org.Lifespan = p.lifespan(org.Seed, g)
	her := components.Heritage{Genome: g}
	p.mapper.NewEntity(&org, &her)

	p.counts[org.Home]++
	p.births++
	p.tracker.RecordBirth(org.Lineage, mutated)
}

// lifespan scales the base lifespan with body size and jitters it by the
// creature's own stream.
func (p *Population) lifespan(seed uint64, g traits.Genome) float64 {
	size := (g.SizeLog - traits.MinSizeLog) / (traits.MaxSizeLog - traits.MinSizeLog)
	return p.cfg.BaseLifespan * (1 + 2*size) * rng.Range(rng.For(seed, "lifespan"), 0.5, 1.5)
}

type death struct {
	entity ecs.Entity
	org    components.Organism
	genome traits.Genome
}

// Step ages every creature by dt Gyr. Creatures past their lifespan die and
// are replaced by offspring, up to the per-planet population cap.
func (p *Population) Step(dt float64) {
	if dt <= 0 {
		return
	}

	// First pass: age and collect the dead (must complete before modifying)
	var dead []death
	query := p.filter.Query()
	for query.Next() {
		org, her := query.Get()
		org.Age += dt
		if org.Age >= org.Lifespan {
			dead = append(dead, death{entity: query.Entity(), org: *org, genome: her.Genome})
		}
	}
	slices.SortFunc(dead, func(a, b death) int { return cmp.Compare(a.org.ID, b.org.ID) })

	// Second pass: remove and reproduce
	for _, d := range dead {
		p.remove(d.entity, d.org)
	}
	for _, d := range dead {
		home, ok := p.homes[d.org.Home]
		if !ok {
			continue
		}
		for k := 0; k < p.litter(d.org.Seed, d.genome); k++ {
			if p.counts[d.org.Home] >= p.cfg.MaxPopulation {
				break
			}
			child := components.Organism{
				Lineage:    d.org.Lineage,
				Home:       d.org.Home,
				Generation: d.org.Generation + 1,
				Seed:       rng.Derive(d.org.Seed, "child", k),
			}
			g, mutated := Mutate(rng.For(child.Seed, "mutation"), d.genome, home.Env, p.cfg.MutationRate, p.toolUse)
			p.spawn(child, g, mutated)
		}
	}
}

// litter returns the number of offspring a dying creature leaves.
func (p *Population) litter(seed uint64, g traits.Genome) int {
	if g.Propagation != traits.Sexual {
		return 2
	}
	if rng.Chance(rng.For(seed, "litter"), 0.5) {
		return 2
	}
	return 1
}

// remove deletes an entity and records the death with the age reached.
func (p *Population) remove(e ecs.Entity, org components.Organism) {
	p.world.RemoveEntity(e)
	p.counts[org.Home]--
	if p.counts[org.Home] <= 0 {
		delete(p.counts, org.Home)
	}
	p.deaths++
	p.tracker.RecordDeath(org.Lineage, org.Age)
}

// Despawn removes every creature of a planet, recording each death with the
// age reached. Returns the number removed.
func (p *Population) Despawn(ref components.PlanetRef) int {
	return p.despawnWhere(func(org *components.Organism) bool { return org.Home == ref })
}

// DespawnAll removes every creature.
func (p *Population) DespawnAll() int {
	return p.despawnWhere(func(*components.Organism) bool { return true })
}

func (p *Population) despawnWhere(match func(*components.Organism) bool) int {
	var dead []death
	query := p.filter.Query()
	for query.Next() {
		org, _ := query.Get()
		if match(org) {
			dead = append(dead, death{entity: query.Entity(), org: *org})
		}
	}
	slices.SortFunc(dead, func(a, b death) int { return cmp.Compare(a.org.ID, b.org.ID) })
	for _, d := range dead {
		p.remove(d.entity, d.org)
		if p.counts[d.org.Home] == 0 {
			delete(p.homes, d.org.Home)
		}
	}
	return len(dead)
}

// Count returns the number of living creatures.
func (p *Population) Count() int {
	var n int
	for _, c := range p.counts {
		n += c
	}
	return n
}

// CountAt returns the number of creatures on a planet.
func (p *Population) CountAt(ref components.PlanetRef) int {
	return p.counts[ref]
}

// Totals returns births and deaths since creation.
func (p *Population) Totals() (births, deaths int) {
	return p.births, p.deaths
}

// Creatures returns every living creature ordered by ID.
func (p *Population) Creatures() []Creature {
	var out []Creature
	query := p.filter.Query()
	for query.Next() {
		org, her := query.Get()
		out = append(out, Creature{Organism: *org, Genome: her.Genome})
	}
	slices.SortFunc(out, func(a, b Creature) int { return cmp.Compare(a.Organism.ID, b.Organism.ID) })
	return out
}

// Homes returns the simulated planets ordered by reference.
func (p *Population) Homes() []Home {
	out := make([]Home, 0, len(p.homes))
	for _, h := range p.homes {
		out = append(out, h)
	}
	slices.SortFunc(out, func(a, b Home) int { return compareRef(a.Ref, b.Ref) })
	return out
}

// Restore replaces the population with persisted creatures. The tracker is
// not touched; it is restored separately.
func (p *Population) Restore(homes []Home, creatures []Creature) {
	var entities []ecs.Entity
	query := p.filter.Query()
	for query.Next() {
		entities = append(entities, query.Entity())
	}
	for _, e := range entities {
		p.world.RemoveEntity(e)
	}
	clear(p.homes)
	clear(p.counts)
	p.nextID = 1
	for _, h := range homes {
		p.homes[h.Ref] = h
	}
	for _, c := range creatures {
		org, her := c.Organism, components.Heritage{Genome: c.Genome}
		p.mapper.NewEntity(&org, &her)
		p.counts[org.Home]++
		p.nextID = max(p.nextID, org.ID+1)
	}
}

func compareRef(a, b components.PlanetRef) int {
	if c := cmp.Compare(a.Region, b.Region); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Star, b.Star); c != 0 {
		return c
	}
	return cmp.Compare(a.Planet, b.Planet)
}
