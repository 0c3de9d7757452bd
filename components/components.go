// Package components defines the dense particle buffer and the ECS components
// used by the creature population.
package components

import (
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/multiverse/traits"
)

// Kind is the closed set of particle variants. Values are stable and appear
// in snapshots.
type Kind uint8

const (
	// Quarks
	KindUpQuark   Kind = 0
	KindDownQuark Kind = 1
	// Leptons
	KindElectron Kind = 2
	KindNeutrino Kind = 3
	// Bosons
	KindPhoton Kind = 4
	KindGluon  Kind = 5
	// Baryons
	KindProton  Kind = 10
	KindNeutron Kind = 11
	// Atoms
	KindHydrogen Kind = 20
	KindHelium   Kind = 21
	KindCarbon   Kind = 22
	KindNitrogen Kind = 23
	KindOxygen   Kind = 24
	KindIron     Kind = 25

	KindDarkMatter Kind = 100
)

// RestMass returns the fixed rest mass of a kind in simulation mass units.
func (k Kind) RestMass() float64 {
	switch k {
	case KindUpQuark, KindDownQuark:
		return 0.003
	case KindElectron:
		return 0.0005
	case KindProton, KindNeutron, KindHydrogen:
		return 1.0
	case KindHelium:
		return 4.0
	case KindCarbon:
		return 12.0
	case KindNitrogen:
		return 14.0
	case KindOxygen:
		return 16.0
	case KindIron:
		return 56.0
	case KindDarkMatter:
		return 10.0
	}
	return 0 // neutrino, photon, gluon
}

// IsDark reports whether the kind is dark matter.
func (k Kind) IsDark() bool {
	return k == KindDarkMatter
}

func (k Kind) String() string {
	switch k {
	case KindUpQuark:
		return "up_quark"
	case KindDownQuark:
		return "down_quark"
	case KindElectron:
		return "electron"
	case KindNeutrino:
		return "neutrino"
	case KindPhoton:
		return "photon"
	case KindGluon:
		return "gluon"
	case KindProton:
		return "proton"
	case KindNeutron:
		return "neutron"
	case KindHydrogen:
		return "hydrogen"
	case KindHelium:
		return "helium"
	case KindCarbon:
		return "carbon"
	case KindNitrogen:
		return "nitrogen"
	case KindOxygen:
		return "oxygen"
	case KindIron:
		return "iron"
	case KindDarkMatter:
		return "dark_matter"
	}
	return "unknown"
}

// BaryonicSpawnKinds are the kinds drawn uniformly for non-dark Big Bang particles.
var BaryonicSpawnKinds = []Kind{KindUpQuark, KindDownQuark, KindElectron, KindPhoton}

// Flags holds per-particle state bits.
type Flags uint8

const (
	FlagAlive Flags = 1 << iota
)

// Particle is one element of the dense particle buffer. The layout groups
// position+mass, velocity+aux, kind/flags and temperature so that an
// alternate executor can consume the same buffer.
type Particle struct {
	Pos         r3.Vec  `json:"pos"`  // Mpc
	Mass        float64 `json:"mass"` // 10^10 solar masses
	Vel         r3.Vec  `json:"vel"`  // Mpc/Gyr
	Aux         float64 `json:"aux"`
	Kind        Kind    `json:"kind"`
	Flags       Flags   `json:"flags"`
	Temperature float64 `json:"temperature"` // K
}

// Alive reports whether the particle participates in simulation.
func (p *Particle) Alive() bool {
	return p.Flags&FlagAlive != 0
}

// Kill logically removes the particle; it is dropped at the next compaction.
func (p *Particle) Kill() {
	p.Flags &^= FlagAlive
}

// PlanetRef addresses a planet by stable integer handles.
type PlanetRef struct {
	Region int `json:"region"`
	Star   int `json:"star"`
	Planet int `json:"planet"`
}

// Organism holds creature state for the biosphere ECS.
type Organism struct {
	ID         uint32
	Lineage    uuid.UUID
	Home       PlanetRef
	Age        float64 // Gyr
	Lifespan   float64 // Gyr
	Generation uint32
	Seed       uint64 // per-creature RNG seed
}

// Heritage holds the creature's genome.
type Heritage struct {
	Genome traits.Genome
}
