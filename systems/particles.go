package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/multiverse/components"
	"github.com/pthm-cable/multiverse/config"
	"github.com/pthm-cable/multiverse/rng"
)

// Big Bang spawn constants.
const (
	SpawnRadius      = 0.01  // Mpc, half-width of the initial cube
	MinSpawnSpeed    = 0.1   // Mpc/Gyr
	DarkSpeedFactor  = 0.8   // dark matter launches slower
	MinParticleMass  = 0.001 // floor for massless kinds
	spawnMassJitterL = 0.5
	spawnMassJitterH = 1.5
)

// DarkMatterCount returns how many of n particles are dark matter.
func DarkMatterCount(n int, fraction float64) int {
	return int(math.Round(float64(n) * fraction))
}

// Spawn creates the initial particle population for a cycle seed. Dark
// matter occupies the first DarkMatterCount slots; the rest draw uniformly
// from the baryonic spawn kinds.
func Spawn(cfg *config.Config, seed uint64) []components.Particle {
	n := cfg.Universe.ParticleCount
	nDark := DarkMatterCount(n, cfg.Universe.DarkMatterFraction)
	maxVel := cfg.Universe.BigBangVelocity
	r := rng.For(seed, "big-bang")

	ps := make([]components.Particle, n)
	for i := range ps {
		kind := components.KindDarkMatter
		if i >= nDark {
			kind = rng.Pick(r, components.BaryonicSpawnKinds)
		}

		pos := r3.Vec{
			X: rng.Range(r, -SpawnRadius, SpawnRadius),
			Y: rng.Range(r, -SpawnRadius, SpawnRadius),
			Z: rng.Range(r, -SpawnRadius, SpawnRadius),
		}

		top := maxVel
		if kind.IsDark() {
			top *= DarkSpeedFactor
		}
		dir := rng.UnitVector(r)
		speed := rng.Range(r, MinSpawnSpeed, top)

		mass := kind.RestMass() * rng.Range(r, spawnMassJitterL, spawnMassJitterH)

		ps[i] = components.Particle{
			Pos:         pos,
			Vel:         r3.Scale(speed, r3.Vec{X: dir[0], Y: dir[1], Z: dir[2]}),
			Mass:        math.Max(mass, MinParticleMass),
			Kind:        kind,
			Flags:       components.FlagAlive,
			Temperature: cfg.Universe.InitialTemperature,
		}
	}
	return ps
}

// Compact drops dead particles in place, preserving order, and returns the
// shortened slice.
func Compact(ps []components.Particle) []components.Particle {
	out := ps[:0]
	for i := range ps {
		if ps[i].Alive() {
			out = append(out, ps[i])
		}
	}
	clear(ps[len(out):])
	return out
}

// AliveCount returns the number of alive particles.
func AliveCount(ps []components.Particle) int {
	n := 0
	for i := range ps {
		if ps[i].Alive() {
			n++
		}
	}
	return n
}

// Momentum returns Σ m·v over alive particles.
func Momentum(ps []components.Particle) r3.Vec {
	var p r3.Vec
	for i := range ps {
		if ps[i].Alive() {
			p = r3.Add(p, r3.Scale(ps[i].Mass, ps[i].Vel))
		}
	}
	return p
}

// CountKinds tallies alive particles by kind.
func CountKinds(ps []components.Particle) map[components.Kind]int {
	out := make(map[components.Kind]int)
	for i := range ps {
		if ps[i].Alive() {
			out[ps[i].Kind]++
		}
	}
	return out
}
