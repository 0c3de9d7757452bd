package biosphere

import (
	"math/rand/v2"

	"github.com/pthm-cable/multiverse/procgen"
	"github.com/pthm-cable/multiverse/rng"
	"github.com/pthm-cable/multiverse/traits"
)

// Mutation step sizes for continuous axes.
const (
	sizeStep       = 0.25
	cognitionStep  = 0.05
	collectiveStep = 0.05
)

// Mutate copies parent and perturbs each axis with probability rate, in
// axis priority order. A perturbation that would break an environmental
// constraint is discarded. Returns the child and the axes that changed.
func Mutate(r *rand.Rand, parent traits.Genome, env procgen.Environment, rate, toolUse float64) (traits.Genome, []traits.Axis) {
	child := parent
	var mutated []traits.Axis
	for _, a := range traits.Axes() {
		if !rng.Chance(r, rate) {
			continue
		}
		trial := child
		perturb(r, a, &trial)
		if trial.Axis(a) == child.Axis(a) || !procgen.Valid(trial, env, toolUse) {
			continue
		}
		child = trial
		mutated = append(mutated, a)
	}
	return child, mutated
}

func perturb(r *rand.Rand, a traits.Axis, g *traits.Genome) {
	switch a {
	case traits.AxisSubstrate:
		g.Substrate = traits.Substrate(r.IntN(traits.NumSubstrates))
	case traits.AxisStructure:
		g.Structure = traits.Structure(neighbour(r, int(g.Structure), traits.NumStructures))
	case traits.AxisSize:
		g.SizeLog = min(max(g.SizeLog+rng.Range(r, -sizeStep, sizeStep), traits.MinSizeLog), traits.MaxSizeLog)
	case traits.AxisEnergy:
		g.Energy = traits.Energy(r.IntN(traits.NumEnergies))
	case traits.AxisSenses:
		bit := traits.Sense(1 << r.IntN(7))
		g.Senses = (g.Senses ^ bit).Add(traits.Chemoreception)
	case traits.AxisCognition:
		g.Cognition = min(max(g.Cognition+rng.Range(r, -cognitionStep, cognitionStep), 0), 1)
	case traits.AxisCollective:
		g.Collective = min(max(g.Collective+rng.Range(r, -collectiveStep, collectiveStep), 0), 1)
	case traits.AxisPropagation:
		g.Propagation = traits.Propagation(r.IntN(traits.NumPropagations))
	case traits.AxisMotility:
		g.Motility = traits.Motility(neighbour(r, int(g.Motility), traits.NumMotilities))
	case traits.AxisInterface:
		g.Interface = traits.Interface(r.IntN(traits.NumInterfaces))
	}
}

// neighbour steps v one place up or down within [0, n).
func neighbour(r *rand.Rand, v, n int) int {
	if rng.Chance(r, 0.5) {
		v++
	} else {
		v--
	}
	return min(max(v, 0), n-1)
}
