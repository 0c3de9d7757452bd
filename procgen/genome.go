package procgen

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/pthm-cable/multiverse/config"
	"github.com/pthm-cable/multiverse/rng"
	"github.com/pthm-cable/multiverse/traits"
)

// Environment is the planet context a genome is synthesized for.
type Environment struct {
	Type        PlanetType
	Atmosphere  Atmosphere
	Temperature float64
	Complexity  float64
}

// Bias carries a lineage's prior genome and per-axis stability from the
// soul ledger. Axes with stability at or above Threshold keep the prior
// value with probability equal to their stability.
type Bias struct {
	Prior     traits.Genome
	Stability [traits.NumAxes]float64
	Threshold float64
}

// SynthesizeGenome draws every axis from its legal domain for the
// environment's complexity, applies the soul bias, then repairs constraint
// violations axis by axis in priority order. An axis that still violates a
// constraint after MaxRepairAttempts redraws falls back to the nearest valid
// value.
func SynthesizeGenome(r *rand.Rand, env Environment, bias *Bias, cfg config.GenomeConfig) traits.Genome {
	var g traits.Genome
	for _, a := range traits.Axes() {
		drawAxis(r, a, env.Complexity, &g)
	}

	if bias != nil {
		for _, a := range traits.Axes() {
			s := bias.Stability[a]
			if s < bias.Threshold || !inDomain(a, bias.Prior, env.Complexity) {
				continue
			}
			if rng.Chance(r, s) {
				g.SetAxis(a, bias.Prior)
			}
		}
	}

	for _, a := range traits.Axes() {
		for i := 0; i < cfg.MaxRepairAttempts && !axisValid(a, g, env, cfg.ToolUseThreshold); i++ {
			drawAxis(r, a, env.Complexity, &g)
		}
		if !axisValid(a, g, env, cfg.ToolUseThreshold) {
			fallback(a, &g, env, cfg.ToolUseThreshold)
		}
	}
	return g
}

// Valid reports whether g satisfies every environmental constraint.
func Valid(g traits.Genome, env Environment, toolUseThreshold float64) bool {
	for _, a := range traits.Axes() {
		if !axisValid(a, g, env, toolUseThreshold) {
			return false
		}
	}
	return true
}

// CompatibleSubstrates lists the substrates a planet supports, preferred
// first.
func CompatibleSubstrates(t PlanetType, temperature float64) []traits.Substrate {
	switch t {
	case Frozen:
		if temperature < 100 {
			return []traits.Substrate{traits.CarbonMethane, traits.Hydrocarbon}
		}
		return []traits.Substrate{traits.CarbonAmmonia, traits.CarbonMethane}
	case Lava:
		return []traits.Substrate{traits.SulfurIron, traits.Silicon}
	case GasGiant, IceGiant:
		return []traits.Substrate{traits.CarbonAmmonia, traits.Hydrocarbon, traits.CarbonWater}
	}
	switch {
	case temperature > 350:
		return []traits.Substrate{traits.SulfurIron, traits.Silicon}
	case temperature < 240:
		return []traits.Substrate{traits.CarbonWater, traits.CarbonAmmonia}
	}
	return []traits.Substrate{traits.CarbonWater}
}

func airborne(m traits.Motility) bool {
	return m == traits.Gliding || m == traits.Flight
}

// axisValid checks the constraints owned by axis a. Constraints only refer
// to axes of higher priority, so repairs never invalidate earlier axes.
func axisValid(a traits.Axis, g traits.Genome, env Environment, toolUse float64) bool {
	switch a {
	case traits.AxisSubstrate:
		return slices.Contains(CompatibleSubstrates(env.Type, env.Temperature), g.Substrate)
	case traits.AxisEnergy:
		return g.Energy != traits.Photosynthesis || env.Atmosphere.TransmitsLight()
	case traits.AxisSenses:
		return !g.Senses.Has(traits.Photoreception) || env.Atmosphere.TransmitsLight()
	case traits.AxisCognition:
		return g.Cognition < toolUse || g.Structure >= traits.Bilateral
	case traits.AxisMotility:
		return !airborne(g.Motility) || (env.Atmosphere.Present() && env.Atmosphere != AtmosphereThinCO2)
	}
	return true
}

// fallback sets axis a to the nearest value that satisfies its constraint.
func fallback(a traits.Axis, g *traits.Genome, env Environment, toolUse float64) {
	switch a {
	case traits.AxisSubstrate:
		g.Substrate = nearest(g.Substrate, traits.NumSubstrates, func(s traits.Substrate) bool {
			return axisValid(a, traits.Genome{Substrate: s}, env, toolUse)
		})
	case traits.AxisEnergy:
		g.Energy = nearest(g.Energy, traits.NumEnergies, func(e traits.Energy) bool {
			return slices.Contains(energyDomain(env.Complexity), e) &&
				axisValid(a, traits.Genome{Energy: e}, env, toolUse)
		})
	case traits.AxisSenses:
		g.Senses = g.Senses.Remove(traits.Photoreception)
	case traits.AxisCognition:
		g.Cognition = math.Nextafter(toolUse, 0)
	case traits.AxisMotility:
		g.Motility = nearest(g.Motility, traits.NumMotilities, func(m traits.Motility) bool {
			return !airborne(m)
		})
	}
}

// nearest returns the value closest to v in [0, n) accepted by ok, lower
// values winning ties. It returns v when nothing is accepted.
func nearest[T ~uint8](v T, n int, ok func(T) bool) T {
	for d := 0; d < n; d++ {
		if lo := int(v) - d; lo >= 0 && ok(T(lo)) {
			return T(lo)
		}
		if hi := int(v) + d; hi < n && ok(T(hi)) {
			return T(hi)
		}
	}
	return v
}

// drawAxis draws one axis from its legal domain at complexity c.
func drawAxis(r *rand.Rand, a traits.Axis, c float64, g *traits.Genome) {
	switch a {
	case traits.AxisSubstrate:
		g.Substrate = traits.Substrate(r.IntN(traits.NumSubstrates))
	case traits.AxisStructure:
		d := structureDomain(c)
		switch {
		case c < 5:
			g.Structure = rng.Pick(r, d)
		case rng.Chance(r, 0.7):
			g.Structure = traits.Bilateral
		default:
			g.Structure = rng.Pick(r, d[:len(d)-1])
		}
	case traits.AxisSize:
		lo, hi := sizeRange(c)
		g.SizeLog = min(max(rng.Range(r, lo, hi), traits.MinSizeLog), traits.MaxSizeLog)
	case traits.AxisEnergy:
		d := energyDomain(c)
		switch {
		case c < 3:
			g.Energy = rng.Pick(r, d)
		case rng.Chance(r, 0.6):
			g.Energy = traits.Heterotrophy
		case rng.Chance(r, 0.5):
			g.Energy = traits.Photosynthesis
		default:
			g.Energy = rng.Pick(r, d[2:])
		}
	case traits.AxisSenses:
		g.Senses = drawSenses(r, c)
	case traits.AxisCognition:
		lo, hi := cognitionRange(c)
		g.Cognition = rng.Range(r, lo, hi)
	case traits.AxisCollective:
		lo, hi := collectiveRange(c)
		g.Collective = rng.Range(r, lo, hi)
	case traits.AxisPropagation:
		d := propagationDomain(c)
		switch {
		case c < 3:
			g.Propagation = rng.Pick(r, d)
		case rng.Chance(r, 0.7):
			g.Propagation = traits.Sexual
		default:
			g.Propagation = rng.Pick(r, d[1:])
		}
	case traits.AxisMotility:
		g.Motility = rng.Pick(r, motilityDomain(c))
	case traits.AxisInterface:
		d := interfaceDomain(c)
		switch {
		case c < 5:
			g.Interface = rng.Pick(r, d)
		case rng.Chance(r, 0.4):
			g.Interface = traits.Endoskeleton
		case rng.Chance(r, 0.3):
			g.Interface = traits.Exoskeleton
		default:
			g.Interface = traits.Covering
		}
	}
}

// inDomain reports whether axis a of g is drawable at complexity c.
func inDomain(a traits.Axis, g traits.Genome, c float64) bool {
	switch a {
	case traits.AxisSubstrate:
		return int(g.Substrate) < traits.NumSubstrates
	case traits.AxisStructure:
		return slices.Contains(structureDomain(c), g.Structure)
	case traits.AxisSize:
		lo, hi := sizeRange(c)
		return g.SizeLog >= lo && g.SizeLog <= hi
	case traits.AxisEnergy:
		return slices.Contains(energyDomain(c), g.Energy)
	case traits.AxisSenses:
		return g.Senses.Has(traits.Chemoreception) && g.Senses&^allowedSenses(c) == 0
	case traits.AxisCognition:
		lo, hi := cognitionRange(c)
		return g.Cognition >= lo && g.Cognition <= hi
	case traits.AxisCollective:
		lo, hi := collectiveRange(c)
		return g.Collective >= lo && g.Collective <= hi
	case traits.AxisPropagation:
		return slices.Contains(propagationDomain(c), g.Propagation)
	case traits.AxisMotility:
		return slices.Contains(motilityDomain(c), g.Motility)
	case traits.AxisInterface:
		return slices.Contains(interfaceDomain(c), g.Interface)
	}
	return false
}

func structureDomain(c float64) []traits.Structure {
	switch {
	case c < 1:
		return []traits.Structure{traits.SingleCell}
	case c < 2:
		return []traits.Structure{traits.SingleCell, traits.Colonial}
	case c < 3:
		return []traits.Structure{traits.SingleCell, traits.Colonial, traits.Biofilm}
	case c < 5:
		return []traits.Structure{traits.Radial, traits.Bilateral, traits.Modular, traits.Branching}
	}
	return []traits.Structure{traits.Radial, traits.Modular, traits.Branching, traits.Asymmetric, traits.Bilateral}
}

func sizeRange(c float64) (float64, float64) {
	switch {
	case c < 1:
		return -6, -4
	case c < 2:
		return -5, -3
	case c < 3:
		return -4, -2
	case c < 5:
		return -3, 0
	case c < 7:
		return -2, 1
	}
	return -1, 1.5
}

func energyDomain(c float64) []traits.Energy {
	switch {
	case c < 1.5:
		return []traits.Energy{traits.Photosynthesis, traits.Chemosynthesis}
	case c < 3:
		return []traits.Energy{traits.Photosynthesis, traits.Chemosynthesis, traits.Geothermal, traits.Fermentation, traits.Thermosynthesis}
	}
	return []traits.Energy{traits.Heterotrophy, traits.Photosynthesis, traits.Chemosynthesis, traits.Geothermal, traits.Osmotic}
}

func allowedSenses(c float64) traits.Sense {
	s := traits.Chemoreception
	if c > 0.5 {
		s = s.Add(traits.Thermoreception)
	}
	if c > 1 {
		s = s.Add(traits.Mechanoreception)
	}
	if c > 2 {
		s = s.Add(traits.Photoreception)
	}
	if c > 3 {
		s = s.Add(traits.Proprioception)
	}
	if c > 4 {
		s = s.Add(traits.Electroreception | traits.Magnetoreception)
	}
	return s
}

func drawSenses(r *rand.Rand, c float64) traits.Sense {
	s := traits.Chemoreception
	if c > 0.5 {
		s = s.Add(traits.Thermoreception)
	}
	if c > 1 {
		s = s.Add(traits.Mechanoreception)
	}
	if c > 2 {
		s = s.Add(traits.Photoreception)
	}
	if c > 3 && rng.Chance(r, 0.3) {
		s = s.Add(traits.Proprioception)
	}
	if c > 4 {
		if rng.Chance(r, 0.15) {
			s = s.Add(traits.Electroreception)
		}
		if rng.Chance(r, 0.2) {
			s = s.Add(traits.Magnetoreception)
		}
	}
	return s
}

func cognitionRange(c float64) (float64, float64) {
	switch {
	case c < 2:
		return 0, 0.05
	case c < 3:
		return 0, 0.1
	case c < 5:
		return 0.1, 0.3
	case c < 7:
		return 0.2, 0.6
	}
	return 0.5, 0.95
}

func collectiveRange(c float64) (float64, float64) {
	switch {
	case c < 1:
		return 0, 0
	case c < 3:
		return 0, 0.3
	case c < 5:
		return 0, 0.6
	}
	return 0.1, 1
}

func propagationDomain(c float64) []traits.Propagation {
	switch {
	case c < 1:
		return []traits.Propagation{traits.Fission}
	case c < 2:
		return []traits.Propagation{traits.Fission, traits.Budding, traits.Spore}
	case c < 3:
		return []traits.Propagation{traits.Spore, traits.Fragmentation, traits.Parthenogenesis}
	}
	return []traits.Propagation{traits.Sexual, traits.Spore, traits.Parthenogenesis}
}

func motilityDomain(c float64) []traits.Motility {
	switch {
	case c < 1:
		return []traits.Motility{traits.Sessile, traits.Drift, traits.Flagellar}
	case c < 3:
		return []traits.Motility{traits.Sessile, traits.Drift, traits.Flagellar, traits.Crawling}
	case c < 5:
		return []traits.Motility{traits.Sessile, traits.Crawling, traits.Swimming, traits.Walking, traits.Gliding}
	}
	return []traits.Motility{traits.Crawling, traits.Swimming, traits.Walking, traits.Gliding, traits.Flight}
}

func interfaceDomain(c float64) []traits.Interface {
	switch {
	case c < 1:
		return []traits.Interface{traits.Membrane, traits.CellWall}
	case c < 3:
		return []traits.Interface{traits.Membrane, traits.CellWall, traits.Mucous}
	case c < 5:
		return []traits.Interface{traits.Exoskeleton, traits.Endoskeleton, traits.Shell}
	}
	return []traits.Interface{traits.Endoskeleton, traits.Exoskeleton, traits.Covering}
}
