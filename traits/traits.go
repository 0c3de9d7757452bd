// Package traits defines the genome: ten independent trait axes, their
// enumerated values and human-readable descriptions.
package traits

import (
	"fmt"
	"math/bits"
)

// Axis identifies one of the ten genome trait axes. The declaration order is
// the fixed priority used when resolving cross-axis constraints.
type Axis uint8

const (
	AxisSubstrate Axis = iota
	AxisStructure
	AxisSize
	AxisEnergy
	AxisSenses
	AxisCognition
	AxisCollective
	AxisPropagation
	AxisMotility
	AxisInterface

	NumAxes = 10
)

var axisNames = [NumAxes]string{
	"substrate", "structure", "size", "energy", "senses",
	"cognition", "collective", "propagation", "motility", "interface",
}

func (a Axis) String() string {
	if int(a) < NumAxes {
		return axisNames[a]
	}
	return fmt.Sprintf("axis(%d)", a)
}

// Axes returns all axes in priority order.
func Axes() [NumAxes]Axis {
	var out [NumAxes]Axis
	for i := range out {
		out[i] = Axis(i)
	}
	return out
}

// Substrate is the biochemical basis of life.
type Substrate uint8

const (
	CarbonWater Substrate = iota
	CarbonAmmonia
	CarbonMethane
	Silicon
	SulfurIron
	Hydrocarbon

	NumSubstrates = 6
)

var substrateNames = [NumSubstrates]string{"carbon-water", "carbon-ammonia", "carbon-methane", "silicon", "sulfur-iron", "hydrocarbon"}
var substrateTags = [NumSubstrates]string{"C-H2O", "C-NH3", "C-CH4", "Si", "S-Fe", "HC"}

func (s Substrate) String() string {
	if int(s) < NumSubstrates {
		return substrateNames[s]
	}
	return substrateNames[CarbonWater]
}

// Structure is the body plan.
type Structure uint8

const (
	SingleCell Structure = iota
	Colonial
	Biofilm
	Radial
	Bilateral
	Modular
	Branching
	Asymmetric

	NumStructures = 8
)

var structureNames = [NumStructures]string{"unicellular", "colonial", "biofilm", "radial", "bilateral", "modular", "branching", "asymmetric"}

func (s Structure) String() string {
	if int(s) < NumStructures {
		return structureNames[s]
	}
	return structureNames[Asymmetric]
}

// Sense is a bitmap of sensory modalities.
type Sense uint8

const (
	Photoreception Sense = 1 << iota // light
	Mechanoreception                 // touch, hearing
	Chemoreception                   // smell, taste
	Thermoreception                  // heat
	Electroreception                 // electric fields
	Magnetoreception                 // navigation
	Proprioception                   // body awareness

	AllSenses = Photoreception | Mechanoreception | Chemoreception | Thermoreception |
		Electroreception | Magnetoreception | Proprioception
)

// Has checks if a sense set contains a sense.
func (s Sense) Has(other Sense) bool {
	return s&other != 0
}

// Add adds a sense to the set.
func (s Sense) Add(other Sense) Sense {
	return s | other
}

// Remove removes a sense from the set.
func (s Sense) Remove(other Sense) Sense {
	return s &^ other
}

// Count returns the number of active modalities.
func (s Sense) Count() int {
	return bits.OnesCount8(uint8(s & AllSenses))
}

// Energy is the metabolic energy source.
type Energy uint8

const (
	Photosynthesis Energy = iota
	Chemosynthesis
	Geothermal
	Radiotrophic
	Fermentation
	Osmotic
	Thermosynthesis
	Heterotrophy

	NumEnergies = 8
)

var energyNames = [NumEnergies]string{"photosynthetic", "chemosynthetic", "geothermal", "radiotrophic", "fermenter", "osmotrophic", "thermosynthetic", "heterotroph"}

func (e Energy) String() string {
	if int(e) < NumEnergies {
		return energyNames[e]
	}
	return energyNames[Heterotrophy]
}

// Propagation is the reproductive strategy.
type Propagation uint8

const (
	Fission Propagation = iota
	Budding
	Spore
	Fragmentation
	Sexual
	Parthenogenesis

	NumPropagations = 6
)

var propagationNames = [NumPropagations]string{"fission", "budding", "spore", "fragmentation", "sexual", "parthenogenesis"}

func (p Propagation) String() string {
	if int(p) < NumPropagations {
		return propagationNames[p]
	}
	return propagationNames[Fission]
}

// Motility is the locomotion mode.
type Motility uint8

const (
	Sessile Motility = iota
	Drift
	Flagellar
	Crawling
	Swimming
	Walking
	Gliding
	Flight

	NumMotilities = 8
)

var motilityNames = [NumMotilities]string{"sessile", "drifting", "flagellar", "crawling", "swimming", "walking", "gliding", "flying"}

func (m Motility) String() string {
	if int(m) < NumMotilities {
		return motilityNames[m]
	}
	return motilityNames[Flight]
}

// Interface is the organism's outer boundary.
type Interface uint8

const (
	Membrane Interface = iota
	CellWall
	Exoskeleton
	Endoskeleton
	Shell
	Mucous
	Covering // fur, feathers, scales

	NumInterfaces = 7
)

var interfaceNames = [NumInterfaces]string{"membrane", "cell-wall", "exoskeleton", "endoskeleton", "shell", "mucous", "covering"}

func (i Interface) String() string {
	if int(i) < NumInterfaces {
		return interfaceNames[i]
	}
	return interfaceNames[Membrane]
}

// Size bounds in log10 metres.
const (
	MinSizeLog = -6.0
	MaxSizeLog = 2.0
)

// Genome is a fixed vector of ten independent trait axes.
type Genome struct {
	Substrate   Substrate   `json:"substrate"`
	Structure   Structure   `json:"structure"`
	SizeLog     float64     `json:"size_log"`
	Energy      Energy      `json:"energy"`
	Senses      Sense       `json:"senses"`
	Cognition   float64     `json:"cognition"`  // [0,1]
	Collective  float64     `json:"collective"` // [0,1]
	Propagation Propagation `json:"propagation"`
	Motility    Motility    `json:"motility"`
	Interface   Interface   `json:"interface"`
}

// Primordial returns the simplest self-replicating genome.
func Primordial() Genome {
	return Genome{
		Substrate: CarbonWater,
		Structure: SingleCell,
		SizeLog:   -5,
		Energy:    Chemosynthesis,
		Senses:    Chemoreception,
	}
}

// Axis returns the numeric value of an axis.
func (g Genome) Axis(a Axis) float64 {
	switch a {
	case AxisSubstrate:
		return float64(g.Substrate)
	case AxisStructure:
		return float64(g.Structure)
	case AxisSize:
		return g.SizeLog
	case AxisEnergy:
		return float64(g.Energy)
	case AxisSenses:
		return float64(g.Senses)
	case AxisCognition:
		return g.Cognition
	case AxisCollective:
		return g.Collective
	case AxisPropagation:
		return float64(g.Propagation)
	case AxisMotility:
		return float64(g.Motility)
	case AxisInterface:
		return float64(g.Interface)
	}
	return 0
}

// SetAxis copies one axis value from other.
func (g *Genome) SetAxis(a Axis, other Genome) {
	switch a {
	case AxisSubstrate:
		g.Substrate = other.Substrate
	case AxisStructure:
		g.Structure = other.Structure
	case AxisSize:
		g.SizeLog = other.SizeLog
	case AxisEnergy:
		g.Energy = other.Energy
	case AxisSenses:
		g.Senses = other.Senses
	case AxisCognition:
		g.Cognition = other.Cognition
	case AxisCollective:
		g.Collective = other.Collective
	case AxisPropagation:
		g.Propagation = other.Propagation
	case AxisMotility:
		g.Motility = other.Motility
	case AxisInterface:
		g.Interface = other.Interface
	}
}

// Diff returns the axes on which g and other differ.
func (g Genome) Diff(other Genome) []Axis {
	var out []Axis
	for _, a := range Axes() {
		if g.Axis(a) != other.Axis(a) {
			out = append(out, a)
		}
	}
	return out
}

// Describe returns a one-line description, e.g.
// "meso carbon-water bilateral learning (herd, heterotroph, walking)".
func (g Genome) Describe() string {
	return fmt.Sprintf("%s %s %s %s (%s, %s, %s)",
		g.scale(), g.Substrate, g.Structure, g.mind(), g.social(), g.Energy, g.Motility)
}

// Short returns a compact tag such as "C-H2O-SIMPLE".
func (g Genome) Short() string {
	tag := substrateTags[CarbonWater]
	if int(g.Substrate) < NumSubstrates {
		tag = substrateTags[g.Substrate]
	}
	switch {
	case g.Cognition > 0.8:
		return tag + "-SAPIENT"
	case g.Cognition > 0.4:
		return tag + "-COMPLEX"
	}
	return tag + "-SIMPLE"
}

func (g Genome) scale() string {
	switch {
	case g.SizeLog < -4:
		return "molecular"
	case g.SizeLog < -2:
		return "micro"
	case g.SizeLog < 0:
		return "meso"
	case g.SizeLog < 2:
		return "macro"
	}
	return "mega"
}

func (g Genome) mind() string {
	switch {
	case g.Cognition > 0.8:
		return "sapient"
	case g.Cognition > 0.6:
		return "tool-using"
	case g.Cognition > 0.4:
		return "problem-solving"
	case g.Cognition > 0.2:
		return "learning"
	case g.Cognition > 0.1:
		return "taxis"
	}
	return "reactive"
}

func (g Genome) social() string {
	switch {
	case g.Collective > 0.8:
		return "superorganism"
	case g.Collective > 0.6:
		return "eusocial"
	case g.Collective > 0.4:
		return "herd"
	case g.Collective > 0.2:
		return "social"
	}
	return "solitary"
}
