package procgen

import (
	"math"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/pthm-cable/multiverse/config"
	"github.com/pthm-cable/multiverse/rng"
	"github.com/pthm-cable/multiverse/soul"
	"github.com/pthm-cable/multiverse/traits"
)

// Stage is an evolutionary stage, ordered by complexity.
type Stage uint8

const (
	StageProkaryote Stage = iota
	StageEukaryote
	StageMulticellular
	StageComplex
	StageIntelligent
	StageTechnological

	NumStages = 6
)

var stageNames = [NumStages]string{"prokaryote", "eukaryote", "multicellular", "complex", "intelligent", "technological"}

func (s Stage) String() string {
	if s < NumStages {
		return stageNames[s]
	}
	return "unknown"
}

// stageFloor is the complexity at which each stage begins.
var stageFloor = [NumStages]float64{0, 1, 2, 3, 5, 7}

// StageFor returns the stage that a complexity value falls in.
func StageFor(complexity float64) Stage {
	for s := StageTechnological; s > StageProkaryote; s-- {
		if complexity >= stageFloor[s] {
			return s
		}
	}
	return StageProkaryote
}

// Technology thresholds.
const (
	TechnologyCognition  = 0.8
	TechnologyComplexity = 7.0
)

// Biosphere is the life summary of an inhabited planet.
type Biosphere struct {
	Age        float64        `json:"age"` // Gyr since life emerged
	Stage      Stage          `json:"stage"`
	Species    int64          `json:"species"`
	Biomass    float64        `json:"biomass"`
	Technology bool           `json:"technology"`
	Lineage    uuid.UUID      `json:"lineage"`
	Genome     traits.Genome  `json:"genome"` // dominant genome
	Conditions soul.Condition `json:"conditions"`
}

// typeMultiplier scales life probability by planet type.
func typeMultiplier(t PlanetType) float64 {
	switch t {
	case Rocky:
		return 1
	case Ocean:
		return 0.5
	case Frozen:
		return 0.01
	}
	return 0.001
}

// LifeProbability returns the chance that life emerges on a habitable planet:
// base rate × temperature suitability × type multiplier × time factor,
// clamped to the configured band.
func LifeProbability(temperature float64, t PlanetType, lifeAge float64, cfg config.LifeConfig) float64 {
	p := cfg.BaseRate
	d := temperature - 288
	p *= math.Exp(-d * d / 800)
	p *= typeMultiplier(t)
	p *= math.Max(1-math.Exp(-0.3*lifeAge), 0)
	return min(max(p, cfg.MinProbability), cfg.MaxProbability)
}

// ComplexityCeiling is the hard complexity limit for a planet type.
func ComplexityCeiling(t PlanetType) float64 {
	switch t {
	case Ocean:
		return 6
	case Frozen:
		return 2
	}
	return 10
}

// stageGate gates progression into the stages after eukaryote.
type stageGate struct {
	minAge float64
	chance float64
	floor  float64
	span   float64 // Gyr per unit of complexity gained
	width  float64 // complexity range of the stage
}

var stageGates = []stageGate{
	{minAge: 2.0, chance: 0.2, floor: 2, span: 1.0, width: 1},
	{minAge: 3.0, chance: 0.1, floor: 3, span: 1.0, width: 2},
	{minAge: 3.5, chance: 0.05, floor: 5, span: 1.5, width: 2},
	{minAge: 4.5, chance: 0.01, floor: 7, span: 2.0, width: 3},
}

// EvolveBiosphere advances life through the evolutionary stages for lifeAge
// Gyr and returns the resulting complexity and stage. The planet type's
// ceiling is applied after progression.
func EvolveBiosphere(r *rand.Rand, lifeAge float64, t PlanetType) (float64, Stage) {
	var c float64
	if lifeAge > 0 {
		c = math.Min(lifeAge*2, 1)
	}
	if lifeAge > 0.5 {
		c = 1 + math.Min((lifeAge-0.5)/1.5, 1)
	}
	for _, g := range stageGates {
		if lifeAge <= g.minAge || !rng.Chance(r, g.chance) {
			break
		}
		c = g.floor + math.Min((lifeAge-g.minAge)/g.span, g.width)
	}
	c = math.Min(c, ComplexityCeiling(t))
	return c, StageFor(c)
}

func speciesCount(r *rand.Rand, complexity float64) int64 {
	switch {
	case complexity < 1:
		return r.Int64N(99) + 1
	case complexity < 3:
		return r.Int64N(9_900) + 100
	case complexity < 5:
		return r.Int64N(990_000) + 10_000
	}
	return r.Int64N(49_000_000) + 1_000_000
}
