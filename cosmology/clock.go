package cosmology

import (
	"fmt"
	"math"
)

// Phase is the totally ordered cosmic era.
type Phase uint8

const (
	PhaseBigBang Phase = iota
	PhaseInflation
	PhaseNuclearEra
	PhaseAtomicEra
	PhaseCosmicDawn
	PhaseStellarEra
	PhaseBiologicalEra
	PhaseCivilizationEra
	PhaseHeatDeath
	PhaseCollapse

	NumPhases = 10
)

var phaseNames = [NumPhases]string{
	"big_bang", "inflation", "nuclear_era", "atomic_era", "cosmic_dawn",
	"stellar_era", "biological_era", "civilization_era", "heat_death", "collapse",
}

func (p Phase) String() string {
	if int(p) < NumPhases {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", p)
}

// phaseMinAge is the age (Gyr) at which each age-driven phase begins.
// HeatDeath and Collapse are entropy-driven and have no entry.
var phaseMinAge = [...]float64{
	PhaseBigBang:         0,
	PhaseInflation:       1e-6,
	PhaseNuclearEra:      1e-5,
	PhaseAtomicEra:       4e-4,
	PhaseCosmicDawn:      0.4,
	PhaseStellarEra:      1.0,
	PhaseBiologicalEra:   10.0,
	PhaseCivilizationEra: 13.0,
}

// MinAge returns the age threshold of an age-driven phase and whether the
// phase is age-driven at all.
func MinAge(p Phase) (float64, bool) {
	if int(p) < len(phaseMinAge) {
		return phaseMinAge[p], true
	}
	return 0, false
}

var hubbleByPhase = [NumPhases]float64{100, 1000, 50, 20, 10, 5, 3, 2, 1, -10}

// HubbleFor returns the fixed expansion rate carried by a phase.
func HubbleFor(p Phase) float64 {
	if int(p) < NumPhases {
		return hubbleByPhase[p]
	}
	return 0
}

// Transition records a phase change.
type Transition struct {
	From Phase
	To   Phase
	Age  float64
}

// Clock is the universe clock. Exactly one exists per simulation; it is
// mutated only by the tick loop.
type Clock struct {
	Age         float64 `json:"age"` // Gyr
	Phase       Phase   `json:"phase"`
	ScaleFactor float64 `json:"scale_factor"`
	Hubble      float64 `json:"hubble"`
	Temperature float64 `json:"temperature"` // K
	Entropy     float64 `json:"entropy"`
	Cycle       uint32  `json:"cycle"`
}

// NewClock returns a clock at the Big Bang of the first cycle.
func NewClock() Clock {
	c := Clock{Cycle: 1}
	c.recompute()
	return c
}

// Advance moves the clock forward by dt Gyr and returns any age-driven
// phase transitions, in order.
func (c *Clock) Advance(dt float64) []Transition {
	if dt > 0 && !math.IsInf(dt, 1) {
		c.Age += dt
	}

	var out []Transition
	for next := c.Phase + 1; next <= PhaseCivilizationEra && c.Phase < PhaseCivilizationEra; next++ {
		if c.Age < phaseMinAge[next] {
			break
		}
		out = append(out, Transition{From: c.Phase, To: next, Age: c.Age})
		c.Phase = next
	}

	c.recompute()
	return out
}

// ObserveEntropy records a fresh entropy measurement and applies the
// entropy-driven transitions. Only a universe in its civilization era can
// reach HeatDeath (entropy at 90% of max), and only HeatDeath can collapse
// (entropy at max), so at most one transition happens per observation.
func (c *Clock) ObserveEntropy(entropy, maxEntropy float64) []Transition {
	c.Entropy = entropy

	var next Phase
	switch {
	case c.Phase == PhaseCivilizationEra && entropy >= HeatDeathFraction*maxEntropy:
		next = PhaseHeatDeath
	case c.Phase == PhaseHeatDeath && entropy >= maxEntropy:
		next = PhaseCollapse
	default:
		return nil
	}

	out := []Transition{{From: c.Phase, To: next, Age: c.Age}}
	c.Phase = next
	c.recompute()
	return out
}

// Collapsed reports whether the clock has reached the rebirth condition.
func (c *Clock) Collapsed() bool {
	return c.Phase == PhaseCollapse
}

// Reset rewinds the clock in place for the next cycle.
func (c *Clock) Reset() {
	c.Age = 0
	c.Phase = PhaseBigBang
	c.Entropy = 0
	c.Cycle++
	c.recompute()
}

func (c *Clock) recompute() {
	c.ScaleFactor = ScaleFactor(c.Age)
	c.Temperature = Temperature(c.ScaleFactor)
	c.Hubble = HubbleFor(c.Phase)
}
