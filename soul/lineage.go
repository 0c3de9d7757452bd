// Package soul tracks genetic lineages within a cycle and carries a compressed
// experience vector per lineage across cycles.
package soul

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pthm-cable/multiverse/components"
)

// Namespace scopes lineage identifiers.
var Namespace = uuid.MustParse("6f1c2a9e-3b7d-4e58-9a41-2d8c7e5b0f13")

// LineageID returns the stable identity of the lineage native to a planet.
// It depends only on the universe seed and the planet's path, so the same
// lineage is addressed in every cycle.
func LineageID(universeSeed uint64, ref components.PlanetRef) uuid.UUID {
	path := fmt.Appendf(nil, "%d/%d/%d/%d", universeSeed, ref.Region, ref.Star, ref.Planet)
	return uuid.NewSHA1(Namespace, path)
}

// Condition is a bitmask of extreme environmental conditions a lineage has
// survived.
type Condition uint16

const (
	ConditionScorching Condition = 1 << iota // surface above 350 K
	ConditionFrigid                          // surface below 220 K
	ConditionHighGravity
	ConditionLowGravity
	ConditionThinAir
	ConditionToxicAir
	ConditionOceanic
	ConditionDimStar
	ConditionBrightStar

	numConditions = 9
)

var conditionNames = [numConditions]string{
	"scorching", "frigid", "high_gravity", "low_gravity", "thin_air",
	"toxic_air", "oceanic", "dim_star", "bright_star",
}

// Has checks if the set contains every bit of other.
func (c Condition) Has(other Condition) bool {
	return c&other == other
}

// Add adds conditions to the set.
func (c Condition) Add(other Condition) Condition {
	return c | other
}

// Names returns the names of the set conditions in bit order.
func (c Condition) Names() []string {
	var out []string
	for i := 0; i < numConditions; i++ {
		if c&(1<<i) != 0 {
			out = append(out, conditionNames[i])
		}
	}
	return out
}

func (c Condition) String() string {
	if c == 0 {
		return "none"
	}
	return strings.Join(c.Names(), ",")
}
