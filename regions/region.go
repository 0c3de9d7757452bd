// Package regions maintains the fixed 8×8×8 grid of universe regions and
// assigns each a level of detail from the observer's position. Detail above
// Galactic is generated in the background and published atomically.
package regions

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/multiverse/components"
	"github.com/pthm-cable/multiverse/procgen"
)

// Grid geometry.
const (
	GridSize   = 8
	NumRegions = GridSize * GridSize * GridSize
	RegionSize = 100.0 // Mpc
	gridOffset = GridSize * RegionSize / 2
)

// LOD is a region's level of detail, ordered low to high.
type LOD uint8

const (
	LODStatistical LOD = iota // aggregate stats only
	LODGalactic               // coarse mass points
	LODStellar                // individual stars
	LODPlanetary              // stars with planets
	LODBiosphere              // life simulation active

	NumLODs = 5
)

var lodNames = [NumLODs]string{"statistical", "galactic", "stellar", "planetary", "biosphere"}

func (l LOD) String() string {
	if int(l) < NumLODs {
		return lodNames[l]
	}
	return fmt.Sprintf("lod(%d)", l)
}

// ParseLOD parses a level name.
func ParseLOD(s string) (LOD, error) {
	for i, name := range lodNames {
		if name == s {
			return LOD(i), nil
		}
	}
	return 0, fmt.Errorf("unknown level of detail %q", s)
}

// Coord is a region's grid coordinate.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Index returns the coordinate's stable handle in [0, NumRegions).
func (c Coord) Index() int {
	return (c.X*GridSize+c.Y)*GridSize + c.Z
}

// Valid reports whether the coordinate lies inside the grid.
func (c Coord) Valid() bool {
	return c.X >= 0 && c.X < GridSize && c.Y >= 0 && c.Y < GridSize && c.Z >= 0 && c.Z < GridSize
}

// Center returns the region's center in Mpc.
func (c Coord) Center() r3.Vec {
	return r3.Vec{
		X: float64(c.X)*RegionSize - gridOffset + RegionSize/2,
		Y: float64(c.Y)*RegionSize - gridOffset + RegionSize/2,
		Z: float64(c.Z)*RegionSize - gridOffset + RegionSize/2,
	}
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// CoordAt returns the coordinate of an index.
func CoordAt(index int) Coord {
	return Coord{
		X: index / (GridSize * GridSize),
		Y: index / GridSize % GridSize,
		Z: index % GridSize,
	}
}

// CoordOf returns the region containing pos, and false when pos lies outside
// the grid.
func CoordOf(pos r3.Vec) (Coord, bool) {
	axis := func(v float64) int {
		return int(math.Floor((v + gridOffset) / RegionSize))
	}
	c := Coord{X: axis(pos.X), Y: axis(pos.Y), Z: axis(pos.Z)}
	return c, c.Valid()
}

// Region is one cell of the grid. The summary is kept across demotion;
// generated sub-entities are not.
type Region struct {
	Coord      Coord           `json:"coord"`
	Seed       uint64          `json:"seed"`
	LOD        LOD             `json:"lod"`
	Summary    procgen.Summary `json:"summary"`
	DarkMatter float64         `json:"dark_matter"`
	StatsAge   float64         `json:"stats_age"` // age the summary was computed at

	// Generated detail. DetailAge is the summary age it was generated from.
	DetailAge  float64                `json:"detail_age,omitempty"`
	MassPoints []procgen.MassPoint    `json:"mass_points,omitempty"`
	Stars      []procgen.Star         `json:"stars,omitempty"`
	Life       []components.PlanetRef `json:"life,omitempty"`
}

// Planet returns the generated planet at ref, or nil when it is not loaded.
func (r *Region) Planet(ref components.PlanetRef) *procgen.Planet {
	if ref.Star < 0 || ref.Star >= len(r.Stars) {
		return nil
	}
	star := &r.Stars[ref.Star]
	if ref.Planet < 0 || ref.Planet >= len(star.Planets) {
		return nil
	}
	return &star.Planets[ref.Planet]
}

// demote discards detail above lod. Published detail is shared with copies
// handed out by the manager, so it is replaced, never modified in place.
func (r *Region) demote(lod LOD) {
	switch {
	case lod < LODGalactic:
		r.MassPoints = nil
		fallthrough
	case lod < LODStellar:
		r.Stars = nil
		r.Life = nil
		r.DetailAge = 0
	case lod < LODPlanetary:
		stars := slices.Clone(r.Stars)
		for i := range stars {
			stars[i].Planets = nil
		}
		r.Stars = stars
		r.Life = nil
	}
	r.LOD = lod
}

// apply publishes generated detail.
func (r *Region) apply(d *Detail) {
	r.DetailAge = d.Age
	r.MassPoints = d.MassPoints
	r.Stars = d.Stars
	r.Life = d.Life
	r.LOD = d.Target
}

// Observer is the externally driven viewpoint consumed each tick.
type Observer struct {
	Pos  r3.Vec `json:"pos"`  // Mpc
	Hint LOD    `json:"hint"` // desired detail for the region containing Pos
}

// Desired returns the level a region should hold for the observer. The
// containing region gets at least Stellar detail, or the hint when higher;
// neighbours within two region widths get Galactic detail.
func Desired(c Coord, o Observer) LOD {
	if here, ok := CoordOf(o.Pos); ok && here == c {
		return max(LODStellar, min(o.Hint, LODBiosphere))
	}
	if r3.Norm(r3.Sub(c.Center(), o.Pos)) < 2*RegionSize {
		return LODGalactic
	}
	return LODStatistical
}
