package procgen

import (
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pthm-cable/multiverse/rng"
)

// MeanMassDensity is the cosmic average matter density in 10^10 M☉ per Mpc³.
const MeanMassDensity = 4.0

// haloCount is the number of halos mass points cluster around.
const haloCount = 4

// MassPoint is one element of a region's coarse mass summary.
type MassPoint struct {
	Pos  r3.Vec  `json:"pos"`  // Mpc
	Mass float64 `json:"mass"` // 10^10 M☉
}

// MassPoints returns n points clustered around a few halos, with masses
// summing to the region's total mass.
func MassPoints(regionSeed uint64, center r3.Vec, size, density float64, n int) []MassPoint {
	if n <= 0 {
		return nil
	}
	r := rng.For(regionSeed, "mass-points")
	half := size / 2

	var halos [haloCount]r3.Vec
	for i := range halos {
		halos[i] = r3.Vec{
			X: center.X + rng.Range(r, -half, half),
			Y: center.Y + rng.Range(r, -half, half),
			Z: center.Z + rng.Range(r, -half, half),
		}
	}

	offset := distuv.Normal{Mu: 0, Sigma: size / 8, Src: r}
	weight := distuv.Exponential{Rate: 1, Src: r}
	clampAxis := func(v, c float64) float64 {
		return min(max(v, c-half), c+half)
	}

	points := make([]MassPoint, n)
	var sum float64
	for i := range points {
		h := halos[r.IntN(haloCount)]
		points[i].Pos = r3.Vec{
			X: clampAxis(h.X+offset.Rand(), center.X),
			Y: clampAxis(h.Y+offset.Rand(), center.Y),
			Z: clampAxis(h.Z+offset.Rand(), center.Z),
		}
		points[i].Mass = weight.Rand()
		sum += points[i].Mass
	}

	total := density * size * size * size * MeanMassDensity
	if sum > 0 {
		for i := range points {
			points[i].Mass *= total / sum
		}
	}
	return points
}
