package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/multiverse/components"
)

// dispersionFloor keeps ln() finite when every velocity is identical.
const dispersionFloor = 1e-30

// Entropy returns the velocity-dispersion entropy proxy:
// ln(Σ per-axis population variance) · alive count, floored at zero.
// This is a disorder measure, not thermodynamic entropy. Zero alive
// particles yield zero.
func Entropy(ps []components.Particle) float64 {
	vx := make([]float64, 0, len(ps))
	vy := make([]float64, 0, len(ps))
	vz := make([]float64, 0, len(ps))
	for i := range ps {
		if !ps[i].Alive() {
			continue
		}
		vx = append(vx, ps[i].Vel.X)
		vy = append(vy, ps[i].Vel.Y)
		vz = append(vz, ps[i].Vel.Z)
	}

	n := len(vx)
	if n == 0 {
		return 0
	}

	dispersion := stat.PopVariance(vx, nil) + stat.PopVariance(vy, nil) + stat.PopVariance(vz, nil)
	if math.IsNaN(dispersion) || dispersion < dispersionFloor {
		dispersion = dispersionFloor
	}
	return math.Max(math.Log(dispersion), 0) * float64(n)
}

// MeanKineticEnergy returns the mean ½mv² over alive particles.
func MeanKineticEnergy(ps []components.Particle) float64 {
	var total float64
	n := 0
	for i := range ps {
		if ps[i].Alive() {
			total += 0.5 * ps[i].Mass * r3.Norm2(ps[i].Vel)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}
