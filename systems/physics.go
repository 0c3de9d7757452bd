// Package systems implements the particle-level systems: Big Bang spawn,
// gravity backends, integration with expansion, entropy and compaction.
package systems

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/multiverse/components"
	"github.com/pthm-cable/multiverse/config"
)

// G is the gravitational constant in simulation units.
const G = 1.0

// ExpansionCoupling scales the Hubble term applied to positions.
const ExpansionCoupling = 0.001

// Backend names accepted by NewBackend.
const (
	BackendHybrid = "hybrid"
	BackendDirect = "direct"
)

// StepParams carries everything one solver invocation needs.
type StepParams struct {
	DT              float64 // Gyr, already scaled by elapsed ticks
	Hubble          float64
	Softening       float64
	GravityScale    float64
	Damping         float64 // velocity damping per Gyr
	Cooling         float64 // temperature decay per Gyr
	MaxAcceleration float64
}

// ParamsFromConfig fills the static solver parameters from cfg.
func ParamsFromConfig(cfg *config.Config) StepParams {
	return StepParams{
		Softening:       cfg.Gravity.Softening,
		GravityScale:    cfg.Gravity.GravityScale,
		Damping:         cfg.Gravity.VelocityDamping,
		Cooling:         cfg.Gravity.CoolingRate,
		MaxAcceleration: cfg.Gravity.MaxAcceleration,
	}
}

// Backend advances every alive particle by one solver step. Implementations
// share the buffer layout and the integration semantics, so they are
// interchangeable.
type Backend interface {
	Name() string
	Step(ps []components.Particle, p StepParams)
	Close()
}

// NewBackend returns the backend named in cfg.Gravity.Backend.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.Gravity.Backend {
	case BackendHybrid:
		return NewHybrid(cfg.Gravity.NearFieldK, cfg.Gravity.FarFieldGridResolution,
			cfg.Gravity.FarFieldTheta, cfg.Derived.Workers), nil
	case BackendDirect:
		return NewDirect(cfg.Derived.Workers), nil
	}
	return nil, fmt.Errorf("%w: unknown gravity backend %q", config.ErrInvalid, cfg.Gravity.Backend)
}

// pairAccel returns the acceleration on a body at from due to mass m at to:
// G·m·r̂ / (|r|² + ε²). Coincident bodies contribute nothing.
func pairAccel(from, to r3.Vec, m, g, eps2 float64) r3.Vec {
	d := r3.Sub(to, from)
	r2 := r3.Norm2(d)
	if r2 == 0 {
		return r3.Vec{}
	}
	f := g * m / (r2 + eps2)
	return r3.Scale(f/math.Sqrt(r2), d)
}

// clampAccel bounds the acceleration magnitude and drops non-finite values.
func clampAccel(a r3.Vec, limit float64) r3.Vec {
	if !finite(a) {
		return r3.Vec{}
	}
	n := r3.Norm(a)
	if n > limit {
		return r3.Scale(limit/n, a)
	}
	return a
}

func finite(v r3.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsNaN(v.Z) &&
		!math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0) && !math.IsInf(v.Z, 0)
}

// expand applies the Hubble term to a position.
func expand(pos r3.Vec, hubble, dt float64) r3.Vec {
	return r3.Add(pos, r3.Scale(hubble*dt*ExpansionCoupling, pos))
}

// Expand applies only the expansion term to every alive particle.
func Expand(ps []components.Particle, hubble, dt float64) {
	for i := range ps {
		if ps[i].Alive() {
			ps[i].Pos = expand(ps[i].Pos, hubble, dt)
		}
	}
}

// integrate applies semi-implicit Euler with expansion, damping and cooling.
// A particle whose update would become non-finite keeps its position and
// loses its velocity.
func integrate(ps []components.Particle, acc []r3.Vec, p StepParams) {
	decay := math.Max(0, 1-p.DT*p.Damping)
	cool := math.Max(0, 1-p.DT*p.Cooling)

	for i := range ps {
		pt := &ps[i]
		if !pt.Alive() {
			continue
		}

		a := clampAccel(acc[i], p.MaxAcceleration)
		vel := r3.Add(pt.Vel, r3.Scale(p.DT, a))
		pos := r3.Add(pt.Pos, r3.Scale(p.DT, vel))
		pos = expand(pos, p.Hubble, p.DT)
		vel = r3.Scale(decay, vel)

		if !finite(pos) || !finite(vel) {
			pt.Vel = r3.Vec{}
		} else {
			pt.Pos, pt.Vel = pos, vel
		}
		pt.Temperature *= cool
	}
}

// accelBuffer resizes buf to n zeroed vectors.
func accelBuffer(buf []r3.Vec, n int) []r3.Vec {
	if cap(buf) < n {
		return make([]r3.Vec, n)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}
