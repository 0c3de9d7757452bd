package systems

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/multiverse/components"
)

// Direct is the parallel O(n²) direct-summation executor. It consumes the
// same particle buffer and integration semantics as Hybrid.
type Direct struct {
	pool  *WorkerPool
	alive []int
	acc   []r3.Vec
}

// NewDirect creates a direct-summation backend with the given worker count.
func NewDirect(workers int) *Direct {
	return &Direct{pool: NewWorkerPool(workers)}
}

// Name returns the backend name.
func (d *Direct) Name() string { return BackendDirect }

// Close stops the worker pool.
func (d *Direct) Close() { d.pool.Stop() }

// Step advances every alive particle by p.DT.
func (d *Direct) Step(ps []components.Particle, p StepParams) {
	d.alive = d.alive[:0]
	for i := range ps {
		if ps[i].Alive() {
			d.alive = append(d.alive, i)
		}
	}
	d.acc = accelBuffer(d.acc, len(ps))

	g := G * p.GravityScale
	eps2 := p.Softening * p.Softening

	d.pool.Run(len(d.alive), func(start, end, _ int) {
		for _, i := range d.alive[start:end] {
			self := ps[i].Pos
			var a r3.Vec
			for _, j := range d.alive {
				if j == i {
					continue
				}
				a = r3.Add(a, pairAccel(self, ps[j].Pos, ps[j].Mass, g, eps2))
			}
			d.acc[i] = a
		}
	})

	integrate(ps, d.acc, p)
}
