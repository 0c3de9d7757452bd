package systems

import (
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/multiverse/components"
)

// hybridScratch holds per-worker reusable state. For the particle being
// solved, every cell holding it or one of its near neighbours is stamped with
// the current mark and accumulates what those particles contribute to the
// cell, so the far field only sees the rest of the cell.
type hybridScratch struct {
	stamps   []int64
	mark     int64
	exMass   []float64
	exMoment []r3.Vec
	exCount  []int
}

func newHybridScratch(cells int) hybridScratch {
	return hybridScratch{
		stamps:   make([]int64, cells),
		exMass:   make([]float64, cells),
		exMoment: make([]r3.Vec, cells),
		exCount:  make([]int, cells),
	}
}

// exclude removes a particle solved exactly from its cell's far-field share.
func (s *hybridScratch) exclude(c int, m float64, pos r3.Vec) {
	if s.stamps[c] != s.mark {
		s.stamps[c] = s.mark
		s.exMass[c], s.exMoment[c], s.exCount[c] = 0, r3.Vec{}, 0
	}
	s.exMass[c] += m
	s.exMoment[c] = r3.Add(s.exMoment[c], r3.Scale(m, pos))
	s.exCount[c]++
}

// Hybrid is the CPU solver: exact pairwise sums over the K nearest alive
// neighbours (k-d tree) plus point-mass contributions from the far-field
// grid. Cells that hold near neighbours contribute only their remaining
// particles, at the remainder's center of mass.
type Hybrid struct {
	k     int
	theta float64

	pool    *WorkerPool
	grid    *FarFieldGrid
	alive   []int
	points  kdPoints
	acc     []r3.Vec
	scratch []hybridScratch
}

// NewHybrid creates a hybrid solver. theta scales the far-field softening
// length relative to the mean cell width.
func NewHybrid(k, res int, theta float64, workers int) *Hybrid {
	pool := NewWorkerPool(workers)
	grid := NewFarFieldGrid(res)
	scratch := make([]hybridScratch, pool.Workers())
	for i := range scratch {
		scratch[i] = newHybridScratch(grid.Cells())
	}
	return &Hybrid{
		k:       k,
		theta:   theta,
		pool:    pool,
		grid:    grid,
		scratch: scratch,
	}
}

// Name returns the backend name.
func (h *Hybrid) Name() string { return BackendHybrid }

// Close stops the worker pool.
func (h *Hybrid) Close() { h.pool.Stop() }

// Step advances every alive particle by p.DT.
func (h *Hybrid) Step(ps []components.Particle, p StepParams) {
	h.alive = h.alive[:0]
	for i := range ps {
		if ps[i].Alive() {
			h.alive = append(h.alive, i)
		}
	}
	h.acc = accelBuffer(h.acc, len(ps))
	if len(h.alive) == 0 {
		return
	}

	// Phase A: build acceleration structures (single-threaded)
	h.points = h.points[:0]
	for _, i := range h.alive {
		h.points = append(h.points, kdPoint{pos: ps[i].Pos, idx: i})
	}
	tree := kdtree.New(h.points, false)
	h.grid.Build(ps, h.alive)

	g := G * p.GravityScale
	eps2 := p.Softening * p.Softening
	farSoft := h.theta * h.grid.MeanCellWidth()
	farEps2 := farSoft * farSoft

	// Phase B: accelerations (parallel, read-only shared state)
	h.pool.Run(len(h.alive), func(start, end, worker int) {
		s := &h.scratch[worker]
		for _, i := range h.alive[start:end] {
			h.acc[i] = h.accel(ps, tree, s, i, g, eps2, farEps2)
		}
	})

	// Phase C: integrate (single-threaded, preserves determinism)
	integrate(ps, h.acc, p)
}

func (h *Hybrid) accel(ps []components.Particle, tree *kdtree.Tree, s *hybridScratch, i int, g, eps2, farEps2 float64) r3.Vec {
	self := ps[i].Pos
	s.mark++
	s.exclude(h.grid.CellOf(self), ps[i].Mass, self)

	keeper := kdtree.NewNKeeper(h.k + 1)
	tree.NearestSet(keeper, kdPoint{pos: self, idx: i})

	var a r3.Vec
	for _, cd := range keeper.Heap {
		if cd.Comparable == nil {
			continue
		}
		q := cd.Comparable.(kdPoint)
		if q.idx == i {
			continue
		}
		m := ps[q.idx].Mass
		a = r3.Add(a, pairAccel(self, q.pos, m, g, eps2))
		s.exclude(h.grid.CellOf(q.pos), m, q.pos)
	}

	for _, c := range h.grid.Occupied() {
		m, com := h.grid.Cell(c)
		if s.stamps[c] == s.mark {
			if h.grid.Count(c) == s.exCount[c] {
				continue
			}
			moment := r3.Sub(r3.Scale(m, com), s.exMoment[c])
			m -= s.exMass[c]
			if m <= 0 {
				continue
			}
			com = r3.Scale(1/m, moment)
		}
		a = r3.Add(a, pairAccel(self, com, m, g, farEps2))
	}
	return a
}
