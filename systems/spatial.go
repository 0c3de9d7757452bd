package systems

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/multiverse/components"
)

// minCellWidth keeps the far-field grid usable when all particles coincide
// along an axis.
const minCellWidth = 1e-9

// FarFieldGrid is a fixed res³ grid over the particle bounding box that holds
// each cell's total mass and center of mass.
type FarFieldGrid struct {
	res      int
	min      r3.Vec
	width    r3.Vec
	mass     []float64
	moment   []r3.Vec // Σ m·x, divided into COM after Build
	count    []int
	occupied []int    // non-empty cell indices in ascending order
}

// NewFarFieldGrid creates a grid with res cells per axis.
func NewFarFieldGrid(res int) *FarFieldGrid {
	if res < 1 {
		res = 1
	}
	n := res * res * res
	return &FarFieldGrid{
		res:    res,
		mass:   make([]float64, n),
		moment: make([]r3.Vec, n),
		count:  make([]int, n),
	}
}

// Build bins the alive particles listed in idx.
func (g *FarFieldGrid) Build(ps []components.Particle, idx []int) {
	clear(g.mass)
	clear(g.moment)
	clear(g.count)
	g.occupied = g.occupied[:0]
	if len(idx) == 0 {
		return
	}

	lo := ps[idx[0]].Pos
	hi := lo
	for _, i := range idx[1:] {
		p := ps[i].Pos
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	res := float64(g.res)
	g.min = lo
	g.width = r3.Vec{
		X: math.Max((hi.X-lo.X)/res, minCellWidth),
		Y: math.Max((hi.Y-lo.Y)/res, minCellWidth),
		Z: math.Max((hi.Z-lo.Z)/res, minCellWidth),
	}

	for _, i := range idx {
		c := g.CellOf(ps[i].Pos)
		m := ps[i].Mass
		g.mass[c] += m
		g.moment[c] = r3.Add(g.moment[c], r3.Scale(m, ps[i].Pos))
		g.count[c]++
	}

	for c, m := range g.mass {
		if m > 0 {
			g.moment[c] = r3.Scale(1/m, g.moment[c])
			g.occupied = append(g.occupied, c)
		}
	}
}

// CellOf returns the flat index of the cell containing pos, clamped to the grid.
func (g *FarFieldGrid) CellOf(pos r3.Vec) int {
	ix := g.axisIndex(pos.X, g.min.X, g.width.X)
	iy := g.axisIndex(pos.Y, g.min.Y, g.width.Y)
	iz := g.axisIndex(pos.Z, g.min.Z, g.width.Z)
	return (ix*g.res+iy)*g.res + iz
}

func (g *FarFieldGrid) axisIndex(v, lo, w float64) int {
	i := int((v - lo) / w)
	if i < 0 {
		return 0
	}
	if i >= g.res {
		return g.res - 1
	}
	return i
}

// Cells returns the number of cells.
func (g *FarFieldGrid) Cells() int {
	return len(g.mass)
}

// Occupied returns the non-empty cell indices.
func (g *FarFieldGrid) Occupied() []int {
	return g.occupied
}

// Cell returns a cell's total mass and center of mass.
func (g *FarFieldGrid) Cell(c int) (mass float64, com r3.Vec) {
	return g.mass[c], g.moment[c]
}

// Count returns the number of particles binned into a cell.
func (g *FarFieldGrid) Count(c int) int {
	return g.count[c]
}

// MeanCellWidth returns the average cell edge length.
func (g *FarFieldGrid) MeanCellWidth() float64 {
	return (g.width.X + g.width.Y + g.width.Z) / 3
}

// kdPoint is a particle position tagged with its buffer index.
type kdPoint struct {
	pos r3.Vec
	idx int
}

func axis(v r3.Vec, d kdtree.Dim) float64 {
	switch d {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

// Compare returns the signed distance of p from c along dimension d.
func (p kdPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return axis(p.pos, d) - axis(c.(kdPoint).pos, d)
}

// Dims returns the number of dimensions.
func (p kdPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between p and c.
func (p kdPoint) Distance(c kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(p.pos, c.(kdPoint).pos))
}

// kdPoints is the kdtree.Interface over tagged particle positions.
type kdPoints []kdPoint

func (p kdPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p kdPoints) Len() int                      { return len(p) }

// Pivot sorts along d and returns the median index.
func (p kdPoints) Pivot(d kdtree.Dim) int {
	sort.Slice(p, func(i, j int) bool {
		return axis(p[i].pos, d) < axis(p[j].pos, d)
	})
	return len(p) / 2
}

func (p kdPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }
