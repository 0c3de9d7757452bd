package regions

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/multiverse/components"
	"github.com/pthm-cable/multiverse/procgen"
)

// ErrCancelled is returned for generation abandoned before it completed.
var ErrCancelled = errors.New("region generation cancelled")

// cancelCheckInterval is how many stars are generated between cancellation
// checks.
const cancelCheckInterval = 32

// Detail is the complete generated content of a region at a target level.
type Detail struct {
	Target     LOD
	Age        float64
	MassPoints []procgen.MassPoint
	Stars      []procgen.Star
	Life       []components.PlanetRef
}

// request is an immutable copy of everything generation reads.
type request struct {
	index   int
	seed    uint64
	center  r3.Vec
	summary procgen.Summary
	age     float64
	target  LOD
	epoch   uint64
}

func newRequest(r *Region, target LOD, epoch uint64) request {
	return request{
		index:   r.Coord.Index(),
		seed:    r.Seed,
		center:  r.Coord.Center(),
		summary: r.Summary,
		age:     r.StatsAge,
		target:  target,
		epoch:   epoch,
	}
}

// generator produces region detail. It holds no mutable state; concurrent
// calls for different regions share nothing.
type generator struct {
	maxStars   int
	massPoints int
	params     procgen.Params
	souls      procgen.SoulSource
}

func (g *generator) generate(ctx context.Context, req request) (*Detail, error) {
	d := &Detail{Target: req.target, Age: req.age}
	d.MassPoints = procgen.MassPoints(req.seed, req.center, RegionSize, req.summary.Density, g.massPoints)
	if req.target < LODStellar {
		return d, nil
	}

	n := int(min(req.summary.StarCount, int64(g.maxStars)))
	if n > 0 {
		d.Stars = make([]procgen.Star, 0, n)
	}
	for i := 0; i < n; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: region %v: %v", ErrCancelled, CoordAt(req.index), err)
			}
		}
		star := procgen.GenerateStar(req.seed, i, req.center, RegionSize, req.age)
		if req.target >= LODPlanetary {
			ref := components.PlanetRef{Region: req.index, Star: i}
			star.Planets = procgen.Planets(star, req.age, ref, g.params, g.souls)
			for j := range star.Planets {
				if star.Planets[j].Life {
					ref.Planet = j
					d.Life = append(d.Life, ref)
				}
			}
		}
		d.Stars = append(d.Stars, star)
	}
	return d, nil
}

// slot is a single-assignment result cell.
type slot struct {
	done   chan struct{}
	once   sync.Once
	detail *Detail
	err    error
}

func newSlot() *slot {
	return &slot{done: make(chan struct{})}
}

// publish stores the result. Only the first call has any effect.
func (s *slot) publish(d *Detail, err error) {
	s.once.Do(func() {
		s.detail, s.err = d, err
		close(s.done)
	})
}

// ready reports whether a result has been published.
func (s *slot) ready() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// task is one background generation in flight.
type task struct {
	req    request
	ctx    context.Context
	cancel context.CancelFunc
	result *slot
}

// pool runs generation tasks on persistent workers.
type pool struct {
	gen   *generator
	tasks chan *task
	stop  chan struct{}
	wg    sync.WaitGroup
}

func newPool(gen *generator, workers int) *pool {
	p := &pool{
		gen:   gen,
		tasks: make(chan *task, NumRegions),
		stop:  make(chan struct{}),
	}
	for i := 0; i < max(workers, 1); i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case t := <-p.tasks:
			if err := t.ctx.Err(); err != nil {
				t.result.publish(nil, fmt.Errorf("%w: %v", ErrCancelled, err))
				continue
			}
			t.result.publish(p.gen.generate(t.ctx, t.req))
		}
	}
}

// submit queues a task. It never blocks the caller; when the queue is full
// the task is published as cancelled and will be resubmitted later.
func (p *pool) submit(t *task) {
	select {
	case p.tasks <- t:
	default:
		t.cancel()
		t.result.publish(nil, fmt.Errorf("%w: queue full", ErrCancelled))
	}
}

// close stops the workers and waits for them to exit.
func (p *pool) close() {
	close(p.stop)
	p.wg.Wait()
}
