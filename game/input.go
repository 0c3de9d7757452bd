package game

import (
	"github.com/pthm-cable/multiverse/regions"
)

// ObserverAt returns an observer at the center of region c asking for hint.
func ObserverAt(c regions.Coord, hint regions.LOD) regions.Observer {
	return regions.Observer{Pos: c.Center(), Hint: hint}
}

// Pilot drives the observer for headless runs. It dwells in each of the
// densest regions in turn, asking for full detail, and moves on after a
// fixed number of ticks. The tour restarts when a new cycle begins.
type Pilot struct {
	n       int
	dwell   uint64
	cycle   uint32
	targets []regions.Coord
	next    int
	current regions.Coord
	left    uint64
}

// NewPilot creates a pilot that visits the n densest regions, spending dwell
// ticks in each.
func NewPilot(n int, dwell uint64) *Pilot {
	return &Pilot{n: max(n, 1), dwell: max(dwell, 1)}
}

// Observer returns the observer for the next tick of s.
func (p *Pilot) Observer(s *Sim) regions.Observer {
	if cycle := s.clock.Cycle; cycle != p.cycle {
		p.cycle = cycle
		p.targets = s.regions.Ranked(p.n)
		p.next = 0
		p.left = 0
	}
	if p.left == 0 {
		p.current = p.targets[p.next%len(p.targets)]
		p.next++
		p.left = p.dwell
	}
	p.left--
	return ObserverAt(p.current, regions.LODBiosphere)
}

// Current returns the region being visited.
func (p *Pilot) Current() regions.Coord {
	return p.current
}
