package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// stepClock advances by a scripted duration per call.
type stepClock struct {
	t time.Time
}

func (c *stepClock) after(d time.Duration) {
	c.t = c.t.Add(d)
}

func newSteppedProfiler(window int) (*Profiler, *stepClock) {
	c := &stepClock{t: time.Unix(0, 0)}
	p := NewProfiler(window)
	p.now = func() time.Time { return c.t }
	return p, c
}

// runTick records one tick. The solve stage takes solve and does work only
// when solved is positive.
func runTick(p *Profiler, c *stepClock, solve time.Duration, solved, changed int) {
	p.Begin()
	p.Enter(StageClock)
	c.after(time.Millisecond)
	p.Enter(StageSolve)
	c.after(solve)
	p.Count(StageSolve, solved)
	p.Enter(StageLOD)
	c.after(2 * time.Millisecond)
	p.Count(StageLOD, changed)
	p.End()
}

func TestProfilerStages(t *testing.T) {
	p, c := newSteppedProfiler(10)

	// Every third tick solves 1000 particles in 9ms.
	for i := range 6 {
		if i%3 == 0 {
			runTick(p, c, 9*time.Millisecond, 1000, 2)
		} else {
			runTick(p, c, 0, 0, 0)
		}
	}
	pr := p.Profile()

	assert.Equal(t, 6, pr.Ticks)
	solve := pr.Stage(StageSolve)
	if solve.Runs != 2 {
		t.Errorf("solve runs mismatch: got %d, want 2", solve.Runs)
	}
	assert.Equal(t, 2000, solve.Units)
	assert.Equal(t, 9*time.Millisecond, solve.Active)
	assert.Equal(t, 3*time.Millisecond, solve.Mean)
	assert.Equal(t, 9*time.Microsecond, solve.PerUnit)

	lod := pr.Stage(StageLOD)
	assert.Equal(t, 4, lod.Units)
	assert.Equal(t, 2*time.Millisecond, lod.Mean)

	// 4 quiet ticks of 3ms, 2 solving ticks of 12ms
	assert.Equal(t, 3*time.Millisecond, pr.TickP50)
	assert.Equal(t, 12*time.Millisecond, pr.TickP99)
	assert.Equal(t, 12*time.Millisecond, pr.TickMax)
	assert.InDelta(t, 6.0/0.036, pr.TicksPerSecond, 1e-6)
	assert.InDelta(t, 18.0/36, solve.Share, 1e-9)
	assert.Zero(t, pr.Stage(StageGeneration).Share)
}

func TestProfilerWindowRolls(t *testing.T) {
	p, c := newSteppedProfiler(3)
	for range 3 {
		runTick(p, c, 50*time.Millisecond, 10, 0)
	}
	for range 3 {
		runTick(p, c, 0, 0, 1)
	}
	pr := p.Profile()

	assert.Equal(t, 3, pr.Ticks)
	assert.Zero(t, pr.Stage(StageSolve).Runs, "old solves still in window")
	assert.Equal(t, 3, pr.Stage(StageLOD).Runs)
	assert.Equal(t, 3*time.Millisecond, pr.TickMax)
}

func TestProfilerEmpty(t *testing.T) {
	pr := NewProfiler(0).Profile()
	assert.Zero(t, pr.Ticks)
	assert.Zero(t, pr.TicksPerSecond)
	assert.Equal(t, ProfileCSV{WindowEnd: 7}, pr.CSV(7))
}

func TestProfileCSV(t *testing.T) {
	p, c := newSteppedProfiler(4)
	runTick(p, c, 4*time.Millisecond, 2000, 3)
	p.Begin()
	p.Enter(StageGeneration)
	c.after(5 * time.Millisecond)
	p.Count(StageGeneration, 2)
	p.End()

	row := p.Profile().CSV(40)
	assert.Equal(t, uint64(40), row.WindowEnd)
	assert.Equal(t, 1, row.Solves)
	assert.Equal(t, int64(4000), row.SolveUS)
	assert.Equal(t, int64(2000), row.SolveNSPerParticle)
	assert.Equal(t, 3, row.RegionsChanged)
	assert.Equal(t, 2, row.DetailsPublished)
	assert.Equal(t, int64(2500), row.GenerationUS)
	assert.Equal(t, int64(7000), row.TickMaxUS)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "generation", StageGeneration.String())
	assert.Equal(t, "stage(9)", Stage(9).String())
}
