package telemetry

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Stage is a timed part of a simulation tick, in execution order.
type Stage uint8

const (
	StageClock      Stage = iota
	StageSolve            // gravity backend, work = particles integrated
	StageEntropy          // dispersion scan and phase check, work = particles scanned
	StageLOD              // level evaluation, work = regions changed
	StageGeneration       // collecting and applying detail, work = details published
	StageBiosphere        // work = creatures stepped
	StageHousekeeping     // compaction and telemetry

	NumStages = 7
)

var stageNames = [NumStages]string{"clock", "solve", "entropy", "lod", "generation", "biosphere", "housekeeping"}

func (s Stage) String() string {
	if int(s) < NumStages {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", s)
}

type tickProfile struct {
	wall   time.Duration
	stages [NumStages]time.Duration
	work   [NumStages]int
}

// Profiler times the stages of recent ticks over a rolling window. Stages
// that report no work in a tick count toward the tick total but not toward
// the stage's active time.
type Profiler struct {
	ticks []tickProfile
	next  int
	n     int

	cur    tickProfile
	start  time.Time
	mark   time.Time
	stage  Stage
	inside bool

	now func() time.Time
}

// NewProfiler returns a profiler averaging over window ticks.
func NewProfiler(window int) *Profiler {
	return &Profiler{
		ticks: make([]tickProfile, max(window, 1)),
		now:   time.Now,
	}
}

// Begin starts a tick.
func (p *Profiler) Begin() {
	p.start = p.now()
	p.cur = tickProfile{}
	p.inside = false
}

// Enter closes the running stage and starts s.
func (p *Profiler) Enter(s Stage) {
	t := p.now()
	p.close(t)
	p.stage, p.mark, p.inside = s, t, true
}

// Count adds n units of work to stage s in the current tick.
func (p *Profiler) Count(s Stage, n int) {
	p.cur.work[s] += n
}

// End closes the tick and records it.
func (p *Profiler) End() {
	t := p.now()
	p.close(t)
	p.inside = false
	p.cur.wall = t.Sub(p.start)

	p.ticks[p.next] = p.cur
	p.next = (p.next + 1) % len(p.ticks)
	p.n = min(p.n+1, len(p.ticks))
}

func (p *Profiler) close(t time.Time) {
	if p.inside {
		p.cur.stages[p.stage] += t.Sub(p.mark)
	}
}

// StageProfile aggregates one stage over the window.
type StageProfile struct {
	Runs    int           // ticks in which the stage did work
	Units   int           // total work
	Mean    time.Duration // per tick, over every tick
	Active  time.Duration // per tick, over the ticks that did work
	PerUnit time.Duration
	Share   float64 // of total tick time, 0-1
}

// Profile aggregates the window.
type Profile struct {
	Ticks          int
	TickP50        time.Duration
	TickP99        time.Duration
	TickMax        time.Duration
	TicksPerSecond float64
	Stages         [NumStages]StageProfile
}

// Profile computes the aggregate over the recorded ticks.
func (p *Profiler) Profile() Profile {
	out := Profile{Ticks: p.n}
	if p.n == 0 {
		return out
	}

	walls := make([]float64, 0, p.n)
	var total time.Duration
	var spent, busy [NumStages]time.Duration
	for _, t := range p.ticks[:p.n] {
		walls = append(walls, float64(t.wall))
		total += t.wall
		for s := range NumStages {
			spent[s] += t.stages[s]
			if t.work[s] > 0 {
				out.Stages[s].Runs++
				out.Stages[s].Units += t.work[s]
				busy[s] += t.stages[s]
			}
		}
	}

	slices.Sort(walls)
	out.TickP50 = time.Duration(stat.Quantile(0.5, stat.Empirical, walls, nil))
	out.TickP99 = time.Duration(stat.Quantile(0.99, stat.Empirical, walls, nil))
	out.TickMax = time.Duration(walls[len(walls)-1])
	if total > 0 {
		out.TicksPerSecond = float64(p.n) * float64(time.Second) / float64(total)
	}

	for s := range NumStages {
		sp := &out.Stages[s]
		sp.Mean = spent[s] / time.Duration(p.n)
		if sp.Runs > 0 {
			sp.Active = busy[s] / time.Duration(sp.Runs)
		}
		if sp.Units > 0 {
			sp.PerUnit = busy[s] / time.Duration(sp.Units)
		}
		if total > 0 {
			sp.Share = float64(spent[s]) / float64(total)
		}
	}
	return out
}

// Stage returns the aggregate of one stage.
func (pr Profile) Stage(s Stage) StageProfile {
	return pr.Stages[s]
}

// LogValue implements slog.LogValuer for structured logging.
func (pr Profile) LogValue() slog.Value {
	solve := pr.Stage(StageSolve)
	attrs := []slog.Attr{
		slog.Int("ticks", pr.Ticks),
		slog.Int64("tick_p50_us", pr.TickP50.Microseconds()),
		slog.Int64("tick_p99_us", pr.TickP99.Microseconds()),
		slog.Float64("ticks_per_sec", pr.TicksPerSecond),
		slog.Int("solves", solve.Runs),
		slog.Int64("solve_ns_per_particle", solve.PerUnit.Nanoseconds()),
		slog.Int("regions_changed", pr.Stage(StageLOD).Units),
		slog.Int("details_published", pr.Stage(StageGeneration).Units),
	}
	for s := range NumStages {
		if share := pr.Stages[s].Share; share >= 0.001 {
			attrs = append(attrs, slog.Float64(Stage(s).String()+"_share", share))
		}
	}
	return slog.GroupValue(attrs...)
}

// ProfileCSV is one profile.csv row.
type ProfileCSV struct {
	WindowEnd          uint64  `csv:"window_end"`
	TickP50US          int64   `csv:"tick_p50_us"`
	TickP99US          int64   `csv:"tick_p99_us"`
	TickMaxUS          int64   `csv:"tick_max_us"`
	TicksPerSec        float64 `csv:"ticks_per_sec"`
	Solves             int     `csv:"solves"`
	SolveUS            int64   `csv:"solve_us"`
	SolveNSPerParticle int64   `csv:"solve_ns_per_particle"`
	EntropyUS          int64   `csv:"entropy_us"`
	RegionsChanged     int     `csv:"regions_changed"`
	LODUS              int64   `csv:"lod_us"`
	DetailsPublished   int     `csv:"details_published"`
	GenerationUS       int64   `csv:"generation_us"`
	BiosphereUS        int64   `csv:"biosphere_us"`
	SolveShare         float64 `csv:"solve_share"`
	GenerationShare    float64 `csv:"generation_share"`
}

// CSV flattens the profile for profile.csv. Stage times are per active tick.
func (pr Profile) CSV(windowEnd uint64) ProfileCSV {
	solve := pr.Stage(StageSolve)
	lod := pr.Stage(StageLOD)
	gen := pr.Stage(StageGeneration)
	return ProfileCSV{
		WindowEnd:          windowEnd,
		TickP50US:          pr.TickP50.Microseconds(),
		TickP99US:          pr.TickP99.Microseconds(),
		TickMaxUS:          pr.TickMax.Microseconds(),
		TicksPerSec:        pr.TicksPerSecond,
		Solves:             solve.Runs,
		SolveUS:            solve.Active.Microseconds(),
		SolveNSPerParticle: solve.PerUnit.Nanoseconds(),
		EntropyUS:          pr.Stage(StageEntropy).Active.Microseconds(),
		RegionsChanged:     lod.Units,
		LODUS:              lod.Mean.Microseconds(),
		DetailsPublished:   gen.Units,
		GenerationUS:       gen.Mean.Microseconds(),
		BiosphereUS:        pr.Stage(StageBiosphere).Mean.Microseconds(),
		SolveShare:         solve.Share,
		GenerationShare:    gen.Share,
	}
}
