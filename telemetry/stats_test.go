package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/multiverse/components"
	"github.com/pthm-cable/multiverse/cosmology"
	"github.com/pthm-cable/multiverse/regions"
)

func TestDistribute(t *testing.T) {
	values := []float64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
	got := Distribute(values)

	want := Distribution{Mean: 5.5, P10: 1, P50: 5, P90: 9}
	if got != want {
		t.Errorf("distribution mismatch: got %+v, want %+v", got, want)
	}
	assert.Equal(t, 10.0, values[0], "input was sorted in place")
	assert.Equal(t, Distribution{}, Distribute(nil))
}

// windowParticles returns ten alive particles moving along X at 1..10 Mpc/Gyr,
// the first three dark, plus one dead fast particle.
func windowParticles() []components.Particle {
	var ps []components.Particle
	for i := 1; i <= 10; i++ {
		kind := components.KindHydrogen
		if i <= 3 {
			kind = components.KindDarkMatter
		}
		ps = append(ps, components.Particle{
			Mass:  1,
			Vel:   r3.Vec{X: float64(i)},
			Kind:  kind,
			Flags: components.FlagAlive,
		})
	}
	return append(ps, components.Particle{Mass: 1, Vel: r3.Vec{X: 100}, Kind: components.KindPhoton})
}

func TestCollectorWindow(t *testing.T) {
	c := NewCollector(100)
	assert.False(t, c.ShouldFlush(99))
	assert.True(t, c.ShouldFlush(100))

	c.RecordSolve()
	c.RecordSolve()
	c.RecordBirths(3)
	c.RecordDeaths(1)

	clock := cosmology.NewClock()
	clock.Advance(2)
	clock.Entropy = 50
	sample := Sample{
		Clock:      clock,
		MaxEntropy: 200,
		Particles:  windowParticles(),
		Levels:     [regions.NumLODs]int{500, 10, 1, 1, 0},
		Creatures:  4,
		LedgerSize: 2,
	}

	stats := c.Flush(100, sample)
	assert.Equal(t, uint64(0), stats.WindowStartTick)
	assert.Equal(t, uint64(100), stats.WindowEndTick)
	assert.Equal(t, cosmology.PhaseStellarEra.String(), stats.Phase)
	assert.Equal(t, 0.25, stats.EntropyFraction)
	if stats.Alive != 10 {
		t.Errorf("alive mismatch: got %d, want 10", stats.Alive)
	}
	assert.Equal(t, 3, stats.DarkMatter)
	assert.Equal(t, 5.0, stats.SpeedP50)
	assert.Equal(t, 55.0, stats.Momentum)
	assert.Equal(t, 2, stats.SolverSteps)
	assert.Equal(t, 3, stats.Births)
	assert.Equal(t, 1, stats.Deaths)
	assert.Equal(t, []int{500, 10, 1, 1, 0}, stats.Levels())

	next := c.Flush(200, sample)
	assert.Equal(t, uint64(100), next.WindowStartTick)
	assert.Zero(t, next.SolverSteps)
	assert.Zero(t, next.Births)
}
