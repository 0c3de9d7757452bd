package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveWindow(t *testing.T) {
	m := NewMetrics()

	m.ObserveWindow(WindowStats{
		Age:             2.5,
		Cycle:           3,
		PhaseIndex:      5,
		EntropyFraction: 0.4,
		Alive:           900,
		Statistical:     500,
		Galactic:        10,
		Stellar:         1,
		Planetary:       1,
		Creatures:       12,
		Births:          4,
		Deaths:          2,
		LedgerSize:      7,
	})
	m.ObserveWindow(WindowStats{Births: 1, Deaths: 3})

	if got := testutil.ToFloat64(m.BirthsTotal); got != 5 {
		t.Errorf("BirthsTotal mismatch: got %f, want 5", got)
	}
	if got := testutil.ToFloat64(m.DeathsTotal); got != 5 {
		t.Errorf("DeathsTotal mismatch: got %f, want 5", got)
	}
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Creatures))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Regions.WithLabelValues("galactic")))
}

func TestMetrics_Gauges(t *testing.T) {
	m := NewMetrics()
	m.ObserveWindow(WindowStats{
		Age:         13.8,
		Cycle:       2,
		Statistical: 508,
		Stellar:     3,
		Biosphere:   1,
		LedgerSize:  9,
	})

	assert.Equal(t, 13.8, testutil.ToFloat64(m.Age))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Cycle))
	assert.Equal(t, 508.0, testutil.ToFloat64(m.Regions.WithLabelValues("statistical")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Regions.WithLabelValues("stellar")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Regions.WithLabelValues("biosphere")))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.LedgerSize))
}

func TestMetrics_Events(t *testing.T) {
	m := NewMetrics()
	m.RecordEvent(Event{Type: EventRebirth})
	m.RecordEvent(Event{Type: EventRebirth})
	m.RecordEvent(Event{Type: EventLifeDiscovered})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues(string(EventRebirth))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues(string(EventLifeDiscovered))))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveWindow(WindowStats{})
	m.RecordEvent(Event{Type: EventRebirth})
	m.ObserveSolve(time.Millisecond)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveSolve(3 * time.Millisecond)
	m.ObserveWindow(WindowStats{Age: 1})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{
		"multiverse_cosmos_age_gyr",
		"multiverse_cosmos_solve_seconds_count 1",
		"multiverse_life_births_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("exposition missing %q", name)
		}
	}
}
