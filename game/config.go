package game

import (
	"github.com/pthm-cable/multiverse/soul"
	"github.com/pthm-cable/multiverse/systems"
	"github.com/pthm-cable/multiverse/telemetry"
)

// Options configures a simulation beyond the validated config.
type Options struct {
	// TimeScale multiplies the configured timestep. It also selects how
	// often the gravity solver runs. Zero means 1.
	TimeScale float64

	// LogStats logs window stats and stage profiles through slog.
	LogStats bool

	// OutputDir enables CSV output when non-empty.
	OutputDir string

	// SnapshotDir receives a snapshot whenever a bookmark triggers.
	SnapshotDir string

	// Metrics receives gauges and counters. May be nil.
	Metrics *telemetry.Metrics

	// Ledger seeds the soul ledger, e.g. from a store. Nil starts empty.
	Ledger *soul.Ledger

	// Backend overrides the gravity backend named in the config.
	Backend systems.Backend

	// StatsCallback is invoked with each flushed stats window.
	StatsCallback func(telemetry.WindowStats)

	// EventCallback is invoked with each event as it is emitted.
	EventCallback func(telemetry.Event)
}

// DefaultOptions returns options for a headless run without output.
func DefaultOptions() Options {
	return Options{TimeScale: 1}
}
