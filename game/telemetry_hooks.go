package game

import (
	"log/slog"

	"github.com/pthm-cable/multiverse/telemetry"
)

// emit records an event in the event log, the CSV output and the metrics,
// and passes it to the event callback.
func (s *Sim) emit(e telemetry.Event) {
	s.events.Add(e)
	s.metrics.RecordEvent(e)
	if s.opts.LogStats || e.Type != telemetry.EventLODChange {
		e.LogEvent()
	}
	if err := s.outputManager.WriteEvent(e); err != nil {
		slog.Error("failed to write event", "error", err)
	}
	if s.opts.EventCallback != nil {
		s.opts.EventCallback(e)
	}
}

// sample gathers the instantaneous state for a stats window.
func (s *Sim) sample() telemetry.Sample {
	_, _, loadedStars, loadedPlanets := s.regions.Totals()
	life, civs := s.regions.Discoveries()
	return telemetry.Sample{
		Clock:         s.clock,
		MaxEntropy:    s.cfg.Universe.MaxEntropy,
		Particles:     s.particles,
		Levels:        s.regions.Counts(),
		LoadedStars:   loadedStars,
		LoadedPlanets: loadedPlanets,
		LifePlanets:   life,
		Civilizations: civs,
		Creatures:     s.population.Count(),
		Lineages:      s.tracker.Count(),
		LedgerSize:    s.ledger.Len(),
	}
}

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (s *Sim) flushTelemetry() {
	if !s.collector.ShouldFlush(s.tick) {
		return
	}

	stats := s.collector.Flush(s.tick, s.sample())
	profile := s.profiler.Profile()

	if s.opts.StatsCallback != nil {
		s.opts.StatsCallback(stats)
	}

	if s.opts.LogStats {
		stats.LogStats()
		slog.Info("profile", "window_end", stats.WindowEndTick, "profile", profile)
	}

	if err := s.outputManager.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	if err := s.outputManager.WriteProfile(profile, stats.WindowEndTick); err != nil {
		slog.Error("failed to write profile", "error", err)
	}
	s.metrics.ObserveWindow(stats)

	for _, bm := range s.bookmarkDetector.Check(stats) {
		if s.opts.LogStats {
			bm.LogBookmark()
		}
		if err := s.outputManager.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
		if s.opts.SnapshotDir != "" {
			s.saveSnapshot(&bm)
		}
	}
}

// saveSnapshot captures the current state and writes it to the snapshot
// directory.
func (s *Sim) saveSnapshot(bookmark *telemetry.Bookmark) {
	snapshot := s.Capture()
	snapshot.Bookmark = bookmark

	path, err := telemetry.SaveSnapshot(snapshot, s.opts.SnapshotDir)
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}

	slog.Info("snapshot saved", "path", path, "tick", s.tick)
}
