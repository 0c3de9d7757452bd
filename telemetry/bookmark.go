package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkEntropySurge       BookmarkType = "entropy_surge"
	BookmarkLifeBoom           BookmarkType = "life_boom"
	BookmarkPopulationRecovery BookmarkType = "population_recovery"
	BookmarkPopulationCrash    BookmarkType = "population_crash"
	BookmarkStableBiosphere    BookmarkType = "stable_biosphere"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Tick        uint64       `csv:"tick" json:"tick"`
	Description string       `csv:"description" json:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in the simulation.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	recentMin          int // minimum creature count in recent history
	recentPeak         int // peak creature count in recent history
	stableWindowsCount int // consecutive windows with a stable population
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for stable ecosystem detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		// Entropy surge: growth > 2x rolling average growth
		if b := bd.checkEntropySurge(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Life boom: inhabited planets > 2x rolling average
		if b := bd.checkLifeBoom(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Population recovery: was ≤3, now ≥3x that
		if b := bd.checkPopulationRecovery(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Population crash: dropped >30% from recent peak
		if b := bd.checkPopulationCrash(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Stable biosphere: creatures present with low variance over 5+ windows
		if b := bd.checkStableBiosphere(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	// Update history
	bd.addToHistory(stats)

	// Track creature minimum and peak
	if stats.Creatures < bd.recentMin || bd.recentMin == 0 {
		bd.recentMin = stats.Creatures
	}
	if stats.Creatures > bd.recentPeak {
		bd.recentPeak = stats.Creatures
	}

	return bookmarks
}

// Reset clears history, e.g. after a rebirth.
func (bd *BookmarkDetector) Reset() {
	bd.historyIdx = 0
	bd.historyFull = false
	bd.recentMin = 0
	bd.recentPeak = 0
	bd.stableWindowsCount = 0
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// getHistory returns retained windows, oldest first.
func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return append(append([]WindowStats(nil), bd.history[bd.historyIdx:]...), bd.history[:bd.historyIdx]...)
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkEntropySurge(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	// Rolling average growth per window
	first, last := history[0], history[len(history)-1]
	avgGrowth := (last.Entropy - first.Entropy) / float64(len(history)-1)
	if avgGrowth <= 0 {
		return nil
	}

	growth := stats.Entropy - last.Entropy
	if growth > avgGrowth*2.0 {
		return &Bookmark{
			Type:        BookmarkEntropySurge,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Entropy grew %.3g, %.1fx the average (%.3g)", growth, growth/avgGrowth, avgGrowth),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkLifeBoom(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	// Calculate rolling average of inhabited planets
	var total int
	for _, h := range history {
		total += h.LifePlanets
	}
	avg := float64(total) / float64(len(history))

	if avg == 0 {
		return nil
	}

	if float64(stats.LifePlanets) > avg*2.0 && stats.LifePlanets >= 3 {
		return &Bookmark{
			Type:        BookmarkLifeBoom,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d inhabited planets, %.1fx average (%.1f)", stats.LifePlanets, float64(stats.LifePlanets)/avg, avg),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkPopulationRecovery(stats WindowStats) *Bookmark {
	if bd.recentMin == 0 || bd.recentMin > 3 {
		return nil
	}

	threshold := bd.recentMin * 3
	if stats.Creatures >= threshold && stats.Creatures >= 6 {
		// Reset the minimum after triggering
		oldMin := bd.recentMin
		bd.recentMin = stats.Creatures

		return &Bookmark{
			Type:        BookmarkPopulationRecovery,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Creature population recovered from %d to %d", oldMin, stats.Creatures),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkPopulationCrash(stats WindowStats) *Bookmark {
	if bd.recentPeak == 0 {
		return nil
	}

	dropPercent := 1.0 - float64(stats.Creatures)/float64(bd.recentPeak)
	if dropPercent > 0.30 && stats.Creatures < bd.recentPeak-10 {
		// Reset peak after crash
		oldPeak := bd.recentPeak
		bd.recentPeak = stats.Creatures

		return &Bookmark{
			Type:        BookmarkPopulationCrash,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Creatures crashed %.0f%% from peak %d to %d", dropPercent*100, oldPeak, stats.Creatures),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkStableBiosphere(stats WindowStats) *Bookmark {
	if stats.Creatures < 10 {
		bd.stableWindowsCount = 0
		return nil
	}

	history := bd.getHistory()
	if len(history) < 4 {
		return nil
	}

	// Check variance in recent windows
	recent := history[len(history)-4:]
	var sum float64
	for _, h := range recent {
		sum += float64(h.Creatures)
	}
	mean := sum / 4

	var variance float64
	for _, h := range recent {
		d := float64(h.Creatures) - mean
		variance += d * d
	}
	variance /= 4

	cv2 := 0.0
	if mean > 0 {
		cv2 = variance / (mean * mean)
	}

	if cv2 < 0.04 { // CV^2 < 0.04 means CV < 0.2
		bd.stableWindowsCount++
	} else {
		bd.stableWindowsCount = 0
	}

	if bd.stableWindowsCount == 5 { // trigger exactly once at 5 windows
		return &Bookmark{
			Type:        BookmarkStableBiosphere,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Stable biosphere with %d creatures over 5+ windows", stats.Creatures),
		}
	}

	return nil
}
