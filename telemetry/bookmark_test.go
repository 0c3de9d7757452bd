package telemetry

import "testing"

func hasBookmark(bookmarks []Bookmark, typ BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_EntropySurge(t *testing.T) {
	bd := NewBookmarkDetector(10)

	// Steady growth of 10 per window
	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{
			WindowEndTick: uint64(i * 100),
			Entropy:       float64(i * 10),
		})
	}

	// Last entropy was 40; a jump of 50 is 5x the average growth
	bookmarks := bd.Check(WindowStats{WindowEndTick: 500, Entropy: 90})
	if !hasBookmark(bookmarks, BookmarkEntropySurge) {
		t.Error("expected entropy_surge bookmark")
	}
}

func TestBookmarkDetector_NoSurgeWhenFlat(t *testing.T) {
	bd := NewBookmarkDetector(10)
	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndTick: uint64(i * 100), Entropy: 100})
	}
	if hasBookmark(bd.Check(WindowStats{WindowEndTick: 500, Entropy: 1000}), BookmarkEntropySurge) {
		t.Error("flat history should not trigger entropy_surge")
	}
}

func TestBookmarkDetector_LifeBoom(t *testing.T) {
	bd := NewBookmarkDetector(10)
	for i := 0; i < 4; i++ {
		bd.Check(WindowStats{WindowEndTick: uint64(i * 100), LifePlanets: 2})
	}
	bookmarks := bd.Check(WindowStats{WindowEndTick: 400, LifePlanets: 9})
	if !hasBookmark(bookmarks, BookmarkLifeBoom) {
		t.Error("expected life_boom bookmark")
	}
}

func TestBookmarkDetector_PopulationCrash(t *testing.T) {
	bd := NewBookmarkDetector(10)

	// Build up population
	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{
			WindowEndTick: uint64(i * 100),
			Creatures:     100,
		})
	}

	// Now crash it
	bookmarks := bd.Check(WindowStats{WindowEndTick: 500, Creatures: 50})
	if !hasBookmark(bookmarks, BookmarkPopulationCrash) {
		t.Error("expected population_crash bookmark")
	}
}

func TestBookmarkDetector_PopulationRecovery(t *testing.T) {
	bd := NewBookmarkDetector(10)

	// Population drops to critical level
	for i := 0; i < 3; i++ {
		bd.Check(WindowStats{
			WindowEndTick: uint64(i * 100),
			Creatures:     2,
		})
	}

	// Recovers to 5x the minimum
	bookmarks := bd.Check(WindowStats{WindowEndTick: 300, Creatures: 10})
	if !hasBookmark(bookmarks, BookmarkPopulationRecovery) {
		t.Error("expected population_recovery bookmark")
	}
}

func TestBookmarkDetector_StableBiosphere(t *testing.T) {
	bd := NewBookmarkDetector(10)

	var triggered int
	for i := 0; i < 12; i++ {
		bookmarks := bd.Check(WindowStats{
			WindowEndTick: uint64(i * 100),
			Creatures:     100,
		})
		if hasBookmark(bookmarks, BookmarkStableBiosphere) {
			triggered++
		}
	}
	if triggered != 1 {
		t.Errorf("stable_biosphere count mismatch: got %d, want 1", triggered)
	}
}

func TestBookmarkDetector_Reset(t *testing.T) {
	bd := NewBookmarkDetector(5)
	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{Creatures: 100})
	}
	bd.Reset()
	if len(bd.getHistory()) != 0 {
		t.Errorf("history length mismatch: got %d, want 0", len(bd.getHistory()))
	}
	if hasBookmark(bd.Check(WindowStats{Creatures: 10}), BookmarkPopulationCrash) {
		t.Error("crash detected against cleared peak")
	}
}
