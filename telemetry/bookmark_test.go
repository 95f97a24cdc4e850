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

func TestBookmarkDetector_KillSpike(t *testing.T) {
	bd := NewBookmarkDetector(10)

	// Add some history with few kills
	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{
			WindowEndStep: uint64(i * 60),
			PreyCount:     100,
			ResourceCount: 50,
			Kills:         2,
		})
	}

	spike := WindowStats{WindowEndStep: 300, PreyCount: 100, ResourceCount: 50, Kills: 8}
	if !hasBookmark(bd.Check(spike), BookmarkKillSpike) {
		t.Error("expected kill_spike bookmark")
	}
}

func TestBookmarkDetector_PopulationCrash(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{
			WindowEndStep: uint64(i * 60),
			PreyCount:     100,
			PredCount:     10,
			ResourceCount: 50,
		})
	}

	crash := WindowStats{WindowEndStep: 300, PreyCount: 50, PredCount: 10, ResourceCount: 50}
	if !hasBookmark(bd.Check(crash), BookmarkPopulationCrash) {
		t.Error("expected population_crash bookmark")
	}
}

func TestBookmarkDetector_PredatorRecovery(t *testing.T) {
	bd := NewBookmarkDetector(10)

	// Predator population drops to critical level
	for i := 0; i < 3; i++ {
		bd.Check(WindowStats{
			WindowEndStep: uint64(i * 60),
			PreyCount:     100,
			PredCount:     2,
			ResourceCount: 50,
		})
	}

	recovery := WindowStats{WindowEndStep: 240, PreyCount: 100, PredCount: 10, ResourceCount: 50}
	if !hasBookmark(bd.Check(recovery), BookmarkPredatorRecovery) {
		t.Error("expected predator_recovery bookmark")
	}
}

func TestBookmarkDetector_StableEcosystem(t *testing.T) {
	bd := NewBookmarkDetector(10)

	var triggeredAt []int
	for i := 0; i < 12; i++ {
		bookmarks := bd.Check(WindowStats{
			WindowEndStep: uint64(i * 60),
			PreyCount:     100,
			PredCount:     20,
			ResourceCount: 50,
		})
		if hasBookmark(bookmarks, BookmarkStableEcosystem) {
			triggeredAt = append(triggeredAt, i)
		}
	}
	// Variance checks start once four windows are recorded
	if len(triggeredAt) != 1 || triggeredAt[0] != 8 {
		t.Errorf("stable_ecosystem triggered at %v, want [8]", triggeredAt)
	}
}

func TestBookmarkDetector_ResourceFamine(t *testing.T) {
	bd := NewBookmarkDetector(5)

	steps := []struct {
		resources int
		want      bool
	}{
		{10, false},
		{0, true},
		{0, false}, // already reported
		{5, false},
		{0, true},
	}
	for i, s := range steps {
		got := hasBookmark(bd.Check(WindowStats{
			WindowEndStep: uint64(i),
			PreyCount:     20,
			ResourceCount: s.resources,
		}), BookmarkResourceFamine)
		if got != s.want {
			t.Errorf("window %d: famine = %v, want %v", i, got, s.want)
		}
	}
}

func TestBookmarkDetector_HistoryOrder(t *testing.T) {
	bd := NewBookmarkDetector(5)
	for i := 0; i < 7; i++ {
		bd.Check(WindowStats{WindowEndStep: uint64(i), ResourceCount: 1})
	}
	h := bd.getHistory()
	if len(h) != 5 {
		t.Fatalf("len = %d, want 5", len(h))
	}
	for i, w := range h {
		if w.WindowEndStep != uint64(i+2) {
			t.Errorf("history[%d] = step %d, want %d", i, w.WindowEndStep, i+2)
		}
	}
}
