package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkPopulationCrash BookmarkType = "population_crash"
	BookmarkSpeciesExtinct  BookmarkType = "species_extinct"
	BookmarkStarvationSpike BookmarkType = "starvation_spike"
	BookmarkStableMeadow    BookmarkType = "stable_meadow"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int32        `csv:"tick"`
	Description string       `csv:"description"`
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
	recentPeak         int             // peak population since the last crash
	extinct            map[string]bool // species already reported
	stableWindowsCount int             // consecutive windows with a steady population
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for stable meadow detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
		extinct:     make(map[string]bool),
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	bookmarks = append(bookmarks, bd.checkExtinctions(stats)...)

	if bd.historyFull || bd.historyIdx > 0 {
		// Starvation spike: starvation deaths > 2x rolling average
		if b := bd.checkStarvationSpike(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Crash: dropped >30% from recent peak
		if b := bd.checkPopulationCrash(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Stable: every species present with low variance over 5+ windows
		if b := bd.checkStableMeadow(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(stats)

	if stats.Population > bd.recentPeak {
		bd.recentPeak = stats.Population
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

// recentHistory returns the last n windows oldest first, or nil when fewer
// than n have been recorded.
func (bd *BookmarkDetector) recentHistory(n int) []WindowStats {
	count := bd.historyIdx
	if bd.historyFull {
		count = bd.historySize
	}
	if n > count {
		return nil
	}
	out := make([]WindowStats, n)
	for k := range out {
		out[k] = bd.history[(bd.historyIdx-n+k+bd.historySize)%bd.historySize]
	}
	return out
}

// checkExtinctions reports each species the first window it reaches zero
// after having been present.
func (bd *BookmarkDetector) checkExtinctions(stats WindowStats) []Bookmark {
	var out []Bookmark
	for _, sp := range stats.Species {
		if sp.Count > 0 {
			delete(bd.extinct, sp.Name)
			continue
		}
		if bd.extinct[sp.Name] || !bd.wasPresent(sp.Name) {
			continue
		}
		bd.extinct[sp.Name] = true
		out = append(out, Bookmark{
			Type:        BookmarkSpeciesExtinct,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%s died out", sp.Name),
		})
	}
	return out
}

func (bd *BookmarkDetector) wasPresent(name string) bool {
	for _, h := range bd.getHistory() {
		if h.Species.Get(name) > 0 {
			return true
		}
	}
	return false
}

func starvationDeaths(s WindowStats) int {
	return s.DeathsSunlight + s.DeathsNutrients + s.DeathsWater
}

func (bd *BookmarkDetector) checkStarvationSpike(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total int
	for _, h := range history {
		total += starvationDeaths(h)
	}
	avg := float64(total) / float64(len(history))
	if avg == 0 {
		return nil
	}

	current := starvationDeaths(stats)
	if float64(current) > avg*2.0 && current >= 5 {
		return &Bookmark{
			Type: BookmarkStarvationSpike,
			Tick: stats.WindowEndTick,
			Description: fmt.Sprintf("%d starvation deaths is %.1fx average (%.1f): sunlight %d, nutrients %d, water %d",
				current, float64(current)/avg, avg, stats.DeathsSunlight, stats.DeathsNutrients, stats.DeathsWater),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkPopulationCrash(stats WindowStats) *Bookmark {
	if bd.recentPeak == 0 {
		return nil
	}

	dropPercent := 1.0 - float64(stats.Population)/float64(bd.recentPeak)
	if dropPercent > 0.30 && stats.Population < bd.recentPeak-10 {
		// Reset peak after crash
		oldPeak := bd.recentPeak
		bd.recentPeak = stats.Population

		return &Bookmark{
			Type:        BookmarkPopulationCrash,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Population crashed %.0f%% from peak %d to %d", dropPercent*100, oldPeak, stats.Population),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkStableMeadow(stats WindowStats) *Bookmark {
	// Need every species present
	if stats.Population < 10 {
		bd.stableWindowsCount = 0
		return nil
	}
	for _, sp := range stats.Species {
		if sp.Count == 0 {
			bd.stableWindowsCount = 0
			return nil
		}
	}

	// Check variance in recent windows
	recent := bd.recentHistory(4)
	if recent == nil {
		return nil
	}
	var sum float64
	for _, h := range recent {
		sum += float64(h.Population)
	}
	mean := sum / 4

	var variance float64
	for _, h := range recent {
		d := float64(h.Population) - mean
		variance += d * d
	}
	variance /= 4

	// CV^2 < 0.04 means CV < 0.2
	if mean > 0 && variance/(mean*mean) < 0.04 {
		bd.stableWindowsCount++
	} else {
		bd.stableWindowsCount = 0
	}

	if bd.stableWindowsCount == 5 { // trigger exactly once at 5 windows
		return &Bookmark{
			Type:        BookmarkStableMeadow,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Stable meadow of %d plants over 5+ windows", stats.Population),
		}
	}

	return nil
}
