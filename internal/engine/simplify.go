package engine

import "github.com/lazypower/visarea/internal/store"

// Simplify returns the locations worth keeping at the given area threshold:
// every point with an area score of at least minArea, plus unremovable and
// not-yet-scored points. Input order is preserved.
func Simplify(locs []store.Location, minArea float64) []store.Location {
	if minArea <= 0 {
		return locs
	}
	kept := make([]store.Location, 0, len(locs))
	for _, loc := range locs {
		if loc.Score.Kind == store.ScoreArea && loc.Score.Area < minArea {
			continue
		}
		kept = append(kept, loc)
	}
	return kept
}
