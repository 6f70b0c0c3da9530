package processor

import "github.com/marker-visualizer/backend/internal/marker"

// hasOverlap reports whether any pattern's outline contains the center of
// another pattern.
func hasOverlap(patterns []*marker.Pattern) bool {
	for _, sh := range patterns {
		for _, other := range patterns {
			if other == sh {
				continue
			}
			if sh.Contains(other.Center()) {
				return true
			}
		}
	}
	return false
}
