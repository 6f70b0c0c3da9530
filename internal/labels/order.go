package labels

import (
	"math"
	"sort"

	"github.com/marker-visualizer/backend/internal/marker"
)

// OrderSnake sorts labels into vertical strips of stripWidth, walks each strip
// by Y, reverses every odd strip and puts a fresh reference label in front.
// Labels left or right of the drawing go to the nearest strip.
func OrderSnake(labels []*marker.Label, width, stripWidth float64) []*marker.Label {
	out := make([]*marker.Label, 0, len(labels)+1)
	out = append(out, marker.NewReferenceLabel())
	if len(labels) == 0 {
		return out
	}

	count := int(math.Ceil(width / stripWidth))
	if count < 1 {
		count = 1
	}
	strips := make([][]*marker.Label, count)
	for _, l := range labels {
		if l == nil {
			continue
		}
		idx := int(l.Position.X / stripWidth)
		if idx < 0 {
			idx = 0
		}
		if idx >= count {
			idx = count - 1
		}
		strips[idx] = append(strips[idx], l)
	}

	for i, strip := range strips {
		sort.SliceStable(strip, func(a, b int) bool {
			return strip[a].Position.Y < strip[b].Position.Y
		})
		if i%2 == 1 {
			for a, b := 0, len(strip)-1; a < b; a, b = a+1, b-1 {
				strip[a], strip[b] = strip[b], strip[a]
			}
		}
		out = append(out, strip...)
	}
	return out
}
