package processor

import (
	"math"
	"sort"

	"github.com/asim/quadtree"

	"github.com/marker-visualizer/backend/internal/geometry"
	"github.com/marker-visualizer/backend/internal/marker"
)

var zeroPoint = quadtree.NewPoint(0, 0, nil)

// PatternIndex answers "which pattern is under this point" without testing
// every outline. Pattern centers live in a quadtree; a pattern can only
// contain a point within its own largest extent of its center.
type PatternIndex struct {
	tree   *quadtree.QuadTree
	reach  float64
	bounds geometry.Rect
}

// NewPatternIndex indexes the current centers of patterns. The index must be
// rebuilt after the patterns move.
func NewPatternIndex(patterns []*marker.Pattern) *PatternIndex {
	if len(patterns) == 0 {
		return &PatternIndex{}
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	reach := 0.0
	for _, p := range patterns {
		b := p.Bounds()
		c := p.Center()
		minX = math.Min(minX, math.Min(b.MinX, c.X))
		minY = math.Min(minY, math.Min(b.MinY, c.Y))
		maxX = math.Max(maxX, math.Max(b.MaxX, c.X))
		maxY = math.Max(maxY, math.Max(b.MaxY, c.Y))
		reach = math.Max(reach, math.Max(b.Width(), b.Height()))
	}

	midX := (maxX + minX) / 2
	midY := (maxY + minY) / 2
	// Margin so centers on the edge are not dropped.
	halfWidth := maxX - midX + 10
	halfHeight := maxY - midY + 10

	aabb := quadtree.NewAABB(
		quadtree.NewPoint(midX, midY, nil),
		quadtree.NewPoint(halfWidth, halfHeight, nil))
	ix := &PatternIndex{
		tree:   quadtree.New(aabb, 0, nil),
		reach:  reach,
		bounds: geometry.Rect{
			MinX: midX - halfWidth, MinY: midY - halfHeight,
			MaxX: midX + halfWidth, MaxY: midY + halfHeight,
		},
	}
	for _, p := range patterns {
		ix.add(p)
	}
	return ix
}

// add stores p under its center. Patterns sharing a center share a point.
func (ix *PatternIndex) add(p *marker.Pattern) {
	c := p.Center()
	point := quadtree.NewPoint(c.X, c.Y, nil)
	found := ix.tree.KNearest(quadtree.NewAABB(point, zeroPoint), 1, nil)
	if len(found) > 0 {
		x, y := found[0].Coordinates()
		if x == c.X && y == c.Y {
			list := found[0].Data().(*[]*marker.Pattern)
			*list = append(*list, p)
			return
		}
	}
	list := []*marker.Pattern{p}
	ix.tree.Insert(quadtree.NewPoint(c.X, c.Y, &list))
}

// At returns the patterns whose outline contains pt, lowest id first.
func (ix *PatternIndex) At(pt geometry.Point) []*marker.Pattern {
	if ix.tree == nil {
		return nil
	}
	near := quadtree.NewAABB(
		quadtree.NewPoint(pt.X, pt.Y, nil),
		quadtree.NewPoint(ix.reach, ix.reach, nil))

	var hits []*marker.Pattern
	for _, point := range ix.tree.Search(near) {
		for _, p := range *point.Data().(*[]*marker.Pattern) {
			if p.Contains(pt) {
				hits = append(hits, p)
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
	return hits
}

// Nearest returns up to k patterns ordered by center distance from pt.
func (ix *PatternIndex) Nearest(pt geometry.Point, k int) []*marker.Pattern {
	if ix.tree == nil || k <= 0 {
		return nil
	}
	// The search box must reach every indexed center from pt.
	b := ix.bounds
	half := math.Max(
		math.Max(math.Abs(pt.X-b.MinX), math.Abs(pt.X-b.MaxX)),
		math.Max(math.Abs(pt.Y-b.MinY), math.Abs(pt.Y-b.MaxY)))
	aabb := quadtree.NewAABB(
		quadtree.NewPoint(pt.X, pt.Y, nil),
		quadtree.NewPoint(half, half, nil))

	var out []*marker.Pattern
	for _, point := range ix.tree.Search(aabb) {
		out = append(out, *point.Data().(*[]*marker.Pattern)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Center().Distance(pt) < out[j].Center().Distance(pt)
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}
