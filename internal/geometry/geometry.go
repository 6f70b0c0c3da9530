// Package geometry holds the planar primitives used by the pattern engine.
// All coordinates are millimetres with X to the right and Y up the bed.
package geometry

import "math"

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// IsFinite reports whether both coordinates are usable numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Segment is one drawn line. Start is where the tool was, End is where it went.
type Segment struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Length returns the segment length.
func (s Segment) Length() float64 {
	return s.Start.Distance(s.End)
}

// MirrorX reflects the segment about the vertical line x = width/2,
// mapping every x to width - x.
func (s Segment) MirrorX(width float64) Segment {
	return Segment{
		Start: Point{X: width - s.Start.X, Y: s.Start.Y},
		End:   Point{X: width - s.End.X, Y: s.End.Y},
	}
}

// MirrorY maps every y to height - y.
func (s Segment) MirrorY(height float64) Segment {
	return Segment{
		Start: Point{X: s.Start.X, Y: height - s.Start.Y},
		End:   Point{X: s.End.X, Y: height - s.End.Y},
	}
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

func (r Rect) Width() float64 { return r.MaxX - r.MinX }
func (r Rect) Height() float64 { return r.MaxY - r.MinY }
func (r Rect) Area() float64 { return r.Width() * r.Height() }

// Center returns the middle of the box.
func (r Rect) Center() Point {
	return Point{X: (r.MinX + r.MaxX) / 2, Y: (r.MinY + r.MaxY) / 2}
}

// Bounds computes the bounding box over every segment endpoint.
// An empty slice yields the zero Rect.
func Bounds(segments []Segment) Rect {
	if len(segments) == 0 {
		return Rect{}
	}
	r := Rect{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	for _, s := range segments {
		for _, p := range [2]Point{s.Start, s.End} {
			r.MinX = math.Min(r.MinX, p.X)
			r.MinY = math.Min(r.MinY, p.Y)
			r.MaxX = math.Max(r.MaxX, p.X)
			r.MaxY = math.Max(r.MaxY, p.Y)
		}
	}
	return r
}

// Extent returns the drawing size: the largest X and Y reached by any
// endpoint, floored at zero. Plotter beds start at the origin, so this is the
// bed length and width actually used by the drawing.
func Extent(segments []Segment) (width, height float64) {
	for _, s := range segments {
		width = math.Max(width, math.Max(s.Start.X, s.End.X))
		height = math.Max(height, math.Max(s.Start.Y, s.End.Y))
	}
	return width, height
}

// MinX returns the smallest endpoint X, or +Inf for no segments.
func MinX(segments []Segment) float64 {
	minX := math.Inf(1)
	for _, s := range segments {
		minX = math.Min(minX, math.Min(s.Start.X, s.End.X))
	}
	return minX
}

// CloneSegments returns an independent copy of segments.
func CloneSegments(segments []Segment) []Segment {
	if segments == nil {
		return nil
	}
	out := make([]Segment, len(segments))
	copy(out, segments)
	return out
}

// EqualSegments reports whether a and b hold identical segments in the same order.
func EqualSegments(a, b []Segment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
