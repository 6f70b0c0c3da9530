package geometry

import "math"

// AreaEpsilon is the signed area below which a polygon is treated as
// degenerate and its centroid falls back to the vertex mean.
const AreaEpsilon = 1e-4

// PointInPolygon runs the even-odd ray cast over the polygon whose vertices
// are the segment start points, in order. Points exactly on an edge may
// report either result.
func PointInPolygon(segments []Segment, p Point) bool {
	n := len(segments)
	if n == 0 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		vi, vj := segments[i].Start, segments[j].Start
		if (vi.Y > p.Y) != (vj.Y > p.Y) &&
			p.X < (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
		j = i
	}
	return inside
}

// Vertices lists each segment's start then end point, in insertion order.
// Shared endpoints appear twice; they contribute nothing to the area sum.
func Vertices(segments []Segment) []Point {
	pts := make([]Point, 0, len(segments)*2)
	for _, s := range segments {
		pts = append(pts, s.Start, s.End)
	}
	return pts
}

// OrderedVertices walks a closed run of segments: the first start point,
// then every end point, except a final end point that returns to the start.
func OrderedVertices(segments []Segment) []Point {
	if len(segments) == 0 {
		return nil
	}
	first := segments[0].Start
	pts := make([]Point, 0, len(segments)+1)
	pts = append(pts, first)
	last := len(segments) - 1
	for i, s := range segments {
		if i < last || s.End != first {
			pts = append(pts, s.End)
		}
	}
	return pts
}

// SignedArea returns the shoelace area of the closed vertex ring.
func SignedArea(pts []Point) float64 {
	n := len(pts)
	var a float64
	for i := 0; i < n; i++ {
		k := (i + 1) % n
		a += pts[i].X*pts[k].Y - pts[k].X*pts[i].Y
	}
	return a * 0.5
}

// Centroid returns the area-weighted centroid of the vertex ring, or the
// vertex mean when the ring is degenerate (|area| < AreaEpsilon).
func Centroid(pts []Point) Point {
	n := len(pts)
	if n == 0 {
		return Point{}
	}
	a := SignedArea(pts)
	if math.Abs(a) < AreaEpsilon {
		var sx, sy float64
		for _, p := range pts {
			sx += p.X
			sy += p.Y
		}
		return Point{X: sx / float64(n), Y: sy / float64(n)}
	}

	var cx, cy float64
	for i := 0; i < n; i++ {
		k := (i + 1) % n
		t := pts[i].X*pts[k].Y - pts[k].X*pts[i].Y
		cx += (pts[i].X + pts[k].X) * t
		cy += (pts[i].Y + pts[k].Y) * t
	}
	return Point{X: cx / (6 * a), Y: cy / (6 * a)}
}

// SegmentCentroid is the centroid over Vertices(segments).
func SegmentCentroid(segments []Segment) Point {
	return Centroid(Vertices(segments))
}

// OrderedCentroid is the centroid over OrderedVertices(segments). Fewer than
// three distinct walk vertices yields the origin.
func OrderedCentroid(segments []Segment) Point {
	pts := OrderedVertices(segments)
	if len(pts) < 3 {
		return Point{}
	}
	return Centroid(pts)
}
