package geometry

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrBoundaryNotFound is returned when the unit-step walk gives up before
	// crossing the polygon outline. Usually a sign of interwoven or
	// self-intersecting source geometry.
	ErrBoundaryNotFound = errors.New("boundary not found within search distance")

	// ErrInvalidCenter is returned for NaN or infinite starting points.
	ErrInvalidCenter = errors.New("center is not a finite point")
)

// Axis selects the coordinate a walk moves along.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	if a == AxisX {
		return "x"
	}
	return "y"
}

func (a Axis) get(p Point) float64 {
	if a == AxisX {
		return p.X
	}
	return p.Y
}

func (a Axis) set(p Point, v float64) Point {
	if a == AxisX {
		p.X = v
	} else {
		p.Y = v
	}
	return p
}

func (a Axis) move(p Point, delta float64) Point {
	return a.set(p, a.get(p)+delta)
}

func (a Axis) max(r Rect) float64 {
	if a == AxisX {
		return r.MaxX
	}
	return r.MaxY
}

func (a Axis) extent(r Rect) float64 {
	if a == AxisX {
		return r.Width()
	}
	return r.Height()
}

// Relocate moves center onto a point that is inside the polygon formed by
// segments. It first walks along X, then along Y from the updated point.
//
// When the X walk fails the original center is returned; when only the Y walk
// fails the X result is kept. Either way the error wraps ErrBoundaryNotFound
// and the caller must not treat the point as confirmed inside.
func Relocate(segments []Segment, bounds Rect, center Point) (Point, error) {
	c, err := RelocateAxis(segments, bounds, center, AxisX)
	if err != nil {
		return center, fmt.Errorf("relocating along %s: %w", AxisX, err)
	}
	c, err = RelocateAxis(segments, bounds, c, AxisY)
	if err != nil {
		return c, fmt.Errorf("relocating along %s: %w", AxisY, err)
	}
	return c, nil
}

// RelocateAxis runs the boundary search on one axis and returns center with
// that coordinate replaced by the midpoint of the two crossings found.
//
// The walk moves in unit steps. The search distance is the integer part of the
// bounding box maximum on the axis; the first crossing search gives up after
// twice that many steps, and bounces back to the start coordinate (reversing
// direction) whenever the offset reaches the search distance.
func RelocateAxis(segments []Segment, bounds Rect, center Point, axis Axis) (Point, error) {
	if !center.IsFinite() {
		return center, ErrInvalidCenter
	}

	searchDistance := float64(int(axis.max(bounds)))
	original := axis.get(center)
	startInside := PointInPolygon(segments, center)

	c := center
	forward := true
	tries := 0
	for PointInPolygon(segments, c) == startInside {
		if float64(tries) >= searchDistance*2 {
			return center, ErrBoundaryNotFound
		}
		tries++

		if axis.get(c)-original >= searchDistance {
			forward = false
			c = axis.set(c, original)
		}
		if axis.get(c)-original <= -searchDistance {
			forward = true
			c = axis.set(c, original)
		}

		if forward {
			c = axis.move(c, 1)
		} else {
			c = axis.move(c, -1)
		}
	}

	lastDir := 1.0
	if !forward {
		lastDir = -1
	}
	first := axis.get(c)

	// A chord along the axis can never be longer than the box, so both
	// follow-up walks are bounded by it.
	limit := int(math.Ceil(axis.extent(bounds))) + 2

	if startInside {
		for steps := 0; !PointInPolygon(segments, c); steps++ {
			if steps > limit {
				return center, ErrBoundaryNotFound
			}
			c = axis.move(c, -lastDir)
		}
	}

	exitDir := lastDir
	if startInside {
		exitDir = -lastDir
	}
	for steps := 0; PointInPolygon(segments, c); steps++ {
		if steps > limit {
			return center, ErrBoundaryNotFound
		}
		c = axis.move(c, exitDir)
	}
	second := axis.get(c)

	return axis.set(center, (first+second)/2), nil
}
