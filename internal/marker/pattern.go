// Package marker holds the pattern and label entities of a marker (the full
// cutting layout) and the operations that mutate them in place.
package marker

import (
	"fmt"

	"github.com/marker-visualizer/backend/internal/geometry"
	"github.com/marker-visualizer/backend/internal/models"
)

// CentroidMode selects how a pattern's raw centroid is computed.
type CentroidMode int

const (
	// CentroidSegments uses every segment's start and end point in order.
	CentroidSegments CentroidMode = iota
	// CentroidOrderedWalk uses the de-duplicated closed walk. Tagged-block
	// pieces are emitted as clean rings and use this mode.
	CentroidOrderedWalk
)

// AreaLimits bounds the bounding-box area of a valid pattern, exclusive on both ends.
type AreaLimits struct {
	Min float64
	Max float64
}

// DefaultAreaLimits accepts pieces between 850 and 1,500,000 mm².
var DefaultAreaLimits = AreaLimits{Min: models.DefaultMinPatternArea, Max: models.DefaultMaxPatternArea}

// Contains reports whether area lies strictly between Min and Max.
func (a AreaLimits) Contains(area float64) bool {
	return area > a.Min && area < a.Max
}

// Pattern is one closed cut piece.
type Pattern struct {
	ID int

	segments     []geometry.Segment
	mode         CentroidMode
	bounds       geometry.Rect
	center       geometry.Point
	centerInside bool

	color         Color
	originalColor Color
	label         *Label
}

// NewPattern builds a pattern from a copy of segments and analyzes it.
func NewPattern(id int, segments []geometry.Segment, mode CentroidMode, color Color) *Pattern {
	p := &Pattern{
		ID:            id,
		segments:      geometry.CloneSegments(segments),
		mode:          mode,
		color:         color,
		originalColor: color,
	}
	p.Analyze()
	return p
}

// Analyze recomputes bounds and the raw centroid, and whether that centroid
// lies inside the outline.
func (p *Pattern) Analyze() {
	p.bounds = geometry.Bounds(p.segments)
	if p.mode == CentroidOrderedWalk {
		p.center = geometry.OrderedCentroid(p.segments)
	} else {
		p.center = geometry.SegmentCentroid(p.segments)
	}
	p.centerInside = geometry.PointInPolygon(p.segments, p.center)
}

// Relocate moves the center to a point confirmed inside the outline. On
// failure the center keeps whatever the search could establish and the
// pattern is marked unconfirmed.
func (p *Pattern) Relocate() error {
	c, err := geometry.Relocate(p.segments, p.bounds, p.center)
	p.center = c
	if err != nil {
		p.centerInside = false
		return fmt.Errorf("center detection failed for pattern %d: %w", p.ID, err)
	}
	p.centerInside = true
	return nil
}

// IsValid applies the default area limits.
func (p *Pattern) IsValid() bool {
	return p.IsValidWithin(DefaultAreaLimits)
}

// IsValidWithin reports whether the bounding-box area is within limits.
func (p *Pattern) IsValidWithin(limits AreaLimits) bool {
	return limits.Contains(p.bounds.Area())
}

// Contains runs the even-odd test against the outline.
func (p *Pattern) Contains(pt geometry.Point) bool {
	return geometry.PointInPolygon(p.segments, pt)
}

// MirrorX reflects the pattern about width/2, then re-analyzes and relocates.
func (p *Pattern) MirrorX(width float64) error {
	for i, s := range p.segments {
		p.segments[i] = s.MirrorX(width)
	}
	p.Analyze()
	return p.Relocate()
}

// MirrorY reflects the pattern about height/2, then re-analyzes and relocates.
func (p *Pattern) MirrorY(height float64) error {
	for i, s := range p.segments {
		p.segments[i] = s.MirrorY(height)
	}
	p.Analyze()
	return p.Relocate()
}

// Link binds l to p and moves l onto the pattern center. A label previously
// bound to p keeps its own back reference, so callers can find patterns that
// collected more than one label.
func (p *Pattern) Link(l *Label) {
	p.label = l
	if l == nil {
		return
	}
	l.pattern = p
	l.MoveTo(p.center)
}

// Unlink clears the pattern side of the label binding.
func (p *Pattern) Unlink() {
	p.label = nil
}

// SameOutline reports whether p and other have identical segments.
func (p *Pattern) SameOutline(other *Pattern) bool {
	return geometry.EqualSegments(p.segments, other.segments)
}

func (p *Pattern) Label() *Label { return p.label }
func (p *Pattern) Center() geometry.Point { return p.center }
func (p *Pattern) CenterInside() bool { return p.centerInside }
func (p *Pattern) Bounds() geometry.Rect { return p.bounds }
func (p *Pattern) Color() Color { return p.color }
func (p *Pattern) SetColor(c Color) { p.color = c }
func (p *Pattern) RestoreColor() { p.color = p.originalColor }
func (p *Pattern) SegmentCount() int { return len(p.segments) }

// Segments returns a copy of the outline.
func (p *Pattern) Segments() []geometry.Segment {
	return geometry.CloneSegments(p.segments)
}

// View returns an owned snapshot of the pattern.
func (p *Pattern) View() models.PatternView {
	v := models.PatternView{
		ID:           p.ID,
		Segments:     p.Segments(),
		Bounds:       p.bounds,
		Center:       p.center,
		CenterInside: p.centerInside,
		Color:        p.color.String(),
	}
	if p.label != nil {
		v.Label = p.label.Text
	}
	return v
}

func (p *Pattern) String() string {
	return fmt.Sprintf("Pattern[id=%d, segments=%d, center=(%.2f, %.2f)]", p.ID, len(p.segments), p.center.X, p.center.Y)
}
