package marker

import (
	"fmt"
	"strings"

	"github.com/marker-visualizer/backend/internal/geometry"
	"github.com/marker-visualizer/backend/internal/models"
)

// ReferenceSign is the text of the synthetic label placed at the bed origin.
const ReferenceSign = "+"

// Label is one positioned text annotation. Its position moves as the label
// is grouped, linked or mirrored; the position read from the file is kept.
type Label struct {
	Text     string
	Position geometry.Point
	Angle    float64
	Origin   float64
	Width    float64
	Height   float64

	original  geometry.Point
	reference bool
	pattern   *Pattern
}

// NewLabel creates a label at pos. pos also becomes the original position.
func NewLabel(text string, pos geometry.Point, angle, origin, width, height float64) *Label {
	return &Label{
		Text:     text,
		Position: pos,
		Angle:    angle,
		Origin:   origin,
		Width:    width,
		Height:   height,
		original: pos,
	}
}

// NewReferenceLabel creates the "+" label at the origin that leads every
// ordered label list.
func NewReferenceLabel() *Label {
	l := NewLabel(ReferenceSign, geometry.Point{}, 0, 0, 0, 0)
	l.reference = true
	return l
}

// IsReference reports whether l is the synthetic reference label.
func (l *Label) IsReference() bool { return l.reference }

// OriginalPosition is the position the label was created with.
func (l *Label) OriginalPosition() geometry.Point { return l.original }

// Pattern returns the pattern this label is bound to, if any.
func (l *Label) Pattern() *Pattern { return l.pattern }

// Offset moves the label by dx, dy.
func (l *Label) Offset(dx, dy float64) {
	l.Position.X += dx
	l.Position.Y += dy
}

// MoveTo places the label at p.
func (l *Label) MoveTo(p geometry.Point) {
	l.Position = p
}

// PositionChanged reports whether the label no longer sits where the file put it.
func (l *Label) PositionChanged() bool {
	return l.Position.Distance(l.original) != 0
}

// PrintablePosition formats the position in the given display unit.
func (l *Label) PrintablePosition(unit models.Unit) string {
	return fmt.Sprintf("x=%.2f y=%.2f", unit.FromMillimetres(l.Position.X), unit.FromMillimetres(l.Position.Y))
}

// LineCount counts newline-separated rows, ignoring trailing empty rows.
// A label consisting only of newlines has zero rows; an empty label has one.
func (l *Label) LineCount() int {
	if l.Text == "" {
		return 1
	}
	rows := strings.Split(l.Text, "\n")
	for len(rows) > 0 && rows[len(rows)-1] == "" {
		rows = rows[:len(rows)-1]
	}
	return len(rows)
}

// AppendText adds text on a new line.
func (l *Label) AppendText(text string) {
	l.Text = l.Text + "\n" + text
}

// Unlink detaches l from its pattern without touching the pattern side.
func (l *Label) Unlink() {
	l.pattern = nil
}

// View returns an owned snapshot of the label.
func (l *Label) View(unit models.Unit) models.LabelView {
	v := models.LabelView{
		Text:              l.Text,
		Position:          l.Position,
		OriginalPosition:  l.original,
		PrintablePosition: l.PrintablePosition(unit),
		PositionChanged:   l.PositionChanged(),
		Angle:             l.Angle,
		Origin:            l.Origin,
		Width:             l.Width,
		Height:            l.Height,
		Reference:         l.reference,
	}
	if l.pattern != nil {
		id := l.pattern.ID
		v.PatternID = &id
	}
	return v
}

func (l *Label) String() string {
	return fmt.Sprintf("%s [x=%.2f, y=%.2f]", l.Text, l.Position.X, l.Position.Y)
}
