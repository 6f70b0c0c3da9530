// Package labels clusters raw plotter text into consolidated piece labels
// and orders them for the labelling head.
package labels

import (
	"strings"
	"unicode/utf8"

	"github.com/marker-visualizer/backend/internal/geometry"
	"github.com/marker-visualizer/backend/internal/marker"
	"github.com/marker-visualizer/backend/internal/models"
)

// Bed describes the drawing the labels are placed on.
type Bed struct {
	MinX   float64
	Width  float64
	Height float64
	FlipH  bool
	FlipV  bool
}

// Grouper joins raw labels that sit close together into one multi-line label.
type Grouper struct {
	// Distance is the largest gap, inclusive, between consecutive labels of
	// one group.
	Distance float64
	// MaxLength drops single-line labels longer than this many characters.
	MaxLength int
}

// NewGrouper creates a grouper from a processing profile.
func NewGrouper(profile *models.ProcessingProfile, format models.Format) *Grouper {
	return &Grouper{
		Distance:  profile.GroupingDistance,
		MaxLength: profile.LabelLengthLimit(format),
	}
}

// referenceRows maps group size to the row whose position the group takes.
var referenceRows = map[int]int{0: 0, 1: 0, 2: 1, 3: 2, 4: 2, 5: 2, 6: 2, 7: 3}

func referenceRow(size int) int {
	if r, ok := referenceRows[size]; ok {
		return r
	}
	return 2
}

// Group clusters raw in file order. A label joins the open group when the
// next label is within Distance; otherwise it closes the group. The returned
// labels are new values; raw is not modified.
func (g *Grouper) Group(raw []*marker.Label, bed Bed) []*marker.Label {
	if len(raw) == 0 {
		return nil
	}

	var groups [][]*marker.Label
	var cur []*marker.Label
	for i, l := range raw {
		next := l
		if i+1 < len(raw) {
			next = raw[i+1]
		}
		cur = append(cur, l)
		if l.Position.Distance(next.Position) > g.Distance {
			groups = append(groups, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}

	out := make([]*marker.Label, 0, len(groups))
	for _, grp := range groups {
		grp = removeSubsumed(grp)
		if len(grp) == 0 {
			continue
		}
		l := consolidate(grp, bed)
		if g.keep(l, bed) {
			out = append(out, l)
		}
	}
	return out
}

// removeSubsumed drops every row whose text is contained in a later row.
func removeSubsumed(grp []*marker.Label) []*marker.Label {
	rows := append([]*marker.Label(nil), grp...)
	for i := 0; i < len(rows); {
		dropped := false
		for j := i + 1; j < len(rows); j++ {
			if strings.Contains(rows[j].Text, rows[i].Text) {
				rows = append(rows[:i], rows[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			i++
		}
	}
	return rows
}

func consolidate(grp []*marker.Label, bed Bed) *marker.Label {
	ref := grp[referenceRow(len(grp))]

	var sb strings.Builder
	for _, l := range grp {
		sb.WriteString(l.Text)
		sb.WriteByte('\r')
	}

	offX := 2 * ref.Position.X
	if bed.FlipH {
		offX = bed.Width
	}
	offY := 2 * ref.Position.Y
	if bed.FlipV {
		offY = bed.Height
	}
	pos := geometry.Point{X: offX - ref.Position.X, Y: offY - ref.Position.Y}

	return marker.NewLabel(sb.String(), pos, ref.Angle, ref.Origin, ref.Width, ref.Height)
}

// keep drops labels outside the drawing and overlong single-line text.
// Rows are counted on newlines only, so a carriage-return joined group
// counts as one line.
func (g *Grouper) keep(l *marker.Label, bed Bed) bool {
	x := l.Position.X
	if x <= bed.MinX || x >= bed.Width {
		return false
	}
	if l.LineCount() == 1 && utf8.RuneCountInString(l.Text) > g.MaxLength {
		return false
	}
	return true
}
