package processor

import (
	"unicode/utf8"

	"github.com/marker-visualizer/backend/internal/geometry"
	"github.com/marker-visualizer/backend/internal/labels"
	"github.com/marker-visualizer/backend/internal/marker"
	"github.com/marker-visualizer/backend/internal/parser"
)

// associationStrategy decides how labels find their patterns. It is picked
// once per processor from the format.
type associationStrategy interface {
	associate(p *Processor, out *parser.Output)
	flip(p *Processor, axis geometry.Axis)
}

// positionBased links free-standing labels to the pattern that encloses them.
// Used by the vector and knife formats.
type positionBased struct{}

func (positionBased) associate(p *Processor, out *parser.Output) {
	p.labels = p.groupAndOrder()

	p.assemble(out.Buckets, marker.CentroidSegments, func(pat *marker.Pattern) {
		if !pat.CenterInside() {
			return
		}
		for _, l := range p.labels {
			if l.IsReference() || l.Pattern() != nil {
				continue
			}
			if pat.Contains(l.Position) {
				pat.Link(l)
				return
			}
		}
	})

	mergeStrayLabels(p)
}

// flip regroups the raw labels for the new orientation and links every
// label each mirrored pattern encloses. Several labels on one pattern are
// merged afterwards.
func (positionBased) flip(p *Processor, axis geometry.Axis) {
	p.labels = p.groupAndOrder()

	for _, pat := range p.patterns {
		pat.Unlink()
	}
	for _, pat := range p.patterns {
		pat.RestoreColor()
		p.mirror(pat, axis)
		for _, l := range p.labels {
			if l.IsReference() {
				continue
			}
			if pat.Contains(l.Position) {
				pat.Link(l)
			}
		}
	}

	mergeLabelsWithSameShape(p)
}

// preAssociated takes the label each tagged block already carries.
type preAssociated struct{}

func (preAssociated) associate(p *Processor, out *parser.Output) {
	byID := make(map[int]*parser.TaggedPiece, len(out.Pieces))
	for _, piece := range out.Pieces {
		byID[piece.ID] = piece
	}

	p.assemble(out.Buckets, marker.CentroidOrderedWalk, func(pat *marker.Pattern) {
		if piece, ok := byID[pat.ID]; ok && piece.Label != nil {
			pat.Link(piece.Label)
		}
	})

	p.labels = orderPatternLabels(p)
}

func (preAssociated) flip(p *Processor, axis geometry.Axis) {
	for _, pat := range p.patterns {
		pat.RestoreColor()
		p.mirror(pat, axis)
		if l := pat.Label(); l != nil {
			pat.Link(l)
		}
	}
	p.labels = orderPatternLabels(p)
}

func orderPatternLabels(p *Processor) []*marker.Label {
	var ls []*marker.Label
	for _, pat := range p.patterns {
		if l := pat.Label(); l != nil {
			ls = append(ls, l)
		}
	}
	return labels.OrderSnake(ls, p.width, p.profile.StripWidth)
}

// mergeStrayLabels appends the text of every unlinked label to the label of
// the first pattern enclosing it, then drops all unlinked labels.
func mergeStrayLabels(p *Processor) {
	kept := make([]*marker.Label, 0, len(p.labels))
	for _, l := range p.labels {
		if l.IsReference() || l.Pattern() != nil {
			kept = append(kept, l)
			continue
		}
		for _, pat := range p.patterns {
			if !pat.Contains(l.Position) {
				continue
			}
			if host := pat.Label(); host != nil {
				host.AppendText(l.Text)
			}
			break
		}
	}
	p.labels = kept
}

// mergeLabelsWithSameShape folds labels pointing at the same pattern into the
// first longest one and rebinds the pattern to it. Patterns whose label was
// claimed by another pattern lose it.
func mergeLabelsWithSameShape(p *Processor) {
	var order []*marker.Pattern
	byPattern := make(map[*marker.Pattern][]*marker.Label)
	for _, l := range p.labels {
		pat := l.Pattern()
		if pat == nil {
			continue
		}
		if _, ok := byPattern[pat]; !ok {
			order = append(order, pat)
		}
		byPattern[pat] = append(byPattern[pat], l)
	}

	drop := make(map[*marker.Label]bool)
	for _, pat := range order {
		group := byPattern[pat]
		longest := group[0]
		for _, l := range group[1:] {
			if utf8.RuneCountInString(l.Text) > utf8.RuneCountInString(longest.Text) {
				longest = l
			}
		}
		for _, l := range group {
			if l == longest {
				continue
			}
			longest.AppendText(l.Text)
			l.Unlink()
			drop[l] = true
		}
		pat.Link(longest)
	}

	for _, pat := range p.patterns {
		if l := pat.Label(); l != nil && l.Pattern() != pat {
			pat.Unlink()
		}
	}

	if len(drop) == 0 {
		return
	}
	kept := p.labels[:0]
	for _, l := range p.labels {
		if !drop[l] {
			kept = append(kept, l)
		}
	}
	p.labels = kept
}
