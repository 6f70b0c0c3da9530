package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/marker-visualizer/backend/internal/geometry"
	"github.com/marker-visualizer/backend/internal/marker"
	"github.com/marker-visualizer/backend/internal/models"
)

// KnifePlotter reads Gerber-style knife cutter files.
type KnifePlotter struct{}

// NewKnifePlotter creates a new knife plotter interpreter.
func NewKnifePlotter() *KnifePlotter {
	return &KnifePlotter{}
}

var knifeDelimiter = regexp.MustCompile(`\*`)

// KnifeScale converts cutter units (0.1 mm) to mm.
func KnifeScale(v float64) float64 {
	return v / 10
}

const (
	cmdKnifeDown = "M14"
	cmdKnifeUp   = "M15"
	cmdLabel     = "M31"
)

// Labels read from cutter and tagged-block files share a fixed layout.
const (
	fixedLabelAngle  = 0
	fixedLabelOrigin = 2
	fixedLabelSize   = 12
)

func newFixedLabel(text string, pos geometry.Point) *marker.Label {
	return marker.NewLabel(text, pos, fixedLabelAngle, fixedLabelOrigin, fixedLabelSize, fixedLabelSize)
}

func (k *KnifePlotter) Name() string { return "Knife Plotter" }
func (k *KnifePlotter) Format() models.Format { return models.FormatKnifePlotter }
func (k *KnifePlotter) Extensions() []string { return []string{".cut", ".cam"} }

type knifeState struct {
	down    bool
	current geometry.Point
	target  geometry.Point

	// attached is set by a coordinate carrying a trailing M31; the next token
	// is label text.
	attached bool
	// standalone walks a bare M31 through anchor coordinate then label text.
	standalone  bool
	anchorTaken bool
}

// Interpret runs the knife state machine. N tokens close the current piece.
func (k *KnifePlotter) Interpret(content string, seq Sequence, onProgress ProgressCallback) (*Output, error) {
	tokens := Tokenize(content, knifeDelimiter)
	agg := NewAggregator(seq)
	errs := &errorCollector{}
	out := &Output{Format: models.FormatKnifePlotter, TokenCount: len(tokens)}

	st := &knifeState{}

	for i, tok := range tokens {
		reportProgress(onProgress, i, len(tokens))

		if st.attached {
			out.Labels = append(out.Labels, newFixedLabel(tok, st.current))
			st.attached = false
			continue
		}

		if strings.HasPrefix(tok, "p") {
			continue
		}
		if strings.HasPrefix(tok, "N") {
			agg.Flush()
			continue
		}

		switch {
		case strings.HasPrefix(tok, cmdKnifeDown):
			st.down = true
		case strings.HasPrefix(tok, cmdKnifeUp):
			st.down = false
		}

		if strings.HasPrefix(tok, "X") {
			pt, label, err := parseKnifeCoordinate(tok[1:])
			if err != nil {
				errs.add(i, tok, err.Error())
			} else {
				st.current = pt
				st.attached = label
				if st.down {
					seg := geometry.Segment{Start: st.target, End: st.current}
					out.Segments = append(out.Segments, seg)
					agg.Add(seg)
				}
				st.target = st.current
			}
		}

		switch {
		case tok == cmdLabel:
			st.standalone = true
		case st.standalone:
			st.anchorTaken = true
			st.standalone = false
		case st.anchorTaken:
			out.Labels = append(out.Labels, newFixedLabel(tok, st.current))
			st.anchorTaken = false
		}
	}
	agg.Flush()

	out.Buckets = agg.Buckets()
	out.Errors = errs.errs
	return out, nil
}

// parseKnifeCoordinate reads "<x>Y<y>[M..]" after the leading X. A trailing
// M31 marks the next token as attached label text.
func parseKnifeCoordinate(data string) (geometry.Point, bool, error) {
	var xs, ys strings.Builder
	readingY := false
	label := false

	for i := 0; i < len(data); i++ {
		c := data[i]
		if c == 'Y' {
			readingY = true
			continue
		}
		if c == 'M' {
			label = strings.HasPrefix(data[i:], cmdLabel)
			break
		}
		if readingY {
			ys.WriteByte(c)
		} else {
			xs.WriteByte(c)
		}
	}

	pt, err := scaledPair(xs.String(), ys.String(), KnifeScale)
	if err != nil {
		return geometry.Point{}, false, fmt.Errorf("coordinate: %w", err)
	}
	return pt, label, nil
}
