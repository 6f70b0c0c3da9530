package parser

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/marker-visualizer/backend/internal/geometry"
	"github.com/marker-visualizer/backend/internal/marker"
	"github.com/marker-visualizer/backend/internal/models"
)

// VectorPlotter reads HPGL-style pen plotter files.
type VectorPlotter struct{}

// NewVectorPlotter creates a new vector plotter interpreter.
func NewVectorPlotter() *VectorPlotter {
	return &VectorPlotter{}
}

var vectorDelimiter = regexp.MustCompile(";|\n|\x03|\r")

// VectorScale converts plotter units (1/40 mm on a 1.016 stretched bed) to mm.
func VectorScale(v float64) float64 {
	return v / 40 * 1.016
}

const (
	opDirection = "DI"
	opLabel     = "LB"
	opOrigin    = "LO"
	opPenDown   = "PD"
	opPenUp     = "PU"
	opCharSize  = "SI"
)

func (p *VectorPlotter) Name() string { return "Vector Plotter" }
func (p *VectorPlotter) Format() models.Format { return models.FormatVectorPlotter }
func (p *VectorPlotter) Extensions() []string { return []string{".hpgl", ".plt", ".hpg"} }

type penState struct {
	angle   float64
	origin  float64
	width   float64
	height  float64
	current geometry.Point
	target  geometry.Point
}

// Interpret runs the pen state machine. PU closes the current piece; PD pairs
// draw from the last pen position to each new one.
func (p *VectorPlotter) Interpret(content string, seq Sequence, onProgress ProgressCallback) (*Output, error) {
	tokens := Tokenize(content, vectorDelimiter)
	agg := NewAggregator(seq)
	errs := &errorCollector{}
	out := &Output{Format: models.FormatVectorPlotter, TokenCount: len(tokens)}

	st := &penState{width: 2, height: 2}

	for i, tok := range tokens {
		reportProgress(onProgress, i, len(tokens))

		if len(tok) < 2 {
			errs.add(i, tok, "command shorter than two characters")
			continue
		}
		op, params := tok[:2], tok[2:]

		switch op {
		case opDirection:
			args := splitArgs(params)
			if len(args) < 2 {
				continue
			}
			dx, errX := parseNumber(args[0])
			dy, errY := parseNumber(args[1])
			if errX != nil || errY != nil {
				errs.add(i, tok, "invalid direction")
				continue
			}
			st.angle = math.Atan2(dy, dx) * 180 / math.Pi

		case opLabel:
			text := strings.TrimSpace(params)
			if text == "" {
				continue
			}
			out.Labels = append(out.Labels, marker.NewLabel(text, st.current, st.angle, st.origin, st.width, st.height))

		case opOrigin:
			if strings.TrimSpace(params) == "" {
				continue
			}
			v, err := parseNumber(params)
			if err != nil {
				errs.add(i, tok, "invalid label origin")
				continue
			}
			st.origin = v

		case opCharSize:
			args := splitArgs(params)
			if len(args) < 2 {
				continue
			}
			w, errW := parseNumber(args[0])
			h, errH := parseNumber(args[1])
			if errW != nil || errH != nil {
				errs.add(i, tok, "invalid character size")
				continue
			}
			st.width, st.height = w, h

		case opPenDown:
			p.penDown(i, tok, splitArgs(params), st, agg, out, errs)

		case opPenUp:
			agg.Flush()
			p.penUp(i, tok, splitArgs(params), st, errs)
		}
	}
	agg.Flush()

	out.Buckets = agg.Buckets()
	out.Errors = errs.errs
	return out, nil
}

func (p *VectorPlotter) penDown(index int, tok string, args []string, st *penState, agg *Aggregator, out *Output, errs *errorCollector) {
	for j := 0; j+1 < len(args); j += 2 {
		pt, err := scaledPair(args[j], args[j+1], VectorScale)
		if err != nil {
			errs.add(index, tok, err.Error())
			continue
		}
		st.current = pt
		seg := geometry.Segment{Start: st.target, End: st.current}
		out.Segments = append(out.Segments, seg)
		agg.Add(seg)
		st.target = st.current
	}
}

func (p *VectorPlotter) penUp(index int, tok string, args []string, st *penState, errs *errorCollector) {
	for j := 0; j+1 < len(args); j += 2 {
		pt, err := scaledPair(args[j], args[j+1], VectorScale)
		if err != nil {
			errs.add(index, tok, err.Error())
			continue
		}
		st.current = pt
		st.target = pt
	}
}

func scaledPair(xs, ys string, scale func(float64) float64) (geometry.Point, error) {
	x, err := parseNumber(xs)
	if err != nil {
		return geometry.Point{}, fmt.Errorf("invalid x coordinate %q", xs)
	}
	y, err := parseNumber(ys)
	if err != nil {
		return geometry.Point{}, fmt.Errorf("invalid y coordinate %q", ys)
	}
	return geometry.Point{X: scale(x), Y: scale(y)}, nil
}
