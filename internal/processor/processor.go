// Package processor runs the marker pipeline: interpret a command file, build
// and recenter patterns, group and order labels, associate them, detect
// overlaps and apply mirror flips.
package processor

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/marker-visualizer/backend/internal/geometry"
	"github.com/marker-visualizer/backend/internal/labels"
	"github.com/marker-visualizer/backend/internal/marker"
	"github.com/marker-visualizer/backend/internal/models"
	"github.com/marker-visualizer/backend/internal/parser"
)

// Option configures a Processor.
type Option func(*Processor)

// WithSequence injects the piece id source. It is reset on every Start.
func WithSequence(seq parser.Sequence) Option {
	return func(p *Processor) { p.seq = seq }
}

// WithColors injects the pattern colour source.
func WithColors(c marker.ColorSource) Option {
	return func(p *Processor) { p.colors = c }
}

// WithRegistry selects interpreters from r instead of the global registry.
func WithRegistry(r *parser.Registry) Option {
	return func(p *Processor) { p.registry = r }
}

// WithProgress receives interpreter progress during Start.
func WithProgress(fn parser.ProgressCallback) Option {
	return func(p *Processor) { p.onProgress = fn }
}

// Processor owns the state of one marker file. All mutation happens under
// the write lock; callers only ever see copies.
type Processor struct {
	mu sync.RWMutex

	content    string
	format     models.Format
	unit       models.Unit
	profile    *models.ProcessingProfile
	registry   *parser.Registry
	interp     parser.Interpreter
	seq        parser.Sequence
	colors     marker.ColorSource
	onProgress parser.ProgressCallback
	strategy   associationStrategy
	grouper    *labels.Grouper

	started bool
	cleared bool

	segments    []geometry.Segment
	rawLabels   []*marker.Label
	pieces      []*parser.TaggedPiece
	patterns    []*marker.Pattern
	labels      []*marker.Label
	width       float64
	height      float64
	minX        float64
	flipH       bool
	flipV       bool
	overlap     bool
	warnings    []string
	parseErrors []models.ParseError
	index       *PatternIndex
}

// New validates the input and prepares a processor. Nothing is parsed until
// Start. A nil profile means the built-in defaults.
func New(content string, format models.Format, unit models.Unit, profile *models.ProcessingProfile, opts ...Option) (*Processor, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	var prof models.ProcessingProfile
	if profile != nil {
		prof = *profile
		prof.MaxLabelLength = make(map[models.Format]int, len(profile.MaxLabelLength))
		for f, n := range profile.MaxLabelLength {
			prof.MaxLabelLength[f] = n
		}
	}
	prof.ApplyDefaults()

	if unit == "" {
		unit = prof.DefaultUnit
	}

	p := &Processor{
		content: content,
		format:  format,
		unit:    unit,
		profile: &prof,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		p.registry = parser.GetGlobalRegistry()
	}
	if p.seq == nil {
		p.seq = parser.NewCounter()
	}
	if p.colors == nil {
		p.colors = marker.NewRandomColors(time.Now().UnixNano())
	}

	interp, err := p.registry.ByFormat(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	p.interp = interp
	p.grouper = labels.NewGrouper(p.profile, format)

	if format == models.FormatTaggedBlock {
		p.strategy = preAssociated{}
	} else {
		p.strategy = positionBased{}
	}
	return p, nil
}

// Format returns the format the processor was built for.
func (p *Processor) Format() models.Format {
	return p.format
}

// Start runs the full pipeline and returns a snapshot of the result. Calling
// Start again re-runs it from the original content with flips reset.
func (p *Processor) Start() (res *models.Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cleared {
		return nil, ErrCleared
	}

	defer p.guard("start", &res, &err)

	p.resetState()
	p.seq.Reset()

	out, err := p.interp.Interpret(p.content, p.seq, p.onProgress)
	if err != nil {
		p.resetState()
		return nil, &ProcessingError{Op: "start", Err: err}
	}

	p.segments = out.Segments
	p.rawLabels = out.Labels
	p.pieces = out.Pieces
	p.parseErrors = out.Errors
	p.width, p.height = geometry.Extent(p.segments)
	p.minX = drawingMinX(p.segments)

	p.strategy.associate(p, out)
	p.finish()
	p.started = true

	return p.snapshot(), nil
}

// FlipHorizontal mirrors the marker about its vertical center line and
// re-associates labels.
func (p *Processor) FlipHorizontal() (*models.Result, error) {
	return p.flip(geometry.AxisX)
}

// FlipVertical mirrors the marker about its horizontal center line.
func (p *Processor) FlipVertical() (*models.Result, error) {
	return p.flip(geometry.AxisY)
}

func (p *Processor) flip(axis geometry.Axis) (res *models.Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cleared {
		return nil, ErrCleared
	}
	if !p.started {
		return nil, ErrNotStarted
	}

	defer p.guard("flip "+axis.String(), &res, &err)

	if axis == geometry.AxisX {
		p.flipH = !p.flipH
	} else {
		p.flipV = !p.flipV
	}
	p.warnings = nil

	for i, s := range p.segments {
		if axis == geometry.AxisX {
			p.segments[i] = s.MirrorX(p.width)
		} else {
			p.segments[i] = s.MirrorY(p.height)
		}
	}
	p.minX = drawingMinX(p.segments)

	p.strategy.flip(p, axis)
	p.finish()

	return p.snapshot(), nil
}

// Snapshot returns a copy of the current result.
func (p *Processor) Snapshot() (*models.Result, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.cleared {
		return nil, ErrCleared
	}
	if !p.started {
		return nil, ErrNotStarted
	}
	return p.snapshot(), nil
}

// PatternsAt returns the patterns whose outline contains pt.
func (p *Processor) PatternsAt(pt geometry.Point) ([]models.PatternView, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started {
		return nil, ErrNotStarted
	}
	return views(p.index.At(pt)), nil
}

// NearestPatterns returns up to k patterns ordered by center distance.
func (p *Processor) NearestPatterns(pt geometry.Point, k int) ([]models.PatternView, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started {
		return nil, ErrNotStarted
	}
	return views(p.index.Nearest(pt, k)), nil
}

// Clear releases everything the processor holds. Every later call returns
// ErrCleared.
func (p *Processor) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resetState()
	p.content = ""
	p.cleared = true
}

// guard turns a panic into a ProcessingError and drops partial state.
func (p *Processor) guard(op string, res **models.Result, err *error) {
	if r := recover(); r != nil {
		p.resetState()
		*res = nil
		*err = &ProcessingError{Op: op, Err: fmt.Errorf("%v", r)}
	}
}

func (p *Processor) resetState() {
	p.started = false
	p.segments = nil
	p.rawLabels = nil
	p.pieces = nil
	p.patterns = nil
	p.labels = nil
	p.width, p.height, p.minX = 0, 0, 0
	p.flipH, p.flipV = false, false
	p.overlap = false
	p.warnings = nil
	p.parseErrors = nil
	p.index = nil
}

// finish runs the steps shared by Start and the flips.
func (p *Processor) finish() {
	p.overlap = hasOverlap(p.patterns)
	if p.overlap {
		p.warn(OverlapMessage)
	}
	p.index = NewPatternIndex(p.patterns)
}

func (p *Processor) warn(msg string) {
	p.warnings = append(p.warnings, msg)
}

func (p *Processor) bed() labels.Bed {
	return labels.Bed{
		MinX:   p.minX,
		Width:  p.width,
		Height: p.height,
		FlipH:  p.flipH,
		FlipV:  p.flipV,
	}
}

// groupAndOrder rebuilds the ordered label list from the raw labels under
// the current flip state.
func (p *Processor) groupAndOrder() []*marker.Label {
	grouped := p.grouper.Group(p.rawLabels, p.bed())
	return labels.OrderSnake(grouped, p.width, p.profile.StripWidth)
}

func (p *Processor) areaLimits() marker.AreaLimits {
	return marker.AreaLimits{Min: p.profile.MinPatternArea, Max: p.profile.MaxPatternArea}
}

// assemble builds one pattern per bucket, keeps the valid ones, recenters
// them and drops geometric duplicates. link runs for every kept pattern
// before it is added.
func (p *Processor) assemble(buckets []parser.Bucket, mode marker.CentroidMode, link func(*marker.Pattern)) {
	limits := p.areaLimits()
	for _, b := range buckets {
		pat := marker.NewPattern(b.ID, b.Segments, mode, p.colors.Next())
		if !pat.IsValidWithin(limits) {
			continue
		}
		if err := pat.Relocate(); err != nil {
			p.warn(err.Error())
		}
		if p.hasOutline(pat) {
			continue
		}
		link(pat)
		p.patterns = append(p.patterns, pat)
	}
}

func (p *Processor) hasOutline(pat *marker.Pattern) bool {
	for _, existing := range p.patterns {
		if existing.SameOutline(pat) {
			return true
		}
	}
	return false
}

func (p *Processor) mirror(pat *marker.Pattern, axis geometry.Axis) {
	var err error
	if axis == geometry.AxisX {
		err = pat.MirrorX(p.width)
	} else {
		err = pat.MirrorY(p.height)
	}
	if err != nil {
		p.warn(err.Error())
	}
}

func (p *Processor) snapshot() *models.Result {
	res := &models.Result{
		Format:          p.format,
		Unit:            p.unit,
		Width:           p.width,
		Height:          p.height,
		FlipHorizontal:  p.flipH,
		FlipVertical:    p.flipV,
		Patterns:        views(p.patterns),
		Labels:          make([]models.LabelView, 0, len(p.labels)),
		HasOverlapError: p.overlap,
		Warnings:        append([]string(nil), p.warnings...),
		ParseErrors:     append([]models.ParseError(nil), p.parseErrors...),
	}
	res.PrintableDimensions = fmt.Sprintf("L: %.2f, W: %.2f",
		p.unit.FromMillimetres(p.width), p.unit.FromMillimetres(p.height))
	if p.overlap {
		res.OverlapMessage = OverlapMessage
	}
	for _, l := range p.labels {
		res.Labels = append(res.Labels, l.View(p.unit))
	}
	return res
}

func views(patterns []*marker.Pattern) []models.PatternView {
	out := make([]models.PatternView, 0, len(patterns))
	for _, pat := range patterns {
		out = append(out, pat.View())
	}
	return out
}

// drawingMinX is the smallest x of the drawing, or zero without segments.
func drawingMinX(segments []geometry.Segment) float64 {
	v := geometry.MinX(segments)
	if math.IsInf(v, 0) {
		return 0
	}
	return v
}
