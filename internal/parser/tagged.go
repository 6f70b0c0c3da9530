package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/marker-visualizer/backend/internal/geometry"
	"github.com/marker-visualizer/backend/internal/marker"
	"github.com/marker-visualizer/backend/internal/models"
)

// TaggedBlock reads GGT-style files in which every piece is its own
// N<id>* block carrying both outline and label fragments.
type TaggedBlock struct{}

// NewTaggedBlock creates a new tagged-block interpreter.
func NewTaggedBlock() *TaggedBlock {
	return &TaggedBlock{}
}

// TaggedScale converts tagged-block units to mm.
func TaggedScale(v float64) float64 {
	return v * 0.025 * 1.016 * 10
}

var (
	blockStart    = regexp.MustCompile(`N(\d+)\*`)
	fragmentRe    = regexp.MustCompile(`M31\*X(-?\d+)Y(-?\d+)\*([^*]+)\*`)
	coordinateRe  = regexp.MustCompile(`X(-?\d+)Y(-?\d+)`)
	discontinuity = regexp.MustCompile(`\*M19(\*X\d+Y\d+)\*M15\*X\d+Y\d+\*M14`)
	liftBeforeTag = regexp.MustCompile(`(\*M19\*X\d+Y\d+)\*M15(\*M31)`)
)

// Fragment is one label text read from a block, with its position.
type Fragment struct {
	Text     string
	Position geometry.Point
}

// TaggedPiece is one N<id>* block.
type TaggedPiece struct {
	ID       int
	Segments []geometry.Segment

	// Fragments keeps first-insertion order; a repeated text keeps its slot
	// and takes the later position.
	Fragments []Fragment

	Label *marker.Label
}

func (p *TaggedPiece) putFragment(text string, pos geometry.Point) {
	for i := range p.Fragments {
		if p.Fragments[i].Text == text {
			p.Fragments[i].Position = pos
			return
		}
	}
	p.Fragments = append(p.Fragments, Fragment{Text: text, Position: pos})
}

// consolidate builds the single piece label: every text followed by a
// newline, placed at the last fragment.
func (p *TaggedPiece) consolidate() {
	if len(p.Fragments) == 0 {
		return
	}
	var sb strings.Builder
	for _, f := range p.Fragments {
		sb.WriteString(f.Text)
		sb.WriteString("\n")
	}
	p.Label = newFixedLabel(sb.String(), p.Fragments[len(p.Fragments)-1].Position)
}

func (p *TaggedPiece) addSegment(start, end geometry.Point) {
	if start == end {
		return
	}
	p.Segments = append(p.Segments, geometry.Segment{Start: start, End: end})
}

func (t *TaggedBlock) Name() string { return "Tagged Block" }
func (t *TaggedBlock) Format() models.Format { return models.FormatTaggedBlock }
func (t *TaggedBlock) Extensions() []string { return []string{".ggt"} }

// Interpret splits content into blocks and reads each independently. Bucket
// ids are the block ids; when a block id repeats the later block wins.
func (t *TaggedBlock) Interpret(content string, seq Sequence, onProgress ProgressCallback) (*Output, error) {
	agg := NewAggregator(seq)
	errs := &errorCollector{}
	out := &Output{Format: models.FormatTaggedBlock}

	locs := blockStart.FindAllStringSubmatchIndex(content, -1)
	seen := make(map[int]int, len(locs))
	for i, loc := range locs {
		reportProgress(onProgress, i, len(locs))

		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		idText := content[loc[2]:loc[3]]
		id, err := strconv.Atoi(idText)
		if err != nil {
			errs.add(i, idText, "invalid block id")
			continue
		}

		piece := t.readBlock(id, content[loc[0]:end])
		if j, ok := seen[id]; ok {
			out.Pieces[j] = piece
		} else {
			seen[id] = len(out.Pieces)
			out.Pieces = append(out.Pieces, piece)
		}
		out.Segments = append(out.Segments, piece.Segments...)
		agg.Put(id, piece.Segments)
	}

	out.TokenCount = len(locs)
	out.Buckets = agg.Buckets()
	out.Errors = errs.errs
	return out, nil
}

func (t *TaggedBlock) readBlock(id int, block string) *TaggedPiece {
	piece := &TaggedPiece{ID: id}

	for _, m := range fragmentRe.FindAllStringSubmatch(block, -1) {
		x, errX := strconv.ParseFloat(m[1], 64)
		y, errY := strconv.ParseFloat(m[2], 64)
		if errX != nil || errY != nil {
			continue
		}
		piece.putFragment(m[3], geometry.Point{X: TaggedScale(x), Y: TaggedScale(y)})
	}
	piece.consolidate()

	block = discontinuity.ReplaceAllString(block, "${1}")
	block = liftBeforeTag.ReplaceAllString(block, "${1}${2}")

	cutting := false
	var points []geometry.Point

	for _, cmd := range strings.Split(block, "*") {
		cmd = strings.TrimSpace(cmd)
		switch {
		case cmd == "":
			continue
		case cmd == cmdKnifeDown:
			cutting = true
			points = points[:0]
		case cmd == cmdKnifeUp:
			if cutting && len(points) > 1 {
				for i := 0; i+1 < len(points); i++ {
					piece.addSegment(points[i], points[i+1])
				}
				if first, last := points[0], points[len(points)-1]; first != last {
					piece.addSegment(last, first)
				}
			}
			cutting = false
			points = points[:0]
		case strings.HasPrefix(cmd, "X") && strings.Contains(cmd, "Y"):
			pt, ok := parseTaggedCoordinate(cmd)
			if ok && cutting {
				points = append(points, pt)
			}
		}
	}
	return piece
}

func parseTaggedCoordinate(cmd string) (geometry.Point, bool) {
	m := coordinateRe.FindStringSubmatch(cmd)
	if m == nil {
		return geometry.Point{}, false
	}
	x, errX := strconv.ParseFloat(m[1], 64)
	y, errY := strconv.ParseFloat(m[2], 64)
	if errX != nil || errY != nil {
		return geometry.Point{}, false
	}
	return geometry.Point{X: TaggedScale(x), Y: TaggedScale(y)}, true
}
