// Package parser turns plotter and cutter command text into drawn segments,
// per-piece segment buckets and raw labels.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/marker-visualizer/backend/internal/geometry"
	"github.com/marker-visualizer/backend/internal/marker"
	"github.com/marker-visualizer/backend/internal/models"
)

// ProgressCallback is called periodically while a command stream is interpreted.
type ProgressCallback func(tokensProcessed, totalTokens int)

// progressEvery is how many tokens pass between progress callbacks.
const progressEvery = 5000

// Interpreter defines the interface for one command language.
// Implementations hold no per-run state and may be shared.
type Interpreter interface {
	// Name returns the unique name of the interpreter.
	Name() string
	// Format returns the format tag this interpreter reads.
	Format() models.Format
	// Extensions lists the lower-case file extensions, with dot, it claims.
	Extensions() []string
	// Interpret runs the state machine over decoded file content. Piece ids
	// are drawn from seq, which the caller resets per run.
	Interpret(content string, seq Sequence, onProgress ProgressCallback) (*Output, error)
}

// Output is what an interpreter emits for one file.
type Output struct {
	Format models.Format

	// Segments holds every drawn segment in draw order.
	Segments []geometry.Segment

	// Buckets holds the per-piece segment runs in ascending id order.
	Buckets []Bucket

	// Labels holds raw, ungrouped labels in file order.
	Labels []*marker.Label

	// Pieces is only filled by the tagged-block interpreter; each piece
	// carries its already consolidated label.
	Pieces []*TaggedPiece

	// Errors lists tokens that were skipped.
	Errors []models.ParseError

	TokenCount int
}

// Tokenize splits content with delim, trims whitespace and control noise
// from every token and drops the tokens left empty.
func Tokenize(content string, delim *regexp.Regexp) []string {
	raw := delim.Split(content, -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimFunc(t, isNoise)
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// isNoise matches whitespace plus the SUB (0x1A) and ETX (0x03) control
// characters that plotter software leaves in its output.
func isNoise(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f', 0x1a, 0x03, 0x00:
		return true
	}
	return false
}

// splitArgs splits a comma separated argument list. Blank input gives nil.
func splitArgs(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// errorCollector records skipped tokens.
type errorCollector struct {
	errs []models.ParseError
}

func (c *errorCollector) add(index int, content, reason string) {
	c.errs = append(c.errs, models.ParseError{
		Token:   index + 1,
		Content: content,
		Reason:  reason,
	})
}

func reportProgress(onProgress ProgressCallback, i, total int) {
	if onProgress != nil && i > 0 && i%progressEvery == 0 {
		onProgress(i, total)
	}
}
