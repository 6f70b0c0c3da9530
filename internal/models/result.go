package models

import "github.com/marker-visualizer/backend/internal/geometry"

// PatternView is an owned snapshot of one valid pattern.
type PatternView struct {
	ID           int                `json:"id"`
	Segments     []geometry.Segment `json:"segments"`
	Bounds       geometry.Rect      `json:"bounds"`
	Center       geometry.Point     `json:"center"`
	CenterInside bool               `json:"centerInside"`
	Color        string             `json:"color"`
	Label        string             `json:"label,omitempty"`
}

// LabelView is an owned snapshot of one finalized label.
type LabelView struct {
	Text              string         `json:"text"`
	Position          geometry.Point `json:"position"`
	OriginalPosition  geometry.Point `json:"originalPosition"`
	PrintablePosition string         `json:"printablePosition"`
	PositionChanged   bool           `json:"positionChanged"`
	Angle             float64        `json:"angle"`
	Origin            float64        `json:"origin"`
	Width             float64        `json:"width"`
	Height            float64        `json:"height"`
	PatternID         *int           `json:"patternId,omitempty"`
	Reference         bool           `json:"reference,omitempty"`
}

// Result is everything a processing run hands back to its caller.
// Labels start with the synthetic reference label.
type Result struct {
	Format              Format        `json:"format"`
	Unit                Unit          `json:"unit"`
	Width               float64       `json:"width"`
	Height              float64       `json:"height"`
	PrintableDimensions string        `json:"printableDimensions"`
	FlipHorizontal      bool          `json:"flipHorizontal"`
	FlipVertical        bool          `json:"flipVertical"`
	Patterns            []PatternView `json:"patterns"`
	Labels              []LabelView   `json:"labels"`
	HasOverlapError     bool          `json:"hasOverlapError"`
	OverlapMessage      string        `json:"overlapMessage,omitempty"`
	Warnings            []string      `json:"warnings,omitempty"`
	ParseErrors         []ParseError  `json:"parseErrors,omitempty"`
}
