package models

// SessionStatus represents the status of a processing session.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusComplete   SessionStatus = "complete"
	SessionStatusError      SessionStatus = "error"
)

// ProcessSession represents one run of the marker pipeline over an uploaded file.
type ProcessSession struct {
	ID               string        `json:"id"`
	FileID           string        `json:"fileId"`
	FileName         string        `json:"fileName,omitempty"`
	Format           Format        `json:"format"`
	Unit             Unit          `json:"unit"`
	Status           SessionStatus `json:"status"`
	Progress         float64       `json:"progress"` // 0-100
	PatternCount     int           `json:"patternCount,omitempty"`
	LabelCount       int           `json:"labelCount,omitempty"`
	FlipHorizontal   bool          `json:"flipHorizontal"`
	FlipVertical     bool          `json:"flipVertical"`
	HasOverlapError  bool          `json:"hasOverlapError"`
	ProcessingTimeMs int64         `json:"processingTimeMs,omitempty"`
	Warnings         []string      `json:"warnings,omitempty"`
	Errors           []ParseError  `json:"errors,omitempty"`
}

// ParseError represents a token the interpreter skipped, or a fatal
// processing error when Token is zero.
type ParseError struct {
	Token   int    `json:"token"` // 1-based token index within the command stream
	Content string `json:"content"`
	Reason  string `json:"reason"`
}

// NewProcessSession creates a new ProcessSession in pending status.
func NewProcessSession(id, fileID string, format Format, unit Unit) *ProcessSession {
	return &ProcessSession{
		ID:       id,
		FileID:   fileID,
		Format:   format,
		Unit:     unit,
		Status:   SessionStatusPending,
		Progress: 0,
		Errors:   make([]ParseError, 0),
	}
}

// Clone returns a copy that shares no slices with s.
func (s *ProcessSession) Clone() *ProcessSession {
	c := *s
	c.Warnings = append([]string(nil), s.Warnings...)
	c.Errors = append([]ParseError(nil), s.Errors...)
	return &c
}
