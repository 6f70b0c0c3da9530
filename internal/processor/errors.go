package processor

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyContent is returned when the decoded file holds no commands.
	ErrEmptyContent = errors.New("file content is empty")
	// ErrUnsupportedFormat is returned for a format tag no interpreter reads.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrNotStarted is returned by operations that need a completed Start.
	ErrNotStarted = errors.New("processing has not been started")
	// ErrCleared is returned once Clear has released the processor.
	ErrCleared = errors.New("processor has been cleared")
)

// OverlapMessage is the operator warning shown when a pattern center falls
// inside another pattern.
const OverlapMessage = "Ic ice gecmis parcalar var! Bir parcanin hesaplanan merkezi, baska bir parcanin da alani icerisinde kaliyor." +
	"\n\n" +
	"There are overlapped patterns! The calculated centroid of a pattern is falling under another pattern."

// ProcessingError wraps any failure of the pipeline itself. When it is
// returned the processor holds no partial results.
type ProcessingError struct {
	Op  string
	Err error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("Error occurred during file processing (%s): %v", e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}
