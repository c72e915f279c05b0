package detector

import "errors"

var (
	// ErrUnknownDetector is returned when a configuration names a detector that does not exist.
	ErrUnknownDetector = errors.New("unknown detector")

	// ErrDetectorPanic wraps a panic recovered from a detector.
	ErrDetectorPanic = errors.New("detector panicked")
)
