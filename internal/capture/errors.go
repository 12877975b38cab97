package capture

import "errors"

// Sentinel errors surfaced by the controller. Hard device failures
// additionally arrive on the Errors channel with an ERROR state
// transition; everything here is recoverable via Stop + StartStreaming.
var (
	// ErrNoFrames is returned when finalizing a capture session whose
	// buffer is empty.
	ErrNoFrames = errors.New("no frames captured")

	// ErrInvalidState is returned when an operation is invoked from a
	// state that does not permit it.
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrReadFailed is reported when a capture-sequence frame read
	// fails or exceeds the bounded wait.
	ErrReadFailed = errors.New("frame read failed")

	// ErrNoAveragedFrame is returned by Analyze when no averaged
	// sample is available.
	ErrNoAveragedFrame = errors.New("no averaged frame available")
)
