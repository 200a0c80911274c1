package protocol

import (
	"errors"
	"fmt"
)

// Protocol errors.
var (
	// ErrMalformedFrame is returned when an inbound frame is not a valid
	// envelope. Callers log and drop such frames.
	ErrMalformedFrame = errors.New("protocol: malformed frame")

	// ErrUnknownKind is returned when encoding an envelope whose kind is
	// outside the vocabulary.
	ErrUnknownKind = errors.New("protocol: unknown kind")

	// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("protocol: frame too large")
)

// FrameError describes why a frame could not be decoded. It unwraps to
// ErrMalformedFrame.
type FrameError struct {
	Reason string
	Err    error
}

// Error returns the error message.
func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: malformed frame: %s: %v", e.Reason, e.Err)
	}
	return "protocol: malformed frame: " + e.Reason
}

// Unwrap allows errors.Is(err, ErrMalformedFrame).
func (e *FrameError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedFrame, e.Err}
	}
	return []error{ErrMalformedFrame}
}

func malformed(reason string, err error) error {
	return &FrameError{Reason: reason, Err: err}
}
