package audio

import "errors"

var (
	// ErrMediaToolUnavailable is returned when the external decoder cannot be executed.
	ErrMediaToolUnavailable = errors.New("media tool unavailable")

	// ErrDecodeFailure is returned when input audio cannot be decoded into a canonical waveform.
	ErrDecodeFailure = errors.New("audio decode failure")
)
