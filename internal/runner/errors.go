package runner

import (
	"context"
	"errors"

	"github.com/Samit952/NoteFlow-AI/internal/audio"
	"github.com/Samit952/NoteFlow-AI/internal/config"
	"github.com/Samit952/NoteFlow-AI/internal/notes"
	"github.com/Samit952/NoteFlow-AI/internal/transcription"
)

// Errors a caller may see from Run or Preflight. Use errors.Is to match them.
var (
	ErrMediaToolUnavailable = audio.ErrMediaToolUnavailable
	ErrDecodeFailure        = audio.ErrDecodeFailure
	ErrChunkTranscription   = transcription.ErrChunkTranscription
	ErrModelLoad            = transcription.ErrModelLoad
	ErrGenerationFailure    = notes.ErrGenerationFailure
	ErrConfiguration        = config.ErrConfiguration
	ErrInvalidTopic         = notes.ErrInvalidTopic

	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Kind names an error class for logs, API responses and exit messages
type Kind string

const (
	KindMediaToolUnavailable Kind = "media_tool_unavailable"
	KindDecodeFailure        Kind = "decode_failure"
	KindChunkTranscription   Kind = "chunk_transcription_failure"
	KindModelLoad            Kind = "model_load_failure"
	KindGenerationFailure    Kind = "generation_failure"
	KindConfiguration        Kind = "configuration_error"
	KindUnsupportedFormat    Kind = "unsupported_format"
	KindInvalidTopic         Kind = "invalid_topic"
	KindCanceled             Kind = "canceled"
	KindInternal             Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrMediaToolUnavailable, KindMediaToolUnavailable},
	{ErrDecodeFailure, KindDecodeFailure},
	{ErrModelLoad, KindModelLoad},
	{ErrChunkTranscription, KindChunkTranscription},
	{ErrGenerationFailure, KindGenerationFailure},
	{ErrConfiguration, KindConfiguration},
	{ErrUnsupportedFormat, KindUnsupportedFormat},
	{ErrInvalidTopic, KindInvalidTopic},
	{context.Canceled, KindCanceled},
	{context.DeadlineExceeded, KindCanceled},
}

// Classify returns the kind of err. nil yields "".
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Fatal reports whether err must stop the process before any run is attempted
func Fatal(err error) bool {
	switch Classify(err) {
	case KindMediaToolUnavailable, KindConfiguration:
		return true
	}
	return false
}
