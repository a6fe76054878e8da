package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrChunkTranscription marks a failed transcription of a single chunk.
	ErrChunkTranscription = errors.New("chunk transcription failed")

	// ErrModelLoad is returned when the speech-recognition model cannot be prepared.
	ErrModelLoad = errors.New("speech model load failed")
)

// Supported backends.
const (
	BackendWhisperCPP = "whispercpp"
	BackendOpenAI     = "openai"
	BackendHTTP       = "http"
)

// Model is a loaded speech-recognition model. It is used by a single pipeline
// run, one chunk at a time, and is not safe for concurrent use.
type Model interface {
	// Transcribe returns the text spoken in the WAV file at chunkPath.
	Transcribe(ctx context.Context, chunkPath string) (string, error)
	// Close releases the model.
	Close() error
}

// Loader prepares a Model. Loading is the expensive step and happens once per run.
type Loader interface {
	Load(ctx context.Context) (Model, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (Model, error)

// Load calls f(ctx).
func (f LoaderFunc) Load(ctx context.Context) (Model, error) {
	return f(ctx)
}

// Config contains speech-recognition configuration
type Config struct {
	Backend   string
	ModelSize string // whisper size tag: tiny, base, small, ...
	Language  string // fixed, never auto-detected

	// whispercpp
	BinaryPath string
	ModelDir   string
	Threads    int

	// openai / http
	Endpoint   string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// NewLoader returns a Loader for the configured backend
func NewLoader(cfg Config, logger *slog.Logger) (Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.ModelSize == "" {
		cfg.ModelSize = "tiny"
	}

	switch cfg.Backend {
	case BackendWhisperCPP, "":
		return LoaderFunc(func(ctx context.Context) (Model, error) {
			return loadWhisperCPP(ctx, cfg, logger)
		}), nil
	case BackendOpenAI:
		return LoaderFunc(func(ctx context.Context) (Model, error) {
			return loadOpenAI(cfg, logger)
		}), nil
	case BackendHTTP:
		return LoaderFunc(func(ctx context.Context) (Model, error) {
			client, err := NewClient(cfg, logger)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
			}
			return client, nil
		}), nil
	default:
		return nil, fmt.Errorf("unknown transcription backend %q (supported: %s, %s, %s)",
			cfg.Backend, BackendWhisperCPP, BackendOpenAI, BackendHTTP)
	}
}
