package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/Samit952/NoteFlow-AI/internal/config"
	"github.com/Samit952/NoteFlow-AI/internal/metrics"
	"github.com/Samit952/NoteFlow-AI/internal/notes"
	"github.com/Samit952/NoteFlow-AI/internal/pipeline"
)

// SupportedExtensions lists the accepted upload formats
var SupportedExtensions = []string{"mp3", "wav", "m4a"}

// RawAudio is an uploaded audio file held in memory
type RawAudio struct {
	Data []byte
	Ext  string // declared extension, with or without the leading dot
}

// Transcriber runs the audio pipeline on a file
type Transcriber interface {
	Run(ctx context.Context, inputPath string, opts pipeline.Options) (*pipeline.Transcription, error)
}

// NotesGenerator turns a transcript into notes
type NotesGenerator interface {
	Generate(ctx context.Context, transcript string, topic notes.Topic) (string, error)
}

// ToolChecker probes the external media tool
type ToolChecker interface {
	CheckTool(ctx context.Context) error
}

// Options are per-run settings
type Options struct {
	Progress  pipeline.ProgressFunc
	OnStage   pipeline.StageFunc
	SkipNotes bool
}

// Result is the outcome of a run. Transcript is always set; Notes is empty
// when NotesErr is set or notes were skipped.
type Result struct {
	RunID         string        `json:"run_id"`
	Topic         notes.Topic   `json:"topic"`
	Transcript    string        `json:"transcript"`
	Notes         string        `json:"notes"`
	NotesErr      error         `json:"-"`
	Chunks        int           `json:"chunks"`
	LostChunks    []int         `json:"lost_chunks"`
	AudioDuration time.Duration `json:"audio_duration"`
}

// Runner wires the pipeline to notes generation
type Runner struct {
	transcriber Transcriber
	generator   NotesGenerator
	workDir     string
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// New creates a runner. generator may be nil when notes are never requested;
// m may be nil.
func New(transcriber Transcriber, generator NotesGenerator, workDir string, m *metrics.Metrics, logger *slog.Logger) *Runner {
	if workDir == "" {
		workDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		transcriber: transcriber,
		generator:   generator,
		workDir:     workDir,
		metrics:     m,
		logger:      logger,
	}
}

// NormalizeExt lowercases ext, strips a leading dot and checks it is supported
func NormalizeExt(ext string) (string, error) {
	e := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if !slices.Contains(SupportedExtensions, e) {
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, ext, strings.Join(SupportedExtensions, ", "))
	}
	return e, nil
}

// Run processes one upload. Input errors are returned before any file is
// written. A pipeline failure returns a nil Result. A notes failure returns
// the Result with NotesErr set and a nil error.
func (r *Runner) Run(ctx context.Context, raw RawAudio, topic notes.Topic, opts Options) (*Result, error) {
	ext, err := NormalizeExt(raw.Ext)
	if err != nil {
		return nil, err
	}
	topic, err = notes.ParseTopic(string(topic))
	if err != nil {
		return nil, err
	}
	if len(raw.Data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrDecodeFailure)
	}
	if !opts.SkipNotes && r.generator == nil {
		return nil, fmt.Errorf("%w: notes generation is not configured", ErrConfiguration)
	}

	start := time.Now()
	outcome := metrics.OutcomeAborted
	if r.metrics != nil {
		r.metrics.RecordRunStarted()
		defer func() {
			r.metrics.RecordRunFinished(outcome, time.Since(start).Seconds())
		}()
	}

	inputPath, err := r.writeUpload(raw.Data, ext)
	if err != nil {
		return nil, err
	}
	defer os.Remove(inputPath)

	t, err := r.transcriber.Run(ctx, inputPath, pipeline.Options{
		Progress: opts.Progress,
		OnStage:  opts.OnStage,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:         t.RunID,
		Topic:         topic,
		Transcript:    t.Transcript,
		Chunks:        t.Chunks,
		LostChunks:    t.LostChunks,
		AudioDuration: t.AudioDuration,
	}

	if opts.SkipNotes {
		outcome = metrics.OutcomeSuccess
		return result, nil
	}

	result.Notes, result.NotesErr = r.generator.Generate(ctx, t.Transcript, topic)
	if result.NotesErr != nil {
		outcome = metrics.OutcomeNotesFailed
		r.logger.Warn("Returning transcript without notes",
			slog.String("run_id", t.RunID),
			slog.String("error", result.NotesErr.Error()),
		)
		return result, nil
	}

	outcome = metrics.OutcomeSuccess
	return result, nil
}

func (r *Runner) writeUpload(data []byte, ext string) (string, error) {
	if err := os.MkdirAll(r.workDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	f, err := os.CreateTemp(r.workDir, "upload-*."+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close upload file: %w", err)
	}
	return f.Name(), nil
}

// Preflight checks the conditions every run depends on: the media tool is
// runnable and the required credentials are configured. It returns the first
// failure.
func Preflight(ctx context.Context, cfg *config.Config, checker ToolChecker, needNotes bool) error {
	if err := checker.CheckTool(ctx); err != nil {
		return err
	}
	return cfg.RequireCredentials(needNotes)
}
