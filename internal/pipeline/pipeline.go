package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Samit952/NoteFlow-AI/internal/audio"
	"github.com/Samit952/NoteFlow-AI/internal/metrics"
	"github.com/Samit952/NoteFlow-AI/internal/transcription"
)

// ProgressFunc receives (completed, total) after every chunk attempt.
// It is called synchronously on the run's goroutine.
type ProgressFunc func(completed, total int)

// StageFunc observes stage transitions
type StageFunc func(stage Stage)

// Options are per-run callbacks. Both fields are optional.
type Options struct {
	Progress ProgressFunc
	OnStage  StageFunc
}

// Normalizer converts arbitrary input audio into canonical WAV inside dir
type Normalizer interface {
	Normalize(ctx context.Context, inputPath, dir string) (string, error)
}

// Splitter cuts canonical WAV into fixed-length chunk files inside dir
type Splitter interface {
	Split(ctx context.Context, canonicalPath string, chunkLength time.Duration, dir string) ([]audio.Chunk, error)
}

// Config contains pipeline configuration
type Config struct {
	WorkDir     string        // parent of per-run directories; empty means os.TempDir()
	ChunkLength time.Duration // zero means audio.DefaultChunkLength
}

// Pipeline runs normalization, splitting and chunk transcription
type Pipeline struct {
	config     Config
	normalizer Normalizer
	splitter   Splitter
	loader     transcription.Loader
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Transcription is the outcome of a successful run
type Transcription struct {
	RunID         string        `json:"run_id"`
	Transcript    string        `json:"transcript"`
	Chunks        int           `json:"chunks"`
	LostChunks    []int         `json:"lost_chunks"`
	AudioDuration time.Duration `json:"audio_duration"`
}

// ChunkResult is the outcome of transcribing one chunk. Exactly one of Text
// or Err is meaningful.
type ChunkResult struct {
	Index    int
	Text     string
	Err      error
	Duration time.Duration
}

// New creates a pipeline. m may be nil.
func New(cfg Config, normalizer Normalizer, splitter Splitter, loader transcription.Loader, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.ChunkLength <= 0 {
		cfg.ChunkLength = audio.DefaultChunkLength
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		config:     cfg,
		normalizer: normalizer,
		splitter:   splitter,
		loader:     loader,
		metrics:    m,
		logger:     logger,
	}
}

// Run transcribes the audio file at inputPath. The input file is not modified.
// Failures before transcription starts abort the run; failed chunks do not.
func (p *Pipeline) Run(ctx context.Context, inputPath string, opts Options) (*Transcription, error) {
	runID := uuid.NewString()
	logger := p.logger.With(slog.String("run_id", runID))

	stage := StageIdle
	setStage := func(s Stage) {
		if stage.Terminal() {
			return
		}
		logger.Debug("Pipeline stage changed",
			slog.String("from", stage.String()),
			slog.String("to", s.String()),
		)
		stage = s
		if opts.OnStage != nil {
			opts.OnStage(s)
		}
	}
	abort := func(err error) (*Transcription, error) {
		setStage(StageAborted)
		logger.Error("Pipeline run aborted", slog.String("error", err.Error()))
		return nil, err
	}

	dir, err := p.createRunDir(runID)
	if err != nil {
		return abort(err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("Failed to remove run directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
		}
	}()

	setStage(StageNormalizing)
	normalizeStart := time.Now()
	canonical, err := p.normalizer.Normalize(ctx, inputPath, dir)
	if err != nil {
		return abort(err)
	}

	setStage(StageSplitting)
	chunks, err := p.splitter.Split(ctx, canonical, p.config.ChunkLength, dir)
	if err != nil {
		return abort(err)
	}
	// The chunks hold all the audio from here on.
	if err := os.Remove(canonical); err != nil {
		logger.Warn("Failed to remove canonical audio", slog.String("error", err.Error()))
	}

	var audioDuration time.Duration
	for _, c := range chunks {
		audioDuration += c.Duration
		if p.metrics != nil {
			p.metrics.RecordChunkGenerated(c.Duration.Seconds())
		}
	}
	if p.metrics != nil {
		p.metrics.RecordNormalized(audioDuration.Seconds(), time.Since(normalizeStart).Seconds())
	}

	logger.Info("Audio split into chunks",
		slog.Int("chunks", len(chunks)),
		slog.Duration("audio_duration", audioDuration),
		slog.Duration("chunk_length", p.config.ChunkLength),
	)

	setStage(StageTranscribing)
	var results []ChunkResult
	if len(chunks) > 0 {
		model, err := p.loadModel(ctx)
		if err != nil {
			return abort(err)
		}
		defer model.Close()

		for res := range p.TranscribeChunks(ctx, model, chunks, opts.Progress) {
			results = append(results, res)
		}
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
	}

	setStage(StageAggregating)
	transcript, lost := Aggregate(results)

	setStage(StageDone)
	logger.Info("Transcription finished",
		slog.Int("chunks", len(chunks)),
		slog.Int("lost_chunks", len(lost)),
		slog.Int("transcript_chars", len(transcript)),
	)

	return &Transcription{
		RunID:         runID,
		Transcript:    transcript,
		Chunks:        len(chunks),
		LostChunks:    lost,
		AudioDuration: audioDuration,
	}, nil
}

// TranscribeChunks yields one result per chunk, in index order. Each chunk file
// is removed right after its attempt and progress is reported before the
// result is yielded. Iteration stops early when ctx is done.
func (p *Pipeline) TranscribeChunks(ctx context.Context, model transcription.Model, chunks []audio.Chunk, progress ProgressFunc) iter.Seq[ChunkResult] {
	return func(yield func(ChunkResult) bool) {
		total := len(chunks)
		for i, c := range chunks {
			if ctx.Err() != nil {
				return
			}

			start := time.Now()
			text, err := model.Transcribe(ctx, c.Path)
			elapsed := time.Since(start)

			if rmErr := os.Remove(c.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				p.logger.Warn("Failed to remove chunk file",
					slog.Int("chunk", c.Index),
					slog.String("error", rmErr.Error()),
				)
			}

			res := ChunkResult{Index: c.Index, Duration: elapsed}
			if err != nil {
				res.Err = fmt.Errorf("%w: chunk %d: %w", transcription.ErrChunkTranscription, c.Index, err)
				p.logger.Warn("Chunk transcription failed, skipping",
					slog.Int("chunk", c.Index),
					slog.Int("total", total),
					slog.String("error", err.Error()),
				)
				if p.metrics != nil {
					p.metrics.RecordTranscriptionFailure(elapsed.Seconds())
				}
			} else {
				res.Text = text
				p.logger.Debug("Chunk transcribed",
					slog.Int("chunk", c.Index),
					slog.Int("total", total),
					slog.Duration("elapsed", elapsed),
				)
				if p.metrics != nil {
					p.metrics.RecordTranscriptionSuccess(elapsed.Seconds())
				}
			}

			if progress != nil {
				progress(i+1, total)
			}

			if !yield(res) {
				return
			}
		}
	}
}

// Aggregate joins the text of successful chunks in index order, separated by
// single spaces, trims the outer whitespace and returns the indexes of failed
// chunks. Failed chunks contribute no text.
func Aggregate(results []ChunkResult) (string, []int) {
	ordered := slices.SortedStableFunc(slices.Values(results), func(a, b ChunkResult) int {
		return cmp.Compare(a.Index, b.Index)
	})

	parts := make([]string, 0, len(ordered))
	lost := []int{}
	for _, r := range ordered {
		if r.Err != nil {
			lost = append(lost, r.Index)
			continue
		}
		parts = append(parts, r.Text)
	}

	return strings.TrimSpace(strings.Join(parts, " ")), lost
}

func (p *Pipeline) createRunDir(runID string) (string, error) {
	if err := os.MkdirAll(p.config.WorkDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	dir := filepath.Join(p.config.WorkDir, "run-"+runID)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create run dir: %w", err)
	}
	return dir, nil
}

func (p *Pipeline) loadModel(ctx context.Context) (transcription.Model, error) {
	start := time.Now()
	model, err := p.loader.Load(ctx)
	if err != nil {
		if !errors.Is(err, transcription.ErrModelLoad) {
			err = fmt.Errorf("%w: %w", transcription.ErrModelLoad, err)
		}
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.RecordModelLoad(time.Since(start).Seconds())
	}
	return model, nil
}
