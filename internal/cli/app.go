package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Samit952/NoteFlow-AI/internal/audio"
	"github.com/Samit952/NoteFlow-AI/internal/config"
	"github.com/Samit952/NoteFlow-AI/internal/metrics"
	"github.com/Samit952/NoteFlow-AI/internal/notes"
	"github.com/Samit952/NoteFlow-AI/internal/pipeline"
	"github.com/Samit952/NoteFlow-AI/internal/runner"
	"github.com/Samit952/NoteFlow-AI/internal/transcription"
)

// app holds the components shared by the commands
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	normalizer *audio.Normalizer
	runner     *runner.Runner
}

// loadConfig loads the env file and the configuration named by the global flags
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFiles(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	return cfg, nil
}

// newApp wires the pipeline, the notes generator and the runner
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	normalizer := audio.NewNormalizer(cfg.Audio.FFmpegPath, logger)

	loader, err := transcription.NewLoader(transcription.Config{
		Backend:    cfg.Transcription.Backend,
		ModelSize:  cfg.Transcription.ModelSize,
		Language:   cfg.Transcription.Language,
		BinaryPath: cfg.Transcription.BinaryPath,
		ModelDir:   cfg.Transcription.ModelDir,
		Threads:    cfg.Transcription.Threads,
		Endpoint:   cfg.Transcription.Endpoint,
		APIKey:     cfg.Transcription.APIKey,
		Model:      cfg.Transcription.Model,
		Timeout:    cfg.Transcription.GetTimeoutDuration(),
		MaxRetries: cfg.Transcription.MaxRetries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	p := pipeline.New(pipeline.Config{
		WorkDir:     cfg.Audio.GetWorkDir(),
		ChunkLength: cfg.Audio.GetChunkLength(),
	}, normalizer, audio.NewSplitter(logger), loader, m, logger)

	var generator runner.NotesGenerator
	if cfg.Notes.APIKey != "" {
		g, err := notes.NewGenerator(notes.Config{
			Model:               cfg.Notes.Model,
			BaseURL:             cfg.Notes.BaseURL,
			APIKey:              cfg.Notes.APIKey,
			MaxCompletionTokens: cfg.Notes.MaxCompletionTokens,
			Timeout:             cfg.Notes.GetTimeoutDuration(),
			MaxRetries:          cfg.Notes.MaxRetries,
		}, m, logger)
		if err != nil {
			return nil, err
		}
		generator = g
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		registry:   reg,
		metrics:    m,
		normalizer: normalizer,
		runner:     runner.New(p, generator, cfg.Audio.GetWorkDir(), m, logger),
	}, nil
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr", "":
		output = os.Stderr
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
