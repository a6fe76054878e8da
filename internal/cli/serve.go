package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Samit952/NoteFlow-AI/internal/runner"
	"github.com/Samit952/NoteFlow-AI/internal/server"
)

var serveSkipNotes bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the HTTP API. POST /v1/notes accepts a multipart upload with a
"file" part and a "topic" field and returns the transcript and notes as JSON.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveSkipNotes, "transcribe-only", false, "start without generation service credentials")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", "noteflow"),
		slog.String("version", version),
		slog.String("config_path", configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("address", cfg.Server.Address),
		slog.Int("port", cfg.Server.Port),
		slog.Int("max_concurrent_runs", cfg.Server.MaxConcurrentRuns),
		slog.String("ffmpeg", cfg.Audio.FFmpegPath),
		slog.Int("chunk_length_ms", cfg.Audio.ChunkLengthMs),
		slog.String("transcription_backend", cfg.Transcription.Backend),
		slog.String("model_size", cfg.Transcription.ModelSize),
		slog.String("language", cfg.Transcription.Language),
		slog.String("notes_model", cfg.Notes.Model),
		slog.String("log_level", cfg.Logging.Level),
	)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	// Reported once by the caller.
	if err := runner.Preflight(cmd.Context(), cfg, a.normalizer, !serveSkipNotes); err != nil {
		return err
	}

	server.Version = version
	httpServer := server.NewHTTPServer(cfg, a.runner, a.metrics, a.registry, logger)
	if err := httpServer.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("address", httpServer.Addr()),
	)
	<-ctx.Done()

	logger.Info("Starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}

	logger.Info("Service stopped")
	return nil
}
