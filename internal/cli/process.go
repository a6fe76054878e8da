package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Samit952/NoteFlow-AI/internal/notes"
	"github.com/Samit952/NoteFlow-AI/internal/pipeline"
	"github.com/Samit952/NoteFlow-AI/internal/runner"
)

// Output file names written by process --out.
const (
	TranscriptFileName = "transcript.txt"
	NotesFileName      = "notes.md"
)

var (
	processTopic     string
	processOutDir    string
	processSkipNotes bool
)

var processCmd = &cobra.Command{
	Use:   "process <audio-file>",
	Short: "Transcribe a lecture recording and generate study notes",
	Long: `Normalizes the recording, transcribes it chunk by chunk and generates notes.
Accepted formats: mp3, wav, m4a. Progress is printed to stderr.

Without --out the transcript and notes are printed to stdout. With --out they
are written to transcript.txt and notes.md in that directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processTopic, "topic", "t", string(notes.TopicOther),
		"lecture topic: "+topicList())
	processCmd.Flags().StringVarP(&processOutDir, "out", "o", "", "directory for transcript.txt and notes.md")
	processCmd.Flags().BoolVar(&processSkipNotes, "skip-notes", false, "only produce the transcript")
	rootCmd.AddCommand(processCmd)
}

func topicList() string {
	slugs := make([]string, 0, len(notes.Topics()))
	for _, t := range notes.Topics() {
		slugs = append(slugs, t.Slug())
	}
	return strings.Join(slugs, ", ")
}

func runProcess(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	// Input checks come before anything touches the disk or external tools.
	topic, err := notes.ParseTopic(processTopic)
	if err != nil {
		return err
	}
	if _, err := runner.NormalizeExt(filepath.Ext(inputPath)); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Logging)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	if err := runner.Preflight(cmd.Context(), cfg, a.normalizer, !processSkipNotes); err != nil {
		return err
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", inputPath, err)
	}

	stderr := cmd.ErrOrStderr()
	result, err := a.runner.Run(cmd.Context(), runner.RawAudio{
		Data: data,
		Ext:  filepath.Ext(inputPath),
	}, topic, runner.Options{
		SkipNotes: processSkipNotes,
		OnStage: func(s pipeline.Stage) {
			switch s {
			case pipeline.StageNormalizing:
				fmt.Fprintln(stderr, "Processing audio...")
			case pipeline.StageDone:
				fmt.Fprintln(stderr, "Transcription complete!")
			}
		},
		Progress: func(completed, total int) {
			fmt.Fprintf(stderr, "Transcribing %d/%d...\n", completed, total)
		},
	})
	if err != nil {
		return err
	}

	if len(result.LostChunks) > 0 {
		fmt.Fprintf(stderr, "Warning: %d of %d chunks could not be transcribed and were skipped: %v\n",
			len(result.LostChunks), result.Chunks, result.LostChunks)
	}
	if !processSkipNotes && result.NotesErr == nil {
		fmt.Fprintln(stderr, "Notes generated.")
	}

	if err := writeOutputs(cmd, result); err != nil {
		return err
	}

	logger.Info("Run finished",
		slog.String("run_id", result.RunID),
		slog.String("topic", result.Topic.String()),
		slog.Int("chunks", result.Chunks),
		slog.Int("lost_chunks", len(result.LostChunks)),
	)

	// The transcript is already saved; a notes failure still fails the command.
	return result.NotesErr
}

func writeOutputs(cmd *cobra.Command, result *runner.Result) error {
	if processOutDir == "" {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "# Transcript")
		fmt.Fprintln(out)
		fmt.Fprintln(out, result.Transcript)
		if result.Notes != "" {
			fmt.Fprintln(out)
			fmt.Fprintln(out, "# Notes")
			fmt.Fprintln(out)
			fmt.Fprintln(out, result.Notes)
		}
		return nil
	}

	if err := os.MkdirAll(processOutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	transcriptPath := filepath.Join(processOutDir, TranscriptFileName)
	if err := os.WriteFile(transcriptPath, []byte(result.Transcript+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	cmd.PrintErrf("Transcript written to %s\n", transcriptPath)

	if result.Notes != "" {
		notesPath := filepath.Join(processOutDir, NotesFileName)
		if err := os.WriteFile(notesPath, []byte(result.Notes+"\n"), 0o644); err != nil {
			return fmt.Errorf("failed to write notes: %w", err)
		}
		cmd.PrintErrf("Notes written to %s\n", notesPath)
	}
	return nil
}
