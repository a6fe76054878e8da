package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Samit952/NoteFlow-AI/internal/audio"
	"github.com/Samit952/NoteFlow-AI/internal/runner"
)

var checkSkipNotes bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify ffmpeg and credentials without processing audio",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkSkipNotes, "skip-notes", false, "do not require generation service credentials")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Logging)

	normalizer := audio.NewNormalizer(cfg.Audio.FFmpegPath, logger)
	if err := runner.Preflight(cmd.Context(), cfg, normalizer, !checkSkipNotes); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ffmpeg: ok (%s)\n", normalizer.Binary())
	fmt.Fprintf(out, "transcription: %s backend, model %s, language %s\n",
		cfg.Transcription.Backend, cfg.Transcription.ModelSize, cfg.Transcription.Language)
	if checkSkipNotes {
		fmt.Fprintln(out, "notes: skipped")
	} else {
		fmt.Fprintf(out, "notes: ok (%s)\n", cfg.Notes.Model)
	}
	return nil
}
