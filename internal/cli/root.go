package cli

import (
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X .../internal/cli.version=..."
var version = "dev"

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "noteflow",
	Short: "Turn lecture recordings into structured study notes",
	Long: `NoteFlow normalizes lecture audio with ffmpeg, splits it into fixed-length
chunks, transcribes the chunks in order and asks a language model to turn
the transcript into study notes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
