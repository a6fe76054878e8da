package audio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// CanonicalFileName is the name of the normalized waveform inside a run directory.
const CanonicalFileName = "canonical.wav"

// CommandRunner executes an external program and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Normalizer converts arbitrary input audio into a canonical mono 16 kHz WAV file
type Normalizer struct {
	binary     string
	sampleRate int
	runner     CommandRunner
	logger     *slog.Logger
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithCommandRunner replaces the process runner used to invoke the media tool.
func WithCommandRunner(r CommandRunner) NormalizerOption {
	return func(n *Normalizer) {
		n.runner = r
	}
}

// NewNormalizer creates a normalizer invoking the given ffmpeg binary
func NewNormalizer(binary string, logger *slog.Logger, opts ...NormalizerOption) *Normalizer {
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}

	n := &Normalizer{
		binary:     binary,
		sampleRate: CanonicalSampleRate,
		runner:     execRunner{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Binary returns the media tool the normalizer invokes.
func (n *Normalizer) Binary() string {
	return n.binary
}

// CheckTool verifies that the media tool is present and executable by running
// "<binary> -version". It is meant to be called once at startup.
func (n *Normalizer) CheckTool(ctx context.Context) error {
	out, err := n.runner.Run(ctx, n.binary, "-version")
	if err != nil {
		return fmt.Errorf("%w: %s -version: %w", ErrMediaToolUnavailable, n.binary, err)
	}

	version, _, _ := strings.Cut(string(out), "\n")
	n.logger.Debug("Media tool available",
		slog.String("binary", n.binary),
		slog.String("version", strings.TrimSpace(version)),
	)
	return nil
}

// Normalize decodes inputPath and writes a mono 16 kHz PCM WAV file into dir.
// The input file is never modified. On failure no output file is left behind.
func (n *Normalizer) Normalize(ctx context.Context, inputPath, dir string) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}

	outputPath := filepath.Join(dir, CanonicalFileName)
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", strconv.Itoa(CanonicalChannels),
		"-ar", strconv.Itoa(n.sampleRate),
		"-c:a", "pcm_s16le",
		"-map_metadata", "-1",
		outputPath,
	}

	out, err := n.runner.Run(ctx, n.binary, args...)
	if err != nil {
		_ = os.Remove(outputPath)
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s: %w", ErrMediaToolUnavailable, n.binary, err)
		}
		return "", fmt.Errorf("%w: %s exited: %w: %s", ErrDecodeFailure, n.binary, err, lastLine(out))
	}

	if err := verifyCanonical(outputPath); err != nil {
		_ = os.Remove(outputPath)
		return "", err
	}

	n.logger.Debug("Audio normalized",
		slog.String("input", inputPath),
		slog.String("output", outputPath),
	)
	return outputPath, nil
}

func verifyCanonical(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: normalized output missing: %w", ErrDecodeFailure, err)
	}
	defer f.Close()

	info, err := ReadWAVInfo(f)
	if err != nil {
		return fmt.Errorf("%w: normalized output: %w", ErrDecodeFailure, err)
	}
	if !info.IsCanonical() {
		return fmt.Errorf("%w: normalized output is %d ch / %d Hz / %d bit, want mono %d Hz 16 bit",
			ErrDecodeFailure, info.Channels, info.SampleRate, info.BitsPerSample, CanonicalSampleRate)
	}
	return nil
}

// lastLine returns the last non-empty line of tool output for error messages.
func lastLine(out []byte) string {
	var last string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			last = line
		}
	}
	return last
}
