package audio

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
)

// fakeRunner stands in for ffmpeg: it writes a WAV to the last argument.
type fakeRunner struct {
	calls  [][]string
	output []byte
	err    error
	wav    []byte
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return f.output, f.err
	}
	if f.wav != nil && len(args) > 0 {
		if err := os.WriteFile(args[len(args)-1], f.wav, 0o644); err != nil {
			return nil, err
		}
	}
	return f.output, nil
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := t.TempDir() + "/lecture.mp3"
	if err := os.WriteFile(path, []byte("ID3 fake mp3 payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNormalizeProducesCanonicalWAV(t *testing.T) {
	canonical, _ := EncodeWAV(make([]int16, 1600), CanonicalSampleRate)
	runner := &fakeRunner{wav: canonical}
	input := writeInput(t)
	before, _ := os.ReadFile(input)

	n := NewNormalizer("ffmpeg", nil, WithCommandRunner(runner))
	out, err := n.Normalize(context.Background(), input, t.TempDir())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if !strings.HasSuffix(out, CanonicalFileName) {
		t.Errorf("Unexpected output path %s", out)
	}

	args := strings.Join(runner.calls[0], " ")
	for _, want := range []string{"-i " + input, "-ac 1", "-ar 16000", "-c:a pcm_s16le"} {
		if !strings.Contains(args, want) {
			t.Errorf("Expected %q in ffmpeg args: %s", want, args)
		}
	}

	after, _ := os.ReadFile(input)
	if string(before) != string(after) {
		t.Error("Input file was modified")
	}
}

func TestNormalizeToolFailure(t *testing.T) {
	runner := &fakeRunner{
		err:    errors.New("exit status 1"),
		output: []byte("[mp3 @ 0x1] header missing\ninput.mp3: Invalid data found when processing input\n"),
	}
	dir := t.TempDir()

	n := NewNormalizer("ffmpeg", nil, WithCommandRunner(runner))
	_, err := n.Normalize(context.Background(), writeInput(t), dir)
	if !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("Expected ErrDecodeFailure, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("Expected ffmpeg message in error, got %v", err)
	}

	if _, statErr := os.Stat(dir + "/" + CanonicalFileName); !os.IsNotExist(statErr) {
		t.Error("Partial output should be removed")
	}
}

func TestNormalizeRejectsNonCanonicalOutput(t *testing.T) {
	wav, _ := EncodeWAV(make([]int16, 800), 8000)
	dir := t.TempDir()

	n := NewNormalizer("ffmpeg", nil, WithCommandRunner(&fakeRunner{wav: wav}))
	if _, err := n.Normalize(context.Background(), writeInput(t), dir); !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("Expected ErrDecodeFailure, got %v", err)
	}

	if _, err := os.Stat(dir + "/" + CanonicalFileName); !os.IsNotExist(err) {
		t.Error("Non-canonical output should be removed")
	}
}

func TestNormalizeMissingInput(t *testing.T) {
	runner := &fakeRunner{}
	n := NewNormalizer("ffmpeg", nil, WithCommandRunner(runner))

	if _, err := n.Normalize(context.Background(), "/nonexistent/lecture.m4a", t.TempDir()); !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("Expected ErrDecodeFailure, got %v", err)
	}
	if len(runner.calls) != 0 {
		t.Error("Media tool should not run for a missing input")
	}
}

func TestNormalizeMissingBinary(t *testing.T) {
	n := NewNormalizer("noteflow-test-missing-ffmpeg", nil)

	_, err := n.Normalize(context.Background(), writeInput(t), t.TempDir())
	if !errors.Is(err, ErrMediaToolUnavailable) {
		t.Fatalf("Expected ErrMediaToolUnavailable, got %v", err)
	}
}

func TestCheckTool(t *testing.T) {
	ok := &fakeRunner{output: []byte("ffmpeg version 6.1 Copyright (c) 2000-2023\nbuilt with gcc\n")}
	if err := NewNormalizer("ffmpeg", nil, WithCommandRunner(ok)).CheckTool(context.Background()); err != nil {
		t.Fatalf("CheckTool failed: %v", err)
	}
	if got := strings.Join(ok.calls[0], " "); got != "ffmpeg -version" {
		t.Errorf("Expected version probe, got %q", got)
	}

	err := NewNormalizer("noteflow-test-missing-ffmpeg", nil).CheckTool(context.Background())
	if !errors.Is(err, ErrMediaToolUnavailable) {
		t.Errorf("Expected ErrMediaToolUnavailable, got %v", err)
	}
}
