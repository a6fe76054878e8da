package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Samit952/NoteFlow-AI/internal/audio"
	"github.com/Samit952/NoteFlow-AI/internal/config"
	"github.com/Samit952/NoteFlow-AI/internal/metrics"
	"github.com/Samit952/NoteFlow-AI/internal/notes"
	"github.com/Samit952/NoteFlow-AI/internal/pipeline"
	"github.com/Samit952/NoteFlow-AI/internal/transcription"
)

type fakeTranscriber struct {
	transcript string
	err        error
	gotPath    string
	gotData    []byte
	calls      int
}

func (f *fakeTranscriber) Run(ctx context.Context, inputPath string, opts pipeline.Options) (*pipeline.Transcription, error) {
	f.calls++
	f.gotPath = inputPath
	f.gotData, _ = os.ReadFile(inputPath)
	if f.err != nil {
		return nil, f.err
	}
	if opts.Progress != nil {
		opts.Progress(1, 1)
	}
	return &pipeline.Transcription{RunID: "run-1", Transcript: f.transcript, Chunks: 1, LostChunks: []int{}}, nil
}

type fakeGenerator struct {
	notes     string
	err       error
	gotText   string
	gotTopic  notes.Topic
	callCount int
}

func (g *fakeGenerator) Generate(ctx context.Context, transcript string, topic notes.Topic) (string, error) {
	g.callCount++
	g.gotText = transcript
	g.gotTopic = topic
	return g.notes, g.err
}

func TestRunSuccess(t *testing.T) {
	workDir := t.TempDir()
	tr := &fakeTranscriber{transcript: "A B C D"}
	gen := &fakeGenerator{notes: "## Main Points"}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	r := New(tr, gen, workDir, m, nil)

	var progressed bool
	res, err := r.Run(context.Background(), RawAudio{Data: []byte("ID3audio"), Ext: ".MP3"}, "computer-science", Options{
		Progress: func(completed, total int) { progressed = true },
	})
	require.NoError(t, err)

	assert.Equal(t, "A B C D", res.Transcript)
	assert.Equal(t, "## Main Points", res.Notes)
	assert.NoError(t, res.NotesErr)
	assert.Equal(t, notes.TopicComputerScience, res.Topic)
	assert.True(t, progressed)

	assert.Equal(t, "A B C D", gen.gotText)
	assert.Equal(t, notes.TopicComputerScience, gen.gotTopic)
	assert.Equal(t, []byte("ID3audio"), tr.gotData)
	assert.Equal(t, ".mp3", filepath.Ext(tr.gotPath))
	assert.NoFileExists(t, tr.gotPath, "upload file must be removed")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Runs.WithLabelValues(metrics.OutcomeSuccess)))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ActiveRuns))
}

func TestRunGenerationFailureKeepsTranscript(t *testing.T) {
	tr := &fakeTranscriber{transcript: "A B C D"}
	gen := &fakeGenerator{err: fmt.Errorf("%w: 500", notes.ErrGenerationFailure)}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	r := New(tr, gen, t.TempDir(), m, nil)

	res, err := r.Run(context.Background(), RawAudio{Data: []byte("x"), Ext: "wav"}, notes.TopicHistory, Options{})
	require.NoError(t, err)

	assert.Equal(t, "A B C D", res.Transcript)
	assert.Empty(t, res.Notes)
	assert.ErrorIs(t, res.NotesErr, ErrGenerationFailure)
	assert.Equal(t, KindGenerationFailure, Classify(res.NotesErr))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Runs.WithLabelValues(metrics.OutcomeNotesFailed)))
}

func TestRunSkipNotes(t *testing.T) {
	tr := &fakeTranscriber{transcript: "hello"}
	r := New(tr, nil, t.TempDir(), nil, nil)

	res, err := r.Run(context.Background(), RawAudio{Data: []byte("x"), Ext: "m4a"}, notes.TopicOther, Options{SkipNotes: true})
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Transcript)
	assert.Empty(t, res.Notes)
}

func TestRunRejectsInputBeforeAnyIO(t *testing.T) {
	tests := []struct {
		name  string
		raw   RawAudio
		topic notes.Topic
		want  error
	}{
		{"unsupported extension", RawAudio{Data: []byte("x"), Ext: "flac"}, notes.TopicOther, ErrUnsupportedFormat},
		{"unknown topic", RawAudio{Data: []byte("x"), Ext: "mp3"}, "Astrology", ErrInvalidTopic},
		{"empty upload", RawAudio{Ext: "mp3"}, notes.TopicOther, ErrDecodeFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workDir := filepath.Join(t.TempDir(), "work")
			tr := &fakeTranscriber{}
			r := New(tr, &fakeGenerator{}, workDir, nil, nil)

			_, err := r.Run(context.Background(), tt.raw, tt.topic, Options{})
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, tr.calls)
			assert.NoDirExists(t, workDir)
		})
	}
}

func TestRunPipelineFailure(t *testing.T) {
	workDir := t.TempDir()
	tr := &fakeTranscriber{err: fmt.Errorf("%w: bad header", audio.ErrDecodeFailure)}
	gen := &fakeGenerator{}
	r := New(tr, gen, workDir, nil, nil)

	res, err := r.Run(context.Background(), RawAudio{Data: []byte("x"), Ext: "wav"}, notes.TopicScience, Options{})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrDecodeFailure)
	assert.Zero(t, gen.callCount)

	entries, _ := os.ReadDir(workDir)
	assert.Empty(t, entries)
}

func TestRunNotesWithoutGenerator(t *testing.T) {
	r := New(&fakeTranscriber{}, nil, t.TempDir(), nil, nil)
	_, err := r.Run(context.Background(), RawAudio{Data: []byte("x"), Ext: "wav"}, notes.TopicOther, Options{})
	assert.ErrorIs(t, err, ErrConfiguration)
}

// copyNormalizer treats the upload as canonical WAV already.
type copyNormalizer struct{}

func (copyNormalizer) Normalize(ctx context.Context, inputPath, dir string) (string, error) {
	src, err := os.Open(inputPath)
	if err != nil {
		return "", err
	}
	defer src.Close()
	out := filepath.Join(dir, audio.CanonicalFileName)
	dst, err := os.Create(out)
	if err != nil {
		return "", err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return out, err
}

type scriptedModel struct{ n int }

func (m *scriptedModel) Transcribe(ctx context.Context, chunkPath string) (string, error) {
	m.n++
	if m.n == 2 {
		return "", errors.New("timeout")
	}
	return fmt.Sprintf("part%d", m.n), nil
}

func (m *scriptedModel) Close() error { return nil }

func TestRunWithPipeline(t *testing.T) {
	workDir := t.TempDir()
	wav, err := audio.EncodeWAV(make([]int16, 5*audio.CanonicalSampleRate/2), audio.CanonicalSampleRate)
	require.NoError(t, err)

	model := &scriptedModel{}
	loader := transcription.LoaderFunc(func(ctx context.Context) (transcription.Model, error) { return model, nil })
	p := pipeline.New(pipeline.Config{WorkDir: workDir, ChunkLength: time.Second}, copyNormalizer{}, audio.NewSplitter(nil), loader, nil, nil)
	gen := &fakeGenerator{notes: "notes"}

	res, err := New(p, gen, workDir, nil, nil).Run(context.Background(), RawAudio{Data: wav, Ext: "wav"}, notes.TopicMathematics, Options{})
	require.NoError(t, err)

	assert.Equal(t, "part1 part3", res.Transcript)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, []int{1}, res.LostChunks)
	assert.Equal(t, 2500*time.Millisecond, res.AudioDuration)
	assert.Equal(t, "part1 part3", gen.gotText)

	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no intermediate files may remain")
}

type fakeChecker struct{ err error }

func (c fakeChecker) CheckTool(ctx context.Context) error { return c.err }

func TestPreflight(t *testing.T) {
	cfg := config.Default()
	cfg.Notes.APIKey = "sk-test"

	assert.NoError(t, Preflight(context.Background(), cfg, fakeChecker{}, true))

	toolErr := fmt.Errorf("%w: ffmpeg: not found", audio.ErrMediaToolUnavailable)
	err := Preflight(context.Background(), cfg, fakeChecker{err: toolErr}, true)
	assert.ErrorIs(t, err, ErrMediaToolUnavailable)
	assert.True(t, Fatal(err))

	cfg.Notes.APIKey = ""
	err = Preflight(context.Background(), cfg, fakeChecker{}, true)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.True(t, Fatal(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, ""},
		{fmt.Errorf("wrap: %w", audio.ErrDecodeFailure), KindDecodeFailure},
		{fmt.Errorf("%w: chunk 3: boom", transcription.ErrChunkTranscription), KindChunkTranscription},
		{transcription.ErrModelLoad, KindModelLoad},
		{ErrUnsupportedFormat, KindUnsupportedFormat},
		{context.Canceled, KindCanceled},
		{errors.New("disk full"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
	assert.False(t, Fatal(audio.ErrDecodeFailure))
}

func TestNormalizeExt(t *testing.T) {
	for _, in := range []string{"mp3", ".WAV", " m4a "} {
		_, err := NormalizeExt(in)
		assert.NoError(t, err, in)
	}
	_, err := NormalizeExt("ogg")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
