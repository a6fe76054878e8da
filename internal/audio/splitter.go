package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DefaultChunkLength is the window size used when none is configured.
const DefaultChunkLength = 60 * time.Second

// Chunk represents one fixed-length window of a canonical waveform,
// materialized as its own WAV file.
type Chunk struct {
	Index    int           `json:"index"`
	Path     string        `json:"path"`
	Start    time.Duration `json:"start"`
	Duration time.Duration `json:"duration"`
	Samples  int64         `json:"samples"`
}

// ChunkFileName returns the file name used for chunk index i.
func ChunkFileName(i int) string {
	return fmt.Sprintf("chunk_%d.wav", i)
}

// Splitter partitions canonical audio into non-overlapping chunks
type Splitter struct {
	logger *slog.Logger
}

// NewSplitter creates a new chunk splitter
func NewSplitter(logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{logger: logger}
}

// Split walks the waveform at canonicalPath in windows of chunkLength and writes
// each window to dir as chunk_<index>.wav. Window i covers
// [i*chunkLength, min((i+1)*chunkLength, total)). An empty waveform yields no chunks.
func (s *Splitter) Split(ctx context.Context, canonicalPath string, chunkLength time.Duration, dir string) ([]Chunk, error) {
	if chunkLength <= 0 {
		return nil, fmt.Errorf("chunk length must be positive, got %s", chunkLength)
	}

	f, err := os.Open(canonicalPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open canonical audio: %w", ErrDecodeFailure, err)
	}
	defer f.Close()

	info, err := ReadWAVInfo(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}
	if err := info.requirePCM16Mono(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}

	sampleRate := int(info.SampleRate)
	window := int64(chunkLength) * int64(sampleRate) / int64(time.Second)
	if window <= 0 {
		return nil, fmt.Errorf("chunk length %s is shorter than one sample at %d Hz", chunkLength, sampleRate)
	}

	if _, err := f.Seek(info.DataOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to audio data: %w", err)
	}
	reader := bufio.NewReaderSize(f, 64*1024)

	total := int64(info.NumSamples)
	chunks := make([]Chunk, 0, (total+window-1)/window)

	for i := 0; int64(i)*window < total; i++ {
		if err := ctx.Err(); err != nil {
			removeChunks(chunks)
			return nil, err
		}

		start := int64(i) * window
		n := min(window, total-start)
		path := filepath.Join(dir, ChunkFileName(i))

		if err := writeChunk(path, reader, n, sampleRate); err != nil {
			removeChunks(chunks)
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}

		chunks = append(chunks, Chunk{
			Index:    i,
			Path:     path,
			Start:    samplesToDuration(start, sampleRate),
			Duration: samplesToDuration(n, sampleRate),
			Samples:  n,
		})
	}

	s.logger.Debug("Audio split into chunks",
		slog.String("source", canonicalPath),
		slog.Int("chunks", len(chunks)),
		slog.Duration("chunk_length", chunkLength),
		slog.Duration("total", info.Length()),
	)

	return chunks, nil
}

// writeChunk copies numSamples PCM-16 samples from r into a standalone WAV file
func writeChunk(path string, r io.Reader, numSamples int64, sampleRate int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chunk file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close chunk file: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	w := bufio.NewWriter(f)
	if err := writeWAVHeader(w, numSamples, sampleRate); err != nil {
		return err
	}

	if _, err := io.CopyN(w, r, numSamples*2); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: audio data truncated", ErrDecodeFailure)
		}
		return fmt.Errorf("failed to write chunk samples: %w", err)
	}

	return w.Flush()
}

func removeChunks(chunks []Chunk) {
	for _, c := range chunks {
		_ = os.Remove(c.Path)
	}
}
