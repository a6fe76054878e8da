package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Canonical waveform produced by the normalizer and consumed by the splitter.
const (
	CanonicalSampleRate = 16000
	CanonicalChannels   = 1
	CanonicalBitDepth   = 16
)

const (
	wavHeaderSize   = 44
	wavFormatPCM    = 1
	riffHeaderSize  = 12
	chunkHeaderSize = 8
)

// WAVHeader represents the header structure of a canonical WAV file
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // Number of channels
	SampleRate    uint32  // Sample rate
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16  // NumChannels * BitsPerSample / 8
	BitsPerSample uint16  // Bits per sample
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

func newWAVHeader(numSamples int64, sampleRate int) WAVHeader {
	numChannels := uint16(CanonicalChannels)
	bitsPerSample := uint16(CanonicalBitDepth)
	dataSize := uint32(numSamples * 2)

	return WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   wavFormatPCM,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
}

// writeWAVHeader writes a mono PCM-16 header announcing numSamples samples
func writeWAVHeader(w io.Writer, numSamples int64, sampleRate int) error {
	if err := binary.Write(w, binary.LittleEndian, newWAVHeader(numSamples, sampleRate)); err != nil {
		return fmt.Errorf("failed to write WAV header: %w", err)
	}
	return nil
}

// EncodeWAV encodes mono PCM-16 samples into WAV format
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(samples)*2))
	if err := writeWAVHeader(buf, int64(len(samples)), sampleRate); err != nil {
		return nil, err
	}

	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// WAVInfo describes the format and data location of a WAV file
type WAVInfo struct {
	AudioFormat   uint16  `json:"audio_format"`
	SampleRate    uint32  `json:"sample_rate"`
	Channels      uint16  `json:"channels"`
	BitsPerSample uint16  `json:"bits_per_sample"`
	Duration      float64 `json:"duration_seconds"`
	DataSize      uint32  `json:"data_size_bytes"`
	NumSamples    uint32  `json:"num_samples"`
	DataOffset    int64   `json:"-"`
}

// Length returns the exact duration of the sample data.
func (i *WAVInfo) Length() time.Duration {
	return samplesToDuration(int64(i.NumSamples), int(i.SampleRate))
}

// IsCanonical reports whether the file is mono 16 kHz PCM-16.
func (i *WAVInfo) IsCanonical() bool {
	return i.AudioFormat == wavFormatPCM &&
		i.Channels == CanonicalChannels &&
		i.SampleRate == CanonicalSampleRate &&
		i.BitsPerSample == CanonicalBitDepth
}

func (i *WAVInfo) requirePCM16Mono() error {
	if i.AudioFormat != wavFormatPCM {
		return fmt.Errorf("unsupported audio format: %d (only PCM is supported)", i.AudioFormat)
	}
	if i.BitsPerSample != 16 {
		return fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", i.BitsPerSample)
	}
	if i.Channels != 1 {
		return fmt.Errorf("unsupported channel count: %d (only mono is supported)", i.Channels)
	}
	return nil
}

// GetWAVInfo extracts metadata from in-memory WAV data
func GetWAVInfo(data []byte) (*WAVInfo, error) {
	return ReadWAVInfo(bytes.NewReader(data))
}

// ReadWAVInfo walks the RIFF chunks of r until it finds the data chunk.
// Chunks other than "fmt " and "data" (LIST, fact, ...) are skipped.
func ReadWAVInfo(r io.ReadSeeker) (*WAVInfo, error) {
	var riff [riffHeaderSize]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("WAV data too short: %w", err)
	}

	if string(riff[0:4]) != "RIFF" {
		return nil, fmt.Errorf("invalid WAV file: missing RIFF header")
	}

	if string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	info := &WAVInfo{}
	haveFmt := false
	offset := int64(riffHeaderSize)

	for {
		var hdr [chunkHeaderSize]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("invalid WAV file: missing data chunk")
			}
			return nil, fmt.Errorf("failed to read WAV chunk header: %w", err)
		}

		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))
		body := offset + chunkHeaderSize

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("invalid WAV file: fmt chunk too short (%d bytes)", size)
			}
			var f [16]byte
			if _, err := io.ReadFull(r, f[:]); err != nil {
				return nil, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			info.AudioFormat = binary.LittleEndian.Uint16(f[0:2])
			info.Channels = binary.LittleEndian.Uint16(f[2:4])
			info.SampleRate = binary.LittleEndian.Uint32(f[4:8])
			info.BitsPerSample = binary.LittleEndian.Uint16(f[14:16])
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("invalid WAV file: missing fmt chunk")
			}
			if info.SampleRate == 0 {
				return nil, fmt.Errorf("invalid sample rate: 0")
			}

			// Encoders writing to a pipe leave the size unset; trust the file length.
			end, err := r.Seek(0, io.SeekEnd)
			if err != nil {
				return nil, fmt.Errorf("failed to seek WAV data: %w", err)
			}
			if size > end-body {
				size = end - body
			}

			blockAlign := int64(info.Channels) * int64(info.BitsPerSample) / 8
			if blockAlign == 0 {
				return nil, fmt.Errorf("invalid WAV file: zero block alignment")
			}

			info.DataOffset = body
			info.DataSize = uint32(size - size%blockAlign)
			info.NumSamples = uint32(size / blockAlign)
			info.Duration = info.Length().Seconds()
			return info, nil
		}

		// RIFF chunks are word aligned.
		offset = body + size + size&1
		if _, err := r.Seek(offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to skip %q chunk: %w", id, err)
		}
	}
}

func samplesToDuration(samples int64, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
