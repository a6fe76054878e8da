package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestEncodeWAV(t *testing.T) {
	// 440Hz sine wave for 0.1 seconds at 16kHz
	sampleRate := CanonicalSampleRate
	frequency := 440.0

	numSamples := sampleRate / 10
	samples := make([]int16, numSamples)
	for i := 0; i < numSamples; i++ {
		ts := float64(i) / float64(sampleRate)
		samples[i] = int16(16383.0 * math.Sin(2*math.Pi*frequency*ts))
	}

	wavData, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	expectedSize := wavHeaderSize + len(samples)*2
	if len(wavData) != expectedSize {
		t.Errorf("Expected WAV size %d, got %d", expectedSize, len(wavData))
	}

	info, err := GetWAVInfo(wavData)
	if err != nil {
		t.Fatalf("Failed to get WAV info: %v", err)
	}

	if !info.IsCanonical() {
		t.Errorf("Expected canonical WAV, got %+v", info)
	}

	if info.DataOffset != wavHeaderSize {
		t.Errorf("Expected data offset %d, got %d", wavHeaderSize, info.DataOffset)
	}

	if info.Length() != 100*time.Millisecond {
		t.Errorf("Expected length 100ms, got %s", info.Length())
	}
}

func TestEncodeWAVSamples(t *testing.T) {
	originalSamples := []int16{100, -200, 300, -400, 500}

	wavData, err := EncodeWAV(originalSamples, CanonicalSampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decoded, rate := decodeSamples(t, wavData)

	if rate != CanonicalSampleRate {
		t.Errorf("Expected sample rate %d, got %d", CanonicalSampleRate, rate)
	}

	if len(decoded) != len(originalSamples) {
		t.Fatalf("Expected %d samples, got %d", len(originalSamples), len(decoded))
	}

	for i := range originalSamples {
		if decoded[i] != originalSamples[i] {
			t.Errorf("Sample %d mismatch: expected %d, got %d", i, originalSamples[i], decoded[i])
		}
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	wavData, err := EncodeWAV(nil, CanonicalSampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	info, err := GetWAVInfo(wavData)
	if err != nil {
		t.Fatalf("GetWAVInfo failed: %v", err)
	}

	if info.NumSamples != 0 || info.Length() != 0 {
		t.Errorf("Expected empty audio, got %d samples", info.NumSamples)
	}
}

func TestEncodeWAVInvalidRate(t *testing.T) {
	if _, err := EncodeWAV([]int16{1}, 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

// ffmpeg emits a LIST chunk between fmt and data unless metadata is stripped.
func TestReadWAVInfoSkipsExtraChunks(t *testing.T) {
	samples := []int16{1, 2, 3, 4}
	plain, err := EncodeWAV(samples, CanonicalSampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	var buf bytes.Buffer
	buf.Write(plain[:36]) // RIFF + fmt chunk
	buf.WriteString("LIST")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(5))
	buf.WriteString("INFOx")
	buf.WriteByte(0) // pad to word boundary
	buf.Write(plain[36:])

	info, err := ReadWAVInfo(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadWAVInfo failed: %v", err)
	}

	if info.NumSamples != uint32(len(samples)) {
		t.Errorf("Expected %d samples, got %d", len(samples), info.NumSamples)
	}

	if info.DataOffset != 36+8+6+8 {
		t.Errorf("Unexpected data offset %d", info.DataOffset)
	}

	decoded, _ := decodeSamples(t, buf.Bytes())
	if decoded[3] != 4 {
		t.Errorf("Expected last sample 4, got %d", decoded[3])
	}
}

func TestReadWAVInfoClampsOversizedData(t *testing.T) {
	wavData, err := EncodeWAV([]int16{7, 8, 9}, CanonicalSampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	binary.LittleEndian.PutUint32(wavData[40:44], 0xFFFFFFFF)

	info, err := GetWAVInfo(wavData)
	if err != nil {
		t.Fatalf("GetWAVInfo failed: %v", err)
	}
	if info.NumSamples != 3 {
		t.Errorf("Expected 3 samples, got %d", info.NumSamples)
	}
}

func TestReadWAVInfoInvalid(t *testing.T) {
	valid, _ := EncodeWAV([]int16{1, 2}, CanonicalSampleRate)

	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte("RIFF")},
		{"missing RIFF", append([]byte("RIFX"), valid[4:]...)},
		{"missing WAVE", append(append([]byte{}, valid[:8]...), append([]byte("WAVX"), valid[12:]...)...)},
		{"missing data", valid[:36]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := GetWAVInfo(tt.data); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestRequirePCM16MonoRejectsStereo(t *testing.T) {
	wavData, _ := EncodeWAV([]int16{1, 2, 3, 4}, CanonicalSampleRate)
	binary.LittleEndian.PutUint16(wavData[22:24], 2)

	info, err := GetWAVInfo(wavData)
	if err != nil {
		t.Fatalf("GetWAVInfo failed: %v", err)
	}
	if err := info.requirePCM16Mono(); err == nil {
		t.Error("Expected error for stereo input")
	}
}

// decodeSamples returns the PCM-16 samples and sample rate of a WAV file
func decodeSamples(t *testing.T, data []byte) ([]int16, int) {
	t.Helper()

	info, err := GetWAVInfo(data)
	if err != nil {
		t.Fatalf("GetWAVInfo failed: %v", err)
	}
	if err := info.requirePCM16Mono(); err != nil {
		t.Fatalf("not PCM-16 mono: %v", err)
	}

	raw := data[info.DataOffset : info.DataOffset+int64(info.DataSize)]
	samples := make([]int16, len(raw)/2)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, samples); err != nil {
		t.Fatalf("read samples: %v", err)
	}
	return samples, int(info.SampleRate)
}
