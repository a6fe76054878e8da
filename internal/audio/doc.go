// Package audio turns uploaded lecture recordings into transcription work units.
// It normalizes arbitrary input audio to a mono 16 kHz PCM WAV file with ffmpeg,
// and splits that canonical waveform into fixed-duration chunk files named by index.
package audio
