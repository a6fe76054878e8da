// Package runner is the caller-facing entry point: it takes raw uploaded audio
// and a topic, runs the transcription pipeline and then notes generation.
// A notes failure never discards the transcript.
package runner
