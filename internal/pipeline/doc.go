// Package pipeline turns one audio file into a transcript.
//
// A run moves through Normalizing, Splitting, Transcribing and Aggregating
// and ends in Done or Aborted. Every run works inside its own temporary
// directory, which is removed on all exit paths. Chunks are transcribed one
// at a time in index order; a chunk that fails is skipped and reported in
// Transcription.LostChunks.
package pipeline
