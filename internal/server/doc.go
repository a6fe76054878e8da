// Package server implements the HTTP API: audio upload for transcription and
// notes, plus health, configuration, topic listing and Prometheus metrics.
package server
