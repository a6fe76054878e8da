// Package metrics exposes Prometheus instrumentation for pipeline runs,
// chunk transcription, notes generation and the HTTP API.
package metrics
