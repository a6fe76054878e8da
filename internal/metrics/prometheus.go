package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Values of the "outcome" label.
const (
	OutcomeSuccess     = "success"
	OutcomeFailed      = "failed"
	OutcomeAborted     = "aborted"
	OutcomeNotesFailed = "notes_failed"
)

// Metrics contains all Prometheus metrics for the NoteFlow service
type Metrics struct {
	// Run metrics
	Runs         *prometheus.CounterVec
	ActiveRuns   prometheus.Gauge
	RunDuration  prometheus.Histogram
	AudioSeconds prometheus.Histogram

	// Stage metrics
	NormalizeDuration prometheus.Histogram

	// Audio chunking metrics
	ChunksGenerated prometheus.Counter
	ChunkDuration   prometheus.Histogram
	LostChunks      prometheus.Counter

	// Transcription metrics
	TranscriptionResults  *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram
	ModelLoadDuration     prometheus.Histogram

	// Notes generation metrics
	GenerationRequests *prometheus.CounterVec
	GenerationDuration prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Run metrics
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "noteflow_runs_total",
			Help: "Total number of pipeline runs by outcome",
		}, []string{"outcome"}),
		ActiveRuns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "noteflow_active_runs",
			Help: "Current number of pipeline runs in progress",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "noteflow_run_duration_seconds",
			Help:    "Wall-clock duration of pipeline runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),
		AudioSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "noteflow_audio_duration_seconds",
			Help:    "Duration of normalized input audio",
			Buckets: prometheus.ExponentialBuckets(30, 2, 10), // 30s to ~4 hours
		}),

		NormalizeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "noteflow_normalize_duration_seconds",
			Help:    "Time spent converting input audio to canonical WAV",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),

		// Audio chunking metrics
		ChunksGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "noteflow_audio_chunks_generated_total",
			Help: "Total number of audio chunks generated",
		}),
		ChunkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "noteflow_chunk_duration_seconds",
			Help:    "Duration of generated audio chunks",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~2 minutes
		}),
		LostChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "noteflow_lost_chunks_total",
			Help: "Total number of chunks skipped after a transcription failure",
		}),

		// Transcription metrics
		TranscriptionResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "noteflow_transcription_chunks_total",
			Help: "Total number of chunk transcription attempts by outcome",
		}, []string{"outcome"}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "noteflow_transcription_duration_seconds",
			Help:    "Duration of chunk transcription attempts",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		ModelLoadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "noteflow_model_load_duration_seconds",
			Help:    "Time spent loading the speech model",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),

		// Notes generation metrics
		GenerationRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "noteflow_generation_requests_total",
			Help: "Total number of notes generation requests by outcome",
		}, []string{"outcome"}),
		GenerationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "noteflow_generation_duration_seconds",
			Help:    "Duration of notes generation requests",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "noteflow_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "noteflow_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "noteflow_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordRunStarted increments the active runs gauge
func (m *Metrics) RecordRunStarted() {
	m.ActiveRuns.Inc()
}

// RecordRunFinished decrements the active runs gauge and records the outcome
func (m *Metrics) RecordRunFinished(outcome string, durationSeconds float64) {
	m.ActiveRuns.Dec()
	m.Runs.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordNormalized records a successful normalization
func (m *Metrics) RecordNormalized(audioSeconds, durationSeconds float64) {
	m.AudioSeconds.Observe(audioSeconds)
	m.NormalizeDuration.Observe(durationSeconds)
}

// RecordChunkGenerated records a generated audio chunk
func (m *Metrics) RecordChunkGenerated(durationSeconds float64) {
	m.ChunksGenerated.Inc()
	m.ChunkDuration.Observe(durationSeconds)
}

// RecordModelLoad records how long loading the speech model took
func (m *Metrics) RecordModelLoad(durationSeconds float64) {
	m.ModelLoadDuration.Observe(durationSeconds)
}

// RecordTranscriptionSuccess records a successful chunk transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionResults.WithLabelValues(OutcomeSuccess).Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed chunk transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionResults.WithLabelValues(OutcomeFailed).Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
	m.LostChunks.Inc()
}

// RecordGeneration records a notes generation request
func (m *Metrics) RecordGeneration(success bool, durationSeconds float64) {
	outcome := OutcomeSuccess
	if !success {
		outcome = OutcomeFailed
	}
	m.GenerationRequests.WithLabelValues(outcome).Inc()
	m.GenerationDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
