package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Samit952/NoteFlow-AI/internal/config"
	"github.com/Samit952/NoteFlow-AI/internal/metrics"
	"github.com/Samit952/NoteFlow-AI/internal/notes"
	"github.com/Samit952/NoteFlow-AI/internal/runner"
)

// Version is reported by / and /health
var Version = "dev"

// kindBadRequest marks malformed requests rejected before a run starts
const kindBadRequest runner.Kind = "bad_request"

// Processor runs one upload through the pipeline
type Processor interface {
	Run(ctx context.Context, raw runner.RawAudio, topic notes.Topic, opts runner.Options) (*runner.Result, error)
}

// HTTPServer provides the upload API and monitoring endpoints
type HTTPServer struct {
	server    *http.Server
	handler   http.Handler
	logger    *slog.Logger
	config    *config.Config
	processor Processor
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer

	// Bounds the number of pipeline runs in flight
	runSlots chan struct{}

	// Server state
	startTime  time.Time
	runsTotal  uint64
	runsFailed uint64
	activeRuns int
	mu         sync.RWMutex
}

// NotesResponse is the body returned by POST /v1/notes
type NotesResponse struct {
	RunID          string      `json:"run_id"`
	Topic          notes.Topic `json:"topic"`
	Transcript     string      `json:"transcript"`
	Notes          string      `json:"notes"`
	NotesError     string      `json:"notes_error,omitempty"`
	NotesErrorKind runner.Kind `json:"notes_error_kind,omitempty"`
	Chunks         int         `json:"chunks"`
	LostChunks     []int       `json:"lost_chunks"`
	AudioSeconds   float64     `json:"audio_seconds"`
}

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error string      `json:"error"`
	Kind  runner.Kind `json:"kind"`
}

// NewHTTPServer creates a new HTTP API server. m and gatherer may be nil,
// in which case request metrics are not recorded and /metrics serves the
// default registry.
func NewHTTPServer(cfg *config.Config, processor Processor, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	h := &HTTPServer{
		logger:    logger,
		config:    cfg,
		processor: processor,
		metrics:   m,
		gatherer:  gatherer,
		runSlots:  make(chan struct{}, cfg.Server.MaxConcurrentRuns),
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)
	h.handler = mux

	h.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Address, strconv.Itoa(cfg.Server.Port)),
		Handler:      mux,
		ReadTimeout:  cfg.Server.GetReadTimeoutDuration(),
		WriteTimeout: cfg.Server.GetWriteTimeoutDuration(),
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Handler returns the routed handler
func (h *HTTPServer) Handler() http.Handler {
	return h.handler
}

// Addr returns the configured listen address
func (h *HTTPServer) Addr() string {
	return h.server.Addr
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/notes", h.withMetrics("/v1/notes", h.handleNotes))

	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/topics", h.withMetrics("/topics", h.handleTopics))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	if h.config.Metrics.Enabled {
		mux.Handle(h.config.Metrics.Path, promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		if h.metrics == nil {
			return
		}

		duration := time.Since(startTime).Seconds()
		h.metrics.RecordHTTPRequest(r.Method, endpoint, strconv.Itoa(ww.statusCode), duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start binds the listen address and serves in the background
func (h *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.server.Addr, err)
	}

	h.logger.Info("Starting HTTP API server",
		slog.String("address", ln.Addr().String()),
		slog.Int("max_concurrent_runs", cap(h.runSlots)),
	)

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleNotes implements POST /v1/notes. The request is multipart with a
// "file" part, a "topic" field and an optional "skip_notes" boolean.
func (h *HTTPServer) handleNotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.Server.GetMaxUploadBytes())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, kindBadRequest,
				fmt.Sprintf("upload exceeds %d MB", h.config.Server.MaxUploadMB))
			return
		}
		writeError(w, http.StatusBadRequest, kindBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, kindBadRequest, "missing file part")
		return
	}
	defer file.Close()

	data := make([]byte, header.Size)
	if _, err := io.ReadFull(file, data); err != nil {
		writeError(w, http.StatusBadRequest, kindBadRequest, "failed to read upload")
		return
	}

	topic := notes.Topic(r.FormValue("topic"))
	if topic == "" {
		topic = notes.TopicOther
	}

	skipNotes := false
	if v := r.FormValue("skip_notes"); v != "" {
		skipNotes, err = strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, kindBadRequest, "skip_notes must be a boolean")
			return
		}
	}

	select {
	case h.runSlots <- struct{}{}:
		defer func() { <-h.runSlots }()
	case <-r.Context().Done():
		writeError(w, http.StatusServiceUnavailable, runner.KindCanceled, "request canceled while waiting for a free slot")
		return
	}

	h.beginRun()
	result, err := h.processor.Run(r.Context(), runner.RawAudio{
		Data: data,
		Ext:  filepath.Ext(header.Filename),
	}, topic, runner.Options{
		SkipNotes: skipNotes,
		Progress: func(completed, total int) {
			h.logger.Debug("Upload progress",
				slog.String("file", header.Filename),
				slog.Int("completed", completed),
				slog.Int("total", total),
			)
		},
	})
	h.endRun(err != nil)

	if err != nil {
		kind := runner.Classify(err)
		h.logger.Error("Upload processing failed",
			slog.String("file", header.Filename),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		writeError(w, statusForKind(kind), kind, err.Error())
		return
	}

	resp := NotesResponse{
		RunID:        result.RunID,
		Topic:        result.Topic,
		Transcript:   result.Transcript,
		Notes:        result.Notes,
		Chunks:       result.Chunks,
		LostChunks:   result.LostChunks,
		AudioSeconds: result.AudioDuration.Seconds(),
	}
	if result.NotesErr != nil {
		resp.NotesError = result.NotesErr.Error()
		resp.NotesErrorKind = runner.Classify(result.NotesErr)
	}

	writeJSON(w, http.StatusOK, resp)
}

// statusForKind maps an error kind to an HTTP status code
func statusForKind(kind runner.Kind) int {
	switch kind {
	case runner.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case runner.KindInvalidTopic:
		return http.StatusBadRequest
	case runner.KindDecodeFailure:
		return http.StatusUnprocessableEntity
	case runner.KindMediaToolUnavailable, runner.KindConfiguration, runner.KindModelLoad:
		return http.StatusServiceUnavailable
	case runner.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPServer) beginRun() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runsTotal++
	h.activeRuns++
}

func (h *HTTPServer) endRun(failed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.activeRuns--
	if failed {
		h.runsFailed++
	}
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.RLock()
	active := h.activeRuns
	h.mu.RUnlock()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "noteflow",
			"version": Version,
		},
		"components": map[string]interface{}{
			"pipeline": map[string]interface{}{
				"active_runs":         active,
				"max_concurrent_runs": cap(h.runSlots),
			},
			"transcription": map[string]interface{}{
				"backend":    h.config.Transcription.Backend,
				"model_size": h.config.Transcription.ModelSize,
				"language":   h.config.Transcription.Language,
			},
			"notes": map[string]interface{}{
				"model": h.config.Notes.Model,
			},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.config.Redacted())
}

// handleTopics implements the /topics endpoint
func (h *HTTPServer) handleTopics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"topics":     notes.Topics(),
		"extensions": runner.SupportedExtensions,
	})
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.RLock()
	stats := map[string]interface{}{
		"uptime":      time.Since(h.startTime).String(),
		"timestamp":   time.Now().UTC(),
		"runs_total":  h.runsTotal,
		"runs_failed": h.runsFailed,
		"active_runs": h.activeRuns,
	}
	h.mu.RUnlock()

	writeJSON(w, http.StatusOK, stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "NoteFlow",
		"version": Version,
		"endpoints": map[string]interface{}{
			"POST /v1/notes": "Upload lecture audio (multipart: file, topic, skip_notes)",
			"GET /":          "API documentation",
			"GET /health":    "Service health check",
			"GET /config":    "Get service configuration (secrets masked)",
			"GET /topics":    "List supported topics and audio formats",
			"GET /stats":     "Get run statistics",
			"GET /metrics":   "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, apiDoc)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind runner.Kind, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: kind})
}
