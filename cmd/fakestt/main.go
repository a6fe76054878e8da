// Command fakestt is a stand-in speech-to-text server for local runs of the
// "http" transcription backend. It accepts the same multipart upload and
// answers with a canned transcript that names the chunk length.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Samit952/NoteFlow-AI/internal/audio"
	"github.com/Samit952/NoteFlow-AI/internal/transcription"
)

func main() {
	addr := flag.String("addr", ":9000", "listen address")
	delay := flag.Duration("delay", 200*time.Millisecond, "simulated processing time per request")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("/transcribe", func(w http.ResponseWriter, r *http.Request) {
		transcribeHandler(w, r, *delay, logger)
	})

	logger.Info("Fake transcription server starting",
		slog.String("addr", *addr),
		slog.String("endpoint", "http://localhost"+*addr+"/transcribe"),
	)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		logger.Error("Server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func transcribeHandler(w http.ResponseWriter, r *http.Request, delay time.Duration, logger *slog.Logger) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	info, err := audio.GetWAVInfo(data)
	if err != nil {
		http.Error(w, "Invalid WAV file: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	logger.Info("Transcription request",
		slog.String("filename", header.Filename),
		slog.Int("bytes", len(data)),
		slog.Float64("duration", info.Duration),
		slog.String("language", r.FormValue("language")),
		slog.String("model", r.FormValue("model")),
	)

	time.Sleep(delay)

	resp := transcription.TranscriptionResponse{
		Text:     fmt.Sprintf("Test transcript of %s (%.1f seconds).", header.Filename, info.Duration),
		Language: r.FormValue("language"),
		Duration: info.Duration,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("Failed to encode response", slog.String("error", err.Error()))
	}
}
