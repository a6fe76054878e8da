package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func writeChunkFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunk_0.wav")
	if err := os.WriteFile(path, []byte("RIFF....WAVEfake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClientTranscribe(t *testing.T) {
	var gotLanguage, gotModel, gotAuth, gotFilename string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotLanguage = r.FormValue("language")
		gotModel = r.FormValue("model")
		gotAuth = r.Header.Get("Authorization")
		if _, header, err := r.FormFile("file"); err == nil {
			gotFilename = header.Filename
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(TranscriptionResponse{Text: " Today we cover recursion."})
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Endpoint: server.URL,
		APIKey:   "secret",
		Language: "en",
		Model:    "tiny",
	}, nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	text, err := client.Transcribe(context.Background(), writeChunkFile(t))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if text != " Today we cover recursion." {
		t.Errorf("Unexpected text %q", text)
	}
	if gotLanguage != "en" || gotModel != "tiny" {
		t.Errorf("Expected language=en model=tiny, got %q %q", gotLanguage, gotModel)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Unexpected Authorization header %q", gotAuth)
	}
	if gotFilename != "chunk_0.wav" {
		t.Errorf("Unexpected uploaded file name %q", gotFilename)
	}

	stats := client.GetStats()
	if stats.TotalRequests != 1 || stats.SuccessRequests != 1 || stats.SuccessRate != 100 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestClientDoesNotRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := NewClient(Config{Endpoint: server.URL, Language: "en"}, nil)

	if _, err := client.Transcribe(context.Background(), writeChunkFile(t)); err == nil {
		t.Fatal("Expected error for 500 response")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected a single attempt, got %d", calls.Load())
	}
	if stats := client.GetStats(); stats.FailedRequests != 1 {
		t.Errorf("Expected 1 failed request, got %d", stats.FailedRequests)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(TranscriptionResponse{Text: "recovered"})
	}))
	defer server.Close()

	client, _ := NewClient(Config{Endpoint: server.URL, Language: "en", MaxRetries: 1}, nil)

	text, err := client.Transcribe(context.Background(), writeChunkFile(t))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "recovered" {
		t.Errorf("Unexpected text %q", text)
	}
	if stats := client.GetStats(); stats.TotalRetries != 1 {
		t.Errorf("Expected 1 retry, got %d", stats.TotalRetries)
	}
}

func TestClientClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad audio", http.StatusBadRequest)
	}))
	defer server.Close()

	client, _ := NewClient(Config{Endpoint: server.URL, Language: "en", MaxRetries: 3}, nil)

	if _, err := client.Transcribe(context.Background(), writeChunkFile(t)); err == nil {
		t.Fatal("Expected error for 400 response")
	}
	if calls.Load() != 1 {
		t.Errorf("4xx responses should not be retried, got %d attempts", calls.Load())
	}
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	if _, err := NewClient(Config{}, nil); err == nil {
		t.Error("Expected error for empty endpoint")
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{context.DeadlineExceeded, true},
		{&statusError{StatusCode: 502}, true},
		{&statusError{StatusCode: 429}, true},
		{&statusError{StatusCode: 404}, false},
		{os.ErrNotExist, false},
	}

	for _, tt := range tests {
		if got := isRetryableError(tt.err); got != tt.want {
			t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
