package transcription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultWhisperServerBinary is the whisper.cpp HTTP server executable.
	DefaultWhisperServerBinary = "whisper-server"

	serverStartTimeout = 2 * time.Minute
	serverPollInterval = 100 * time.Millisecond
	serverStopTimeout  = 5 * time.Second
)

// whisperCPP keeps one whisper.cpp server process alive for the whole run.
// The ggml model is read once when the server starts and every chunk is
// posted to its /inference endpoint.
type whisperCPP struct {
	cmd       *exec.Cmd
	exited    chan struct{}
	stderr    *tailBuffer
	client    *Client
	modelPath string
	logger    *slog.Logger
}

// ModelFileName returns the ggml model file name for a whisper size tag.
func ModelFileName(size string) string {
	return "ggml-" + size + ".bin"
}

func loadWhisperCPP(ctx context.Context, cfg Config, logger *slog.Logger) (*whisperCPP, error) {
	binary := cfg.BinaryPath
	if binary == "" {
		binary = DefaultWhisperServerBinary
	}

	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrModelLoad, binary, err)
	}

	modelPath := filepath.Join(cfg.ModelDir, ModelFileName(cfg.ModelSize))
	st, err := os.Stat(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrModelLoad, modelPath)
	}

	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	args := []string{
		"-m", modelPath,
		"-l", cfg.Language,
		"-ng", // no GPU, so no half precision
		"-nt", // no timestamps
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(port),
	}
	if cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(cfg.Threads))
	}

	// The server outlives Load, so it is not bound to ctx.
	stderr := &tailBuffer{limit: 4096}
	cmd := exec.Command(resolved, args...)
	cmd.Stderr = stderr

	startedAt := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %w", ErrModelLoad, resolved, err)
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	w := &whisperCPP{
		cmd:       cmd,
		exited:    exited,
		stderr:    stderr,
		modelPath: modelPath,
		logger:    logger,
	}

	baseURL := "http://127.0.0.1:" + strconv.Itoa(port)
	if err := w.waitReady(ctx, baseURL); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	client, err := NewClient(Config{
		Endpoint:   baseURL + "/inference",
		Language:   cfg.Language,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	}, logger)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	w.client = client

	logger.Info("Speech model loaded",
		slog.String("backend", BackendWhisperCPP),
		slog.String("binary", resolved),
		slog.String("model", modelPath),
		slog.String("language", cfg.Language),
		slog.Int("port", port),
		slog.Duration("load_time", time.Since(startedAt)),
	)

	return w, nil
}

// waitReady polls the server until it answers HTTP, exits or the start
// timeout passes. whisper-server only listens after the model is loaded.
func (w *whisperCPP) waitReady(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, serverStartTimeout)
	defer cancel()

	ping := &http.Client{Timeout: time.Second}
	ticker := time.NewTicker(serverPollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/", nil)
		if err != nil {
			return err
		}
		if resp, err := ping.Do(req); err == nil {
			resp.Body.Close()
			return nil
		}

		select {
		case <-w.exited:
			return fmt.Errorf("whisper-server exited during startup: %s", w.stderr.String())
		case <-ctx.Done():
			return fmt.Errorf("whisper-server not ready: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Transcribe posts one chunk to the running server.
func (w *whisperCPP) Transcribe(ctx context.Context, chunkPath string) (string, error) {
	select {
	case <-w.exited:
		return "", fmt.Errorf("whisper-server is not running: %s", w.stderr.String())
	default:
	}

	text, err := w.client.Transcribe(ctx, chunkPath)
	if err != nil {
		return "", fmt.Errorf("whisper.cpp: %w", err)
	}
	return strings.Join(strings.Fields(text), " "), nil
}

// Close stops the server process and waits for it to exit.
func (w *whisperCPP) Close() error {
	if w.client != nil {
		_ = w.client.Close()
	}

	select {
	case <-w.exited:
		return nil
	default:
	}

	if err := w.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		_ = w.cmd.Process.Kill()
	}

	select {
	case <-w.exited:
	case <-time.After(serverStopTimeout):
		_ = w.cmd.Process.Kill()
		<-w.exited
	}

	w.logger.Debug("Speech model released", slog.String("model", w.modelPath))
	return nil
}

// freePort asks the kernel for an unused loopback port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to reserve a port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	if over := b.buf.Len() - b.limit; over > 0 {
		b.buf.Next(over)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.buf.String())
}
