package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// openAIModel transcribes chunks with the OpenAI audio transcription API.
type openAIModel struct {
	client   *openai.Client
	model    string
	language string
}

func loadOpenAI(cfg Config, logger *slog.Logger) (*openAIModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: openai transcription requires an API key", ErrModelLoad)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.Endpoint, "/")
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	logger.Info("Speech model loaded",
		slog.String("backend", BackendOpenAI),
		slog.String("model", model),
		slog.String("base_url", clientConfig.BaseURL),
		slog.String("language", cfg.Language),
	)

	return &openAIModel{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    model,
		language: cfg.Language,
	}, nil
}

func (m *openAIModel) Transcribe(ctx context.Context, chunkPath string) (string, error) {
	resp, err := m.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    m.model,
		FilePath: chunkPath,
		Language: m.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (m *openAIModel) Close() error {
	return nil
}
