package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/Samit952/NoteFlow-AI/internal/config"
	"github.com/Samit952/NoteFlow-AI/internal/metrics"
)

// ErrGenerationFailure is returned when the generation service fails or
// returns no usable completion
var ErrGenerationFailure = errors.New("notes generation failed")

// Config contains generation service configuration
type Config struct {
	Model               string
	BaseURL             string
	APIKey              string
	MaxCompletionTokens int
	Timeout             time.Duration
	MaxRetries          int
}

// Generator requests notes from an OpenAI-compatible chat completion API
type Generator struct {
	client  openai.Client
	config  Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewGenerator creates a generator. m may be nil.
func NewGenerator(cfg Config, m *metrics.Metrics, logger *slog.Logger) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: generation service API key is not set", config.ErrConfiguration)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-5-nano"
	}
	if cfg.MaxCompletionTokens <= 0 {
		cfg.MaxCompletionTokens = 6000
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Generator{
		client:  openai.NewClient(opts...),
		config:  cfg,
		metrics: m,
		logger:  logger,
	}, nil
}

// Generate sends the whole transcript in one request and returns the notes text
func (g *Generator) Generate(ctx context.Context, transcript string, topic Topic) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.config.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemInstruction),
			openai.UserMessage(BuildPrompt(transcript, topic)),
		},
		MaxCompletionTokens: param.NewOpt(int64(g.config.MaxCompletionTokens)),
	}

	start := time.Now()
	resp, err := g.client.Chat.Completions.New(ctx, params)
	elapsed := time.Since(start)

	if err == nil && len(resp.Choices) == 0 {
		err = errors.New("response contained no choices")
	}
	if g.metrics != nil {
		g.metrics.RecordGeneration(err == nil, elapsed.Seconds())
	}
	if err != nil {
		g.logger.Error("Notes generation failed",
			slog.String("model", g.config.Model),
			slog.String("topic", topic.String()),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}

	g.logger.Info("Notes generated",
		slog.String("model", g.config.Model),
		slog.String("topic", topic.String()),
		slog.Int("transcript_chars", len(transcript)),
		slog.Duration("elapsed", elapsed),
		slog.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)

	return resp.Choices[0].Message.Content, nil
}
