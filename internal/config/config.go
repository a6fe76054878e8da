package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration is returned when required configuration or credentials are missing
var ErrConfiguration = errors.New("configuration error")

// Environment variables read on top of the YAML file.
const (
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvSTTAPIKey    = "NOTEFLOW_STT_API_KEY"
	EnvWorkDir      = "NOTEFLOW_WORK_DIR"
)

// Config represents the complete service configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Audio         AudioConfig         `yaml:"audio"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Notes         NotesConfig         `yaml:"notes"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// ServerConfig contains HTTP API server configuration
type ServerConfig struct {
	Address           string `yaml:"address"`
	Port              int    `yaml:"port"`
	MaxConcurrentRuns int    `yaml:"max_concurrent_runs"`
	MaxUploadMB       int    `yaml:"max_upload_mb"`
	ReadTimeout       int    `yaml:"read_timeout"`  // seconds
	WriteTimeout      int    `yaml:"write_timeout"` // seconds
}

// AudioConfig contains audio normalization and chunking parameters
type AudioConfig struct {
	FFmpegPath    string `yaml:"ffmpeg_path"`
	SampleRate    int    `yaml:"sample_rate"`
	Channels      int    `yaml:"channels"`
	ChunkLengthMs int    `yaml:"chunk_length_ms"`
	WorkDir       string `yaml:"work_dir"` // empty means os.TempDir()
}

// TranscriptionConfig contains speech-recognition configuration
type TranscriptionConfig struct {
	Backend    string `yaml:"backend"` // whispercpp, openai or http
	ModelSize  string `yaml:"model_size"`
	Language   string `yaml:"language"`
	BinaryPath string `yaml:"binary_path"`
	ModelDir   string `yaml:"model_dir"`
	Threads    int    `yaml:"threads"`
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Timeout    int    `yaml:"timeout"` // seconds
	MaxRetries int    `yaml:"max_retries"`
}

// NotesConfig contains text-generation configuration
type NotesConfig struct {
	Model               string `yaml:"model"`
	BaseURL             string `yaml:"base_url"`
	APIKey              string `yaml:"api_key"`
	MaxCompletionTokens int    `yaml:"max_completion_tokens"`
	Timeout             int    `yaml:"timeout"` // seconds
	MaxRetries          int    `yaml:"max_retries"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

var validBackends = map[string]bool{"whispercpp": true, "openai": true, "http": true}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:           "0.0.0.0",
			Port:              8080,
			MaxConcurrentRuns: 1,
			MaxUploadMB:       200,
			ReadTimeout:       300,
			WriteTimeout:      3600,
		},
		Audio: AudioConfig{
			FFmpegPath:    "ffmpeg",
			SampleRate:    16000,
			Channels:      1,
			ChunkLengthMs: 60000,
		},
		Transcription: TranscriptionConfig{
			Backend:    "whispercpp",
			ModelSize:  "tiny",
			Language:   "en",
			BinaryPath: "whisper-server",
			ModelDir:   "./models",
			Timeout:    120,
		},
		Notes: NotesConfig{
			Model:               "gpt-5-nano",
			MaxCompletionTokens: 6000,
			Timeout:             300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadEnvFiles loads variables from dotenv files into the process environment.
// Variables that are already set win. Missing files are ignored.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// Load reads and parses the configuration file on top of Default().
// An empty path yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	config.ApplyEnv(os.Getenv)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides secrets and paths from the environment
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvOpenAIAPIKey); v != "" {
		c.Notes.APIKey = v
		if c.Transcription.Backend == "openai" && c.Transcription.APIKey == "" {
			c.Transcription.APIKey = v
		}
	}
	if v := getenv(EnvSTTAPIKey); v != "" {
		c.Transcription.APIKey = v
	}
	if v := getenv(EnvWorkDir); v != "" {
		c.Audio.WorkDir = v
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Notes.Validate(); err != nil {
		return fmt.Errorf("notes config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	return nil
}

// RequireCredentials checks the secrets needed by runs that call external services.
// needNotes is false when notes generation is skipped.
func (c *Config) RequireCredentials(needNotes bool) error {
	if needNotes && strings.TrimSpace(c.Notes.APIKey) == "" {
		return fmt.Errorf("%w: %s is not set", ErrConfiguration, EnvOpenAIAPIKey)
	}
	if c.Transcription.Backend == "openai" && strings.TrimSpace(c.Transcription.APIKey) == "" {
		return fmt.Errorf("%w: openai transcription backend needs %s or %s",
			ErrConfiguration, EnvOpenAIAPIKey, EnvSTTAPIKey)
	}
	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if s.MaxConcurrentRuns < 1 {
		return fmt.Errorf("max_concurrent_runs must be at least 1, got %d", s.MaxConcurrentRuns)
	}

	if s.MaxUploadMB < 1 {
		return fmt.Errorf("max_upload_mb must be at least 1, got %d", s.MaxUploadMB)
	}

	if s.ReadTimeout < 0 || s.WriteTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.FFmpegPath == "" {
		return fmt.Errorf("ffmpeg_path cannot be empty")
	}

	if a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.ChunkLengthMs < 1000 {
		return fmt.Errorf("chunk_length_ms must be at least 1000, got %d", a.ChunkLengthMs)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if !validBackends[t.Backend] {
		return fmt.Errorf("backend must be one of [whispercpp, openai, http], got '%s'", t.Backend)
	}

	if t.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}

	if strings.EqualFold(t.Language, "auto") {
		return fmt.Errorf("language must be fixed, auto-detection is not supported")
	}

	if t.ModelSize == "" {
		return fmt.Errorf("model_size cannot be empty")
	}

	if t.Backend == "http" && t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty for the http backend")
	}

	if t.Threads < 0 {
		return fmt.Errorf("threads cannot be negative, got %d", t.Threads)
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	return nil
}

// Validate validates notes generation configuration
func (n *NotesConfig) Validate() error {
	if n.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if n.MaxCompletionTokens < 1 {
		return fmt.Errorf("max_completion_tokens must be positive, got %d", n.MaxCompletionTokens)
	}

	if n.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", n.Timeout)
	}

	if n.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", n.MaxRetries)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Anything other than stdout/stderr is treated as a file path
	if l.Output == "" {
		return fmt.Errorf("output cannot be empty")
	}

	return nil
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if m.Enabled && !strings.HasPrefix(m.Path, "/") {
		return fmt.Errorf("path must start with '/', got '%s'", m.Path)
	}
	return nil
}

// GetChunkLength returns the chunk length as a time.Duration
func (a *AudioConfig) GetChunkLength() time.Duration {
	return time.Duration(a.ChunkLengthMs) * time.Millisecond
}

// GetWorkDir returns the directory under which per-run directories are created
func (a *AudioConfig) GetWorkDir() string {
	if a.WorkDir == "" {
		return os.TempDir()
	}
	return a.WorkDir
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetTimeoutDuration returns the generation timeout as a time.Duration
func (n *NotesConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(n.Timeout) * time.Second
}

// GetReadTimeoutDuration returns the server read timeout as a time.Duration
func (s *ServerConfig) GetReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// GetWriteTimeoutDuration returns the server write timeout as a time.Duration
func (s *ServerConfig) GetWriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// GetMaxUploadBytes returns the upload limit in bytes
func (s *ServerConfig) GetMaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// Redacted returns a copy with secrets masked, suitable for display
func (c *Config) Redacted() Config {
	out := *c
	out.Transcription.APIKey = mask(out.Transcription.APIKey)
	out.Notes.APIKey = mask(out.Notes.APIKey)
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}
