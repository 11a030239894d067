// Package config loads application configuration from environment variables.
// All variables use the LEARN_ prefix. A .env file, when present, is read
// first; variables already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	DocStore DocStoreConfig
	Cache    CacheConfig
	AI       AIConfig
	Media    MediaConfig
	Bulk     BulkConfig
	Prompts  PromptsConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

// DatabaseConfig holds PostgreSQL settings for the event log. An empty URL
// keeps events in process only.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// DocStoreConfig holds MongoDB settings for courses and templates. An empty
// URI selects the in-memory store.
type DocStoreConfig struct {
	URI      string
	Database string
}

// CacheConfig holds Redis settings shared by rotation counters, budgets and
// the video search cache. An empty URL disables all three.
type CacheConfig struct {
	URL string
}

// AIConfig holds credential pools for every text generation provider. Each
// key becomes one slot in the rotation.
type AIConfig struct {
	OpenAI           ProviderConfig
	Anthropic        ProviderConfig
	DeepSeek         ProviderConfig
	Google           ProviderConfig
	OpenRouter       ProviderConfig
	Ollama           OllamaConfig
	DailyTokenBudget int64
}

// ProviderConfig holds the API keys and optional model for one vendor.
type ProviderConfig struct {
	APIKeys []string
	Model   string
}

// OllamaConfig holds self-hosted Ollama settings.
type OllamaConfig struct {
	Enabled bool
	URL     string
	Model   string
}

// MediaConfig holds video search and thumbnail settings.
type MediaConfig struct {
	YouTubeAPIKeys    []string
	YouTubeMaxResults int
	PexelsAPIKeys     []string
	SearchCacheTTL    time.Duration
}

// BulkConfig holds catalog build settings.
type BulkConfig struct {
	Concurrency int
}

// PromptsConfig points at optional prompt overrides.
type PromptsConfig struct {
	Dir string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with LEARN_ prefix.
func Load() (*Config, error) {
	if err := loadDotEnv(envStr("LEARN_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("LEARN_SERVER_PORT", 8080),
			Host:            envStr("LEARN_SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     envDuration("LEARN_SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    envDuration("LEARN_SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: envDuration("LEARN_SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			MaxUploadBytes:  int64(envInt("LEARN_SERVER_MAX_UPLOAD_MB", 10)) << 20,
		},
		Database: DatabaseConfig{
			URL:      envStr("LEARN_DATABASE_URL", ""),
			MaxConns: envInt("LEARN_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("LEARN_DATABASE_MIN_CONNS", 2),
		},
		DocStore: DocStoreConfig{
			URI:      envStr("LEARN_DOCSTORE_URI", ""),
			Database: envStr("LEARN_DOCSTORE_DATABASE", "courses"),
		},
		Cache: CacheConfig{
			URL: envStr("LEARN_CACHE_URL", ""),
		},
		AI: AIConfig{
			OpenAI: ProviderConfig{
				APIKeys: envList("LEARN_AI_OPENAI_API_KEYS"),
				Model:   envStr("LEARN_AI_OPENAI_MODEL", ""),
			},
			Anthropic: ProviderConfig{
				APIKeys: envList("LEARN_AI_ANTHROPIC_API_KEYS"),
				Model:   envStr("LEARN_AI_ANTHROPIC_MODEL", ""),
			},
			DeepSeek: ProviderConfig{
				APIKeys: envList("LEARN_AI_DEEPSEEK_API_KEYS"),
				Model:   envStr("LEARN_AI_DEEPSEEK_MODEL", ""),
			},
			Google: ProviderConfig{
				APIKeys: envList("LEARN_AI_GOOGLE_API_KEYS"),
				Model:   envStr("LEARN_AI_GOOGLE_MODEL", ""),
			},
			OpenRouter: ProviderConfig{
				APIKeys: envList("LEARN_AI_OPENROUTER_API_KEYS"),
				Model:   envStr("LEARN_AI_OPENROUTER_MODEL", ""),
			},
			Ollama: OllamaConfig{
				Enabled: envBool("LEARN_AI_OLLAMA_ENABLED", false),
				URL:     envStr("LEARN_AI_OLLAMA_URL", "http://localhost:11434"),
				Model:   envStr("LEARN_AI_OLLAMA_MODEL", ""),
			},
			DailyTokenBudget: int64(envInt("LEARN_AI_DAILY_TOKEN_BUDGET", 0)),
		},
		Media: MediaConfig{
			YouTubeAPIKeys:    envList("LEARN_YOUTUBE_API_KEYS"),
			YouTubeMaxResults: envInt("LEARN_YOUTUBE_MAX_RESULTS", 10),
			PexelsAPIKeys:     envList("LEARN_PEXELS_API_KEYS"),
			SearchCacheTTL:    envDuration("LEARN_VIDEO_CACHE_TTL", 24*time.Hour),
		},
		Bulk: BulkConfig{
			Concurrency: envInt("LEARN_BULK_CONCURRENCY", 1),
		},
		Prompts: PromptsConfig{
			Dir: envStr("LEARN_PROMPTS_DIR", ""),
		},
		Log: LogConfig{
			Level:  envStr("LEARN_LOG_LEVEL", "info"),
			Format: envStr("LEARN_LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if !c.HasAIProvider() {
		return fmt.Errorf("at least one AI provider must be configured")
	}

	if len(c.Media.YouTubeAPIKeys) == 0 {
		return fmt.Errorf("LEARN_YOUTUBE_API_KEYS is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("LEARN_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("LEARN_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	if c.Bulk.Concurrency < 1 {
		return fmt.Errorf("LEARN_BULK_CONCURRENCY must be at least 1, got %d", c.Bulk.Concurrency)
	}

	return nil
}

// HasAIProvider returns true if at least one AI credential is configured.
func (c *Config) HasAIProvider() bool {
	return len(c.AI.OpenAI.APIKeys) > 0 ||
		len(c.AI.Anthropic.APIKeys) > 0 ||
		len(c.AI.DeepSeek.APIKeys) > 0 ||
		len(c.AI.Google.APIKeys) > 0 ||
		len(c.AI.OpenRouter.APIKeys) > 0 ||
		c.AI.Ollama.Enabled
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated variable, dropping blanks.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
