package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-courses/internal/platform/config"
	"github.com/p-n-ai/pai-courses/internal/platform/rotation"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LogConfig
		wantJSON  bool
		wantDebug bool
	}{
		{"json info", config.LogConfig{Level: "info", Format: "json"}, true, false},
		{"text debug", config.LogConfig{Level: "debug", Format: "text"}, false, true},
		{"unknown level falls back to info", config.LogConfig{Level: "chatty", Format: "json"}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, tt.cfg)

			if got := logger.Enabled(context.Background(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}

			logger.Info("course created", "course_id", "c1")
			line := strings.TrimSpace(buf.String())
			isJSON := json.Valid([]byte(line))
			if isJSON != tt.wantJSON {
				t.Errorf("output %q json = %v, want %v", line, isJSON, tt.wantJSON)
			}
			if !strings.Contains(line, "c1") {
				t.Errorf("output %q missing attribute", line)
			}
		})
	}
}

func TestBuildCompleter(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.AIConfig
		wantSize int
		wantErr  bool
	}{
		{
			name:    "nothing configured",
			cfg:     config.AIConfig{},
			wantErr: true,
		},
		{
			name: "one provider per key",
			cfg: config.AIConfig{
				OpenAI:    config.ProviderConfig{APIKeys: []string{"sk-1", "sk-2"}},
				DeepSeek:  config.ProviderConfig{APIKeys: []string{"ds-1"}},
				Anthropic: config.ProviderConfig{APIKeys: []string{"ant-1"}, Model: "claude-haiku-4-5"},
			},
			wantSize: 4,
		},
		{
			name: "ollama only",
			cfg: config.AIConfig{
				Ollama: config.OllamaConfig{Enabled: true, URL: "http://localhost:11434", Model: "llama3:8b"},
			},
			wantSize: 1,
		},
		{
			name: "openrouter pool",
			cfg: config.AIConfig{
				OpenRouter: config.ProviderConfig{APIKeys: []string{"or-1", "or-2", "or-3"}},
			},
			wantSize: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, err := buildCompleter(t.Context(), tt.cfg, rotation.NewLocal())
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildCompleter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if router.Size() != tt.wantSize {
				t.Errorf("Size() = %d, want %d", router.Size(), tt.wantSize)
			}
		})
	}
}

func TestCredentialName(t *testing.T) {
	if got := credentialName("openai", 0); got != "openai-1" {
		t.Errorf("credentialName() = %q, want openai-1", got)
	}
}
