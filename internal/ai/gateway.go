// Package ai provides a provider-agnostic text generation gateway with
// credential rotation.
package ai

import (
	"context"
	"errors"
)

// ErrProviderExhausted is returned when every credential in the pool failed.
var ErrProviderExhausted = errors.New("all AI providers failed")

// TaskType defines the kind of generation, used for logging and budgets.
type TaskType int

const (
	TaskObjective TaskType = iota
	TaskOutcome
	TaskIndex
	TaskLesson
	TaskQuiz
)

func (t TaskType) String() string {
	switch t {
	case TaskObjective:
		return "objective"
	case TaskOutcome:
		return "outcome"
	case TaskIndex:
		return "index"
	case TaskLesson:
		return "lesson"
	case TaskQuiz:
		return "quiz"
	default:
		return "unknown"
	}
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Task        TaskType  `json:"task,omitempty"`
	// JSON asks the provider for a JSON-only answer where the API supports it.
	JSON bool `json:"json,omitempty"`
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	Provider     string `json:"provider,omitempty"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

// Provider is the interface all AI providers must implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	Models() []ModelInfo
	HealthCheck(ctx context.Context) error
}

// Completer is what callers of the gateway depend on.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Prompt builds a single-turn request with an optional system message.
func Prompt(task TaskType, system, user string) CompletionRequest {
	var msgs []Message
	if system != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	msgs = append(msgs, Message{Role: "user", Content: user})
	return CompletionRequest{Messages: msgs, Task: task}
}
